package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/adswipe/child-panel/internal/apperror"
	"github.com/adswipe/child-panel/internal/kvstore"
	"github.com/adswipe/child-panel/internal/model"
)

// MinWithdrawal is the $10 floor on a single withdrawal request.
const MinWithdrawal = 10.0

func summaryPath(userKey string) string {
	return kvstore.Join(userPath(userKey), "dashboard", "summary")
}

func withdrawalsPath(userKey string) string {
	return kvstore.Join(userPath(userKey), "withdrawals")
}

// WithdrawalService validates and records withdrawal requests against the
// user's available balance.
//
// The balance decrement and the request insertion are writes to two
// different paths, so they cannot be one store transaction. The order is
// fixed: reserve the balance first, insert the request second. If the
// insert fails the reservation stands and the caller gets ErrPartialWrite
// naming what completed — refusing the user money they still have is the
// recoverable direction; the reverse (request without reservation) would
// let a balance be spent twice.
type WithdrawalService struct {
	store  kvstore.Store
	logger *slog.Logger
}

// NewWithdrawalService creates a WithdrawalService.
func NewWithdrawalService(store kvstore.Store, logger *slog.Logger) *WithdrawalService {
	return &WithdrawalService{store: store, logger: logger}
}

// ValidateAndReserve checks amount against the floor and the user's
// available balance, and on success decrements totalAvailable (and bumps
// totalWithdrawal) in one step. Returns the balance left after the
// reservation.
//
// When the backend supports Transact the decrement is a compare-and-swap:
// a concurrent submission from a second tab cannot overdraw, it simply
// re-runs against the decremented balance and fails the check. On a plain
// Store the check-then-act fallback keeps the same validation but can
// lose an update under true concurrency — acceptable for the embedded
// backends, which serve one process.
func (s *WithdrawalService) ValidateAndReserve(ctx context.Context, userKey string, amount float64) (float64, error) {
	if amount < MinWithdrawal {
		return 0, apperror.BelowMinimum(MinWithdrawal)
	}

	path := summaryPath(userKey)

	txn, ok := s.store.(kvstore.TxnStore)
	if !ok {
		return s.reserveCheckThenAct(ctx, path, amount)
	}

	var after float64
	err := txn.Transact(ctx, path, func(current json.RawMessage) (any, error) {
		var sum model.Summary
		if current != nil {
			if err := json.Unmarshal(current, &sum); err != nil {
				return nil, fmt.Errorf("decoding summary: %w", err)
			}
		}
		if amount > sum.TotalAvailable {
			return nil, apperror.InsufficientBalance(sum.TotalAvailable)
		}
		sum.TotalAvailable -= amount
		sum.TotalWithdrawal += amount
		after = sum.TotalAvailable
		return sum, nil
	})
	if err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			return 0, err
		}
		return 0, apperror.StoreUnavailable("reserving balance", err)
	}
	return after, nil
}

func (s *WithdrawalService) reserveCheckThenAct(ctx context.Context, path string, amount float64) (float64, error) {
	var sum model.Summary
	if _, err := s.store.Get(ctx, path, &sum); err != nil {
		return 0, apperror.StoreUnavailable("reading balance", err)
	}
	if amount > sum.TotalAvailable {
		return 0, apperror.InsufficientBalance(sum.TotalAvailable)
	}

	after := sum.TotalAvailable - amount
	fields := map[string]any{
		"totalAvailable":  after,
		"totalWithdrawal": sum.TotalWithdrawal + amount,
	}
	if err := s.store.Update(ctx, path, fields); err != nil {
		return 0, apperror.StoreUnavailable("reserving balance", err)
	}
	return after, nil
}

// SubmitCrypto records a Binance Wallet withdrawal request.
func (s *WithdrawalService) SubmitCrypto(ctx context.Context, userKey, walletAddress string, amount float64) (*model.Withdrawal, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	if strings.TrimSpace(walletAddress) == "" {
		return nil, apperror.InvalidInput("walletAddress", "wallet address is required")
	}

	w := model.Withdrawal{
		Amount:        amount,
		Status:        model.StatusPending,
		Method:        model.MethodBinanceWallet,
		WalletAddress: walletAddress,
	}
	return s.submit(ctx, userKey, w)
}

// SubmitBank records a Bank Transfer withdrawal request. All four bank
// fields are mandatory.
func (s *WithdrawalService) SubmitBank(ctx context.Context, userKey, holder, bankName, ifsc, accountNumber string, amount float64) (*model.Withdrawal, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	for field, value := range map[string]string{
		"accountHolder": holder,
		"bankName":      bankName,
		"IFSC":          ifsc,
		"accountNumber": accountNumber,
	} {
		if strings.TrimSpace(value) == "" {
			return nil, apperror.InvalidInput(field, field+" is required")
		}
	}

	w := model.Withdrawal{
		Amount:        amount,
		Status:        model.StatusPending,
		Method:        model.MethodBankTransfer,
		AccountHolder: holder,
		BankName:      bankName,
		IFSC:          ifsc,
		AccountNumber: accountNumber,
	}
	return s.submit(ctx, userKey, w)
}

// submit runs the shared tail of both submission paths: allocate the next
// request key, reserve the balance, insert the pending request.
//
// The key is computed before the reservation so that the only write that
// can fail after the balance moved is the insert itself.
func (s *WithdrawalService) submit(ctx context.Context, userKey string, w model.Withdrawal) (*model.Withdrawal, error) {
	var groups model.WithdrawalGroups
	if _, err := s.store.Get(ctx, withdrawalsPath(userKey), &groups); err != nil {
		return nil, apperror.StoreUnavailable("reading withdrawals", err)
	}
	reqKey := nextRequestKey(groups)

	if _, err := s.ValidateAndReserve(ctx, userKey, w.Amount); err != nil {
		return nil, err
	}

	w.Date = time.Now().Format("2006-01-02")

	path := kvstore.Join(withdrawalsPath(userKey), "pending", reqKey)
	if err := s.store.Set(ctx, path, w); err != nil {
		return nil, apperror.PartialWrite(
			fmt.Sprintf("balance reserved ($%g)", w.Amount),
			"pending request insert", err)
	}

	s.logger.Info("withdrawal submitted",
		"user", userKey, "key", reqKey, "method", w.Method, "amount", w.Amount)

	return &w, nil
}

// WithdrawalCard is the presentation row for one request.
type WithdrawalCard struct {
	Key         string  `json:"key"`
	Description string  `json:"description"`
	Status      string  `json:"status"`
	Amount      float64 `json:"amount"`
	Date        string  `json:"date"`
}

// WithdrawalList is the grouped presentation of a user's requests.
type WithdrawalList struct {
	TotalAmount float64          `json:"totalAmount"`
	Pending     []WithdrawalCard `json:"pending,omitempty"`
	Cancelled   []WithdrawalCard `json:"cancelled,omitempty"`
	History     []WithdrawalCard `json:"history,omitempty"`
}

// List returns the user's requests grouped by status, each rendered as a
// card with the one-line description. Groups come back in request-key
// order; empty groups are omitted from the JSON.
func (s *WithdrawalService) List(ctx context.Context, userKey string) (*WithdrawalList, error) {
	var groups model.WithdrawalGroups
	if _, err := s.store.Get(ctx, withdrawalsPath(userKey), &groups); err != nil {
		return nil, apperror.StoreUnavailable("reading withdrawals", err)
	}

	return &WithdrawalList{
		TotalAmount: groups.TotalAmount,
		Pending:     renderCards(groups.Pending),
		Cancelled:   renderCards(groups.Cancelled),
		History:     renderCards(groups.History),
	}, nil
}

// Summary returns the user's dashboard summary (balances). A missing node
// reads as all zeroes.
func (s *WithdrawalService) Summary(ctx context.Context, userKey string) (model.Summary, error) {
	var sum model.Summary
	if _, err := s.store.Get(ctx, summaryPath(userKey), &sum); err != nil {
		return model.Summary{}, apperror.StoreUnavailable("reading summary", err)
	}
	return sum, nil
}

func validateAmount(amount float64) error {
	if amount <= 0 {
		return apperror.InvalidInput("amount", "amount must be positive")
	}
	return nil
}

var reqKeyPattern = regexp.MustCompile(`^req(\d+)$`)

// nextRequestKey allocates the next req{N} key: max N over every group,
// plus one, defaulting to req1. Request numbers are watermarks — a
// cancelled or cleared request never frees its number, so scanning all
// three groups keeps the sequence monotonic even after an operator moves
// a request between groups.
func nextRequestKey(groups model.WithdrawalGroups) string {
	max := 0
	for _, group := range []map[string]model.Withdrawal{groups.Pending, groups.Cancelled, groups.History} {
		for key := range group {
			if n := reqKeyNumber(key); n > max {
				max = n
			}
		}
	}
	return fmt.Sprintf("req%d", max+1)
}

func reqKeyNumber(key string) int {
	m := reqKeyPattern.FindStringSubmatch(key)
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}

func renderCards(group map[string]model.Withdrawal) []WithdrawalCard {
	if len(group) == 0 {
		return nil
	}
	keys := make([]string, 0, len(group))
	for k := range group {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return reqKeyNumber(keys[i]) < reqKeyNumber(keys[j])
	})

	cards := make([]WithdrawalCard, 0, len(keys))
	for _, key := range keys {
		w := group[key]
		cards = append(cards, WithdrawalCard{
			Key:         key,
			Description: w.Describe(),
			Status:      w.Status,
			Amount:      w.Amount,
			Date:        w.Date,
		})
	}
	return cards
}
