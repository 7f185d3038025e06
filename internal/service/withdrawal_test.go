package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/adswipe/child-panel/internal/apperror"
	"github.com/adswipe/child-panel/internal/kvstore"
	"github.com/adswipe/child-panel/internal/kvstore/memory"
	"github.com/adswipe/child-panel/internal/model"
)

func newWithdrawalService(store kvstore.Store) *WithdrawalService {
	return NewWithdrawalService(store, testLogger())
}

func seedBalance(t *testing.T, store kvstore.Store, amount float64) {
	t.Helper()
	sum := model.Summary{TotalEarnings: amount, TotalAvailable: amount}
	if err := store.Set(context.Background(), summaryPath(testUserKey), sum); err != nil {
		t.Fatalf("seeding balance: %v", err)
	}
}

func currentSummary(t *testing.T, store kvstore.Store) model.Summary {
	t.Helper()
	var sum model.Summary
	if _, err := store.Get(context.Background(), summaryPath(testUserKey), &sum); err != nil {
		t.Fatalf("reading summary: %v", err)
	}
	return sum
}

func TestReserveBelowMinimum(t *testing.T) {
	store := memory.New()
	seedBalance(t, store, 100)
	svc := newWithdrawalService(store)

	_, err := svc.ValidateAndReserve(context.Background(), testUserKey, 9.99)
	if !errors.Is(err, apperror.ErrBelowMinimum) {
		t.Fatalf("error = %v, want ErrBelowMinimum", err)
	}
	if sum := currentSummary(t, store); sum.TotalAvailable != 100 {
		t.Errorf("totalAvailable = %v, want untouched 100", sum.TotalAvailable)
	}
}

func TestReserveExactBalance(t *testing.T) {
	store := memory.New()
	seedBalance(t, store, 10)
	svc := newWithdrawalService(store)

	after, err := svc.ValidateAndReserve(context.Background(), testUserKey, 10)
	if err != nil {
		t.Fatalf("ValidateAndReserve() error = %v", err)
	}
	if after != 0 {
		t.Errorf("after = %v, want 0", after)
	}

	sum := currentSummary(t, store)
	if sum.TotalAvailable != 0 {
		t.Errorf("totalAvailable = %v, want 0", sum.TotalAvailable)
	}
	if sum.TotalWithdrawal != 10 {
		t.Errorf("totalWithdrawal = %v, want 10", sum.TotalWithdrawal)
	}
}

func TestReserveInsufficientBalance(t *testing.T) {
	store := memory.New()
	seedBalance(t, store, 50)
	svc := newWithdrawalService(store)

	_, err := svc.ValidateAndReserve(context.Background(), testUserKey, 60)
	if !errors.Is(err, apperror.ErrInsufficientBalance) {
		t.Fatalf("error = %v, want ErrInsufficientBalance", err)
	}
	if !strings.Contains(err.Error(), "$50") {
		t.Errorf("error %q should state the available balance", err)
	}
	if sum := currentSummary(t, store); sum.TotalAvailable != 50 {
		t.Errorf("totalAvailable = %v, want untouched 50", sum.TotalAvailable)
	}
}

// The fallback path runs when the store has no Transact. spyStore hides
// the memory store's TxnStore implementation.
func TestReserveFallbackWithoutTransact(t *testing.T) {
	store := memory.New()
	seedBalance(t, store, 30)
	svc := newWithdrawalService(&spyStore{Store: store})
	ctx := context.Background()

	after, err := svc.ValidateAndReserve(ctx, testUserKey, 20)
	if err != nil {
		t.Fatalf("ValidateAndReserve() error = %v", err)
	}
	if after != 10 {
		t.Errorf("after = %v, want 10", after)
	}

	if _, err := svc.ValidateAndReserve(ctx, testUserKey, 20); !errors.Is(err, apperror.ErrInsufficientBalance) {
		t.Errorf("error = %v, want ErrInsufficientBalance on drained balance", err)
	}
}

func TestSubmitBankEndToEnd(t *testing.T) {
	store := memory.New()
	seedBalance(t, store, 100)
	svc := newWithdrawalService(store)
	ctx := context.Background()

	w, err := svc.SubmitBank(ctx, testUserKey, "Alice Smith", "First Bank", "FIRB0001234", "1234567890", 40)
	if err != nil {
		t.Fatalf("SubmitBank() error = %v", err)
	}
	if w.Method != model.MethodBankTransfer || w.Status != model.StatusPending || w.Amount != 40 {
		t.Errorf("withdrawal = %+v, want pending Bank Transfer of 40", w)
	}

	var stored model.Withdrawal
	found, err := store.Get(ctx, withdrawalsPath(testUserKey)+"/pending/req1", &stored)
	if err != nil || !found {
		t.Fatalf("pending/req1: found=%v err=%v", found, err)
	}
	if stored.Method != model.MethodBankTransfer || stored.Status != model.StatusPending || stored.Amount != 40 {
		t.Errorf("stored = %+v, want pending Bank Transfer of 40", stored)
	}
	if stored.WalletAddress != "" {
		t.Errorf("bank request carries walletAddress %q", stored.WalletAddress)
	}
	if sum := currentSummary(t, store); sum.TotalAvailable != 60 {
		t.Errorf("totalAvailable = %v, want 60", sum.TotalAvailable)
	}

	// 70 > 60 remaining: rejected, balance and pending set unchanged.
	_, err = svc.SubmitBank(ctx, testUserKey, "Alice Smith", "First Bank", "FIRB0001234", "1234567890", 70)
	if !errors.Is(err, apperror.ErrInsufficientBalance) {
		t.Fatalf("error = %v, want ErrInsufficientBalance", err)
	}
	if sum := currentSummary(t, store); sum.TotalAvailable != 60 {
		t.Errorf("totalAvailable = %v, want still 60", sum.TotalAvailable)
	}
	var req2 model.Withdrawal
	if found, _ := store.Get(ctx, withdrawalsPath(testUserKey)+"/pending/req2", &req2); found {
		t.Error("rejected submission should not create pending/req2")
	}
}

func TestSubmitCryptoValidation(t *testing.T) {
	store := memory.New()
	seedBalance(t, store, 100)
	svc := newWithdrawalService(store)
	ctx := context.Background()

	if _, err := svc.SubmitCrypto(ctx, testUserKey, "", 40); !errors.Is(err, apperror.ErrInvalidInput) {
		t.Errorf("blank wallet: error = %v, want ErrInvalidInput", err)
	}
	if _, err := svc.SubmitCrypto(ctx, testUserKey, "0xabc", 0); !errors.Is(err, apperror.ErrInvalidInput) {
		t.Errorf("zero amount: error = %v, want ErrInvalidInput", err)
	}
	if _, err := svc.SubmitCrypto(ctx, testUserKey, "0xabc", 9); !errors.Is(err, apperror.ErrBelowMinimum) {
		t.Errorf("amount below floor: error = %v, want ErrBelowMinimum", err)
	}
	if sum := currentSummary(t, store); sum.TotalAvailable != 100 {
		t.Errorf("totalAvailable = %v, failed validation must not touch the balance", sum.TotalAvailable)
	}
}

func TestSubmitBankMissingFields(t *testing.T) {
	store := memory.New()
	seedBalance(t, store, 100)
	svc := newWithdrawalService(store)
	ctx := context.Background()

	tests := []struct {
		name                              string
		holder, bank, ifsc, accountNumber string
	}{
		{"no holder", "", "First Bank", "FIRB0001234", "123"},
		{"no bank", "Alice", "", "FIRB0001234", "123"},
		{"no ifsc", "Alice", "First Bank", "", "123"},
		{"no account", "Alice", "First Bank", "FIRB0001234", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SubmitBank(ctx, testUserKey, tt.holder, tt.bank, tt.ifsc, tt.accountNumber, 40)
			if !errors.Is(err, apperror.ErrInvalidInput) {
				t.Errorf("error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

// Request keys are monotonic watermarks: removing req1 must not cause its
// number to be reissued, unlike link keys which compact.
func TestRequestKeysAreWatermarks(t *testing.T) {
	store := memory.New()
	seedBalance(t, store, 500)
	svc := newWithdrawalService(store)
	ctx := context.Background()

	if _, err := svc.SubmitCrypto(ctx, testUserKey, "0xabc", 20); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if _, err := svc.SubmitCrypto(ctx, testUserKey, "0xabc", 20); err != nil {
		t.Fatalf("second submit: %v", err)
	}

	// Simulate cancellation-then-clear of the first request.
	if err := store.Remove(ctx, withdrawalsPath(testUserKey)+"/pending/req1"); err != nil {
		t.Fatalf("removing req1: %v", err)
	}

	if _, err := svc.SubmitCrypto(ctx, testUserKey, "0xabc", 20); err != nil {
		t.Fatalf("third submit: %v", err)
	}

	var w model.Withdrawal
	found, err := store.Get(ctx, withdrawalsPath(testUserKey)+"/pending/req3", &w)
	if err != nil || !found {
		t.Fatalf("pending/req3: found=%v err=%v (req2 still exists, so next is req3)", found, err)
	}
	if found, _ := store.Get(ctx, withdrawalsPath(testUserKey)+"/pending/req1", &w); found {
		t.Error("req1 was reissued; request numbers must never be reused")
	}
}

// Watermarks also survive a request being moved to another group.
func TestRequestKeysSpanAllGroups(t *testing.T) {
	store := memory.New()
	seedBalance(t, store, 500)
	svc := newWithdrawalService(store)
	ctx := context.Background()

	old := model.Withdrawal{Amount: 15, Date: "2026-01-10", Status: model.StatusCompleted, Method: model.MethodBinanceWallet, WalletAddress: "0xdef"}
	if err := store.Set(ctx, withdrawalsPath(testUserKey)+"/history/req4", old); err != nil {
		t.Fatalf("seeding history: %v", err)
	}

	if _, err := svc.SubmitCrypto(ctx, testUserKey, "0xabc", 20); err != nil {
		t.Fatalf("SubmitCrypto() error = %v", err)
	}

	var w model.Withdrawal
	found, err := store.Get(ctx, withdrawalsPath(testUserKey)+"/pending/req5", &w)
	if err != nil || !found {
		t.Fatalf("pending/req5: found=%v err=%v", found, err)
	}
}

func TestSubmitInsertFailureIsPartialWrite(t *testing.T) {
	store := memory.New()
	seedBalance(t, store, 100)
	spy := &spyStore{Store: store, failOn: "pending"}
	svc := newWithdrawalService(spy)

	_, err := svc.SubmitCrypto(context.Background(), testUserKey, "0xabc", 40)
	if !errors.Is(err, apperror.ErrPartialWrite) {
		t.Fatalf("error = %v, want ErrPartialWrite", err)
	}
	if !strings.Contains(err.Error(), "balance reserved") {
		t.Errorf("error %q should name the completed step", err)
	}

	// No rollback: the reservation stands and the error makes that visible.
	if sum := currentSummary(t, store); sum.TotalAvailable != 60 {
		t.Errorf("totalAvailable = %v, want 60 (reservation kept)", sum.TotalAvailable)
	}
}

func TestListGroupsAndDescriptions(t *testing.T) {
	store := memory.New()
	svc := newWithdrawalService(store)
	ctx := context.Background()

	groups := model.WithdrawalGroups{
		TotalAmount: 65,
		Pending: map[string]model.Withdrawal{
			"req3": {Amount: 25, Date: "2026-02-01", Status: model.StatusPending, Method: model.MethodBinanceWallet, WalletAddress: "0xabc"},
			"req2": {Amount: 40, Date: "2026-01-20", Status: model.StatusPending, Method: model.MethodBankTransfer, AccountHolder: "Alice Smith", BankName: "First Bank", IFSC: "FIRB0001234", AccountNumber: "123"},
		},
		History: map[string]model.Withdrawal{
			"req1": {Amount: 15, Date: "2026-01-05", Status: model.StatusCompleted, Method: model.MethodBinanceWallet},
		},
	}
	if err := store.Set(ctx, withdrawalsPath(testUserKey), groups); err != nil {
		t.Fatalf("seeding withdrawals: %v", err)
	}

	list, err := svc.List(ctx, testUserKey)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}

	if list.TotalAmount != 65 {
		t.Errorf("TotalAmount = %v, want 65", list.TotalAmount)
	}
	if len(list.Pending) != 2 || len(list.History) != 1 || list.Cancelled != nil {
		t.Fatalf("group sizes = %d/%d/%d, want 2 pending, 0 cancelled, 1 history",
			len(list.Pending), len(list.Cancelled), len(list.History))
	}

	// Request-key order, not map order.
	if list.Pending[0].Key != "req2" || list.Pending[1].Key != "req3" {
		t.Errorf("pending order = [%s %s], want [req2 req3]", list.Pending[0].Key, list.Pending[1].Key)
	}

	wantBank := "Bank Transfer • 40 • 2026-01-20 • Alice Smith, First Bank, FIRB0001234"
	if list.Pending[0].Description != wantBank {
		t.Errorf("bank description = %q, want %q", list.Pending[0].Description, wantBank)
	}
	wantCrypto := "Binance Wallet • 25 • 2026-02-01 • 0xabc"
	if list.Pending[1].Description != wantCrypto {
		t.Errorf("crypto description = %q, want %q", list.Pending[1].Description, wantCrypto)
	}
	wantNoAddr := "Binance Wallet • 15 • 2026-01-05 • No Address"
	if list.History[0].Description != wantNoAddr {
		t.Errorf("history description = %q, want %q", list.History[0].Description, wantNoAddr)
	}
}

func TestSummaryMissingNodeReadsZero(t *testing.T) {
	svc := newWithdrawalService(memory.New())

	sum, err := svc.Summary(context.Background(), testUserKey)
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	if sum != (model.Summary{}) {
		t.Errorf("Summary() = %+v, want all zeroes", sum)
	}
}
