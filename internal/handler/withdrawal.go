package handler

import (
	"log/slog"
	"net/http"

	"github.com/adswipe/child-panel/internal/apperror"
	"github.com/adswipe/child-panel/internal/auth"
	"github.com/adswipe/child-panel/internal/service"
)

// WithdrawalHandler serves the withdrawal endpoints.
type WithdrawalHandler struct {
	withdrawals *service.WithdrawalService
	logger      *slog.Logger
}

// NewWithdrawalHandler creates a WithdrawalHandler.
func NewWithdrawalHandler(withdrawals *service.WithdrawalService, logger *slog.Logger) *WithdrawalHandler {
	return &WithdrawalHandler{withdrawals: withdrawals, logger: logger}
}

type cryptoWithdrawalRequest struct {
	WalletAddress string  `json:"walletAddress"`
	Amount        float64 `json:"amount"`
}

type bankWithdrawalRequest struct {
	AccountHolder string  `json:"accountHolder"`
	BankName      string  `json:"bankName"`
	IFSC          string  `json:"IFSC"`
	AccountNumber string  `json:"accountNumber"`
	Amount        float64 `json:"amount"`
}

// List handles GET /api/withdrawals.
func (h *WithdrawalHandler) List(w http.ResponseWriter, r *http.Request) {
	userKey, ok := auth.UserKeyFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, apperror.Unauthorized("authentication required"))
		return
	}

	list, err := h.withdrawals.List(r.Context(), userKey)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, list)
}

// SubmitCrypto handles POST /api/withdrawals/crypto.
func (h *WithdrawalHandler) SubmitCrypto(w http.ResponseWriter, r *http.Request) {
	userKey, ok := auth.UserKeyFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, apperror.Unauthorized("authentication required"))
		return
	}

	var req cryptoWithdrawalRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	withdrawal, err := h.withdrawals.SubmitCrypto(r.Context(), userKey, req.WalletAddress, req.Amount)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, withdrawal)
}

// SubmitBank handles POST /api/withdrawals/bank.
func (h *WithdrawalHandler) SubmitBank(w http.ResponseWriter, r *http.Request) {
	userKey, ok := auth.UserKeyFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, apperror.Unauthorized("authentication required"))
		return
	}

	var req bankWithdrawalRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	withdrawal, err := h.withdrawals.SubmitBank(r.Context(), userKey,
		req.AccountHolder, req.BankName, req.IFSC, req.AccountNumber, req.Amount)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, withdrawal)
}

// Summary handles GET /api/summary.
func (h *WithdrawalHandler) Summary(w http.ResponseWriter, r *http.Request) {
	userKey, ok := auth.UserKeyFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, apperror.Unauthorized("authentication required"))
		return
	}

	sum, err := h.withdrawals.Summary(r.Context(), userKey)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, sum)
}
