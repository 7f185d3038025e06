package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Withdrawal methods. The strings are stored verbatim in the database and
// shown verbatim in the panel, so they keep their display casing.
const (
	MethodBankTransfer  = "Bank Transfer"
	MethodBinanceWallet = "Binance Wallet"
)

// Withdrawal statuses. Transitions out of "pending" happen out-of-band
// (an operator approves or cancels the request); this server only ever
// writes the initial pending state.
const (
	StatusPending   = "pending"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
)

// Withdrawal is a single withdrawal request. Method-specific fields are
// omitted from the JSON when empty: a bank request never carries
// walletAddress and a crypto request never carries the bank fields.
type Withdrawal struct {
	Amount float64 `json:"amount"`
	Date   string  `json:"date"` // day granularity, YYYY-MM-DD
	Status string  `json:"status"`
	Method string  `json:"method"`

	// Binance Wallet
	WalletAddress string `json:"walletAddress,omitempty"`

	// Bank Transfer
	AccountHolder string `json:"accountHolder,omitempty"`
	BankName      string `json:"bankName,omitempty"`
	IFSC          string `json:"IFSC,omitempty"`
	AccountNumber string `json:"accountNumber,omitempty"`
}

// Describe renders the one-line summary shown on a withdrawal card:
//
//	method • amount • date [• method-specific detail]
//
// Bank transfers append holder, bank and IFSC; crypto appends the wallet
// address (or "No Address" if it is somehow blank).
func (w Withdrawal) Describe() string {
	method := w.Method
	if method == "" {
		method = "Unknown"
	}

	var b strings.Builder
	b.WriteString(method)
	b.WriteString(" • ")
	b.WriteString(strconv.FormatFloat(w.Amount, 'f', -1, 64))
	b.WriteString(" • ")
	b.WriteString(w.Date)

	switch w.Method {
	case MethodBankTransfer:
		fmt.Fprintf(&b, " • %s, %s, %s", w.AccountHolder, w.BankName, w.IFSC)
	case MethodBinanceWallet:
		addr := w.WalletAddress
		if addr == "" {
			addr = "No Address"
		}
		b.WriteString(" • ")
		b.WriteString(addr)
	}

	return b.String()
}

// WithdrawalGroups is the per-user withdrawals node: three independent
// collections keyed req1, req2, ... Request keys are monotonic watermarks —
// they are never renumbered when a request is cancelled or cleared, unlike
// link keys which compact on deletion.
type WithdrawalGroups struct {
	TotalAmount float64               `json:"totalAmount"`
	Pending     map[string]Withdrawal `json:"pending"`
	Cancelled   map[string]Withdrawal `json:"cancelled"`
	History     map[string]Withdrawal `json:"history"`
}
