// Package apperror defines the application's error taxonomy.
//
// Every business rule that can be violated gets a sentinel error here, so
// callers can branch with errors.Is without string matching. The service
// layer returns these; the HTTP layer maps them to status codes.
//
// The financial errors (ErrBelowMinimum, ErrInsufficientBalance,
// ErrPartialWrite) are deliberately loud: a withdrawal that half-completed
// must never be swallowed or silently retried, because a retry can deduct
// the balance twice.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidInput        = errors.New("invalid input")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrConflict            = errors.New("conflict")
	ErrQuotaExceeded       = errors.New("quota exceeded")
	ErrBelowMinimum        = errors.New("below minimum withdrawal")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrCodeSpaceExhausted  = errors.New("code space exhausted")
	ErrStoreUnavailable    = errors.New("store unavailable")
	ErrPartialWrite        = errors.New("partial write")
)

// AppError carries a sentinel (for errors.Is), a human-readable message,
// and optionally the input field that caused it.
type AppError struct {
	Err     error  // sentinel from the list above
	Message string // human-readable error message
	Field   string // optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with key %s", resource, id),
	}
}

func InvalidInput(field, message string) *AppError {
	return &AppError{
		Err:     ErrInvalidInput,
		Message: message,
		Field:   field,
	}
}

func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s already exists with key %s", resource, id),
	}
}

// QuotaExceeded reports that the user already holds the maximum number of links.
func QuotaExceeded(max int) *AppError {
	return &AppError{
		Err:     ErrQuotaExceeded,
		Message: fmt.Sprintf("maximum %d links allowed", max),
	}
}

// BelowMinimum reports a withdrawal amount under the floor.
func BelowMinimum(min float64) *AppError {
	return &AppError{
		Err:     ErrBelowMinimum,
		Message: fmt.Sprintf("minimum withdrawal is $%.0f", min),
		Field:   "amount",
	}
}

// InsufficientBalance reports a withdrawal amount over the available balance.
// The message includes the current balance, matching what the panel shows.
func InsufficientBalance(available float64) *AppError {
	return &AppError{
		Err:     ErrInsufficientBalance,
		Message: fmt.Sprintf("insufficient balance, available: $%g", available),
		Field:   "amount",
	}
}

// CodeSpaceExhausted reports that code generation gave up after the retry cap.
// In practice this only happens in pathological setups (a nearly full code
// space); the cap exists so the allocator can never loop forever.
func CodeSpaceExhausted(attempts int) *AppError {
	return &AppError{
		Err:     ErrCodeSpaceExhausted,
		Message: fmt.Sprintf("could not allocate a unique code after %d attempts", attempts),
	}
}

// StoreUnavailable wraps a failed remote store call. op names the step that
// failed so the caller knows exactly how far the operation got.
func StoreUnavailable(op string, err error) *AppError {
	return &AppError{
		Err:     ErrStoreUnavailable,
		Message: fmt.Sprintf("store unavailable while %s: %v", op, err),
	}
}

// PartialWrite reports that one of a pair of dependent writes succeeded while
// its counterpart failed. There is no automatic rollback; the message states
// which step completed so the caller (or an operator) can reconcile.
func PartialWrite(completed, failed string, err error) *AppError {
	return &AppError{
		Err:     ErrPartialWrite,
		Message: fmt.Sprintf("%s, but %s failed: %v", completed, failed, err),
	}
}
