package service

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/adswipe/child-panel/internal/apperror"
	"github.com/adswipe/child-panel/internal/auth"
	"github.com/adswipe/child-panel/internal/kvstore"
	"github.com/adswipe/child-panel/internal/kvstore/memory"
	"github.com/adswipe/child-panel/internal/model"
)

func newAccountService(t *testing.T, store kvstore.Store) (*AccountService, *auth.TokenService) {
	t.Helper()
	tokens, err := auth.NewTokenService("test-secret-at-least-16-chars")
	if err != nil {
		t.Fatalf("NewTokenService() error = %v", err)
	}
	passwords := auth.NewPasswordServiceForTest(bcrypt.MinCost)
	return NewAccountService(store, passwords, tokens, testLogger()), tokens
}

func TestRegisterAndLogin(t *testing.T) {
	store := memory.New()
	svc, tokens := newAccountService(t, store)
	ctx := context.Background()

	view, token, err := svc.Register(ctx, "Alice", "alice@example.com", "s3cret-pass", "s3cret-pass", "")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if view.Email != "alice@example.com" || view.Name != "Alice" {
		t.Errorf("view = %+v, want Alice / alice@example.com", view)
	}

	userKey, err := tokens.Validate(token)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if userKey != "alice@example_com" {
		t.Errorf("token subject = %q, want encoded email", userKey)
	}

	// The stored record must never expose the plaintext and must start
	// with an empty link collection so positional keys begin at link1.
	var user model.User
	if _, err := store.Get(ctx, "child_panel/alice@example_com", &user); err != nil {
		t.Fatalf("reading user: %v", err)
	}
	if user.PasswordHash == "s3cret-pass" || user.PasswordHash == "" {
		t.Error("password stored as plaintext or not at all")
	}
	if len(user.Links) != 0 {
		t.Errorf("fresh user has %d links, want 0", len(user.Links))
	}
	if user.ReferralCode != "00000" {
		t.Errorf("referralCode = %q, want default 00000", user.ReferralCode)
	}

	if _, _, err := svc.Login(ctx, "alice@example.com", "s3cret-pass"); err != nil {
		t.Errorf("Login() with correct password: %v", err)
	}
	if _, _, err := svc.Login(ctx, "alice@example.com", "wrong"); !errors.Is(err, apperror.ErrUnauthorized) {
		t.Errorf("Login() with wrong password: error = %v, want ErrUnauthorized", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newAccountService(t, memory.New())
	ctx := context.Background()

	tests := []struct {
		name                           string
		userName, email, pass, confirm string
	}{
		{"blank name", "", "alice@example.com", "s3cret-pass", "s3cret-pass"},
		{"blank email", "Alice", "", "s3cret-pass", "s3cret-pass"},
		{"no at sign", "Alice", "alice.example.com", "s3cret-pass", "s3cret-pass"},
		{"short password", "Alice", "alice@example.com", "short", "short"},
		{"mismatched confirm", "Alice", "alice@example.com", "s3cret-pass", "s3cret-other"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.Register(ctx, tt.userName, tt.email, tt.pass, tt.confirm, "")
			if !errors.Is(err, apperror.ErrInvalidInput) {
				t.Errorf("error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestRegisterRecordsReferral(t *testing.T) {
	store := memory.New()
	svc, _ := newAccountService(t, store)
	ctx := context.Background()

	if _, _, err := svc.Register(ctx, "Alice", "alice@example.com", "s3cret-pass", "s3cret-pass", "REF42"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	var user model.User
	if _, err := store.Get(ctx, "child_panel/alice@example_com", &user); err != nil {
		t.Fatalf("reading user: %v", err)
	}
	if user.ReferredBy != "REF42" {
		t.Errorf("referredBy = %q, want REF42", user.ReferredBy)
	}
}

func TestRegisterDuplicate(t *testing.T) {
	svc, _ := newAccountService(t, memory.New())
	ctx := context.Background()

	if _, _, err := svc.Register(ctx, "Alice", "alice@example.com", "s3cret-pass", "s3cret-pass", ""); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	_, _, err := svc.Register(ctx, "Alice Again", "alice@example.com", "s3cret-pass", "s3cret-pass", "")
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("error = %v, want ErrConflict", err)
	}
}

// The email → key encoding replaces '.' with '_', so these two distinct
// addresses collide. Registration of the second must fail instead of
// overwriting the first account.
func TestRegisterEncodingCollision(t *testing.T) {
	svc, _ := newAccountService(t, memory.New())
	ctx := context.Background()

	if _, _, err := svc.Register(ctx, "Alice", "a.b@example.com", "s3cret-pass", "s3cret-pass", ""); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	_, _, err := svc.Register(ctx, "Mallory", "a_b@example.com", "another-pass", "another-pass", "")
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("error = %v, want ErrConflict for colliding key", err)
	}
}

func TestLoginUnknownUser(t *testing.T) {
	svc, _ := newAccountService(t, memory.New())

	_, _, err := svc.Login(context.Background(), "nobody@example.com", "whatever")
	if !errors.Is(err, apperror.ErrUnauthorized) {
		t.Errorf("error = %v, want ErrUnauthorized", err)
	}
}

func TestLoginStampsLastLogin(t *testing.T) {
	store := memory.New()
	svc, _ := newAccountService(t, store)
	ctx := context.Background()

	if _, _, err := svc.Register(ctx, "Alice", "alice@example.com", "s3cret-pass", "s3cret-pass", ""); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	view, _, err := svc.Login(ctx, "alice@example.com", "s3cret-pass")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if view.LastLogin == "" {
		t.Error("LastLogin not set on the returned view")
	}

	var profile model.Profile
	if _, err := store.Get(ctx, "child_panel/alice@example_com/profile", &profile); err != nil {
		t.Fatalf("reading profile: %v", err)
	}
	if profile.LastLogin != view.LastLogin {
		t.Errorf("profile.lastLogin = %q, want %q", profile.LastLogin, view.LastLogin)
	}
}
