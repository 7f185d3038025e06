package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/adswipe/child-panel/internal/apperror"
	"github.com/adswipe/child-panel/internal/auth"
	"github.com/adswipe/child-panel/internal/kvstore"
	"github.com/adswipe/child-panel/internal/model"
)

// AccountService handles registration and login.
//
// Accounts are keyed by the encoded email (dots replaced with
// underscores, see model.UserKey). The encoding is lossy, which means
// two emails that differ only in a '.' vs '_' resolve to the same
// account; registration of the second one fails with a conflict rather
// than corrupting the first.
type AccountService struct {
	store     kvstore.Store
	passwords *auth.PasswordService
	tokens    *auth.TokenService
	logger    *slog.Logger
}

// NewAccountService creates an AccountService.
func NewAccountService(store kvstore.Store, passwords *auth.PasswordService, tokens *auth.TokenService, logger *slog.Logger) *AccountService {
	return &AccountService{
		store:     store,
		passwords: passwords,
		tokens:    tokens,
		logger:    logger,
	}
}

// Register creates a new account and returns its public view plus a
// signed session token. referral is the optional referral code entered at
// signup; it is recorded on the record, not validated against anything.
func (s *AccountService) Register(ctx context.Context, name, email, password, confirm, referral string) (model.PublicView, string, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(strings.ToLower(email))

	if name == "" {
		return model.PublicView{}, "", apperror.InvalidInput("name", "name is required")
	}
	if email == "" || !strings.Contains(email, "@") {
		return model.PublicView{}, "", apperror.InvalidInput("email", "a valid email address is required")
	}
	if len(password) < 8 {
		return model.PublicView{}, "", apperror.InvalidInput("password", "password must be at least 8 characters")
	}
	if confirm != password {
		return model.PublicView{}, "", apperror.InvalidInput("confirmPassword", "passwords do not match")
	}

	userKey := model.UserKey(email)

	var existing json.RawMessage
	found, err := s.store.Get(ctx, userPath(userKey), &existing)
	if err != nil {
		return model.PublicView{}, "", apperror.StoreUnavailable("checking existing user", err)
	}
	if found {
		return model.PublicView{}, "", apperror.Conflict("user", userKey)
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return model.PublicView{}, "", apperror.InvalidInput("password", err.Error())
	}

	user := model.NewUser(name, email, hash, strings.TrimSpace(referral), time.Now())
	if err := s.store.Set(ctx, userPath(userKey), user); err != nil {
		return model.PublicView{}, "", apperror.StoreUnavailable("creating user", err)
	}

	token, err := s.tokens.Generate(userKey)
	if err != nil {
		return model.PublicView{}, "", err
	}

	s.logger.Info("user registered", "user", userKey)
	return user.Public(), token, nil
}

// Email returns the stored email address for a user key. The key encoding
// is lossy, so the address cannot be reconstructed from the key — it has
// to be read back from the record.
func (s *AccountService) Email(ctx context.Context, userKey string) (string, error) {
	var email string
	found, err := s.store.Get(ctx, kvstore.Join(userPath(userKey), "email"), &email)
	if err != nil {
		return "", apperror.StoreUnavailable("reading user email", err)
	}
	if !found {
		return "", apperror.NotFound("user", userKey)
	}
	return email, nil
}

// Login verifies credentials and returns the public view plus a signed
// session token. Wrong email and wrong password produce the same error so
// the endpoint doesn't leak which accounts exist.
func (s *AccountService) Login(ctx context.Context, email, password string) (model.PublicView, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	userKey := model.UserKey(email)

	var user model.User
	found, err := s.store.Get(ctx, userPath(userKey), &user)
	if err != nil {
		return model.PublicView{}, "", apperror.StoreUnavailable("reading user", err)
	}
	if !found {
		return model.PublicView{}, "", apperror.Unauthorized("invalid email or password")
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		return model.PublicView{}, "", apperror.Unauthorized("invalid email or password")
	}

	token, err := s.tokens.Generate(userKey)
	if err != nil {
		return model.PublicView{}, "", err
	}

	// Best effort: a failed lastLogin stamp shouldn't block the login.
	now := time.Now().UTC().Format(time.RFC3339)
	if err := s.store.Update(ctx, userPath(userKey), map[string]any{"lastLogin": now}); err != nil {
		s.logger.Warn("updating lastLogin failed", "user", userKey, "error", err)
	} else if err := s.store.Update(ctx, kvstore.Join(userPath(userKey), "profile"), map[string]any{"lastLogin": now}); err != nil {
		s.logger.Warn("updating profile lastLogin failed", "user", userKey, "error", err)
	}
	user.LastLogin = now

	s.logger.Info("user logged in", "user", userKey)
	return user.Public(), token, nil
}
