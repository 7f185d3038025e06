package handler

import (
	"log/slog"
	"net/http"

	"github.com/adswipe/child-panel/internal/auth"
	"github.com/adswipe/child-panel/internal/model"
	"github.com/adswipe/child-panel/internal/service"
)

// AuthHandler serves registration, login and logout.
type AuthHandler struct {
	accounts      *service.AccountService
	logger        *slog.Logger
	secureCookies bool
}

// NewAuthHandler creates an AuthHandler. secureCookies should be true
// whenever the panel is served over HTTPS (i.e. everywhere but local dev).
func NewAuthHandler(accounts *service.AccountService, logger *slog.Logger, secureCookies bool) *AuthHandler {
	return &AuthHandler{accounts: accounts, logger: logger, secureCookies: secureCookies}
}

type registerRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	Referral        string `json:"referral"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	User model.PublicView `json:"user"`
}

// Register handles POST /api/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	view, token, err := h.accounts.Register(r.Context(), req.Name, req.Email, req.Password, req.ConfirmPassword, req.Referral)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.setSessionCookie(w, token)
	writeJSON(w, h.logger, http.StatusCreated, sessionResponse{User: view})
}

// Login handles POST /api/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	view, token, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.setSessionCookie(w, token)
	writeJSON(w, h.logger, http.StatusOK, sessionResponse{User: view})
}

// Logout handles POST /api/logout. The token is stateless, so logging out
// is just expiring the cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, h.logger, http.StatusOK, map[string]string{"status": "logged out"})
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(auth.SessionDuration.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}
