package auth

import (
	"context"
	"net/http"
)

// contextKey is unexported so no other package can read or shadow the
// user key stored in the request context.
type contextKey string

const userKeyCtx contextKey = "userKey"

// CookieName is the session cookie holding the JWT.
const CookieName = "token"

// RequireAuth enforces authentication on protected routes. It reads the
// JWT from the HttpOnly session cookie, validates it, and stores the user
// key in the request context; missing or invalid tokens get a 401 and the
// chain stops.
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userKey, err := extractUserKey(r, tokens)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"unauthorized","message":"valid authentication required"}`))
				return
			}

			ctx := context.WithValue(r.Context(), userKeyCtx, userKey)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserKeyFromContext retrieves the authenticated user's database key from
// the request context. Returns ("", false) for anonymous requests.
func UserKeyFromContext(ctx context.Context) (string, bool) {
	key, ok := ctx.Value(userKeyCtx).(string)
	return key, ok && key != ""
}

func extractUserKey(r *http.Request, tokens *TokenService) (string, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return "", err
	}
	return tokens.Validate(cookie.Value)
}
