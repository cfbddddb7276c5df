package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/subhodeep2005s/realtime-chat/internal/apperr"
	"github.com/subhodeep2005s/realtime-chat/internal/auth"
)

type contextKey string

const SessionContextKey contextKey = "session"

// TokenCookie carries a participant's room token.
const TokenCookie = "x-auth-token"

// Verifier checks a room token.
type Verifier interface {
	Verify(ctx context.Context, roomID, token string) (auth.Session, error)
}

// AuthMiddleware gates room routes on a valid room token.
type AuthMiddleware struct {
	verifier Verifier
}

// NewAuthMiddleware creates a new auth middleware.
func NewAuthMiddleware(verifier Verifier) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier}
}

// RequireRoomAuth resolves the roomId query parameter and the caller's token
// into a session. Missing and unknown credentials get the same response.
func (m *AuthMiddleware) RequireRoomAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		roomID := r.URL.Query().Get("roomId")
		token := TokenFromRequest(r)

		sess, err := m.verifier.Verify(r.Context(), roomID, token)
		if err != nil {
			jsonError(w, apperr.Status(err), apperr.Message(err))
			return
		}

		ctx := context.WithValue(r.Context(), SessionContextKey, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// TokenFromRequest reads the room token from the cookie, falling back to a bearer header.
func TokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(TokenCookie); err == nil && c.Value != "" {
		return c.Value
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return ""
}

func jsonError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// GetSessionFromContext retrieves the authenticated session from the request context.
func GetSessionFromContext(ctx context.Context) (auth.Session, bool) {
	sess, ok := ctx.Value(SessionContextKey).(auth.Session)
	return sess, ok
}
