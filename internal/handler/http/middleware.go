package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/buyproxy/internal/user"
)

const sessionCookie = "session"

type ctxKey int

const claimsKey ctxKey = iota

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if c, err := r.Cookie(sessionCookie); err == nil {
		return c.Value
	}
	return ""
}

// SessionMiddleware attaches the caller's session claims to the request context when a valid
// token is present. Requests without one pass through as guests.
func SessionMiddleware(users user.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			claims, err := users.Authenticate(r.Context(), token)
			if err != nil {
				log.Debug().Err(err).Msg("Ignoring invalid session token")
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
		})
	}
}

func claimsFrom(ctx context.Context) (*user.Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*user.Claims)
	return c, ok
}

// sessionUserID returns the signed-in user's id, or false for guests.
func sessionUserID(r *http.Request) (uuid.UUID, bool) {
	c, ok := claimsFrom(r.Context())
	if !ok {
		return uuid.Nil, false
	}
	id, err := c.UserID()
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := sessionUserID(r); !ok {
			respondWithError(w, http.StatusUnauthorized, user.Message(user.ErrInvalidToken))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin allows sessions whose email is in admins.
func RequireAdmin(admins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(admins))
	for _, a := range admins {
		allowed[strings.ToLower(a)] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, ok := claimsFrom(r.Context())
			if !ok {
				respondWithError(w, http.StatusUnauthorized, user.Message(user.ErrInvalidToken))
				return
			}
			if !allowed[strings.ToLower(c.Email)] {
				log.Warn().Str("email", c.Email).Str("path", r.URL.Path).Msg("Non-admin session tried an admin route")
				respondWithError(w, http.StatusForbidden, "관리자 권한이 필요합니다.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
