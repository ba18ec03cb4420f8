package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

type contextKey struct{}

var identityKey = contextKey{}

// IdentityFromContext returns the identity placed by Authenticate.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityKey).(Identity)
	return identity, ok
}

// WithIdentity is used by tests to build requests that already carry an
// authenticated identity.
func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// Authenticate rejects requests without a valid `Authorization: Bearer`
// header before any business logic runs. Expired and malformed tokens get
// the same response shape; the distinction lives only in the logs.
func Authenticate(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				rejectJSON(w, http.StatusUnauthorized, "authentication required")
				return
			}

			identity, err := tokens.Verify(token)
			if err != nil {
				log.Warn().Err(err).Str("path", r.URL.Path).Msg("auth: token rejected")
				rejectJSON(w, http.StatusUnauthorized, "authentication required")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

// RequireRole gates admin-only routes. It must be mounted after
// Authenticate: a 403 is only reachable once 401 has been ruled out.
func RequireRole(role Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok {
				rejectJSON(w, http.StatusUnauthorized, "authentication required")
				return
			}
			if identity.Role != role {
				log.Warn().Str("subject", identity.ID).Str("role", string(identity.Role)).
					Str("required", string(role)).Msg("auth: insufficient role")
				rejectJSON(w, http.StatusForbidden, "admin access required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func rejectJSON(w http.ResponseWriter, code int, message string) {
	body, err := json.Marshal(map[string]string{"error": message})
	if err != nil {
		log.Error().Err(err).Msg("auth: failed to encode rejection body")
		body = []byte(`{"error":"internal server error"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(body)
}
