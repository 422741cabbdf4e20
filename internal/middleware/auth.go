package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/yu-iskw/lightdash/internal/domain"
)

// AuthConfig configures bearer-token authentication.
type AuthConfig struct {
	Validator JWTValidator
	// Admins are principal names treated as admins regardless of token claims.
	Admins []string
	Logger *slog.Logger
}

// Authenticate validates the bearer token of every request and stores the
// resulting principal in the request context. Requests without a valid token
// get 401.
func Authenticate(cfg AuthConfig) func(http.Handler) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	admins := make(map[string]bool, len(cfg.Admins))
	for _, a := range cfg.Admins {
		admins[a] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			tokenStr, ok := strings.CutPrefix(auth, "Bearer ")
			if !ok || tokenStr == "" {
				writeUnauthorized(w, "missing bearer token")
				return
			}

			claims, err := cfg.Validator.Validate(r.Context(), tokenStr)
			if err != nil {
				logger.DebugContext(r.Context(), "token rejected",
					"request_id", RequestIDFromContext(r.Context()), "error", err)
				writeUnauthorized(w, "invalid bearer token")
				return
			}

			name := claims.Subject
			if name == "" {
				name = claims.Email
			}
			if name == "" {
				writeUnauthorized(w, "token has no subject")
				return
			}

			ctx := domain.WithPrincipal(r.Context(), domain.ContextPrincipal{
				Name:    name,
				Type:    "user",
				IsAdmin: claims.IsAdmin || admins[name],
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"code":    http.StatusUnauthorized,
		"message": "unauthorized: " + msg,
	})
}
