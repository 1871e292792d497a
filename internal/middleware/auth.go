package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/vestibule/vestibule/internal/auth"
)

// accessDeniedBody is the single 401 body for every token failure.
const accessDeniedBody = `{"message":"Access denied. Invalid or expired token."}` + "\n"

// TokenValidator checks an Authorization header value.
type TokenValidator interface {
	ValidateToken(ctx context.Context, authorization string) (*auth.Claims, error)
}

// RequireToken returns a middleware that admits only requests carrying a
// valid bearer token. Verified claims are stored in the request context
// (see auth.ClaimsFromContext). Failures get one uniform 401 regardless of
// the reason; the reason is only logged.
func RequireToken(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := validator.ValidateToken(r.Context(), r.Header.Get("Authorization"))
			if err != nil {
				logger.Warn("authentication failed",
					slog.String("reason", failureReason(err)),
					slog.String("ip", r.RemoteAddr),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeAccessDenied(w)
				return
			}

			ctx := auth.ContextWithClaims(r.Context(), claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// failureReason maps token errors to a short log label.
func failureReason(err error) string {
	switch {
	case errors.Is(err, auth.ErrTokenMissing):
		return "missing_token"
	case errors.Is(err, auth.ErrTokenExpired):
		return "expired"
	case errors.Is(err, auth.ErrTokenInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, auth.ErrTokenMalformed):
		return "malformed"
	case errors.Is(err, auth.ErrTokenInvalidClaims):
		return "invalid_claims"
	default:
		return "unknown"
	}
}

func writeAccessDenied(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(accessDeniedBody))
}
