package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	id "formbridge/pkg/domain"
	dErrors "formbridge/pkg/domain-errors"
	"formbridge/pkg/platform/httputil"
	"formbridge/pkg/requestcontext"
)

// TokenValidator validates a bearer token and resolves the principal it
// references. Implemented by internal/jwttoken.
type TokenValidator interface {
	ValidatePrincipalToken(token string) (id.PrincipalID, error)
}

// RequireAuth rejects requests without a valid bearer token and injects the
// resolved principal ID into the request context.
func RequireAuth(validator TokenValidator, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing bearer token"))
				return
			}

			pid, err := validator.ValidatePrincipalToken(token)
			if err != nil {
				log.Warn("rejected bearer token",
					"request_id", requestcontext.RequestID(r.Context()),
					"error", err.Error(),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid token"))
				return
			}

			ctx := requestcontext.WithPrincipalID(r.Context(), pid)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
