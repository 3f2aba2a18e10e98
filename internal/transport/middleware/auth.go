package middleware

import (
	"log/slog"
	"net/http"

	"github.com/frahmantamala/loan-desk/internal"
	"github.com/frahmantamala/loan-desk/internal/identity"
	"github.com/frahmantamala/loan-desk/internal/transport"
	"github.com/frahmantamala/loan-desk/pkg/logger"
)

type TokenValidator interface {
	Validate(tokenString string) (*identity.Claims, error)
}

// Authenticate resolves the bearer token to a user id and stores it in the
// request context and the request logger.
func Authenticate(validator TokenValidator, lg *slog.Logger) func(http.Handler) http.Handler {
	base := transport.NewBaseHandler(lg)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := base.ExtractTokenFromHeader(r)
			if token == "" {
				base.Logger.Warn("auth middleware: missing authorization token", "path", r.URL.Path)
				base.HandleServiceError(w, internal.ErrInvalidToken.WithMessage("missing authorization token"))
				return
			}

			claims, err := validator.Validate(token)
			if err != nil {
				base.Logger.Warn("auth middleware: token validation failed", "path", r.URL.Path, "error", err)
				base.HandleServiceError(w, err)
				return
			}

			ctx := internal.ContextWithUserID(r.Context(), claims.UserID())
			ctx = logger.With(ctx, "user_id", claims.UserID())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
