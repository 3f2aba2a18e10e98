package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/loan-desk/internal"
	"github.com/frahmantamala/loan-desk/internal/access"
	"github.com/frahmantamala/loan-desk/internal/transport"
)

type Evaluator interface {
	IsAllowed(ctx context.Context, userID string, action access.Action) bool
}

// RequireAction lets the request through only when the authenticated user
// is allowed the action. It must run after Authenticate.
func RequireAction(evaluator Evaluator, action access.Action, lg *slog.Logger) func(http.Handler) http.Handler {
	base := transport.NewBaseHandler(lg)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := internal.UserIDFromContext(r.Context())
			if userID == "" {
				base.Logger.Warn("authorization check failed: user not found in context", "path", r.URL.Path)
				base.HandleServiceError(w, internal.ErrInvalidToken.WithMessage("unauthorized"))
				return
			}

			if !evaluator.IsAllowed(r.Context(), userID, action) {
				base.Logger.WarnContext(r.Context(), "access denied: action not allowed",
					"user_id", userID,
					"required_action", action)
				base.HandleServiceError(w, internal.ErrForbiddenAction.
					WithMessage(fmt.Sprintf("user %s is not allowed to %s", userID, action)))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
