package rest

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/loan-desk/api"
	"github.com/frahmantamala/loan-desk/internal/access"
	"github.com/frahmantamala/loan-desk/internal/checkout"
	"github.com/frahmantamala/loan-desk/internal/transport"
	"github.com/frahmantamala/loan-desk/internal/transport/middleware"
	"github.com/frahmantamala/loan-desk/internal/transport/swagger"
	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
	"github.com/jmoiron/sqlx"
)

const BasePath = "/api/v1"

type Routes struct {
	DB              *sqlx.DB
	Tokens          middleware.TokenValidator
	Evaluator       middleware.Evaluator
	CheckoutHandler *checkout.Handler
	AccessHandler   *access.Handler
	AllowedOrigins  string
	Logger          *slog.Logger
}

func RegisterAllRoutes(router *chi.Mux, routes Routes) error {
	logger := routes.Logger
	healthHandler := NewHealthHandler(routes.DB, transport.NewBaseHandler(logger))

	validator, err := middleware.NewOpenAPIValidator(api.OpenAPISpec, BasePath, logger)
	if err != nil {
		return fmt.Errorf("openapi validator: %w", err)
	}

	requireAction := func(action access.Action) func(http.Handler) http.Handler {
		return middleware.RequireAction(routes.Evaluator, action, logger)
	}

	// Apply global middleware
	router.Use(middleware.CORS(routes.AllowedOrigins))
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RequestID)
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(middleware.RecoveryMiddleware(logger))

	// Serve the OpenAPI document at root (outside API prefix)
	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write(api.OpenAPISpec)
	})
	router.Handle("/swagger/*", swagger.Handler())

	router.Route(BasePath, func(r chi.Router) {
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		r.Group(func(pr chi.Router) {
			pr.Use(middleware.Authenticate(routes.Tokens, logger))
			pr.Use(validator.Middleware)

			if h := routes.CheckoutHandler; h != nil {
				pr.Route("/items/{id}", func(ir chi.Router) {
					ir.Post("/checkout", h.Checkout)
					ir.Post("/checkin", h.Checkin)
					ir.Get("/reservation", h.GetReservation)
				})
				pr.Get("/reservations/mine", h.ListMine)
				pr.With(requireAction(access.ActionViewReservations)).Get("/reservations/overdue", h.ListOverdue)
			}

			if h := routes.AccessHandler; h != nil {
				pr.Get("/flags", h.ListFlags)
				pr.Group(func(fr chi.Router) {
					fr.Use(requireAction(access.ActionManageFlags))
					fr.Post("/flags", h.CreateFlag)
					fr.Patch("/flags/{id}/actions", h.MutateActions)
				})

				pr.Get("/users/{id}/actions", h.UserActions)
				pr.Group(func(ur chi.Router) {
					ur.Use(requireAction(access.ActionManageRoles))
					ur.Put("/users/{id}/flags/{flagID}", h.Promote)
					ur.Delete("/users/{id}/flags/{flagID}", h.Demote)
				})
			}
		})
	})

	return nil
}
