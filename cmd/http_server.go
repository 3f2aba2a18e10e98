package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/frahmantamala/loan-desk/internal"
	"github.com/frahmantamala/loan-desk/internal/access"
	accessPostgres "github.com/frahmantamala/loan-desk/internal/access/postgres"
	"github.com/frahmantamala/loan-desk/internal/checkout"
	"github.com/frahmantamala/loan-desk/internal/core/database"
	"github.com/frahmantamala/loan-desk/internal/core/events"
	"github.com/frahmantamala/loan-desk/internal/identity"
	"github.com/frahmantamala/loan-desk/internal/reservation"
	reservationPostgres "github.com/frahmantamala/loan-desk/internal/reservation/postgres"
	"github.com/frahmantamala/loan-desk/internal/transport/rest"
	"github.com/frahmantamala/loan-desk/pkg/logger"

	"github.com/go-chi/chi"
	"github.com/spf13/cobra"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config       *internal.Config
	DB           *database.DB
	EventBus     *events.EventBus
	Reservations *reservation.Service
	Access       *access.Service
	Checkout     *checkout.Service
	Tokens       *identity.TokenIssuer
	Logger       *slog.Logger
}

func (d *Dependencies) Close() {
	d.EventBus.Wait()
	if err := d.DB.Close(); err != nil {
		d.Logger.Error("database close error", "error", err)
	}
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		exitOnError("failed to initialize dependencies", err)
	}

	router := chi.NewRouter()
	if err := rest.RegisterAllRoutes(router, rest.Routes{
		DB:              deps.DB.SQL,
		Tokens:          deps.Tokens,
		Evaluator:       deps.Access,
		CheckoutHandler: checkout.NewHandler(deps.Checkout),
		AccessHandler:   access.NewHandler(deps.Access),
		AllowedOrigins:  deps.Config.Server.AllowedOrigins,
		Logger:          deps.Logger,
	}); err != nil {
		deps.Logger.Error("failed to register routes", "error", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("received signal, shutting down", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			deps.Logger.Error("server shutdown error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			deps.Logger.Error("server failed to start", "error", err)
			deps.Close()
			os.Exit(1)
		}
	}

	deps.Close()
	deps.Logger.Info("server stopped")
}

func initializeDependencies() (*Dependencies, error) {
	cfg := mustLoadConfig()
	lg := logger.LoggerWrapper()

	db, err := database.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	bus := events.NewEventBus(lg)
	for _, eventType := range []string{
		events.EventTypeItemCheckedOut,
		events.EventTypeItemCheckedIn,
		events.EventTypeReservationOverdue,
	} {
		bus.Subscribe(eventType, events.LogHandler(lg))
	}

	reservations := reservation.NewService(reservationPostgres.NewReservationRepository(db.Gorm), lg,
		reservation.WithDefaultDuration(cfg.Reservation.DefaultDuration),
		reservation.WithReport(reservationPostgres.NewOverdueReport(db.SQL)))
	acl := access.NewService(accessPostgres.NewAccessRepository(db.Gorm), lg)

	return &Dependencies{
		Config:       cfg,
		DB:           db,
		EventBus:     bus,
		Reservations: reservations,
		Access:       acl,
		Checkout:     checkout.NewService(reservations, acl, bus, lg),
		Tokens:       identity.NewTokenIssuerFromConfig(cfg.Security),
		Logger:       lg,
	}, nil
}
