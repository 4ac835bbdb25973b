package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/expertbooking/backend/internal/api/handlers"
	"github.com/zatekoja/expertbooking/backend/internal/api/middleware"
	"github.com/zatekoja/expertbooking/backend/internal/api/routes"
	"github.com/zatekoja/expertbooking/backend/internal/app"
	"github.com/zatekoja/expertbooking/backend/internal/infrastructure/observability"
	"github.com/zatekoja/expertbooking/backend/pkg/config"
	"github.com/zatekoja/expertbooking/backend/pkg/secrets"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if res, err := secrets.Apply(ctx, secrets.ConfigFromEnv()); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load secrets from vault: %v\n", err)
		os.Exit(1)
	} else if res.Loaded > 0 {
		fmt.Fprintf(os.Stderr, "loaded %d secrets from vault (%d already set)\n", res.Loaded, res.Skipped)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Environment)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	// Initialize OpenTelemetry if enabled
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Warn().Err(err).Msg("failed to set up OpenTelemetry")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Warn().Err(err).Msg("error shutting down OpenTelemetry")
				}
			}()
		}
	}

	container, err := app.Build(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build services")
	}
	defer container.Close()

	container.PayoutWorker.Start(ctx)
	defer container.PayoutWorker.Stop()

	go container.Reconciliation.Run(ctx, cfg.Booking.ReconcileInterval)

	limiter := middleware.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)
	go limiter.Run(ctx.Done())

	router := routes.NewRouter(routes.Handlers{
		Appointments: handlers.NewAppointmentHandler(container.Booking),
		Experts:      handlers.NewExpertHandler(container.Availability),
		Payments:     handlers.NewPaymentHandler(container.Payments),
		Wallet:       handlers.NewWalletHandler(container.Wallet),
		Proposals:    handlers.NewProposalHandler(container.Proposals),
		Health:       handlers.NewHealthHandler(container.Postgres.DB()),
	}, routes.Options{
		JWTSecret:      cfg.Auth.JWTSecret,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RateLimiter:    limiter,
		Metrics:        container.Metrics,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           router.SetupRoutes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("API server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
}
