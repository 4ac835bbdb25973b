// Command reconciler runs the settlement sweep outside the API process:
// stale unpaid bookings are checked against the processor and either
// captured or expired, and stuck payouts are re-driven.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/expertbooking/backend/internal/app"
	"github.com/zatekoja/expertbooking/backend/internal/infrastructure/observability"
	"github.com/zatekoja/expertbooking/backend/pkg/config"
	"github.com/zatekoja/expertbooking/backend/pkg/secrets"
)

func main() {
	once := flag.Bool("once", false, "run a single sweep and exit")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := secrets.Apply(ctx, secrets.ConfigFromEnv()); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load secrets from vault: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	observability.InitLogger(cfg.OTEL.ServiceName+"-reconciler", cfg.Environment)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	container, err := app.Build(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build services")
	}
	defer container.Close()

	if *once {
		// Payouts are driven inline by the sweep, no worker pool needed
		sweepCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
		defer cancel()
		result := container.Reconciliation.Sweep(sweepCtx)
		log.Info().Interface("result", result).Msg("sweep finished")
		if result.Errors > 0 {
			os.Exit(2)
		}
		return
	}

	container.PayoutWorker.Start(ctx)
	defer container.PayoutWorker.Stop()

	log.Info().Dur("interval", cfg.Booking.ReconcileInterval).Msg("reconciler started")
	container.Reconciliation.Run(ctx, cfg.Booking.ReconcileInterval)
	log.Info().Msg("reconciler stopped")
}
