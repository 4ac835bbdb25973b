// Package app wires configuration, adapters and services into the graph
// shared by the API and reconciler binaries.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/expertbooking/backend/internal/adapters/cache"
	"github.com/zatekoja/expertbooking/backend/internal/adapters/database"
	"github.com/zatekoja/expertbooking/backend/internal/adapters/events"
	"github.com/zatekoja/expertbooking/backend/internal/adapters/providers/payments"
	"github.com/zatekoja/expertbooking/backend/internal/application/services"
	"github.com/zatekoja/expertbooking/backend/internal/domain/providers"
	"github.com/zatekoja/expertbooking/backend/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/expertbooking/backend/internal/infrastructure/clients/razorpay"
	"github.com/zatekoja/expertbooking/backend/internal/infrastructure/clients/redis"
	"github.com/zatekoja/expertbooking/backend/internal/infrastructure/notifications"
	"github.com/zatekoja/expertbooking/backend/internal/infrastructure/observability"
	"github.com/zatekoja/expertbooking/backend/pkg/config"
)

// Container holds the long-lived clients and services
type Container struct {
	Config   *config.Config
	Postgres *postgres.Client
	Redis    *redis.Client // nil when disabled or unreachable
	EventBus providers.EventBus
	Metrics  *observability.Metrics

	Availability   *services.AvailabilityService
	Booking        *services.BookingService
	Payments       *services.PaymentService
	Wallet         *services.WalletService
	PayoutWorker   *services.PayoutWorker
	Proposals      *services.ProposalService
	Reconciliation *services.ReconciliationService
}

// Build connects to Postgres (required) and Redis (optional) and constructs
// every service
func Build(ctx context.Context, cfg *config.Config) (*Container, error) {
	loc, err := time.LoadLocation(cfg.Booking.DefaultTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid default timezone: %w", err)
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	pg, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL client: %w", err)
	}

	c := &Container{Config: cfg, Postgres: pg, Metrics: metrics}

	var cacheProvider providers.CacheProvider
	var broadcaster providers.RealtimeBroadcaster = events.NoopBroadcaster{}
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(&cfg.Redis)
		if err != nil {
			// Keep serving: slots come from Postgres and realtime is best effort
			log.Warn().Err(err).Msg("redis unavailable, using in-memory cache and no realtime events")
		} else {
			c.Redis = redisClient
			c.EventBus = events.NewRedisEventBus(redisClient)
			cacheProvider = cache.NewRedisAdapter(redisClient)
			broadcaster = events.NewBusBroadcaster(c.EventBus)
		}
	}
	if cacheProvider == nil {
		cacheProvider = cache.NewMemoryAdapter()
	}

	var dispatcher providers.NotificationDispatcher = notifications.LogDispatcher{}
	if cfg.SMTP.Host != "" {
		sender, err := notifications.NewSMTPSender(cfg.SMTP)
		if err != nil {
			log.Warn().Err(err).Msg("SMTP misconfigured, emails will only be logged")
		} else {
			dispatcher = sender
		}
	}
	notifier := services.NewNotificationService(dispatcher, true)

	processor := razorpay.NewClient(cfg.Payment, cfg.Payout)
	payoutProcessor := payments.NewPayoutProcessor(cfg.Payout.Mode, processor)

	appointmentRepo := database.NewAppointmentAdapter(pg)
	providerRepo := database.NewCachedProviderAdapter(database.NewProviderAdapter(pg), cacheProvider)
	walletRepo := database.NewWalletAdapter(pg)
	settlementRepo := database.NewSettlementAdapter(pg)
	webhookRepo := database.NewWebhookEventAdapter(pg.Sqlx())
	proposalRepo := database.NewProposalAdapter(pg.Sqlx())

	c.Availability = services.NewAvailabilityService(providerRepo, appointmentRepo, cacheProvider, metrics, services.AvailabilityConfig{
		DefaultLocation: loc,
		WindowDays:      cfg.Booking.WindowDays,
		CacheTTL:        cfg.Booking.SlotCacheTTL,
	})
	c.Booking = services.NewBookingService(appointmentRepo, providerRepo, c.Availability, notifier, broadcaster, metrics, loc)
	c.Payments = services.NewPaymentService(appointmentRepo, providerRepo, settlementRepo, webhookRepo, processor,
		notifier, broadcaster, metrics, services.PaymentConfig{
			KeyID:         cfg.Payment.KeyID,
			KeySecret:     cfg.Payment.KeySecret,
			WebhookSecret: cfg.Payment.WebhookSecret,
			Currency:      cfg.Payment.Currency,
		})
	c.PayoutWorker = services.NewPayoutWorker(walletRepo, providerRepo, payoutProcessor, notifier, broadcaster, metrics,
		cfg.Payout.Workers, cfg.Payout.QueueSize)
	c.Wallet = services.NewWalletService(walletRepo, providerRepo, c.PayoutWorker, cfg.Payment.Currency)
	c.Proposals = services.NewProposalService(proposalRepo, providerRepo, broadcaster)
	c.Reconciliation = services.NewReconciliationService(appointmentRepo, providerRepo, walletRepo, processor,
		c.Payments, c.PayoutWorker, c.Availability, notifier, broadcaster, cfg.Booking.PendingTTL)

	log.Info().
		Str("payout_mode", cfg.Payout.Mode).
		Bool("redis", c.Redis != nil).
		Bool("smtp", cfg.SMTP.Host != "").
		Msg("services initialized")

	return c, nil
}

// Close releases clients in reverse order of creation
func (c *Container) Close() {
	if c.EventBus != nil {
		if err := c.EventBus.Close(); err != nil {
			log.Warn().Err(err).Msg("error closing event bus")
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			log.Warn().Err(err).Msg("error closing redis")
		}
	}
	if c.Postgres != nil {
		if err := c.Postgres.Close(); err != nil {
			log.Warn().Err(err).Msg("error closing postgres")
		}
	}
}
