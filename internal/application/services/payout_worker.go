package services

import (
	"context"
	"errors"
	"sync"

	"github.com/zatekoja/expertbooking/backend/internal/domain/entities"
	"github.com/zatekoja/expertbooking/backend/internal/domain/providers"
	"github.com/zatekoja/expertbooking/backend/internal/domain/repositories"
	"github.com/zatekoja/expertbooking/backend/internal/infrastructure/observability"
)

// PayoutWorker drives reserved payouts through the payout processor with a
// fixed number of goroutines. Payouts whose outcome is unknown stay PENDING
// and are picked up again by the reconciliation sweep.
type PayoutWorker struct {
	walletRepo    repositories.WalletRepository
	providerRepo  repositories.ProviderRepository
	processor     providers.PayoutProcessor
	notifications *NotificationService
	broadcaster   providers.RealtimeBroadcaster
	metrics       *observability.Metrics
	workers       int

	jobs    chan string
	wg      sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
	started bool
}

// NewPayoutWorker creates a worker pool with a queue of queueSize jobs
func NewPayoutWorker(
	walletRepo repositories.WalletRepository,
	providerRepo repositories.ProviderRepository,
	processor providers.PayoutProcessor,
	notifications *NotificationService,
	broadcaster providers.RealtimeBroadcaster,
	metrics *observability.Metrics,
	workers, queueSize int,
) *PayoutWorker {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 100
	}
	return &PayoutWorker{
		walletRepo:    walletRepo,
		providerRepo:  providerRepo,
		processor:     processor,
		notifications: notifications,
		broadcaster:   broadcaster,
		metrics:       metrics,
		workers:       workers,
		jobs:          make(chan string, queueSize),
	}
}

// Start launches the workers. They exit when ctx is done or Stop is called.
func (w *PayoutWorker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started || w.closed {
		return
	}
	w.started = true

	for i := 0; i < w.workers; i++ {
		w.wg.Add(1)
		go func(id int) {
			defer w.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case txID, ok := <-w.jobs:
					if !ok {
						return
					}
					if err := w.Process(ctx, txID); err != nil {
						observability.LoggerFromContext(ctx).Warn().Err(err).
							Int("worker", id).
							Str("transaction_id", txID).
							Msg("payout left pending")
					}
				}
			}
		}(i)
	}
	observability.GetLogger().Info().Int("workers", w.workers).Msg("payout workers started")
}

// Enqueue queues a payout without blocking. It reports false when the queue
// is full or stopped.
func (w *PayoutWorker) Enqueue(transactionID string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return false
	}
	select {
	case w.jobs <- transactionID:
		return true
	default:
		return false
	}
}

// Stop closes the queue and waits for in-flight payouts
func (w *PayoutWorker) Stop() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	close(w.jobs)
	w.mu.Unlock()

	w.wg.Wait()
}

// Process initiates one payout and records the result. Calling it for a
// payout that is no longer PENDING is a no-op.
func (w *PayoutWorker) Process(ctx context.Context, transactionID string) error {
	ctx, span := observability.StartSpan(ctx, "PayoutWorker.Process")
	defer span.End()

	payout, err := w.walletRepo.GetTransaction(ctx, transactionID)
	if err != nil {
		return err
	}
	if payout.Type != entities.TransactionTypePayout || payout.Status != entities.TransactionStatusPending {
		return nil
	}

	wallet, err := w.walletRepo.GetByID(ctx, payout.WalletID)
	if err != nil {
		return err
	}
	logger := observability.LoggerFromContext(ctx).With().
		Str("transaction_id", payout.ID).
		Str("wallet_id", wallet.ID).
		Logger()

	if !wallet.HasPayoutDestination() {
		return w.fail(ctx, wallet, payout.ID, "payout destination removed")
	}

	result, err := w.processor.InitiatePayout(ctx, providers.PayoutRequest{
		TransactionID: payout.ID,
		Amount:        payout.Amount,
		Currency:      wallet.Currency,
		Destination:   *wallet.PayoutDestination,
	})
	if err != nil {
		observability.RecordError(span, err)
		if errors.Is(err, providers.ErrPayoutRejected) {
			return w.fail(ctx, wallet, payout.ID, err.Error())
		}
		w.metrics.CountPayout(ctx, "unknown")
		return err
	}

	switch result.Status {
	case providers.PayoutStatusProcessed:
		completed, err := w.walletRepo.CompletePayout(ctx, payout.ID, result.ExternalRef)
		return w.resolve(ctx, wallet, completed, err)
	case providers.PayoutStatusFailed:
		reason := result.Reason
		if reason == "" {
			reason = "payout failed at processor"
		}
		return w.fail(ctx, wallet, payout.ID, reason)
	default:
		logger.Info().Str("external_ref", result.ExternalRef).Msg("payout still processing")
		w.metrics.CountPayout(ctx, "pending")
		return nil
	}
}

// fail marks the payout FAILED, which restores the reserved amount
func (w *PayoutWorker) fail(ctx context.Context, wallet *entities.Wallet, transactionID, reason string) error {
	failed, err := w.walletRepo.FailPayout(ctx, transactionID, reason)
	return w.resolve(ctx, wallet, failed, err)
}

func (w *PayoutWorker) resolve(ctx context.Context, wallet *entities.Wallet, payout *entities.WalletTransaction, err error) error {
	if err != nil {
		return err
	}

	status := "completed"
	if payout.Status == entities.TransactionStatusFailed {
		status = "failed"
	}
	w.metrics.CountPayout(ctx, status)
	observability.LoggerFromContext(ctx).Info().
		Str("transaction_id", payout.ID).
		Str("status", string(payout.Status)).
		Int64("amount", payout.Amount).
		Msg("payout resolved")

	provider, err := w.providerRepo.GetByID(ctx, wallet.OwnerID)
	if err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("owner_id", wallet.OwnerID).Msg("provider lookup failed after payout")
		return nil
	}
	w.notifications.PayoutResolved(ctx, provider, payout, wallet.Currency)
	if w.broadcaster != nil {
		w.broadcaster.Publish(ctx, entities.EventPayoutUpdated, payout, entities.UserRoom(provider.UserID))
	}
	return nil
}
