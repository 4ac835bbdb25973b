package services

import (
	"context"
	"fmt"

	"github.com/zatekoja/expertbooking/backend/internal/domain/entities"
	"github.com/zatekoja/expertbooking/backend/internal/domain/repositories"
	"github.com/zatekoja/expertbooking/backend/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/expertbooking/backend/pkg/errors"
)

// PayoutQueue accepts reserved payouts for processing
type PayoutQueue interface {
	Enqueue(transactionID string) bool
}

// WalletService exposes a provider's ledger. Wallets are owned by provider
// ids; callers identify themselves by user id.
type WalletService struct {
	walletRepo   repositories.WalletRepository
	providerRepo repositories.ProviderRepository
	queue        PayoutQueue
	currency     string
}

// NewWalletService creates a new wallet service
func NewWalletService(
	walletRepo repositories.WalletRepository,
	providerRepo repositories.ProviderRepository,
	queue PayoutQueue,
	currency string,
) *WalletService {
	return &WalletService{
		walletRepo:   walletRepo,
		providerRepo: providerRepo,
		queue:        queue,
		currency:     currency,
	}
}

// SetQueue attaches the payout queue once the worker pool exists
func (s *WalletService) SetQueue(queue PayoutQueue) {
	s.queue = queue
}

// GetOrCreate returns the owner's wallet
func (s *WalletService) GetOrCreate(ctx context.Context, ownerID string) (*entities.Wallet, error) {
	return s.walletRepo.GetOrCreate(ctx, ownerID, s.currency)
}

// Credit adds a completed credit for an appointment outside the capture path
func (s *WalletService) Credit(ctx context.Context, ownerID string, amount int64, appointmentID string) (*entities.WalletTransaction, error) {
	if amount <= 0 {
		return nil, apperrors.NewValidationError("credit amount must be positive")
	}
	wallet, err := s.GetOrCreate(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return s.walletRepo.Credit(ctx, wallet.ID, amount, appointmentID)
}

// SummaryForUser resolves the user's provider profile and summarises its wallet
func (s *WalletService) SummaryForUser(ctx context.Context, userID string) (*entities.WalletSummary, error) {
	ownerID, err := s.ownerFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.Summary(ctx, ownerID)
}

// Summary derives the wallet figures from the transaction log. A stored
// balance that disagrees with the log is reported and the log wins.
func (s *WalletService) Summary(ctx context.Context, ownerID string) (*entities.WalletSummary, error) {
	wallet, err := s.GetOrCreate(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	totals, err := s.walletRepo.Totals(ctx, wallet.ID)
	if err != nil {
		return nil, err
	}

	summary := &entities.WalletSummary{
		WalletID:         wallet.ID,
		OwnerID:          wallet.OwnerID,
		Currency:         wallet.Currency,
		Balance:          totals.Available(),
		LedgerBalance:    totals.Settled(),
		CompletedCredits: totals.CompletedCredits,
		CompletedPayouts: totals.CompletedPayouts,
		PendingPayouts:   totals.PendingPayouts,
		HasPayoutAccount: wallet.HasPayoutDestination(),
		StoredBalance:    wallet.Balance,
	}

	if wallet.Balance != summary.Balance {
		drift := apperrors.NewInvariantViolation(fmt.Sprintf(
			"wallet %s stored balance %d differs from ledger %d", wallet.ID, wallet.Balance, summary.Balance,
		))
		observability.Alert(ctx).Err(drift).
			Str("wallet_id", wallet.ID).
			Int64("stored_balance", wallet.Balance).
			Int64("derived_balance", summary.Balance).
			Msg("wallet balance drift")
	}

	return summary, nil
}

// PayoutInput is a payout request
type PayoutInput struct {
	Amount int64 `json:"amount" validate:"gt=0"`
}

// RequestPayout reserves funds for a payout and queues it. The payout stays
// PENDING until the worker resolves it.
func (s *WalletService) RequestPayout(ctx context.Context, userID string, input PayoutInput) (*entities.WalletTransaction, error) {
	if input.Amount <= 0 {
		return nil, apperrors.NewValidationError("payout amount must be positive")
	}
	ownerID, err := s.ownerFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	if _, err := s.GetOrCreate(ctx, ownerID); err != nil {
		return nil, err
	}

	payout, err := s.walletRepo.ReservePayout(ctx, ownerID, input.Amount)
	if err != nil {
		return nil, err
	}

	logger := observability.LoggerFromContext(ctx)
	logger.Info().
		Str("transaction_id", payout.ID).
		Str("owner_id", ownerID).
		Int64("amount", payout.Amount).
		Msg("payout reserved")

	if s.queue == nil || !s.queue.Enqueue(payout.ID) {
		logger.Warn().Str("transaction_id", payout.ID).Msg("payout queue unavailable, left for reconciliation")
	}

	return payout, nil
}

// ListTransactions lists the user's ledger entries newest first
func (s *WalletService) ListTransactions(ctx context.Context, userID string, filter repositories.TransactionFilter) ([]*entities.WalletTransaction, error) {
	ownerID, err := s.ownerFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	wallet, err := s.GetOrCreate(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 50
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.walletRepo.ListTransactions(ctx, wallet.ID, filter)
}

// PayoutDestinationInput links a payout account
type PayoutDestinationInput struct {
	Destination string `json:"destination" validate:"required,min=4,max=64"`
}

// SetPayoutDestination links payout details to the user's wallet
func (s *WalletService) SetPayoutDestination(ctx context.Context, userID string, input PayoutDestinationInput) (*entities.Wallet, error) {
	ownerID, err := s.ownerFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	if _, err := s.GetOrCreate(ctx, ownerID); err != nil {
		return nil, err
	}
	if err := s.walletRepo.SetPayoutDestination(ctx, ownerID, input.Destination); err != nil {
		return nil, err
	}
	return s.walletRepo.GetByOwner(ctx, ownerID)
}

func (s *WalletService) ownerFor(ctx context.Context, userID string) (string, error) {
	provider, err := s.providerRepo.GetByUserID(ctx, userID)
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
			return "", apperrors.NewForbiddenError("only providers have a wallet")
		}
		return "", err
	}
	return provider.ID, nil
}
