package repositories

import (
	"context"
	"time"

	"github.com/zatekoja/expertbooking/backend/internal/domain/entities"
)

// WalletRepository is the ledger store. Every balance change happens in the
// same database transaction as the ledger row that explains it.
type WalletRepository interface {
	// GetOrCreate returns the owner's wallet, creating it on first access
	GetOrCreate(ctx context.Context, ownerID, currency string) (*entities.Wallet, error)

	// GetByOwner retrieves a wallet by owner
	GetByOwner(ctx context.Context, ownerID string) (*entities.Wallet, error)

	// GetByID retrieves a wallet by ID
	GetByID(ctx context.Context, walletID string) (*entities.Wallet, error)

	// Credit appends a COMPLETED CREDIT for an appointment and increments the balance
	Credit(ctx context.Context, walletID string, amount int64, appointmentID string) (*entities.WalletTransaction, error)

	// ReservePayout locks the wallet, checks destination and balance, appends a
	// PENDING PAYOUT and decrements the balance
	ReservePayout(ctx context.Context, ownerID string, amount int64) (*entities.WalletTransaction, error)

	// CompletePayout moves a PENDING PAYOUT to COMPLETED
	CompletePayout(ctx context.Context, transactionID, externalRef string) (*entities.WalletTransaction, error)

	// FailPayout moves a PENDING PAYOUT to FAILED and restores the balance
	FailPayout(ctx context.Context, transactionID, reason string) (*entities.WalletTransaction, error)

	// GetTransaction retrieves a single ledger entry
	GetTransaction(ctx context.Context, transactionID string) (*entities.WalletTransaction, error)

	// Totals aggregates the ledger of a wallet
	Totals(ctx context.Context, walletID string) (*entities.LedgerTotals, error)

	// ListTransactions lists ledger entries newest first
	ListTransactions(ctx context.Context, walletID string, filter TransactionFilter) ([]*entities.WalletTransaction, error)

	// ListStalePayouts returns PENDING payouts created before cutoff
	ListStalePayouts(ctx context.Context, cutoff time.Time, limit int) ([]*entities.WalletTransaction, error)

	// SetPayoutDestination links payout details to the owner's wallet
	SetPayoutDestination(ctx context.Context, ownerID, destination string) error
}

// TransactionFilter defines filters for listing wallet transactions
type TransactionFilter struct {
	Type   entities.TransactionType
	Status entities.TransactionStatus
	Limit  int
	Offset int
}

// SettlementRepository performs the capture: appointment PAID/CONFIRMED and
// the provider's CREDIT in one transaction.
type SettlementRepository interface {
	CaptureAndCredit(ctx context.Context, cmd entities.CaptureCommand) (*entities.CaptureResult, error)
}
