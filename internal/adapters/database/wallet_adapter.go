package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/google/uuid"
	"github.com/zatekoja/expertbooking/backend/internal/domain/entities"
	"github.com/zatekoja/expertbooking/backend/internal/domain/repositories"
	"github.com/zatekoja/expertbooking/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/expertbooking/backend/pkg/errors"
)

// WalletAdapter implements the WalletRepository interface. Every balance
// change runs in one transaction with a row lock on the wallet.
type WalletAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewWalletAdapter creates a new wallet adapter
func NewWalletAdapter(client *postgres.Client) repositories.WalletRepository {
	return &WalletAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// queryer is satisfied by both *goqu.Database and *goqu.TxDatabase
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

var walletColumns = []interface{}{
	"id", "owner_id", "balance", "currency", "payout_destination", "created_at", "updated_at",
}

var transactionColumns = []interface{}{
	"id", "wallet_id", "type", "amount", "status",
	"external_ref", "appointment_id", "failure_reason", "created_at", "updated_at",
}

func scanWallet(row rowScanner) (*entities.Wallet, error) {
	wallet := &entities.Wallet{}
	var destination sql.NullString
	if err := row.Scan(
		&wallet.ID,
		&wallet.OwnerID,
		&wallet.Balance,
		&wallet.Currency,
		&destination,
		&wallet.CreatedAt,
		&wallet.UpdatedAt,
	); err != nil {
		return nil, err
	}
	wallet.PayoutDestination = nullableString(destination)
	return wallet, nil
}

func scanTransaction(row rowScanner) (*entities.WalletTransaction, error) {
	txn := &entities.WalletTransaction{}
	var externalRef, appointmentID, failureReason sql.NullString
	if err := row.Scan(
		&txn.ID,
		&txn.WalletID,
		&txn.Type,
		&txn.Amount,
		&txn.Status,
		&externalRef,
		&appointmentID,
		&failureReason,
		&txn.CreatedAt,
		&txn.UpdatedAt,
	); err != nil {
		return nil, err
	}
	txn.ExternalRef = nullableString(externalRef)
	txn.AppointmentID = nullableString(appointmentID)
	txn.FailureReason = nullableString(failureReason)
	return txn, nil
}

// GetOrCreate returns the owner's wallet, creating an empty one first if needed
func (a *WalletAdapter) GetOrCreate(ctx context.Context, ownerID, currency string) (*entities.Wallet, error) {
	if err := ensureWallet(ctx, a.db, a.db.Insert("wallets"), ownerID, currency); err != nil {
		return nil, err
	}
	return a.GetByOwner(ctx, ownerID)
}

// GetByOwner retrieves a wallet by owner
func (a *WalletAdapter) GetByOwner(ctx context.Context, ownerID string) (*entities.Wallet, error) {
	return a.getOne(ctx, goqu.Ex{"owner_id": ownerID}, fmt.Sprintf("wallet for owner %s not found", ownerID))
}

// GetByID retrieves a wallet by ID
func (a *WalletAdapter) GetByID(ctx context.Context, walletID string) (*entities.Wallet, error) {
	return a.getOne(ctx, goqu.Ex{"id": walletID}, fmt.Sprintf("wallet %s not found", walletID))
}

func (a *WalletAdapter) getOne(ctx context.Context, where goqu.Ex, notFound string) (*entities.Wallet, error) {
	query, args, err := a.db.Select(walletColumns...).
		From("wallets").
		Where(where).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	wallet, err := scanWallet(a.client.DB().QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(notFound)
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get wallet", err)
	}

	return wallet, nil
}

// Credit appends a COMPLETED CREDIT and increments the balance atomically
func (a *WalletAdapter) Credit(ctx context.Context, walletID string, amount int64, appointmentID string) (*entities.WalletTransaction, error) {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to begin transaction", err)
	}

	var credit *entities.WalletTransaction
	err = tx.Wrap(func() error {
		if _, err := lockWallet(ctx, tx, goqu.Ex{"id": walletID}); err != nil {
			return err
		}
		created, err := creditLocked(ctx, tx, walletID, amount, appointmentID)
		if err != nil {
			return err
		}
		credit = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	return credit, nil
}

// ReservePayout checks the destination and balance under the wallet lock,
// appends a PENDING PAYOUT and decrements the balance by the same amount
func (a *WalletAdapter) ReservePayout(ctx context.Context, ownerID string, amount int64) (*entities.WalletTransaction, error) {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to begin transaction", err)
	}

	var payout *entities.WalletTransaction
	err = tx.Wrap(func() error {
		wallet, err := lockWallet(ctx, tx, goqu.Ex{"owner_id": ownerID})
		if err != nil {
			return err
		}
		if !wallet.HasPayoutDestination() {
			return apperrors.NewValidationError("no payout destination is linked to this wallet")
		}
		if wallet.Balance < amount {
			return apperrors.NewValidationError(fmt.Sprintf(
				"insufficient balance: available %d, requested %d", wallet.Balance, amount,
			))
		}

		now := time.Now().UTC()
		payout = &entities.WalletTransaction{
			ID:        uuid.New().String(),
			WalletID:  wallet.ID,
			Type:      entities.TransactionTypePayout,
			Amount:    amount,
			Status:    entities.TransactionStatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := insertTransaction(ctx, tx, payout); err != nil {
			return err
		}
		return adjustBalance(ctx, tx, wallet.ID, -amount)
	})
	if err != nil {
		return nil, err
	}

	return payout, nil
}

// CompletePayout moves a PENDING PAYOUT to COMPLETED. Completing an already
// completed payout returns it unchanged.
func (a *WalletAdapter) CompletePayout(ctx context.Context, transactionID, externalRef string) (*entities.WalletTransaction, error) {
	return a.settlePayout(ctx, transactionID, func(ctx context.Context, tx *goqu.TxDatabase, payout *entities.WalletTransaction) error {
		switch payout.Status {
		case entities.TransactionStatusCompleted:
			return nil
		case entities.TransactionStatusFailed:
			return apperrors.NewConflictError(fmt.Sprintf("payout %s already failed", payout.ID))
		}

		now := time.Now().UTC()
		if err := updateTransaction(ctx, tx, payout.ID, goqu.Record{
			"status":       entities.TransactionStatusCompleted,
			"external_ref": externalRef,
			"updated_at":   now,
		}); err != nil {
			return err
		}
		payout.Status = entities.TransactionStatusCompleted
		payout.ExternalRef = &externalRef
		payout.UpdatedAt = now
		return nil
	})
}

// FailPayout moves a PENDING PAYOUT to FAILED and gives the reserved amount
// back to the wallet in the same transaction
func (a *WalletAdapter) FailPayout(ctx context.Context, transactionID, reason string) (*entities.WalletTransaction, error) {
	return a.settlePayout(ctx, transactionID, func(ctx context.Context, tx *goqu.TxDatabase, payout *entities.WalletTransaction) error {
		switch payout.Status {
		case entities.TransactionStatusFailed:
			return nil
		case entities.TransactionStatusCompleted:
			return apperrors.NewConflictError(fmt.Sprintf("payout %s already completed", payout.ID))
		}

		if _, err := lockWallet(ctx, tx, goqu.Ex{"id": payout.WalletID}); err != nil {
			return err
		}

		now := time.Now().UTC()
		if err := updateTransaction(ctx, tx, payout.ID, goqu.Record{
			"status":         entities.TransactionStatusFailed,
			"failure_reason": reason,
			"updated_at":     now,
		}); err != nil {
			return err
		}
		if err := adjustBalance(ctx, tx, payout.WalletID, payout.Amount); err != nil {
			return err
		}
		payout.Status = entities.TransactionStatusFailed
		payout.FailureReason = &reason
		payout.UpdatedAt = now
		return nil
	})
}

func (a *WalletAdapter) settlePayout(
	ctx context.Context,
	transactionID string,
	apply func(ctx context.Context, tx *goqu.TxDatabase, payout *entities.WalletTransaction) error,
) (*entities.WalletTransaction, error) {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to begin transaction", err)
	}

	var payout *entities.WalletTransaction
	err = tx.Wrap(func() error {
		query, args, err := tx.Select(transactionColumns...).
			From("wallet_transactions").
			Where(goqu.Ex{"id": transactionID, "type": entities.TransactionTypePayout}).
			ForUpdate(exp.Wait).
			ToSQL()
		if err != nil {
			return apperrors.NewInternalError("failed to build query", err)
		}

		payout, err = scanTransaction(tx.QueryRowContext(ctx, query, args...))
		if errors.Is(err, sql.ErrNoRows) {
			return apperrors.NewNotFoundError(fmt.Sprintf("payout %s not found", transactionID))
		}
		if err != nil {
			return apperrors.NewInternalError("failed to lock payout", err)
		}

		return apply(ctx, tx, payout)
	})
	if err != nil {
		return nil, err
	}

	return payout, nil
}

// GetTransaction retrieves a single ledger entry
func (a *WalletAdapter) GetTransaction(ctx context.Context, transactionID string) (*entities.WalletTransaction, error) {
	query, args, err := a.db.Select(transactionColumns...).
		From("wallet_transactions").
		Where(goqu.Ex{"id": transactionID}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	txn, err := scanTransaction(a.client.DB().QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("transaction %s not found", transactionID))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get transaction", err)
	}

	return txn, nil
}

// Totals aggregates the ledger of a wallet in a single pass
func (a *WalletAdapter) Totals(ctx context.Context, walletID string) (*entities.LedgerTotals, error) {
	query, args, err := a.db.Select(
		goqu.L("COALESCE(SUM(amount) FILTER (WHERE type = 'CREDIT' AND status = 'COMPLETED'), 0)").As("completed_credits"),
		goqu.L("COALESCE(SUM(amount) FILTER (WHERE type = 'PAYOUT' AND status = 'COMPLETED'), 0)").As("completed_payouts"),
		goqu.L("COALESCE(SUM(amount) FILTER (WHERE type = 'PAYOUT' AND status = 'PENDING'), 0)").As("pending_payouts"),
	).From("wallet_transactions").
		Where(goqu.Ex{"wallet_id": walletID}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	totals := &entities.LedgerTotals{}
	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(
		&totals.CompletedCredits,
		&totals.CompletedPayouts,
		&totals.PendingPayouts,
	)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to aggregate ledger", err)
	}

	return totals, nil
}

// ListTransactions lists ledger entries newest first
func (a *WalletAdapter) ListTransactions(ctx context.Context, walletID string, filter repositories.TransactionFilter) ([]*entities.WalletTransaction, error) {
	ds := a.db.Select(transactionColumns...).
		From("wallet_transactions").
		Where(goqu.Ex{"wallet_id": walletID})

	if filter.Type != "" {
		ds = ds.Where(goqu.Ex{"type": filter.Type})
	}
	if filter.Status != "" {
		ds = ds.Where(goqu.Ex{"status": filter.Status})
	}
	if filter.Limit > 0 {
		ds = ds.Limit(uint(filter.Limit))
	}
	if filter.Offset > 0 {
		ds = ds.Offset(uint(filter.Offset))
	}

	query, args, err := ds.Order(goqu.C("created_at").Desc(), goqu.C("id").Desc()).ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	return a.queryTransactions(ctx, query, args)
}

// ListStalePayouts returns PENDING payouts created before cutoff
func (a *WalletAdapter) ListStalePayouts(ctx context.Context, cutoff time.Time, limit int) ([]*entities.WalletTransaction, error) {
	query, args, err := a.db.Select(transactionColumns...).
		From("wallet_transactions").
		Where(
			goqu.C("type").Eq(entities.TransactionTypePayout),
			goqu.C("status").Eq(entities.TransactionStatusPending),
			goqu.C("created_at").Lt(cutoff),
		).
		Order(goqu.C("created_at").Asc()).
		Limit(uint(limit)).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	return a.queryTransactions(ctx, query, args)
}

func (a *WalletAdapter) queryTransactions(ctx context.Context, query string, args []interface{}) ([]*entities.WalletTransaction, error) {
	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list transactions", err)
	}
	defer rows.Close()

	var transactions []*entities.WalletTransaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan transaction", err)
		}
		transactions = append(transactions, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("error iterating transactions", err)
	}

	return transactions, nil
}

// SetPayoutDestination links payout details to the owner's wallet
func (a *WalletAdapter) SetPayoutDestination(ctx context.Context, ownerID, destination string) error {
	query, args, err := a.db.Update("wallets").
		Set(goqu.Record{
			"payout_destination": destination,
			"updated_at":         time.Now().UTC(),
		}).
		Where(goqu.Ex{"owner_id": ownerID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to set payout destination", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("wallet for owner %s not found", ownerID))
	}

	return nil
}

// ensureWallet inserts an empty wallet for the owner unless one exists
func ensureWallet(ctx context.Context, q queryer, ds *goqu.InsertDataset, ownerID, currency string) error {
	now := time.Now().UTC()
	query, args, err := ds.Rows(goqu.Record{
		"id":         uuid.New().String(),
		"owner_id":   ownerID,
		"balance":    0,
		"currency":   currency,
		"created_at": now,
		"updated_at": now,
	}).OnConflict(goqu.DoNothing()).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to create wallet", err)
	}
	return nil
}

// lockWallet selects a wallet FOR UPDATE inside tx
func lockWallet(ctx context.Context, tx *goqu.TxDatabase, where goqu.Ex) (*entities.Wallet, error) {
	query, args, err := tx.Select(walletColumns...).
		From("wallets").
		Where(where).
		ForUpdate(exp.Wait).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	wallet, err := scanWallet(tx.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("wallet not found")
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to lock wallet", err)
	}

	return wallet, nil
}

// creditLocked appends a CREDIT and increments the balance. The caller holds
// the wallet lock.
func creditLocked(ctx context.Context, tx *goqu.TxDatabase, walletID string, amount int64, appointmentID string) (*entities.WalletTransaction, error) {
	now := time.Now().UTC()
	credit := &entities.WalletTransaction{
		ID:            uuid.New().String(),
		WalletID:      walletID,
		Type:          entities.TransactionTypeCredit,
		Amount:        amount,
		Status:        entities.TransactionStatusCompleted,
		AppointmentID: &appointmentID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err := insertTransaction(ctx, tx, credit)
	if uniqueViolation(err, constraintCreditPerBooking) {
		return nil, apperrors.NewConflictError(fmt.Sprintf("appointment %s is already credited", appointmentID))
	}
	if err != nil {
		return nil, err
	}

	if err := adjustBalance(ctx, tx, walletID, amount); err != nil {
		return nil, err
	}

	return credit, nil
}

func insertTransaction(ctx context.Context, tx *goqu.TxDatabase, txn *entities.WalletTransaction) error {
	query, args, err := tx.Insert("wallet_transactions").Rows(goqu.Record{
		"id":             txn.ID,
		"wallet_id":      txn.WalletID,
		"type":           txn.Type,
		"amount":         txn.Amount,
		"status":         txn.Status,
		"external_ref":   txn.ExternalRef,
		"appointment_id": txn.AppointmentID,
		"created_at":     txn.CreatedAt,
		"updated_at":     txn.UpdatedAt,
	}).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		if uniqueViolation(err, "") {
			return err
		}
		return apperrors.NewInternalError("failed to insert wallet transaction", err)
	}
	return nil
}

func updateTransaction(ctx context.Context, tx *goqu.TxDatabase, id string, record goqu.Record) error {
	query, args, err := tx.Update("wallet_transactions").
		Set(record).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to update wallet transaction", err)
	}
	return nil
}

func adjustBalance(ctx context.Context, tx *goqu.TxDatabase, walletID string, delta int64) error {
	query, args, err := tx.Update("wallets").
		Set(goqu.Record{
			"balance":    goqu.L("balance + ?", delta),
			"updated_at": time.Now().UTC(),
		}).
		Where(goqu.Ex{"id": walletID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to update wallet balance", err)
	}
	return nil
}
