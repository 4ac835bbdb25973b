package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/zatekoja/expertbooking/backend/internal/domain/entities"
	"github.com/zatekoja/expertbooking/backend/internal/domain/repositories"
	"github.com/zatekoja/expertbooking/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/expertbooking/backend/pkg/errors"
)

// SettlementAdapter implements the SettlementRepository interface
type SettlementAdapter struct {
	db *goqu.Database
}

// NewSettlementAdapter creates a new settlement adapter
func NewSettlementAdapter(client *postgres.Client) repositories.SettlementRepository {
	return &SettlementAdapter{db: goqu.New("postgres", client.DB())}
}

// CaptureAndCredit marks the appointment PAID and CONFIRMED and credits the
// provider's wallet in one transaction. The appointment row lock serialises
// concurrent captures, so the checkout callback and the webhook for the same
// payment produce exactly one credit between them.
func (a *SettlementAdapter) CaptureAndCredit(ctx context.Context, cmd entities.CaptureCommand) (*entities.CaptureResult, error) {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to begin transaction", err)
	}

	result := &entities.CaptureResult{}
	err = tx.Wrap(func() error {
		appointment, err := lockAppointment(ctx, tx, cmd)
		if err != nil {
			return err
		}
		result.Appointment = appointment

		if appointment.PaymentStatus == entities.PaymentStatusPaid {
			credit, err := findCredit(ctx, tx, appointment.ID)
			if err != nil {
				return err
			}
			result.Credit = credit
			result.AlreadyCaptured = true
			return nil
		}

		if cmd.Amount != 0 && cmd.Amount != appointment.Amount {
			return apperrors.NewInvariantViolation(fmt.Sprintf(
				"payment %s captured %d but appointment %s costs %d", cmd.PaymentRef, cmd.Amount, appointment.ID, appointment.Amount,
			))
		}

		if appointment.Status == entities.AppointmentStatusCancelled {
			return apperrors.NewInvariantViolation(fmt.Sprintf(
				"payment %s captured for cancelled appointment %s", cmd.PaymentRef, appointment.ID,
			))
		}

		now := time.Now().UTC()
		record := goqu.Record{
			"status":               entities.AppointmentStatusConfirmed,
			"payment_status":       entities.PaymentStatusPaid,
			"external_payment_ref": cmd.PaymentRef,
			"updated_at":           now,
		}
		if appointment.ExternalOrderRef == nil && cmd.OrderRef != "" {
			record["external_order_ref"] = cmd.OrderRef
			appointment.ExternalOrderRef = &cmd.OrderRef
		}

		query, args, err := tx.Update("appointments").
			Set(record).
			Where(goqu.Ex{"id": appointment.ID}).
			ToSQL()
		if err != nil {
			return apperrors.NewInternalError("failed to build update query", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return apperrors.NewInternalError("failed to confirm appointment", err)
		}

		appointment.Status = entities.AppointmentStatusConfirmed
		appointment.PaymentStatus = entities.PaymentStatusPaid
		appointment.ExternalPaymentRef = &cmd.PaymentRef
		appointment.UpdatedAt = now

		if err := ensureWallet(ctx, tx, tx.Insert("wallets"), appointment.ProviderID, appointment.Currency); err != nil {
			return err
		}
		wallet, err := lockWallet(ctx, tx, goqu.Ex{"owner_id": appointment.ProviderID})
		if err != nil {
			return err
		}

		credit, err := creditLocked(ctx, tx, wallet.ID, appointment.Amount, appointment.ID)
		if err != nil {
			return err
		}
		result.Credit = credit
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// lockAppointment finds the appointment by order handle, falling back to the
// appointment id carried in the order notes
func lockAppointment(ctx context.Context, tx *goqu.TxDatabase, cmd entities.CaptureCommand) (*entities.Appointment, error) {
	if cmd.OrderRef != "" {
		appointment, err := selectAppointmentForUpdate(ctx, tx, goqu.Ex{"external_order_ref": cmd.OrderRef})
		if err == nil || !errors.Is(err, sql.ErrNoRows) {
			return appointment, wrapLockError(err)
		}
	}

	if cmd.AppointmentID == "" {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("appointment for order %s not found", cmd.OrderRef))
	}

	appointment, err := selectAppointmentForUpdate(ctx, tx, goqu.Ex{"id": cmd.AppointmentID})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("appointment with id %s not found", cmd.AppointmentID))
	}
	if err != nil {
		return nil, wrapLockError(err)
	}

	if appointment.ExternalOrderRef != nil && cmd.OrderRef != "" && *appointment.ExternalOrderRef != cmd.OrderRef {
		return nil, apperrors.NewInvariantViolation(fmt.Sprintf(
			"order %s does not belong to appointment %s", cmd.OrderRef, appointment.ID,
		))
	}

	return appointment, nil
}

func selectAppointmentForUpdate(ctx context.Context, tx *goqu.TxDatabase, where goqu.Ex) (*entities.Appointment, error) {
	query, args, err := tx.Select(appointmentColumns()...).
		From("appointments").
		Where(where).
		ForUpdate(exp.Wait).
		ToSQL()
	if err != nil {
		return nil, err
	}
	return scanAppointment(tx.QueryRowContext(ctx, query, args...))
}

func wrapLockError(err error) error {
	if err == nil {
		return nil
	}
	return apperrors.NewInternalError("failed to lock appointment", err)
}

// findCredit returns the CREDIT an already-paid appointment produced
func findCredit(ctx context.Context, tx *goqu.TxDatabase, appointmentID string) (*entities.WalletTransaction, error) {
	query, args, err := tx.Select(transactionColumns...).
		From("wallet_transactions").
		Where(goqu.Ex{"appointment_id": appointmentID, "type": entities.TransactionTypeCredit}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	credit, err := scanTransaction(tx.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewInvariantViolation(fmt.Sprintf("appointment %s is PAID without a credit", appointmentID))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get credit", err)
	}

	return credit, nil
}
