package database_test

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/expertbooking/backend/internal/adapters/database"
	"github.com/zatekoja/expertbooking/backend/internal/domain/entities"
	apperrors "github.com/zatekoja/expertbooking/backend/pkg/errors"
)

const lockAppointmentSQL = `SELECT .* FROM "appointments" WHERE .* FOR UPDATE`

func captureCommand() entities.CaptureCommand {
	return entities.CaptureCommand{OrderRef: "order_1", PaymentRef: "pay_1", AppointmentID: "appt-1", Amount: 50000}
}

func TestSettlementAdapter_CaptureAndCredit(t *testing.T) {
	ctx := context.Background()

	t.Run("confirms the appointment and credits the provider", func(t *testing.T) {
		client, mock := newMockClient(t)
		mock.ExpectBegin()
		mock.ExpectQuery(lockAppointmentSQL).WillReturnRows(appointmentRow("PENDING", "PENDING", "order_1"))
		mock.ExpectExec(`UPDATE "appointments" SET`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(insertWalletSQL).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(lockWalletSQL).WillReturnRows(walletRow(0, nil))
		mock.ExpectExec(insertTxnSQL).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(adjustSQL).WithArgs(int64(50000), sqlmock.AnyArg(), "wallet-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		result, err := database.NewSettlementAdapter(client).CaptureAndCredit(ctx, captureCommand())
		require.NoError(t, err)

		assert.False(t, result.AlreadyCaptured)
		assert.Equal(t, entities.AppointmentStatusConfirmed, result.Appointment.Status)
		assert.Equal(t, entities.PaymentStatusPaid, result.Appointment.PaymentStatus)
		require.NotNil(t, result.Credit)
		assert.Equal(t, int64(50000), result.Credit.Amount)
		assert.Equal(t, "appt-1", *result.Credit.AppointmentID)
	})

	t.Run("second capture returns the existing credit", func(t *testing.T) {
		client, mock := newMockClient(t)
		mock.ExpectBegin()
		mock.ExpectQuery(lockAppointmentSQL).WillReturnRows(appointmentRow("CONFIRMED", "PAID", "order_1"))
		mock.ExpectQuery(`SELECT .* FROM "wallet_transactions" WHERE`).WillReturnRows(
			sqlmock.NewRows(transactionRowColumns).
				AddRow("credit-1", "wallet-1", "CREDIT", int64(50000), "COMPLETED", nil, "appt-1", nil, fixedTime, fixedTime),
		)
		mock.ExpectCommit()

		result, err := database.NewSettlementAdapter(client).CaptureAndCredit(ctx, captureCommand())
		require.NoError(t, err)
		assert.True(t, result.AlreadyCaptured)
		assert.Equal(t, "credit-1", result.Credit.ID)
	})

	t.Run("cancelled appointment is an invariant violation", func(t *testing.T) {
		client, mock := newMockClient(t)
		mock.ExpectBegin()
		mock.ExpectQuery(lockAppointmentSQL).WillReturnRows(appointmentRow("CANCELLED", "PENDING", "order_1"))
		mock.ExpectRollback()

		_, err := database.NewSettlementAdapter(client).CaptureAndCredit(ctx, captureCommand())
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInvariant))
	})

	t.Run("amount mismatch is an invariant violation", func(t *testing.T) {
		client, mock := newMockClient(t)
		mock.ExpectBegin()
		mock.ExpectQuery(lockAppointmentSQL).WillReturnRows(appointmentRow("PENDING", "PENDING", "order_1"))
		mock.ExpectRollback()

		cmd := captureCommand()
		cmd.Amount = 100
		_, err := database.NewSettlementAdapter(client).CaptureAndCredit(ctx, cmd)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInvariant))
	})

	t.Run("falls back to the appointment id from the order notes", func(t *testing.T) {
		client, mock := newMockClient(t)
		mock.ExpectBegin()
		mock.ExpectQuery(lockAppointmentSQL).WillReturnRows(sqlmock.NewRows(appointmentRowColumns))
		mock.ExpectQuery(lockAppointmentSQL).WillReturnRows(appointmentRow("CONFIRMED", "PAID", "order_other"))
		mock.ExpectRollback()

		_, err := database.NewSettlementAdapter(client).CaptureAndCredit(ctx, captureCommand())
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInvariant))
	})

	t.Run("duplicate credit is a conflict", func(t *testing.T) {
		client, mock := newMockClient(t)
		mock.ExpectBegin()
		mock.ExpectQuery(lockAppointmentSQL).WillReturnRows(appointmentRow("PENDING", "PENDING", "order_1"))
		mock.ExpectExec(`UPDATE "appointments" SET`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(insertWalletSQL).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(lockWalletSQL).WillReturnRows(walletRow(0, nil))
		mock.ExpectExec(insertTxnSQL).WillReturnError(&pq.Error{
			Code: "23505", Constraint: "wallet_transactions_one_credit_per_appointment",
		})
		mock.ExpectRollback()

		_, err := database.NewSettlementAdapter(client).CaptureAndCredit(ctx, captureCommand())
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConflict))
	})
}
