package database_test

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/expertbooking/backend/internal/infrastructure/clients/postgres"
)

var fixedTime = time.Date(2030, 1, 1, 8, 0, 0, 0, time.UTC)

func newMockClient(t *testing.T) (*postgres.Client, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})

	return postgres.NewClientFromDB(db), mock
}

var appointmentRowColumns = []string{
	"id", "provider_id", "seeker_id", "seeker_email", "date",
	"start_time", "time_label", "medium", "payment_method",
	"status", "payment_status", "external_order_ref", "external_payment_ref",
	"amount", "currency", "cancelled_by", "created_at", "updated_at",
}

func appointmentRow(status, paymentStatus string, orderRef interface{}) *sqlmock.Rows {
	return sqlmock.NewRows(appointmentRowColumns).AddRow(
		"appt-1", "prov-1", "seeker-1", "seeker@example.com", "2030-01-07",
		"09:00", "09:00-10:00", "VIDEO", "ONLINE",
		status, paymentStatus, orderRef, nil,
		int64(50000), "INR", nil, fixedTime, fixedTime,
	)
}

var walletRowColumns = []string{"id", "owner_id", "balance", "currency", "payout_destination", "created_at", "updated_at"}

func walletRow(balance int64, destination interface{}) *sqlmock.Rows {
	return sqlmock.NewRows(walletRowColumns).
		AddRow("wallet-1", "prov-1", balance, "INR", destination, fixedTime, fixedTime)
}

var transactionRowColumns = []string{
	"id", "wallet_id", "type", "amount", "status",
	"external_ref", "appointment_id", "failure_reason", "created_at", "updated_at",
}

func payoutRow(status string) *sqlmock.Rows {
	return sqlmock.NewRows(transactionRowColumns).
		AddRow("txn-1", "wallet-1", "PAYOUT", int64(2000), status, nil, nil, nil, fixedTime, fixedTime)
}

func newMockSqlx(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	client, mock := newMockClient(t)
	return client.Sqlx(), mock
}
