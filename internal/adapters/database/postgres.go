package database

import (
	"errors"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/lib/pq"
)

func init() {
	// Bind values as $n placeholders instead of interpolating them.
	goqu.SetDefaultPrepared(true)
}

const (
	pgUniqueViolation = "23505"

	constraintActiveSlot       = "appointments_active_slot_key"
	constraintCreditPerBooking = "wallet_transactions_one_credit_per_appointment"
)

// uniqueViolation reports whether err is a unique violation, optionally on
// a specific constraint
func uniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	if pqErr.Code != pgUniqueViolation {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}
