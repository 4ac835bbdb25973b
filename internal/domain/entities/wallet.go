package entities

import "time"

// TransactionType is the kind of wallet movement
type TransactionType string

const (
	TransactionTypeCredit TransactionType = "CREDIT"
	TransactionTypePayout TransactionType = "PAYOUT"
)

// TransactionStatus is the lifecycle state of a wallet transaction
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "PENDING"
	TransactionStatusCompleted TransactionStatus = "COMPLETED"
	TransactionStatusFailed    TransactionStatus = "FAILED"
)

// Wallet holds a provider's earnings. Balance is the spendable amount:
// completed credits minus completed and pending payouts.
type Wallet struct {
	ID                string    `json:"id" db:"id"`
	OwnerID           string    `json:"owner_id" db:"owner_id"`
	Balance           int64     `json:"balance" db:"balance"`
	Currency          string    `json:"currency" db:"currency"`
	PayoutDestination *string   `json:"payout_destination,omitempty" db:"payout_destination"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

// HasPayoutDestination reports whether payout details are linked
func (w *Wallet) HasPayoutDestination() bool {
	return w.PayoutDestination != nil && *w.PayoutDestination != ""
}

// WalletTransaction is an append-only ledger entry
type WalletTransaction struct {
	ID            string            `json:"id" db:"id"`
	WalletID      string            `json:"wallet_id" db:"wallet_id"`
	Type          TransactionType   `json:"type" db:"type"`
	Amount        int64             `json:"amount" db:"amount"`
	Status        TransactionStatus `json:"status" db:"status"`
	ExternalRef   *string           `json:"external_ref,omitempty" db:"external_ref"`
	AppointmentID *string           `json:"appointment_id,omitempty" db:"appointment_id"`
	FailureReason *string           `json:"failure_reason,omitempty" db:"failure_reason"`
	CreatedAt     time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at" db:"updated_at"`
}

// WalletSummary is derived from the transaction log
type WalletSummary struct {
	WalletID         string `json:"wallet_id"`
	OwnerID          string `json:"owner_id"`
	Currency         string `json:"currency"`
	Balance          int64  `json:"balance"`
	LedgerBalance    int64  `json:"ledger_balance"`
	CompletedCredits int64  `json:"completed_credits"`
	CompletedPayouts int64  `json:"completed_payouts"`
	PendingPayouts   int64  `json:"pending_payouts"`
	HasPayoutAccount bool   `json:"has_payout_destination"`
	StoredBalance    int64  `json:"-"`
}

// LedgerTotals are the sums a summary is derived from
type LedgerTotals struct {
	CompletedCredits int64 `db:"completed_credits"`
	CompletedPayouts int64 `db:"completed_payouts"`
	PendingPayouts   int64 `db:"pending_payouts"`
}

// Available is the spendable balance implied by the log
func (t LedgerTotals) Available() int64 {
	return t.CompletedCredits - t.CompletedPayouts - t.PendingPayouts
}

// Settled is completed credits minus completed payouts
func (t LedgerTotals) Settled() int64 {
	return t.CompletedCredits - t.CompletedPayouts
}
