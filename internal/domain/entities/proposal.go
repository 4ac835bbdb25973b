package entities

import "time"

// ProposalStatus is the state of a provider's offer to a seeker
type ProposalStatus string

const (
	ProposalStatusOpen      ProposalStatus = "OPEN"
	ProposalStatusAccepted  ProposalStatus = "ACCEPTED"
	ProposalStatusWithdrawn ProposalStatus = "WITHDRAWN"
)

// Proposal is an offer from a provider to a seeker
type Proposal struct {
	ID         string         `json:"id" db:"id"`
	ProviderID string         `json:"provider_id" db:"provider_id"`
	SeekerID   string         `json:"seeker_id" db:"seeker_id"`
	Message    string         `json:"message" db:"message"`
	Amount     int64          `json:"amount" db:"amount"`
	Status     ProposalStatus `json:"status" db:"status"`
	CreatedAt  time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at" db:"updated_at"`
}
