package repositories

import (
	"context"

	"github.com/zatekoja/expertbooking/backend/internal/domain/entities"
)

// ProposalRepository defines the interface for proposal data operations
type ProposalRepository interface {
	// Create creates a new proposal
	Create(ctx context.Context, proposal *entities.Proposal) error

	// GetByID retrieves a proposal by ID
	GetByID(ctx context.Context, id string) (*entities.Proposal, error)

	// ListForUser lists proposals where the user is the seeker or the provider's user
	ListForUser(ctx context.Context, seekerID, providerID string, limit, offset int) ([]*entities.Proposal, error)

	// UpdateStatus moves an OPEN proposal to a new status
	UpdateStatus(ctx context.Context, id string, status entities.ProposalStatus) error
}
