package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/zatekoja/expertbooking/backend/internal/domain/entities"
	"github.com/zatekoja/expertbooking/backend/internal/domain/repositories"
	apperrors "github.com/zatekoja/expertbooking/backend/pkg/errors"
)

// ProposalAdapter implements the ProposalRepository interface
type ProposalAdapter struct {
	db *sqlx.DB
}

// NewProposalAdapter creates a new proposal adapter
func NewProposalAdapter(db *sqlx.DB) repositories.ProposalRepository {
	return &ProposalAdapter{db: db}
}

const proposalColumns = `id, provider_id, seeker_id, message, amount, status, created_at, updated_at`

// Create creates a new proposal
func (a *ProposalAdapter) Create(ctx context.Context, proposal *entities.Proposal) error {
	query := `
		INSERT INTO proposals (` + proposalColumns + `)
		VALUES (:id, :provider_id, :seeker_id, :message, :amount, :status, :created_at, :updated_at)
	`
	if _, err := a.db.NamedExecContext(ctx, query, proposal); err != nil {
		return apperrors.NewInternalError("failed to create proposal", err)
	}
	return nil
}

// GetByID retrieves a proposal by ID
func (a *ProposalAdapter) GetByID(ctx context.Context, id string) (*entities.Proposal, error) {
	var proposal entities.Proposal
	query := `SELECT ` + proposalColumns + ` FROM proposals WHERE id = $1`
	err := a.db.GetContext(ctx, &proposal, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("proposal with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get proposal", err)
	}
	return &proposal, nil
}

// ListForUser lists proposals addressed to the seeker or sent by the provider
func (a *ProposalAdapter) ListForUser(ctx context.Context, seekerID, providerID string, limit, offset int) ([]*entities.Proposal, error) {
	if limit <= 0 {
		limit = 20
	}

	proposals := []*entities.Proposal{}
	query := `
		SELECT ` + proposalColumns + `
		FROM proposals
		WHERE seeker_id = $1 OR ($2 <> '' AND provider_id = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`
	if err := a.db.SelectContext(ctx, &proposals, query, seekerID, providerID, limit, offset); err != nil {
		return nil, apperrors.NewInternalError("failed to list proposals", err)
	}
	return proposals, nil
}

// UpdateStatus moves an OPEN proposal to a new status
func (a *ProposalAdapter) UpdateStatus(ctx context.Context, id string, status entities.ProposalStatus) error {
	query := `UPDATE proposals SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`
	result, err := a.db.ExecContext(ctx, query, status, time.Now().UTC(), id, entities.ProposalStatusOpen)
	if err != nil {
		return apperrors.NewInternalError("failed to update proposal", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		if _, err := a.GetByID(ctx, id); err != nil {
			return err
		}
		return apperrors.NewConflictError(fmt.Sprintf("proposal %s is no longer open", id))
	}
	return nil
}
