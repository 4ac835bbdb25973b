package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/zatekoja/expertbooking/backend/internal/domain/entities"
	"github.com/zatekoja/expertbooking/backend/internal/domain/providers"
	"github.com/zatekoja/expertbooking/backend/internal/domain/repositories"
	"github.com/zatekoja/expertbooking/backend/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/expertbooking/backend/pkg/errors"
)

// ProposalService lets providers make offers to seekers
type ProposalService struct {
	proposalRepo repositories.ProposalRepository
	providerRepo repositories.ProviderRepository
	broadcaster  providers.RealtimeBroadcaster
}

// NewProposalService creates a new proposal service
func NewProposalService(
	proposalRepo repositories.ProposalRepository,
	providerRepo repositories.ProviderRepository,
	broadcaster providers.RealtimeBroadcaster,
) *ProposalService {
	return &ProposalService{
		proposalRepo: proposalRepo,
		providerRepo: providerRepo,
		broadcaster:  broadcaster,
	}
}

// ProposalInput is a new offer
type ProposalInput struct {
	SeekerID string `json:"seeker_id" validate:"required"`
	Message  string `json:"message" validate:"required,max=2000"`
	Amount   int64  `json:"amount" validate:"gte=0"`
}

// Create opens a proposal from the requester's provider profile
func (s *ProposalService) Create(ctx context.Context, userID string, input ProposalInput) (*entities.Proposal, error) {
	provider, err := s.providerFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	if input.SeekerID == userID {
		return nil, apperrors.NewValidationError("cannot send a proposal to yourself")
	}

	now := time.Now().UTC()
	proposal := &entities.Proposal{
		ID:         uuid.New().String(),
		ProviderID: provider.ID,
		SeekerID:   input.SeekerID,
		Message:    input.Message,
		Amount:     input.Amount,
		Status:     entities.ProposalStatusOpen,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.proposalRepo.Create(ctx, proposal); err != nil {
		return nil, err
	}

	observability.LoggerFromContext(ctx).Info().
		Str("proposal_id", proposal.ID).
		Str("provider_id", provider.ID).
		Msg("proposal created")
	s.publish(ctx, entities.EventProposalCreated, proposal, provider)

	return proposal, nil
}

// List returns proposals the user sent or received
func (s *ProposalService) List(ctx context.Context, userID string, limit, offset int) ([]*entities.Proposal, error) {
	providerID := ""
	provider, err := s.providerRepo.GetByUserID(ctx, userID)
	switch {
	case err == nil:
		providerID = provider.ID
	case !apperrors.IsType(err, apperrors.ErrorTypeNotFound):
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.proposalRepo.ListForUser(ctx, userID, providerID, limit, offset)
}

// Withdraw closes an open proposal on behalf of the provider who made it
func (s *ProposalService) Withdraw(ctx context.Context, proposalID, userID string) (*entities.Proposal, error) {
	provider, err := s.providerFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	proposal, err := s.proposalRepo.GetByID(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if proposal.ProviderID != provider.ID {
		return nil, apperrors.NewForbiddenError("only the provider who made the proposal can withdraw it")
	}
	return s.transition(ctx, proposal, entities.ProposalStatusWithdrawn, provider)
}

// Accept marks an open proposal accepted on behalf of its seeker
func (s *ProposalService) Accept(ctx context.Context, proposalID, userID string) (*entities.Proposal, error) {
	proposal, err := s.proposalRepo.GetByID(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if proposal.SeekerID != userID {
		return nil, apperrors.NewForbiddenError("only the seeker can accept this proposal")
	}
	provider, err := s.providerRepo.GetByID(ctx, proposal.ProviderID)
	if err != nil && !apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
		return nil, err
	}
	return s.transition(ctx, proposal, entities.ProposalStatusAccepted, provider)
}

func (s *ProposalService) transition(ctx context.Context, proposal *entities.Proposal, status entities.ProposalStatus, provider *entities.Provider) (*entities.Proposal, error) {
	if proposal.Status == status {
		return proposal, nil
	}
	if err := s.proposalRepo.UpdateStatus(ctx, proposal.ID, status); err != nil {
		return nil, err
	}
	proposal.Status = status
	proposal.UpdatedAt = time.Now().UTC()

	s.publish(ctx, entities.EventProposalUpdated, proposal, provider)
	return proposal, nil
}

func (s *ProposalService) providerFor(ctx context.Context, userID string) (*entities.Provider, error) {
	provider, err := s.providerRepo.GetByUserID(ctx, userID)
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
			return nil, apperrors.NewForbiddenError("only providers can manage proposals")
		}
		return nil, err
	}
	return provider, nil
}

func (s *ProposalService) publish(ctx context.Context, event string, proposal *entities.Proposal, provider *entities.Provider) {
	if s.broadcaster == nil {
		return
	}
	s.broadcaster.Publish(ctx, event, proposal, entities.UserRoom(proposal.SeekerID))
	if provider != nil && provider.UserID != "" {
		s.broadcaster.Publish(ctx, event, proposal, entities.UserRoom(provider.UserID))
	}
}
