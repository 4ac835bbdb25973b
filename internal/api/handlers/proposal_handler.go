package handlers

import (
	"context"
	"net/http"

	"github.com/zatekoja/expertbooking/backend/internal/application/services"
	"github.com/zatekoja/expertbooking/backend/internal/domain/entities"
)

// ProposalService defines the proposal operations the handler needs
type ProposalService interface {
	Create(ctx context.Context, userID string, input services.ProposalInput) (*entities.Proposal, error)
	List(ctx context.Context, userID string, limit, offset int) ([]*entities.Proposal, error)
	Withdraw(ctx context.Context, proposalID, userID string) (*entities.Proposal, error)
	Accept(ctx context.Context, proposalID, userID string) (*entities.Proposal, error)
}

// ProposalHandler handles provider proposals
type ProposalHandler struct {
	service ProposalService
}

// NewProposalHandler creates a new proposal handler
func NewProposalHandler(service ProposalService) *ProposalHandler {
	return &ProposalHandler{service: service}
}

// Create handles POST /api/proposals
func (h *ProposalHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var input services.ProposalInput
	if !decodeJSON(w, r, &input) {
		return
	}

	proposal, err := h.service.Create(r.Context(), userID, input)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, proposal)
}

// List handles GET /api/proposals
func (h *ProposalHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	limit, err := queryInt(r, "limit")
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	proposals, err := h.service.List(r.Context(), userID, limit, offset)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if proposals == nil {
		proposals = []*entities.Proposal{}
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"proposals": proposals,
		"count":     len(proposals),
	})
}

// Withdraw handles PUT /api/proposals/{id}/withdraw
func (h *ProposalHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Withdraw)
}

// Accept handles PUT /api/proposals/{id}/accept
func (h *ProposalHandler) Accept(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Accept)
}

func (h *ProposalHandler) transition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, proposalID, userID string) (*entities.Proposal, error)) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	proposalID := r.PathValue("id")
	if proposalID == "" {
		respondWithError(w, http.StatusBadRequest, "proposal ID is required")
		return
	}

	proposal, err := fn(r.Context(), proposalID, userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, proposal)
}
