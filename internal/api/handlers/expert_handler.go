package handlers

import (
	"context"
	"net/http"

	"github.com/zatekoja/expertbooking/backend/internal/application/services"
	"github.com/zatekoja/expertbooking/backend/internal/domain/entities"
)

// AvailabilityService defines the availability operations the handler needs
type AvailabilityService interface {
	GetAvailableSlots(ctx context.Context, providerID, date string) ([]entities.Slot, error)
	UpdateAvailability(ctx context.Context, providerID, requesterID string, input services.AvailabilityInput) (*entities.Provider, error)
}

// ExpertHandler serves provider availability
type ExpertHandler struct {
	service AvailabilityService
}

// NewExpertHandler creates a new expert handler
func NewExpertHandler(service AvailabilityService) *ExpertHandler {
	return &ExpertHandler{service: service}
}

// GetAvailableSlots handles GET /api/experts/{id}/available-slots?date=YYYY-MM-DD.
// Without a date the rolling booking window is returned.
func (h *ExpertHandler) GetAvailableSlots(w http.ResponseWriter, r *http.Request) {
	providerID := r.PathValue("id")
	if providerID == "" {
		respondWithError(w, http.StatusBadRequest, "expert ID is required")
		return
	}

	slots, err := h.service.GetAvailableSlots(r.Context(), providerID, r.URL.Query().Get("date"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if slots == nil {
		slots = []entities.Slot{}
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"slots": slots,
		"count": len(slots),
	})
}

// UpdateAvailability handles PUT /api/experts/{id}/availability
func (h *ExpertHandler) UpdateAvailability(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	providerID := r.PathValue("id")
	if providerID == "" {
		respondWithError(w, http.StatusBadRequest, "expert ID is required")
		return
	}

	var input services.AvailabilityInput
	if !decodeJSON(w, r, &input) {
		return
	}

	provider, err := h.service.UpdateAvailability(r.Context(), providerID, userID, input)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, provider)
}
