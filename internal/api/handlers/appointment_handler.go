package handlers

import (
	"context"
	"net/http"

	"github.com/zatekoja/expertbooking/backend/internal/application/services"
	"github.com/zatekoja/expertbooking/backend/internal/domain/entities"
	"github.com/zatekoja/expertbooking/backend/pkg/auth"
)

// BookingService defines the booking operations the handler needs
type BookingService interface {
	Reserve(ctx context.Context, cmd services.ReserveCommand) (*entities.Appointment, error)
	Cancel(ctx context.Context, appointmentID, requesterID string) (*entities.Appointment, error)
	Get(ctx context.Context, appointmentID, requesterID string) (*entities.Appointment, error)
}

// AppointmentHandler handles appointment requests
type AppointmentHandler struct {
	service BookingService
}

// NewAppointmentHandler creates a new appointment handler
func NewAppointmentHandler(service BookingService) *AppointmentHandler {
	return &AppointmentHandler{
		service: service,
	}
}

// Reserve handles POST /api/appointments
func (h *AppointmentHandler) Reserve(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var cmd services.ReserveCommand
	if !decodeJSON(w, r, &cmd) {
		return
	}
	cmd.SeekerID = userID
	if claims, ok := auth.ClaimsFromContext(r.Context()); ok {
		cmd.SeekerEmail = claims.Email
	}

	appointment, err := h.service.Reserve(r.Context(), cmd)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, appointment)
}

// Cancel handles PUT /api/appointments/{id}/cancel
func (h *AppointmentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	appointmentID := r.PathValue("id")
	if appointmentID == "" {
		respondWithError(w, http.StatusBadRequest, "appointment ID is required")
		return
	}

	appointment, err := h.service.Cancel(r.Context(), appointmentID, userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, appointment)
}

// Get handles GET /api/appointments/{id}
func (h *AppointmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	appointmentID := r.PathValue("id")
	if appointmentID == "" {
		respondWithError(w, http.StatusBadRequest, "appointment ID is required")
		return
	}

	appointment, err := h.service.Get(r.Context(), appointmentID, userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, appointment)
}
