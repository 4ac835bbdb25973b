package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/zatekoja/expertbooking/backend/internal/api/handlers"
	"github.com/zatekoja/expertbooking/backend/internal/application/services"
	"github.com/zatekoja/expertbooking/backend/internal/domain/entities"
	apperrors "github.com/zatekoja/expertbooking/backend/pkg/errors"
)

func TestAppointmentHandler_Reserve(t *testing.T) {
	validPayload := map[string]interface{}{
		"provider_id": "prov-1",
		"date":        "2030-01-07",
		"time_label":  "09:00-10:00",
		"medium":      "VIDEO",
	}

	t.Run("reserves for the authenticated seeker", func(t *testing.T) {
		mockService := new(MockBookingService)
		handler := handlers.NewAppointmentHandler(mockService)

		mockService.On("Reserve", mock.Anything, services.ReserveCommand{
			ProviderID:  "prov-1",
			SeekerID:    "seeker-1",
			SeekerEmail: "seeker-1@example.com",
			Date:        "2030-01-07",
			TimeLabel:   "09:00-10:00",
			Medium:      entities.SessionMediumVideo,
		}).Return(&entities.Appointment{ID: "appt-1", Status: entities.AppointmentStatusPending}, nil)

		req := withUser(jsonRequest(t, http.MethodPost, "/api/appointments", validPayload), "seeker-1")
		w := httptest.NewRecorder()

		handler.Reserve(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, "appt-1", decodeBody(t, w)["id"])
		mockService.AssertExpectations(t)
	})

	t.Run("taken slot is a conflict", func(t *testing.T) {
		mockService := new(MockBookingService)
		handler := handlers.NewAppointmentHandler(mockService)
		mockService.On("Reserve", mock.Anything, mock.Anything).
			Return(nil, apperrors.NewConflictError("slot 2030-01-07 09:00-10:00 is already booked"))

		w := httptest.NewRecorder()
		handler.Reserve(w, withUser(jsonRequest(t, http.MethodPost, "/api/appointments", validPayload), "seeker-1"))

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "slot 2030-01-07 09:00-10:00 is already booked", decodeBody(t, w)["error"])
	})

	tests := []struct {
		name       string
		payload    interface{}
		wantStatus int
	}{
		{"invalid json", "invalid-json", http.StatusBadRequest},
		{"missing body", nil, http.StatusBadRequest},
		{"bad date", map[string]interface{}{"provider_id": "prov-1", "date": "07/01/2030", "time_label": "09:00-10:00"}, http.StatusBadRequest},
		{"bad time label", map[string]interface{}{"provider_id": "prov-1", "date": "2030-01-07", "time_label": "9am"}, http.StatusBadRequest},
		{"seeker id cannot be supplied", map[string]interface{}{"provider_id": "prov-1", "date": "2030-01-07", "time_label": "09:00-10:00", "seeker_id": "someone-else"}, http.StatusBadRequest},
		{"unknown medium", map[string]interface{}{"provider_id": "prov-1", "date": "2030-01-07", "time_label": "09:00-10:00", "medium": "FAX"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockBookingService)
			handler := handlers.NewAppointmentHandler(mockService)
			w := httptest.NewRecorder()

			handler.Reserve(w, withUser(jsonRequest(t, http.MethodPost, "/api/appointments", tt.payload), "seeker-1"))

			assert.Equal(t, tt.wantStatus, w.Code)
			mockService.AssertNotCalled(t, "Reserve", mock.Anything, mock.Anything)
		})
	}

	t.Run("anonymous callers are rejected", func(t *testing.T) {
		mockService := new(MockBookingService)
		handler := handlers.NewAppointmentHandler(mockService)
		w := httptest.NewRecorder()

		handler.Reserve(w, jsonRequest(t, http.MethodPost, "/api/appointments", validPayload))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestAppointmentHandler_CancelAndGet(t *testing.T) {
	t.Run("cancel", func(t *testing.T) {
		mockService := new(MockBookingService)
		handler := handlers.NewAppointmentHandler(mockService)
		mockService.On("Cancel", mock.Anything, "appt-1", "seeker-1").
			Return(&entities.Appointment{ID: "appt-1", Status: entities.AppointmentStatusCancelled}, nil)

		req := withUser(httptest.NewRequest(http.MethodPut, "/api/appointments/appt-1/cancel", nil), "seeker-1")
		req.SetPathValue("id", "appt-1")
		w := httptest.NewRecorder()

		handler.Cancel(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "CANCELLED", decodeBody(t, w)["status"])
	})

	t.Run("strangers are forbidden", func(t *testing.T) {
		mockService := new(MockBookingService)
		handler := handlers.NewAppointmentHandler(mockService)
		mockService.On("Cancel", mock.Anything, "appt-1", "stranger").
			Return(nil, apperrors.NewForbiddenError("not a participant of this appointment"))

		req := withUser(httptest.NewRequest(http.MethodPut, "/api/appointments/appt-1/cancel", nil), "stranger")
		req.SetPathValue("id", "appt-1")
		w := httptest.NewRecorder()

		handler.Cancel(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("get unknown appointment", func(t *testing.T) {
		mockService := new(MockBookingService)
		handler := handlers.NewAppointmentHandler(mockService)
		mockService.On("Get", mock.Anything, "missing", "seeker-1").
			Return(nil, apperrors.NewNotFoundError("appointment not found"))

		req := withUser(httptest.NewRequest(http.MethodGet, "/api/appointments/missing", nil), "seeker-1")
		req.SetPathValue("id", "missing")
		w := httptest.NewRecorder()

		handler.Get(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
