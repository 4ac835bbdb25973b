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

func TestProposalHandler(t *testing.T) {
	t.Run("create", func(t *testing.T) {
		mockService := new(MockProposalService)
		handler := handlers.NewProposalHandler(mockService)
		input := services.ProposalInput{SeekerID: "seeker-1", Message: "Three sessions for the price of two", Amount: 100000}
		mockService.On("Create", mock.Anything, "user-prov", input).
			Return(&entities.Proposal{ID: "prop-1", Status: entities.ProposalStatusOpen}, nil)

		w := httptest.NewRecorder()
		handler.Create(w, withUser(jsonRequest(t, http.MethodPost, "/api/proposals", input), "user-prov"))

		assert.Equal(t, http.StatusCreated, w.Code)
	})

	t.Run("create without a message", func(t *testing.T) {
		mockService := new(MockProposalService)
		handler := handlers.NewProposalHandler(mockService)

		w := httptest.NewRecorder()
		handler.Create(w, withUser(jsonRequest(t, http.MethodPost, "/api/proposals",
			map[string]string{"seeker_id": "seeker-1"}), "user-prov"))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("list passes paging through", func(t *testing.T) {
		mockService := new(MockProposalService)
		handler := handlers.NewProposalHandler(mockService)
		mockService.On("List", mock.Anything, "seeker-1", 5, 10).Return(nil, nil)

		w := httptest.NewRecorder()
		handler.List(w, withUser(httptest.NewRequest(http.MethodGet, "/api/proposals?limit=5&offset=10", nil), "seeker-1"))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"proposals":[],"count":0}`, w.Body.String())
	})

	t.Run("withdraw", func(t *testing.T) {
		mockService := new(MockProposalService)
		handler := handlers.NewProposalHandler(mockService)
		mockService.On("Withdraw", mock.Anything, "prop-1", "user-prov").
			Return(&entities.Proposal{ID: "prop-1", Status: entities.ProposalStatusWithdrawn}, nil)

		req := withUser(httptest.NewRequest(http.MethodPut, "/api/proposals/prop-1/withdraw", nil), "user-prov")
		req.SetPathValue("id", "prop-1")
		w := httptest.NewRecorder()

		handler.Withdraw(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "WITHDRAWN", decodeBody(t, w)["status"])
	})

	t.Run("accept a closed proposal", func(t *testing.T) {
		mockService := new(MockProposalService)
		handler := handlers.NewProposalHandler(mockService)
		mockService.On("Accept", mock.Anything, "prop-1", "seeker-1").
			Return(nil, apperrors.NewConflictError("proposal prop-1 is no longer open"))

		req := withUser(httptest.NewRequest(http.MethodPut, "/api/proposals/prop-1/accept", nil), "seeker-1")
		req.SetPathValue("id", "prop-1")
		w := httptest.NewRecorder()

		handler.Accept(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)
	})
}
