package routes_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/expertbooking/backend/internal/api/handlers"
	"github.com/zatekoja/expertbooking/backend/internal/api/middleware"
	"github.com/zatekoja/expertbooking/backend/internal/api/routes"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	mock.ExpectPing()

	// Services are never reached: every request below stops in middleware
	// or at the health check.
	h := routes.Handlers{
		Appointments: handlers.NewAppointmentHandler(nil),
		Experts:      handlers.NewExpertHandler(nil),
		Payments:     handlers.NewPaymentHandler(nil),
		Wallet:       handlers.NewWalletHandler(nil),
		Proposals:    handlers.NewProposalHandler(nil),
		Health:       handlers.NewHealthHandler(db),
	}
	return routes.NewRouter(h, routes.Options{
		JWTSecret:      "router-secret",
		AllowedOrigins: []string{"https://app.example.com"},
		RateLimiter:    middleware.NewRateLimiter(1, 1),
	}).SetupRoutes()
}

func TestRouter(t *testing.T) {
	router := newTestRouter(t)

	t.Run("health is public", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	protected := []struct{ method, path string }{
		{http.MethodPost, "/api/appointments"},
		{http.MethodGet, "/api/appointments/appt-1"},
		{http.MethodPut, "/api/appointments/appt-1/cancel"},
		{http.MethodGet, "/api/experts/prov-1/available-slots"},
		{http.MethodPost, "/api/payments/create-order"},
		{http.MethodPost, "/api/payments/verify-payment"},
		{http.MethodPost, "/api/payments/request-payout"},
		{http.MethodGet, "/api/wallet"},
		{http.MethodGet, "/api/wallet/transactions"},
		{http.MethodPut, "/api/wallet/payout-destination"},
		{http.MethodGet, "/api/proposals"},
		{http.MethodPut, "/api/proposals/prop-1/accept"},
	}
	for _, route := range protected {
		t.Run(route.method+" "+route.path+" needs a token", func(t *testing.T) {
			req := httptest.NewRequest(route.method, route.path, nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}

	t.Run("unknown route", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/facilities", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("wrong method", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/wallet", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	})

	t.Run("reservations are rate limited before auth", func(t *testing.T) {
		send := func() int {
			req := httptest.NewRequest(http.MethodPost, "/api/appointments", nil)
			req.RemoteAddr = "203.0.113.9:4000"
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			return w.Code
		}
		assert.Equal(t, http.StatusUnauthorized, send())
		assert.Equal(t, http.StatusTooManyRequests, send())
	})

	t.Run("preflight is answered by CORS", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/wallet", nil)
		req.Header.Set("Origin", "https://app.example.com")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	})
}
