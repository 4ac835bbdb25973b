package routes

import (
	"net/http"

	"github.com/zatekoja/expertbooking/backend/internal/api/handlers"
	"github.com/zatekoja/expertbooking/backend/internal/api/middleware"
	"github.com/zatekoja/expertbooking/backend/internal/infrastructure/observability"
)

// Handlers groups the HTTP handlers served by the API
type Handlers struct {
	Appointments *handlers.AppointmentHandler
	Experts      *handlers.ExpertHandler
	Payments     *handlers.PaymentHandler
	Wallet       *handlers.WalletHandler
	Proposals    *handlers.ProposalHandler
	Health       *handlers.HealthHandler
}

// Options configure the cross-cutting middleware
type Options struct {
	JWTSecret      string
	AllowedOrigins []string
	// RateLimiter guards reservation and webhook routes; nil disables it
	RateLimiter *middleware.RateLimiter
	Metrics     *observability.Metrics
}

// Router holds all route handlers
type Router struct {
	mux      *http.ServeMux
	handlers Handlers
	opts     Options
}

// NewRouter creates a new router
func NewRouter(h Handlers, opts Options) *Router {
	return &Router{
		mux:      http.NewServeMux(),
		handlers: h,
		opts:     opts,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	authed := middleware.RequireAuth(r.opts.JWTSecret)
	limited := func(h http.Handler) http.Handler {
		if r.opts.RateLimiter == nil {
			return h
		}
		return r.opts.RateLimiter.Limit(h)
	}
	private := func(h http.HandlerFunc) http.Handler { return authed(h) }

	r.mux.HandleFunc("GET /health", r.handlers.Health.Check)

	// Appointments
	r.mux.Handle("POST /api/appointments", limited(private(r.handlers.Appointments.Reserve)))
	r.mux.Handle("GET /api/appointments/{id}", private(r.handlers.Appointments.Get))
	r.mux.Handle("PUT /api/appointments/{id}/cancel", private(r.handlers.Appointments.Cancel))

	// Experts
	r.mux.Handle("GET /api/experts/{id}/available-slots", private(r.handlers.Experts.GetAvailableSlots))
	r.mux.Handle("PUT /api/experts/{id}/availability", private(r.handlers.Experts.UpdateAvailability))

	// Payments. The webhook is authenticated by its signature, not a token.
	r.mux.Handle("POST /api/payments/create-order", private(r.handlers.Payments.CreateOrder))
	r.mux.Handle("POST /api/payments/verify-payment", private(r.handlers.Payments.VerifyPayment))
	r.mux.Handle("POST /api/payments/webhook", limited(http.HandlerFunc(r.handlers.Payments.Webhook)))
	r.mux.Handle("POST /api/payments/request-payout", private(r.handlers.Wallet.RequestPayout))

	// Wallet
	r.mux.Handle("GET /api/wallet", private(r.handlers.Wallet.Summary))
	r.mux.Handle("GET /api/wallet/transactions", private(r.handlers.Wallet.ListTransactions))
	r.mux.Handle("PUT /api/wallet/payout-destination", private(r.handlers.Wallet.SetPayoutDestination))

	// Proposals
	r.mux.Handle("POST /api/proposals", private(r.handlers.Proposals.Create))
	r.mux.Handle("GET /api/proposals", private(r.handlers.Proposals.List))
	r.mux.Handle("PUT /api/proposals/{id}/withdraw", private(r.handlers.Proposals.Withdraw))
	r.mux.Handle("PUT /api/proposals/{id}/accept", private(r.handlers.Proposals.Accept))

	return Chain(r.mux, r.opts)
}

// Chain wraps h with the shared middleware stack. The outermost layer runs
// first.
func Chain(h http.Handler, opts Options) http.Handler {
	h = middleware.ObservabilityMiddleware(opts.Metrics)(h)
	h = middleware.LoggingMiddleware(h)
	h = middleware.CORSMiddleware(opts.AllowedOrigins)(h)
	h = middleware.RecoverMiddleware(h)
	return h
}
