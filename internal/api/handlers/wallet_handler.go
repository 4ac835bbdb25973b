package handlers

import (
	"context"
	"net/http"

	"github.com/zatekoja/expertbooking/backend/internal/application/services"
	"github.com/zatekoja/expertbooking/backend/internal/domain/entities"
	"github.com/zatekoja/expertbooking/backend/internal/domain/repositories"
	apperrors "github.com/zatekoja/expertbooking/backend/pkg/errors"
)

// WalletService defines the wallet operations the handler needs
type WalletService interface {
	SummaryForUser(ctx context.Context, userID string) (*entities.WalletSummary, error)
	ListTransactions(ctx context.Context, userID string, filter repositories.TransactionFilter) ([]*entities.WalletTransaction, error)
	RequestPayout(ctx context.Context, userID string, input services.PayoutInput) (*entities.WalletTransaction, error)
	SetPayoutDestination(ctx context.Context, userID string, input services.PayoutDestinationInput) (*entities.Wallet, error)
}

// WalletHandler serves a provider's wallet and payouts
type WalletHandler struct {
	service WalletService
}

// NewWalletHandler creates a new wallet handler
func NewWalletHandler(service WalletService) *WalletHandler {
	return &WalletHandler{service: service}
}

// Summary handles GET /api/wallet
func (h *WalletHandler) Summary(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	summary, err := h.service.SummaryForUser(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, summary)
}

// ListTransactions handles GET /api/wallet/transactions?type=&status=&limit=&offset=
func (h *WalletHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	filter, err := transactionFilter(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	transactions, err := h.service.ListTransactions(r.Context(), userID, filter)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if transactions == nil {
		transactions = []*entities.WalletTransaction{}
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": transactions,
		"count":        len(transactions),
	})
}

// RequestPayout handles POST /api/payments/request-payout. The payout is
// settled asynchronously, hence 202.
func (h *WalletHandler) RequestPayout(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var input services.PayoutInput
	if !decodeJSON(w, r, &input) {
		return
	}

	payout, err := h.service.RequestPayout(r.Context(), userID, input)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusAccepted, payout)
}

// SetPayoutDestination handles PUT /api/wallet/payout-destination
func (h *WalletHandler) SetPayoutDestination(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var input services.PayoutDestinationInput
	if !decodeJSON(w, r, &input) {
		return
	}

	wallet, err := h.service.SetPayoutDestination(r.Context(), userID, input)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, wallet)
}

func transactionFilter(r *http.Request) (repositories.TransactionFilter, error) {
	q := r.URL.Query()
	filter := repositories.TransactionFilter{
		Type:   entities.TransactionType(q.Get("type")),
		Status: entities.TransactionStatus(q.Get("status")),
	}

	switch filter.Type {
	case "", entities.TransactionTypeCredit, entities.TransactionTypePayout:
	default:
		return filter, apperrors.NewValidationError("type must be CREDIT or PAYOUT")
	}
	switch filter.Status {
	case "", entities.TransactionStatusPending, entities.TransactionStatusCompleted, entities.TransactionStatusFailed:
	default:
		return filter, apperrors.NewValidationError("status must be PENDING, COMPLETED or FAILED")
	}

	var err error
	if filter.Limit, err = queryInt(r, "limit"); err != nil {
		return filter, err
	}
	if filter.Offset, err = queryInt(r, "offset"); err != nil {
		return filter, err
	}
	return filter, nil
}
