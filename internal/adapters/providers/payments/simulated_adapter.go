package payments

import (
	"context"
	"fmt"

	"github.com/zatekoja/expertbooking/backend/internal/domain/providers"
)

// SimulatedPayoutAdapter settles every payout immediately. The external
// reference is derived from the transaction id, so repeats are stable.
type SimulatedPayoutAdapter struct{}

// NewSimulatedPayoutAdapter creates a simulated payout processor.
func NewSimulatedPayoutAdapter() providers.PayoutProcessor {
	return &SimulatedPayoutAdapter{}
}

// InitiatePayout reports the payout as processed.
func (s *SimulatedPayoutAdapter) InitiatePayout(ctx context.Context, req providers.PayoutRequest) (*providers.PayoutResult, error) {
	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", providers.ErrPayoutRejected)
	}
	return &providers.PayoutResult{
		ExternalRef: "sim_pout_" + req.TransactionID,
		Status:      providers.PayoutStatusProcessed,
	}, nil
}
