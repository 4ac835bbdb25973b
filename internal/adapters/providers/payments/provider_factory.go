package payments

import (
	"github.com/zatekoja/expertbooking/backend/internal/domain/providers"
)

// Payout modes
const (
	PayoutModeSimulated = "simulated"
	PayoutModeLive      = "live"
)

// NewPayoutProcessor picks the payout backend for the configured mode. Live
// mode sends payouts through the processor client; anything else simulates.
func NewPayoutProcessor(mode string, live providers.PayoutProcessor) providers.PayoutProcessor {
	if mode != PayoutModeLive || live == nil {
		// No payout account configured; settle locally for dev.
		return NewSimulatedPayoutAdapter()
	}
	return live
}
