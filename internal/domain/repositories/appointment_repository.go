package repositories

import (
	"context"
	"time"

	"github.com/zatekoja/expertbooking/backend/internal/domain/entities"
)

// AppointmentRepository defines the interface for appointment data operations
type AppointmentRepository interface {
	// Create inserts a PENDING appointment. A clash with another active
	// appointment on the same (provider, date, start) returns a ConflictError.
	Create(ctx context.Context, appointment *entities.Appointment) error

	// GetByID retrieves an appointment by ID
	GetByID(ctx context.Context, id string) (*entities.Appointment, error)

	// GetByOrderRef retrieves an appointment by its processor order handle
	GetByOrderRef(ctx context.Context, orderRef string) (*entities.Appointment, error)

	// ListActiveByProvider returns PENDING and CONFIRMED appointments of a
	// provider with from <= date <= to (dates as YYYY-MM-DD)
	ListActiveByProvider(ctx context.Context, providerID string, from, to string) ([]*entities.Appointment, error)

	// Cancel moves a non-cancelled appointment to CANCELLED and returns the
	// resulting row. Cancelling an already-cancelled appointment returns it unchanged.
	Cancel(ctx context.Context, id string, cancelledBy string) (*entities.Appointment, error)

	// AttachOrderRef stores the order handle if none is stored yet and
	// returns the handle that ended up persisted
	AttachOrderRef(ctx context.Context, id string, orderRef string) (string, error)

	// MarkPaymentFailed flags an unpaid PENDING appointment as FAILED. The
	// boolean is false when the row was not in that state and is returned as is.
	MarkPaymentFailed(ctx context.Context, orderRef string) (*entities.Appointment, bool, error)

	// ExpireUnpaid cancels the appointment only while it is still PENDING and
	// unpaid. The boolean is false when a capture or cancel got there first.
	ExpireUnpaid(ctx context.Context, id string) (*entities.Appointment, bool, error)
	// ListStalePending returns unpaid PENDING appointments created before cutoff
	ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]*entities.Appointment, error)
}
