package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/zatekoja/expertbooking/backend/internal/domain/entities"
	"github.com/zatekoja/expertbooking/backend/internal/domain/repositories"
	"github.com/zatekoja/expertbooking/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/expertbooking/backend/pkg/errors"
)

// AppointmentAdapter implements the AppointmentRepository interface
type AppointmentAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewAppointmentAdapter creates a new appointment adapter
func NewAppointmentAdapter(client *postgres.Client) repositories.AppointmentRepository {
	return &AppointmentAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// appointmentColumns is the projection every appointment read uses, in the
// order scanAppointment expects. The DATE column is rendered as text so it
// round-trips as YYYY-MM-DD.
func appointmentColumns() []interface{} {
	return []interface{}{
		"id", "provider_id", "seeker_id", "seeker_email",
		goqu.L(`to_char("date", 'YYYY-MM-DD')`).As("date"),
		"start_time", "time_label", "medium", "payment_method",
		"status", "payment_status", "external_order_ref", "external_payment_ref",
		"amount", "currency", "cancelled_by", "created_at", "updated_at",
	}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAppointment(row rowScanner) (*entities.Appointment, error) {
	appointment := &entities.Appointment{}
	var seekerEmail, orderRef, paymentRef, cancelledBy sql.NullString

	err := row.Scan(
		&appointment.ID,
		&appointment.ProviderID,
		&appointment.SeekerID,
		&seekerEmail,
		&appointment.Date,
		&appointment.StartTime,
		&appointment.TimeLabel,
		&appointment.Medium,
		&appointment.PaymentMethod,
		&appointment.Status,
		&appointment.PaymentStatus,
		&orderRef,
		&paymentRef,
		&appointment.Amount,
		&appointment.Currency,
		&cancelledBy,
		&appointment.CreatedAt,
		&appointment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	appointment.SeekerEmail = seekerEmail.String
	appointment.ExternalOrderRef = nullableString(orderRef)
	appointment.ExternalPaymentRef = nullableString(paymentRef)
	appointment.CancelledBy = nullableString(cancelledBy)

	return appointment, nil
}

func nullableString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

// Create inserts a new appointment. The partial unique index on active
// (provider_id, date, start_time) rows makes the insert the single point where
// concurrent reservations of one slot are decided.
func (a *AppointmentAdapter) Create(ctx context.Context, appointment *entities.Appointment) error {
	record := goqu.Record{
		"id":             appointment.ID,
		"provider_id":    appointment.ProviderID,
		"seeker_id":      appointment.SeekerID,
		"seeker_email":   appointment.SeekerEmail,
		"date":           appointment.Date,
		"start_time":     appointment.StartTime,
		"time_label":     appointment.TimeLabel,
		"medium":         appointment.Medium,
		"payment_method": appointment.PaymentMethod,
		"status":         appointment.Status,
		"payment_status": appointment.PaymentStatus,
		"amount":         appointment.Amount,
		"currency":       appointment.Currency,
		"created_at":     appointment.CreatedAt,
		"updated_at":     appointment.UpdatedAt,
	}

	query, args, err := a.db.Insert("appointments").Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	_, err = a.client.DB().ExecContext(ctx, query, args...)
	if uniqueViolation(err, constraintActiveSlot) {
		return apperrors.NewConflictError(fmt.Sprintf(
			"slot %s on %s with provider %s is already booked",
			appointment.TimeLabel, appointment.Date, appointment.ProviderID,
		))
	}
	if err != nil {
		return apperrors.NewInternalError("failed to create appointment", err)
	}

	return nil
}

// GetByID retrieves an appointment by ID
func (a *AppointmentAdapter) GetByID(ctx context.Context, id string) (*entities.Appointment, error) {
	return a.getOne(ctx, goqu.Ex{"id": id}, fmt.Sprintf("appointment with id %s not found", id))
}

// GetByOrderRef retrieves an appointment by its processor order handle
func (a *AppointmentAdapter) GetByOrderRef(ctx context.Context, orderRef string) (*entities.Appointment, error) {
	return a.getOne(ctx, goqu.Ex{"external_order_ref": orderRef}, fmt.Sprintf("appointment for order %s not found", orderRef))
}

func (a *AppointmentAdapter) getOne(ctx context.Context, where goqu.Ex, notFound string) (*entities.Appointment, error) {
	query, args, err := a.db.Select(appointmentColumns()...).
		From("appointments").
		Where(where).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	appointment, err := scanAppointment(a.client.DB().QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(notFound)
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get appointment", err)
	}

	return appointment, nil
}

// ListActiveByProvider returns the provider's appointments that still hold
// their slot within [from, to]
func (a *AppointmentAdapter) ListActiveByProvider(ctx context.Context, providerID string, from, to string) ([]*entities.Appointment, error) {
	query, args, err := a.db.Select(appointmentColumns()...).
		From("appointments").
		Where(
			goqu.C("provider_id").Eq(providerID),
			goqu.C("status").Neq(entities.AppointmentStatusCancelled),
			goqu.C("date").Between(exp.NewRangeVal(from, to)),
		).
		Order(goqu.C("date").Asc(), goqu.C("start_time").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	return a.queryMany(ctx, query, args)
}

// ListStalePending returns unpaid PENDING appointments created before cutoff
func (a *AppointmentAdapter) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]*entities.Appointment, error) {
	query, args, err := a.db.Select(appointmentColumns()...).
		From("appointments").
		Where(
			goqu.C("status").Eq(entities.AppointmentStatusPending),
			goqu.C("payment_status").Neq(entities.PaymentStatusPaid),
			goqu.C("created_at").Lt(cutoff),
		).
		Order(goqu.C("created_at").Asc()).
		Limit(uint(limit)).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	return a.queryMany(ctx, query, args)
}

func (a *AppointmentAdapter) queryMany(ctx context.Context, query string, args []interface{}) ([]*entities.Appointment, error) {
	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list appointments", err)
	}
	defer rows.Close()

	var appointments []*entities.Appointment
	for rows.Next() {
		appointment, err := scanAppointment(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan appointment", err)
		}
		appointments = append(appointments, appointment)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("error iterating appointments", err)
	}

	return appointments, nil
}

// Cancel moves an active appointment to CANCELLED. The status predicate in
// the UPDATE makes repeated cancels return the stored row untouched.
func (a *AppointmentAdapter) Cancel(ctx context.Context, id string, cancelledBy string) (*entities.Appointment, error) {
	query, args, err := a.db.Update("appointments").
		Set(goqu.Record{
			"status":       entities.AppointmentStatusCancelled,
			"cancelled_by": cancelledBy,
			"updated_at":   time.Now().UTC(),
		}).
		Where(
			goqu.C("id").Eq(id),
			goqu.C("status").Neq(entities.AppointmentStatusCancelled),
		).
		Returning(appointmentColumns()...).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build update query", err)
	}

	appointment, err := scanAppointment(a.client.DB().QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		// Either missing or already cancelled
		return a.GetByID(ctx, id)
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to cancel appointment", err)
	}

	return appointment, nil
}

// AttachOrderRef stores orderRef when the appointment has none yet and
// returns whichever handle is persisted afterwards
func (a *AppointmentAdapter) AttachOrderRef(ctx context.Context, id string, orderRef string) (string, error) {
	query, args, err := a.db.Update("appointments").
		Set(goqu.Record{
			"external_order_ref": orderRef,
			"updated_at":         time.Now().UTC(),
		}).
		Where(
			goqu.C("id").Eq(id),
			goqu.C("external_order_ref").IsNull(),
		).
		ToSQL()
	if err != nil {
		return "", apperrors.NewInternalError("failed to build update query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return "", apperrors.NewInternalError("failed to attach order reference", err)
	}

	appointment, err := a.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	if appointment.ExternalOrderRef == nil {
		return "", apperrors.NewInternalError("order reference was not persisted", nil)
	}

	return *appointment.ExternalOrderRef, nil
}

// MarkPaymentFailed flags an unpaid PENDING appointment's payment as FAILED.
// Paid or cancelled appointments are returned unchanged.
func (a *AppointmentAdapter) MarkPaymentFailed(ctx context.Context, orderRef string) (*entities.Appointment, bool, error) {
	query, args, err := a.db.Update("appointments").
		Set(goqu.Record{
			"payment_status": entities.PaymentStatusFailed,
			"updated_at":     time.Now().UTC(),
		}).
		Where(
			goqu.C("external_order_ref").Eq(orderRef),
			goqu.C("status").Eq(entities.AppointmentStatusPending),
			goqu.C("payment_status").Eq(entities.PaymentStatusPending),
		).
		Returning(appointmentColumns()...).
		ToSQL()
	if err != nil {
		return nil, false, apperrors.NewInternalError("failed to build update query", err)
	}

	appointment, err := scanAppointment(a.client.DB().QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		current, err := a.GetByOrderRef(ctx, orderRef)
		return current, false, err
	}
	if err != nil {
		return nil, false, apperrors.NewInternalError("failed to mark payment failed", err)
	}

	return appointment, true, nil
}

// ExpireUnpaid implements AppointmentRepository
func (a *AppointmentAdapter) ExpireUnpaid(ctx context.Context, id string) (*entities.Appointment, bool, error) {
	query, args, err := a.db.Update("appointments").
		Set(goqu.Record{
			"status":       entities.AppointmentStatusCancelled,
			"cancelled_by": entities.CancelledBySystem,
			"updated_at":   time.Now().UTC(),
		}).
		Where(
			goqu.C("id").Eq(id),
			goqu.C("status").Eq(entities.AppointmentStatusPending),
			goqu.C("payment_status").Neq(entities.PaymentStatusPaid),
		).
		Returning(appointmentColumns()...).
		ToSQL()
	if err != nil {
		return nil, false, apperrors.NewInternalError("failed to build update query", err)
	}

	appointment, err := scanAppointment(a.client.DB().QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, apperrors.NewInternalError("failed to expire appointment", err)
	}

	return appointment, true, nil
}
