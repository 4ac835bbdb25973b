package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/zatekoja/expertbooking/backend/internal/domain/entities"
)

type recordingDriver struct {
	ids []string
	err error
}

func (d *recordingDriver) Process(_ context.Context, id string) error {
	d.ids = append(d.ids, id)
	return d.err
}

type reconcileFixture struct {
	appointments *MockAppointmentRepository
	processor    *MockPaymentProcessor
	settlement   *MockSettlementRepository
	ledger       *memoryLedger
	driver       *recordingDriver
	broadcaster  *recordingBroadcaster
	svc          *ReconciliationService
}

func newReconcileFixture() *reconcileFixture {
	f := &reconcileFixture{
		appointments: new(MockAppointmentRepository),
		processor:    new(MockPaymentProcessor),
		settlement:   new(MockSettlementRepository),
		ledger:       newMemoryLedger(),
		driver:       &recordingDriver{},
		broadcaster:  &recordingBroadcaster{},
	}
	providerRepo := new(MockProviderRepository)
	providerRepo.On("GetByID", mock.Anything, "prov-1").Return(testProvider(), nil)

	payments := NewPaymentService(f.appointments, providerRepo, f.settlement, new(MockWebhookEventRepository),
		f.processor, nil, f.broadcaster, nil, PaymentConfig{})
	f.svc = NewReconciliationService(f.appointments, providerRepo, f.ledger, f.processor, payments, f.driver,
		nil, nil, f.broadcaster, 30*time.Minute)
	f.svc.now = func() time.Time { return bookingNow }
	return f
}

func staleWithOrder(orderRef string) *entities.Appointment {
	appointment := pendingAppointment()
	if orderRef != "" {
		appointment.ExternalOrderRef = &orderRef
	}
	return appointment
}

func TestReconciliationService_Sweep(t *testing.T) {
	ctx := context.Background()
	cutoff := bookingNow.Add(-30 * time.Minute)

	t.Run("unpaid appointment without order expires", func(t *testing.T) {
		f := newReconcileFixture()
		f.appointments.On("ListStalePending", mock.Anything, cutoff, reconcileBatchSize).
			Return([]*entities.Appointment{staleWithOrder("")}, nil)
		expired := staleWithOrder("")
		expired.Status = entities.AppointmentStatusCancelled
		f.appointments.On("ExpireUnpaid", mock.Anything, "appt-1").Return(expired, true, nil)

		result := f.svc.Sweep(ctx)

		assert.Equal(t, 1, result.Expired)
		assert.Contains(t, f.broadcaster.names(), entities.EventAppointmentCancelled)
	})

	t.Run("captured payment at processor is settled instead", func(t *testing.T) {
		f := newReconcileFixture()
		f.appointments.On("ListStalePending", mock.Anything, cutoff, reconcileBatchSize).
			Return([]*entities.Appointment{staleWithOrder("order_1")}, nil)
		f.processor.On("ListOrderPayments", mock.Anything, "order_1").Return([]entities.ProcessorPayment{
			{ID: "pay_0", Status: entities.ProcessorPaymentFailed},
			{ID: "pay_1", Status: entities.ProcessorPaymentCaptured, Amount: 50000},
		}, nil)
		f.settlement.On("CaptureAndCredit", mock.Anything, entities.CaptureCommand{
			OrderRef: "order_1", PaymentRef: "pay_1", AppointmentID: "appt-1", Amount: 50000,
		}).Return(capturedResult(false), nil)

		result := f.svc.Sweep(ctx)

		assert.Equal(t, 1, result.Captured)
		f.appointments.AssertNotCalled(t, "ExpireUnpaid", mock.Anything, mock.Anything)
	})

	t.Run("payment in flight is left alone", func(t *testing.T) {
		f := newReconcileFixture()
		f.appointments.On("ListStalePending", mock.Anything, cutoff, reconcileBatchSize).
			Return([]*entities.Appointment{staleWithOrder("order_1")}, nil)
		f.processor.On("ListOrderPayments", mock.Anything, "order_1").Return([]entities.ProcessorPayment{
			{ID: "pay_1", Status: entities.ProcessorPaymentAuthorized},
		}, nil)

		result := f.svc.Sweep(ctx)

		assert.Equal(t, 1, result.Skipped)
		f.appointments.AssertNotCalled(t, "ExpireUnpaid", mock.Anything, mock.Anything)
	})

	t.Run("processor unreachable keeps the appointment", func(t *testing.T) {
		f := newReconcileFixture()
		f.appointments.On("ListStalePending", mock.Anything, cutoff, reconcileBatchSize).
			Return([]*entities.Appointment{staleWithOrder("order_1")}, nil)
		f.processor.On("ListOrderPayments", mock.Anything, "order_1").Return(nil, errors.New("dial tcp: connection refused"))

		result := f.svc.Sweep(ctx)

		assert.Equal(t, 1, result.Errors)
		f.appointments.AssertNotCalled(t, "ExpireUnpaid", mock.Anything, mock.Anything)
	})

	t.Run("appointment paid meanwhile is skipped", func(t *testing.T) {
		f := newReconcileFixture()
		f.appointments.On("ListStalePending", mock.Anything, cutoff, reconcileBatchSize).
			Return([]*entities.Appointment{staleWithOrder("")}, nil)
		f.appointments.On("ExpireUnpaid", mock.Anything, "appt-1").Return(nil, false, nil)

		result := f.svc.Sweep(ctx)

		assert.Equal(t, 1, result.Skipped)
		assert.Empty(t, f.broadcaster.names())
	})

	t.Run("stale payouts are re-driven", func(t *testing.T) {
		f := newReconcileFixture()
		wallet, _ := f.ledger.GetOrCreate(ctx, "prov-1", "INR")
		_, _ = f.ledger.Credit(ctx, wallet.ID, 1000, "appt-1")
		_ = f.ledger.SetPayoutDestination(ctx, "prov-1", "fa_123456")
		payout, _ := f.ledger.ReservePayout(ctx, "prov-1", 500)
		f.svc.now = func() time.Time { return time.Now().Add(time.Hour) }
		f.appointments.On("ListStalePending", mock.Anything, mock.Anything, reconcileBatchSize).Return([]*entities.Appointment{}, nil)

		result := f.svc.Sweep(ctx)

		assert.Equal(t, 1, result.PayoutsRetried)
		assert.Equal(t, []string{payout.ID}, f.driver.ids)
	})
}
