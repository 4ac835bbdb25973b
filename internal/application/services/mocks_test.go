package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/zatekoja/expertbooking/backend/internal/domain/entities"
	"github.com/zatekoja/expertbooking/backend/internal/domain/providers"
	"github.com/zatekoja/expertbooking/backend/internal/domain/repositories"
	apperrors "github.com/zatekoja/expertbooking/backend/pkg/errors"
)

// Mocks

type MockAppointmentRepository struct {
	mock.Mock
}

func (m *MockAppointmentRepository) Create(ctx context.Context, appointment *entities.Appointment) error {
	args := m.Called(ctx, appointment)
	return args.Error(0)
}

func (m *MockAppointmentRepository) GetByID(ctx context.Context, id string) (*entities.Appointment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Appointment), args.Error(1)
}

func (m *MockAppointmentRepository) GetByOrderRef(ctx context.Context, orderRef string) (*entities.Appointment, error) {
	args := m.Called(ctx, orderRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Appointment), args.Error(1)
}

func (m *MockAppointmentRepository) ListActiveByProvider(ctx context.Context, providerID string, from, to string) ([]*entities.Appointment, error) {
	args := m.Called(ctx, providerID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Appointment), args.Error(1)
}

func (m *MockAppointmentRepository) Cancel(ctx context.Context, id string, cancelledBy string) (*entities.Appointment, error) {
	args := m.Called(ctx, id, cancelledBy)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Appointment), args.Error(1)
}

func (m *MockAppointmentRepository) AttachOrderRef(ctx context.Context, id string, orderRef string) (string, error) {
	args := m.Called(ctx, id, orderRef)
	return args.String(0), args.Error(1)
}

func (m *MockAppointmentRepository) MarkPaymentFailed(ctx context.Context, orderRef string) (*entities.Appointment, bool, error) {
	args := m.Called(ctx, orderRef)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*entities.Appointment), args.Bool(1), args.Error(2)
}

func (m *MockAppointmentRepository) ExpireUnpaid(ctx context.Context, id string) (*entities.Appointment, bool, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*entities.Appointment), args.Bool(1), args.Error(2)
}

func (m *MockAppointmentRepository) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]*entities.Appointment, error) {
	args := m.Called(ctx, cutoff, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Appointment), args.Error(1)
}

type MockProviderRepository struct {
	mock.Mock
}

func (m *MockProviderRepository) GetByID(ctx context.Context, id string) (*entities.Provider, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Provider), args.Error(1)
}

func (m *MockProviderRepository) GetByUserID(ctx context.Context, userID string) (*entities.Provider, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Provider), args.Error(1)
}

func (m *MockProviderRepository) UpdateAvailability(ctx context.Context, id string, rule entities.AvailabilityRule) error {
	args := m.Called(ctx, id, rule)
	return args.Error(0)
}

type MockSettlementRepository struct {
	mock.Mock
}

func (m *MockSettlementRepository) CaptureAndCredit(ctx context.Context, cmd entities.CaptureCommand) (*entities.CaptureResult, error) {
	args := m.Called(ctx, cmd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.CaptureResult), args.Error(1)
}

type MockWebhookEventRepository struct {
	mock.Mock
}

func (m *MockWebhookEventRepository) IsProcessed(ctx context.Context, provider, eventID string) (bool, error) {
	args := m.Called(ctx, provider, eventID)
	return args.Bool(0), args.Error(1)
}

func (m *MockWebhookEventRepository) Store(ctx context.Context, event *entities.WebhookEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockWebhookEventRepository) MarkProcessed(ctx context.Context, provider, eventID string) error {
	args := m.Called(ctx, provider, eventID)
	return args.Error(0)
}

func (m *MockWebhookEventRepository) MarkFailed(ctx context.Context, provider, eventID string, cause error) error {
	args := m.Called(ctx, provider, eventID, cause)
	return args.Error(0)
}

func (m *MockWebhookEventRepository) MarkRejected(ctx context.Context, provider, eventID string, cause error) error {
	args := m.Called(ctx, provider, eventID, cause)
	return args.Error(0)
}

type MockPaymentProcessor struct {
	mock.Mock
}

func (m *MockPaymentProcessor) CreateOrder(ctx context.Context, req providers.CreateOrderRequest) (*entities.PaymentOrder, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.PaymentOrder), args.Error(1)
}

func (m *MockPaymentProcessor) GetOrder(ctx context.Context, orderID string) (*entities.PaymentOrder, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.PaymentOrder), args.Error(1)
}

func (m *MockPaymentProcessor) ListOrderPayments(ctx context.Context, orderID string) ([]entities.ProcessorPayment, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entities.ProcessorPayment), args.Error(1)
}

type MockPayoutProcessor struct {
	mock.Mock
}

func (m *MockPayoutProcessor) InitiatePayout(ctx context.Context, req providers.PayoutRequest) (*providers.PayoutResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*providers.PayoutResult), args.Error(1)
}

type MockProposalRepository struct {
	mock.Mock
}

func (m *MockProposalRepository) Create(ctx context.Context, proposal *entities.Proposal) error {
	args := m.Called(ctx, proposal)
	return args.Error(0)
}

func (m *MockProposalRepository) GetByID(ctx context.Context, id string) (*entities.Proposal, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Proposal), args.Error(1)
}

func (m *MockProposalRepository) ListForUser(ctx context.Context, seekerID, providerID string, limit, offset int) ([]*entities.Proposal, error) {
	args := m.Called(ctx, seekerID, providerID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Proposal), args.Error(1)
}

func (m *MockProposalRepository) UpdateStatus(ctx context.Context, id string, status entities.ProposalStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

// Fakes

// recordingBroadcaster keeps every published event
type recordingBroadcaster struct {
	mu     sync.Mutex
	events []publishedEvent
}

type publishedEvent struct {
	Name    string
	Payload interface{}
	Room    string
}

func (b *recordingBroadcaster) Publish(_ context.Context, event string, payload interface{}, room string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, publishedEvent{Name: event, Payload: payload, Room: room})
}

func (b *recordingBroadcaster) names() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := make([]string, 0, len(b.events))
	for _, e := range b.events {
		names = append(names, e.Name)
	}
	return names
}

// recordingDispatcher keeps every sent message and reports deliver
type recordingDispatcher struct {
	mu      sync.Mutex
	deliver bool
	sent    []sentMessage
}

type sentMessage struct {
	To      string
	Subject string
	HTML    string
}

func (d *recordingDispatcher) Send(_ context.Context, to, subject, html string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, sentMessage{To: to, Subject: subject, HTML: html})
	return d.deliver
}

func (d *recordingDispatcher) messages() []sentMessage {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]sentMessage(nil), d.sent...)
}

// memoryAppointmentStore enforces the active-slot uniqueness atomically, the
// way the partial unique index does
type memoryAppointmentStore struct {
	MockAppointmentRepository
	mu    sync.Mutex
	byID  map[string]*entities.Appointment
	slots map[string]string
}

func newMemoryAppointmentStore() *memoryAppointmentStore {
	return &memoryAppointmentStore{
		byID:  make(map[string]*entities.Appointment),
		slots: make(map[string]string),
	}
}

func slotKey(a *entities.Appointment) string {
	return a.ProviderID + "|" + a.Date + "|" + a.StartTime
}

func (s *memoryAppointmentStore) Create(_ context.Context, appointment *entities.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := slotKey(appointment)
	if _, taken := s.slots[key]; taken {
		return apperrors.NewConflictError(fmt.Sprintf("slot %s is already booked", key))
	}
	copied := *appointment
	s.byID[appointment.ID] = &copied
	s.slots[key] = appointment.ID
	return nil
}

func (s *memoryAppointmentStore) GetByID(_ context.Context, id string) (*entities.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("appointment not found")
	}
	copied := *a
	return &copied, nil
}

func (s *memoryAppointmentStore) ListActiveByProvider(_ context.Context, providerID string, from, to string) ([]*entities.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*entities.Appointment
	for _, a := range s.byID {
		if a.ProviderID == providerID && a.Status.IsActive() && a.Date >= from && a.Date <= to {
			copied := *a
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *memoryAppointmentStore) Cancel(_ context.Context, id string, cancelledBy string) (*entities.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("appointment not found")
	}
	if a.Status != entities.AppointmentStatusCancelled {
		a.Status = entities.AppointmentStatusCancelled
		a.CancelledBy = &cancelledBy
		delete(s.slots, slotKey(a))
	}
	copied := *a
	return &copied, nil
}

func (s *memoryAppointmentStore) active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.slots)
}

// memoryCache is a map-backed CacheProvider
type memoryCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	deleted []string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: make(map[string][]byte)}
}

func (c *memoryCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return nil, providers.ErrCacheMiss
	}
	return v, nil
}

func (c *memoryCache) Set(_ context.Context, key string, value []byte, _ int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *memoryCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
		c.deleted = append(c.deleted, k)
	}
	return nil
}

var _ repositories.AppointmentRepository = (*memoryAppointmentStore)(nil)

// nextWeekday returns the first date strictly after from that falls on day
func nextWeekday(from time.Time, day time.Weekday) time.Time {
	d := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location()).AddDate(0, 0, 1)
	for d.Weekday() != day {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

func testProvider() *entities.Provider {
	return &entities.Provider{
		ID:            "prov-1",
		UserID:        "user-prov",
		Name:          "Dr. Rao",
		Email:         "rao@example.com",
		IsAvailable:   true,
		AvailableDays: []string{"MONDAY", "WEDNESDAY"},
		TimeSlots:     []string{"09:00-10:00"},
		SessionFee:    50000,
		Currency:      "INR",
		Timezone:      "UTC",
	}
}
