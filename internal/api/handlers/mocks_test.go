package handlers_test

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/zatekoja/expertbooking/backend/internal/application/services"
	"github.com/zatekoja/expertbooking/backend/internal/domain/entities"
	"github.com/zatekoja/expertbooking/backend/internal/domain/repositories"
)

type MockBookingService struct {
	mock.Mock
}

func (m *MockBookingService) Reserve(ctx context.Context, cmd services.ReserveCommand) (*entities.Appointment, error) {
	args := m.Called(ctx, cmd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Appointment), args.Error(1)
}

func (m *MockBookingService) Cancel(ctx context.Context, appointmentID, requesterID string) (*entities.Appointment, error) {
	args := m.Called(ctx, appointmentID, requesterID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Appointment), args.Error(1)
}

func (m *MockBookingService) Get(ctx context.Context, appointmentID, requesterID string) (*entities.Appointment, error) {
	args := m.Called(ctx, appointmentID, requesterID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Appointment), args.Error(1)
}

type MockAvailabilityService struct {
	mock.Mock
}

func (m *MockAvailabilityService) GetAvailableSlots(ctx context.Context, providerID, date string) ([]entities.Slot, error) {
	args := m.Called(ctx, providerID, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entities.Slot), args.Error(1)
}

func (m *MockAvailabilityService) UpdateAvailability(ctx context.Context, providerID, requesterID string, input services.AvailabilityInput) (*entities.Provider, error) {
	args := m.Called(ctx, providerID, requesterID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Provider), args.Error(1)
}

type MockPaymentService struct {
	mock.Mock
}

func (m *MockPaymentService) CreateOrder(ctx context.Context, input services.CreateOrderInput, requesterID string) (*entities.PaymentOrder, error) {
	args := m.Called(ctx, input, requesterID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.PaymentOrder), args.Error(1)
}

func (m *MockPaymentService) VerifyAndCapture(ctx context.Context, input services.VerifyPaymentInput) (*entities.CaptureResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.CaptureResult), args.Error(1)
}

func (m *MockPaymentService) HandleWebhook(ctx context.Context, rawBody []byte, signature, eventID string) (*services.WebhookOutcome, error) {
	args := m.Called(ctx, rawBody, signature, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.WebhookOutcome), args.Error(1)
}

type MockWalletService struct {
	mock.Mock
}

func (m *MockWalletService) SummaryForUser(ctx context.Context, userID string) (*entities.WalletSummary, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.WalletSummary), args.Error(1)
}

func (m *MockWalletService) ListTransactions(ctx context.Context, userID string, filter repositories.TransactionFilter) ([]*entities.WalletTransaction, error) {
	args := m.Called(ctx, userID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.WalletTransaction), args.Error(1)
}

func (m *MockWalletService) RequestPayout(ctx context.Context, userID string, input services.PayoutInput) (*entities.WalletTransaction, error) {
	args := m.Called(ctx, userID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.WalletTransaction), args.Error(1)
}

func (m *MockWalletService) SetPayoutDestination(ctx context.Context, userID string, input services.PayoutDestinationInput) (*entities.Wallet, error) {
	args := m.Called(ctx, userID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Wallet), args.Error(1)
}

type MockProposalService struct {
	mock.Mock
}

func (m *MockProposalService) Create(ctx context.Context, userID string, input services.ProposalInput) (*entities.Proposal, error) {
	args := m.Called(ctx, userID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Proposal), args.Error(1)
}

func (m *MockProposalService) List(ctx context.Context, userID string, limit, offset int) ([]*entities.Proposal, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Proposal), args.Error(1)
}

func (m *MockProposalService) Withdraw(ctx context.Context, proposalID, userID string) (*entities.Proposal, error) {
	args := m.Called(ctx, proposalID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Proposal), args.Error(1)
}

func (m *MockProposalService) Accept(ctx context.Context, proposalID, userID string) (*entities.Proposal, error) {
	args := m.Called(ctx, proposalID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Proposal), args.Error(1)
}
