package razorpay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/expertbooking/backend/internal/domain/entities"
	"github.com/zatekoja/expertbooking/backend/internal/domain/providers"
	"github.com/zatekoja/expertbooking/backend/internal/infrastructure/observability"
	"github.com/zatekoja/expertbooking/backend/pkg/config"
	"github.com/zatekoja/expertbooking/backend/pkg/retry"
	"go.opentelemetry.io/otel/attribute"
)

// Client talks to a Razorpay-compatible orders and payouts API
type Client struct {
	baseURL       string
	keyID         string
	keySecret     string
	accountNumber string
	timeout       time.Duration
	httpClient    *http.Client
	retry         retry.Config
}

// NewClient creates a processor client. Every call is bounded by the
// payment timeout, retries included.
func NewClient(payment config.PaymentConfig, payout config.PayoutConfig) *Client {
	timeout := payment.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL:       strings.TrimRight(payment.BaseURL, "/"),
		keyID:         payment.KeyID,
		keySecret:     payment.KeySecret,
		accountNumber: payout.AccountNumber,
		timeout:       timeout,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		retry: retry.ProcessorConfig(retryable),
	}
}

// APIError is a non-2xx answer from the processor
type APIError struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *APIError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("processor returned status %d: %s", e.StatusCode, e.Description)
	}
	return fmt.Sprintf("processor returned status %d", e.StatusCode)
}

// Temporary reports whether the same call may succeed later
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// retryable allows another attempt for throttling, server errors and
// connections that were never established
func retryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

type errorEnvelope struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

type orderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes"`
}

type orderResponse struct {
	ID       string            `json:"id"`
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Status   string            `json:"status"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes"`
}

func (o orderResponse) toEntity(keyID string) *entities.PaymentOrder {
	appointmentID := o.Notes["appointment_id"]
	if appointmentID == "" {
		appointmentID = o.Receipt
	}
	return &entities.PaymentOrder{
		OrderID:       o.ID,
		AppointmentID: appointmentID,
		Amount:        o.Amount,
		Currency:      o.Currency,
		KeyID:         keyID,
		Status:        o.Status,
	}
}

// CreateOrder creates an order carrying the appointment id in its notes.
// When the time bound elapses the error wraps providers.ErrOutcomeUnknown.
func (c *Client) CreateOrder(ctx context.Context, req providers.CreateOrderRequest) (*entities.PaymentOrder, error) {
	ctx, span := observability.StartSpan(ctx, "razorpay.CreateOrder")
	defer span.End()
	observability.SetSpanAttributes(span, attribute.String("appointment.id", req.AppointmentID))

	body := orderRequest{
		Amount:   req.Amount,
		Currency: req.Currency,
		Receipt:  req.AppointmentID,
		Notes:    map[string]string{"appointment_id": req.AppointmentID},
	}

	out := &orderResponse{}
	if err := c.call(ctx, "CreateOrder", http.MethodPost, "/v1/orders", body, nil, out); err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	return out.toEntity(c.keyID), nil
}

// GetOrder fetches an order
func (c *Client) GetOrder(ctx context.Context, orderID string) (*entities.PaymentOrder, error) {
	ctx, span := observability.StartSpan(ctx, "razorpay.GetOrder")
	defer span.End()

	out := &orderResponse{}
	if err := c.call(ctx, "GetOrder", http.MethodGet, "/v1/orders/"+url.PathEscape(orderID), nil, nil, out); err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	return out.toEntity(c.keyID), nil
}

// ListOrderPayments lists payment attempts made against an order
func (c *Client) ListOrderPayments(ctx context.Context, orderID string) ([]entities.ProcessorPayment, error) {
	ctx, span := observability.StartSpan(ctx, "razorpay.ListOrderPayments")
	defer span.End()

	var out struct {
		Items []entities.ProcessorPayment `json:"items"`
	}
	path := "/v1/orders/" + url.PathEscape(orderID) + "/payments"
	if err := c.call(ctx, "ListOrderPayments", http.MethodGet, path, nil, nil, &out); err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	return out.Items, nil
}

type payoutRequest struct {
	AccountNumber     string `json:"account_number"`
	FundAccountID     string `json:"fund_account_id"`
	Amount            int64  `json:"amount"`
	Currency          string `json:"currency"`
	Mode              string `json:"mode"`
	Purpose           string `json:"purpose"`
	QueueIfLowBalance bool   `json:"queue_if_low_balance"`
	ReferenceID       string `json:"reference_id"`
	Narration         string `json:"narration"`
}

type payoutResponse struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	FailureReason string `json:"failure_reason"`
	StatusDetails struct {
		Description string `json:"description"`
	} `json:"status_details"`
}

// InitiatePayout sends a payout keyed by the ledger transaction id, so
// re-sending the same transaction returns the existing payout. Refusals wrap
// providers.ErrPayoutRejected.
func (c *Client) InitiatePayout(ctx context.Context, req providers.PayoutRequest) (*providers.PayoutResult, error) {
	ctx, span := observability.StartSpan(ctx, "razorpay.InitiatePayout")
	defer span.End()
	observability.SetSpanAttributes(span, attribute.String("wallet.transaction_id", req.TransactionID))

	body := payoutRequest{
		AccountNumber:     c.accountNumber,
		FundAccountID:     req.Destination,
		Amount:            req.Amount,
		Currency:          req.Currency,
		Mode:              "IMPS",
		Purpose:           "payout",
		QueueIfLowBalance: true,
		ReferenceID:       req.TransactionID,
		Narration:         "Expert session earnings",
	}
	headers := map[string]string{"X-Payout-Idempotency": req.TransactionID}

	out := &payoutResponse{}
	err := c.call(ctx, "InitiatePayout", http.MethodPost, "/v1/payouts", body, headers, out)
	var apiErr *APIError
	if errors.As(err, &apiErr) && !apiErr.Temporary() {
		observability.RecordError(span, err)
		return nil, fmt.Errorf("%w: %s", providers.ErrPayoutRejected, apiErr.Error())
	}
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	result := &providers.PayoutResult{ExternalRef: out.ID}
	switch out.Status {
	case "processed":
		result.Status = providers.PayoutStatusProcessed
	case "reversed", "failed", "rejected", "cancelled":
		result.Status = providers.PayoutStatusFailed
		result.Reason = out.StatusDetails.Description
		if result.Reason == "" {
			result.Reason = out.FailureReason
		}
		if result.Reason == "" {
			result.Reason = "payout " + out.Status
		}
	default:
		result.Status = providers.PayoutStatusPending
	}

	return result, nil
}

// call performs one JSON request with retries inside the client's time bound
func (c *Client) call(ctx context.Context, op, method, path string, in interface{}, headers map[string]string, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var payload []byte
	if in != nil {
		var err error
		payload, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode %s request: %w", op, err)
		}
	}

	err := retry.DoWithLog(ctx, c.retry, "razorpay."+op, func() error {
		return c.doJSON(ctx, method, c.baseURL+path, payload, headers, out)
	}, func(attempt int, err error, nextDelay time.Duration) {
		log.Warn().Err(err).
			Str("operation", op).
			Int("attempt", attempt).
			Dur("next_delay", nextDelay).
			Msg("processor call failed, retrying")
	})
	if err != nil && timedOut(ctx, err) {
		return fmt.Errorf("%w: %s did not finish within %s: %v", providers.ErrOutcomeUnknown, op, c.timeout, err)
	}
	return err
}

func timedOut(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func (c *Client) doJSON(ctx context.Context, method, endpoint string, payload []byte, headers map[string]string, out interface{}) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	httpReq.SetBasicAuth(c.keyID, c.keySecret)
	httpReq.Header.Set("Accept", "application/json")
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var envelope errorEnvelope
		if raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 64<<10)); readErr == nil && json.Unmarshal(raw, &envelope) == nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Description = envelope.Error.Description
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
