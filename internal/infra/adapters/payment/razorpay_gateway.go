// File: internal/infra/adapters/payment/razorpay_gateway.go
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"premium-order-sync/internal/domain"
	"premium-order-sync/internal/domain/model"
	"premium-order-sync/internal/domain/ports/adapter"
	"premium-order-sync/internal/infra/metrics"
)

var _ adapter.PaymentGateway = (*RazorpayGateway)(nil)

const (
	defaultRazorpayBaseURL = "https://api.razorpay.com/v1"
	defaultRazorpayTimeout = 15 * time.Second

	endpointFetchOrder    = "fetch_order"
	endpointFetchPayments = "fetch_payments"
	endpointListOrders    = "list_orders"
)

// RazorpayGateway implements adapter.PaymentGateway against the Razorpay
// Orders REST API using HTTP basic auth. Calls are single round trips.
type RazorpayGateway struct {
	keyID     string
	keySecret string
	baseURL   string
	client    *http.Client
}

// NewRazorpayGateway fails with domain.ErrConfiguration when either credential is empty.
func NewRazorpayGateway(keyID, keySecret, baseURL string, timeout time.Duration) (*RazorpayGateway, error) {
	if strings.TrimSpace(keyID) == "" || strings.TrimSpace(keySecret) == "" {
		return nil, fmt.Errorf("%w: razorpay key id and secret are required", domain.ErrConfiguration)
	}
	if baseURL == "" {
		baseURL = defaultRazorpayBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("%w: invalid razorpay base url: %v", domain.ErrConfiguration, err)
	}
	if timeout <= 0 {
		timeout = defaultRazorpayTimeout
	}
	return &RazorpayGateway{
		keyID:     keyID,
		keySecret: keySecret,
		baseURL:   strings.TrimRight(baseURL, "/"),
		client:    &http.Client{Timeout: timeout},
	}, nil
}

func (g *RazorpayGateway) Name() string { return "razorpay" }

// FetchOrder calls GET /orders/{id}.
func (g *RazorpayGateway) FetchOrder(ctx context.Context, orderID string) (*model.GatewayOrder, error) {
	var out razorpayOrder
	if err := g.get(ctx, endpointFetchOrder, "/orders/"+url.PathEscape(orderID), nil, &out); err != nil {
		return nil, fmt.Errorf("razorpay: fetch order %s: %w", orderID, err)
	}
	return out.toModel(), nil
}

// FetchOrderPayments calls GET /orders/{id}/payments.
func (g *RazorpayGateway) FetchOrderPayments(ctx context.Context, orderID string) ([]*model.GatewayPayment, error) {
	var out razorpayCollection[razorpayPayment]
	if err := g.get(ctx, endpointFetchPayments, "/orders/"+url.PathEscape(orderID)+"/payments", nil, &out); err != nil {
		return nil, fmt.Errorf("razorpay: fetch payments for %s: %w", orderID, err)
	}
	payments := make([]*model.GatewayPayment, 0, len(out.Items))
	for i := range out.Items {
		payments = append(payments, out.Items[i].toModel())
	}
	return payments, nil
}

// ListOrders calls GET /orders with count, skip, from and to.
func (g *RazorpayGateway) ListOrders(ctx context.Context, f model.OrderFilter) (*model.OrderPage, error) {
	q := url.Values{}
	if f.Count > 0 {
		q.Set("count", strconv.Itoa(f.Count))
	}
	if f.Skip > 0 {
		q.Set("skip", strconv.Itoa(f.Skip))
	}
	if f.From != nil {
		q.Set("from", strconv.FormatInt(f.From.Unix(), 10))
	}
	if f.To != nil {
		q.Set("to", strconv.FormatInt(f.To.Unix(), 10))
	}
	var out razorpayCollection[razorpayOrder]
	if err := g.get(ctx, endpointListOrders, "/orders", q, &out); err != nil {
		return nil, fmt.Errorf("razorpay: list orders: %w", err)
	}
	page := &model.OrderPage{Orders: make([]*model.GatewayOrder, 0, len(out.Items)), Count: out.Count}
	for i := range out.Items {
		page.Orders = append(page.Orders, out.Items[i].toModel())
	}
	return page, nil
}

func (g *RazorpayGateway) get(ctx context.Context, endpoint, path string, q url.Values, dst any) (err error) {
	start := time.Now()
	defer func() {
		metrics.ObserveGatewayRequest(g.Name(), endpoint, resultLabel(err), time.Since(start))
	}()

	u := g.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("%w: build request: %v", domain.ErrGatewayRejected, err)
	}
	req.SetBasicAuth(g.keyID, g.keySecret)
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrGatewayTransient, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("%w: read body: %w", domain.ErrGatewayTransient, err)
	}
	if resp.StatusCode/100 != 2 {
		return classifyHTTPError(resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("%w: decode response: %v", domain.ErrGatewayTransient, err)
	}
	return nil
}

// GatewayError carries the provider's own error code and description.
type GatewayError struct {
	StatusCode  int
	Code        string
	Description string
	kind        error
}

func (e *GatewayError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("http %d", e.StatusCode)
	}
	return fmt.Sprintf("http %d: %s: %s", e.StatusCode, e.Code, e.Description)
}

func (e *GatewayError) Unwrap() error { return e.kind }

func classifyHTTPError(status int, body []byte) error {
	var env struct {
		Error struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	}
	_ = json.Unmarshal(body, &env)
	ge := &GatewayError{StatusCode: status, Code: env.Error.Code, Description: env.Error.Description}

	desc := strings.ToLower(env.Error.Description)
	switch {
	case status == http.StatusNotFound:
		ge.kind = domain.ErrGatewayNotFound
	case status == http.StatusBadRequest && (strings.Contains(desc, "does not exist") || strings.Contains(desc, "invalid")):
		// unknown ids come back as 400 BAD_REQUEST_ERROR
		ge.kind = domain.ErrGatewayNotFound
	case status == http.StatusTooManyRequests || status >= 500:
		ge.kind = domain.ErrGatewayTransient
	default:
		ge.kind = domain.ErrGatewayRejected
	}
	return ge
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrGatewayNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrGatewayRejected):
		return "rejected"
	default:
		return "transient"
	}
}

// --- wire types ---

type razorpayCollection[T any] struct {
	Entity string `json:"entity"`
	Count  int    `json:"count"`
	Items  []T    `json:"items"`
}

type razorpayOrder struct {
	ID         string           `json:"id"`
	Amount     int64            `json:"amount"`
	AmountPaid int64            `json:"amount_paid"`
	AmountDue  int64            `json:"amount_due"`
	Currency   string           `json:"currency"`
	Receipt    *string          `json:"receipt"`
	Status     string           `json:"status"`
	Attempts   int              `json:"attempts"`
	Notes      model.OrderNotes `json:"notes"`
	CreatedAt  int64            `json:"created_at"`
}

func (o *razorpayOrder) toModel() *model.GatewayOrder {
	out := &model.GatewayOrder{
		ID:         o.ID,
		Status:     model.OrderStatus(o.Status),
		Amount:     o.Amount,
		AmountPaid: o.AmountPaid,
		AmountDue:  o.AmountDue,
		Currency:   o.Currency,
		Attempts:   o.Attempts,
		Notes:      o.Notes,
	}
	if o.Receipt != nil {
		out.Receipt = *o.Receipt
	}
	if o.CreatedAt > 0 {
		out.CreatedAt = time.Unix(o.CreatedAt, 0).UTC()
	}
	return out
}

type razorpayPayment struct {
	ID               string  `json:"id"`
	OrderID          string  `json:"order_id"`
	Status           string  `json:"status"`
	Amount           int64   `json:"amount"`
	Currency         string  `json:"currency"`
	Method           string  `json:"method"`
	ErrorCode        *string `json:"error_code"`
	ErrorDescription *string `json:"error_description"`
	CreatedAt        int64   `json:"created_at"`
}

func (p *razorpayPayment) toModel() *model.GatewayPayment {
	out := &model.GatewayPayment{
		ID:       p.ID,
		OrderID:  p.OrderID,
		Status:   p.Status,
		Amount:   p.Amount,
		Currency: p.Currency,
		Method:   p.Method,
	}
	if p.ErrorCode != nil {
		out.ErrorCode = *p.ErrorCode
	}
	if p.ErrorDescription != nil {
		out.ErrorDescription = *p.ErrorDescription
	}
	if p.CreatedAt > 0 {
		out.CreatedAt = time.Unix(p.CreatedAt, 0).UTC()
	}
	return out
}
