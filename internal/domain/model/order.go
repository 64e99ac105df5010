package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// OrderStatus is the gateway-side state of an order.
type OrderStatus string

const (
	OrderStatusCreated   OrderStatus = "created"
	OrderStatusAttempted OrderStatus = "attempted"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusFailed    OrderStatus = "failed"
)

// IsOpen reports whether the gateway may still move the order forward.
func (s OrderStatus) IsOpen() bool {
	return s == OrderStatusCreated || s == OrderStatusAttempted
}

// Activates reports whether the status drives the entitlement activator.
func (s OrderStatus) Activates() bool {
	return s == OrderStatusPaid || s == OrderStatusCancelled
}

// LocalPaymentStatus is the status mirrored on the user's order history.
type LocalPaymentStatus string

const (
	LocalStatusPending   LocalPaymentStatus = "pending"
	LocalStatusCompleted LocalPaymentStatus = "completed"
	LocalStatusCancelled LocalPaymentStatus = "cancelled"
	LocalStatusFailed    LocalPaymentStatus = "failed"
)

// LocalStatusFor maps a gateway status onto the local vocabulary.
// paid becomes completed, open statuses stay pending, anything else is mirrored verbatim.
func LocalStatusFor(s OrderStatus) LocalPaymentStatus {
	switch {
	case s == OrderStatusPaid:
		return LocalStatusCompleted
	case s.IsOpen():
		return LocalStatusPending
	default:
		return LocalPaymentStatus(s)
	}
}

// StatusDiverges reports whether the gateway has moved past what the local record shows.
func StatusDiverges(local LocalPaymentStatus, remote OrderStatus) bool {
	if local == "" {
		return false
	}
	return LocalStatusFor(remote) != local
}

// Well-known note keys written at checkout.
const (
	NoteUserPhone    = "userPhone"
	NoteCustomerPlan = "customerPlan"
	NotePlanTitle    = "planTitle"
	NotePlanDetails  = "planDetails"
)

// OrderNotes is the free-form key/value map attached to an order.
// The gateway encodes an empty map as [], so decoding accepts both shapes.
type OrderNotes map[string]string

func (n *OrderNotes) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*n = nil
		return nil
	}
	if b[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(b, &items); err != nil {
			return fmt.Errorf("notes: %w", err)
		}
		if len(items) > 0 {
			return fmt.Errorf("notes: expected object, got non-empty array")
		}
		*n = OrderNotes{}
		return nil
	}
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("notes: %w", err)
	}
	out := make(OrderNotes, len(raw))
	for k, v := range raw {
		switch t := v.(type) {
		case nil:
			continue
		case string:
			out[k] = t
		case float64:
			out[k] = strconv.FormatFloat(t, 'f', -1, 64)
		case bool:
			out[k] = strconv.FormatBool(t)
		default:
			enc, err := json.Marshal(t)
			if err != nil {
				return fmt.Errorf("notes[%s]: %w", k, err)
			}
			out[k] = string(enc)
		}
	}
	*n = out
	return nil
}

func (n OrderNotes) UserPhone() string    { return n[NoteUserPhone] }
func (n OrderNotes) CustomerPlan() string { return n[NoteCustomerPlan] }
func (n OrderNotes) PlanTitle() string    { return n[NotePlanTitle] }
func (n OrderNotes) PlanDetails() string  { return n[NotePlanDetails] }

// Clone returns an independent copy.
func (n OrderNotes) Clone() OrderNotes {
	if n == nil {
		return nil
	}
	out := make(OrderNotes, len(n))
	for k, v := range n {
		out[k] = v
	}
	return out
}

// GatewayOrder is the provider's record of a checkout. Amounts are minor units.
type GatewayOrder struct {
	ID         string      `json:"id"`
	Status     OrderStatus `json:"status"`
	Amount     int64       `json:"amount"`
	AmountPaid int64       `json:"amount_paid"`
	AmountDue  int64       `json:"amount_due"`
	Currency   string      `json:"currency"`
	Receipt    string      `json:"receipt,omitempty"`
	Attempts   int         `json:"attempts"`
	Notes      OrderNotes  `json:"notes,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
}

// GatewayPayment is a single capture attempt made against an order.
type GatewayPayment struct {
	ID               string    `json:"id"`
	OrderID          string    `json:"order_id"`
	Status           string    `json:"status"`
	Amount           int64     `json:"amount"`
	Currency         string    `json:"currency"`
	Method           string    `json:"method"`
	ErrorCode        string    `json:"error_code,omitempty"`
	ErrorDescription string    `json:"error_description,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// OrderFilter narrows a gateway listing. Status is applied after the fetch.
type OrderFilter struct {
	Count  int
	Skip   int
	From   *time.Time
	To     *time.Time
	Status OrderStatus
}

// OrderPage is one page of a gateway listing.
type OrderPage struct {
	Orders []*GatewayOrder
	Count  int
}

// LocalOrderRecord is the platform's embedded copy of a gateway order.
type LocalOrderRecord struct {
	OrderID       string             `json:"orderId"`
	Amount        int64              `json:"amount"`
	AmountPaid    int64              `json:"amountPaid,omitempty"`
	Currency      string             `json:"currency"`
	PaymentStatus LocalPaymentStatus `json:"paymentStatus"`
	Receipt       string             `json:"receipt,omitempty"`
	Attempts      int                `json:"attempts,omitempty"`
	Notes         OrderNotes         `json:"notes,omitempty"`
	CreatedAt     time.Time          `json:"createdAt"`
	UpdatedAt     time.Time          `json:"updatedAt"`
}

// NewLocalOrderRecord starts tracking a gateway order that had no local record.
func NewLocalOrderRecord(o *GatewayOrder, now time.Time) *LocalOrderRecord {
	created := o.CreatedAt
	if created.IsZero() {
		created = now
	}
	return &LocalOrderRecord{
		OrderID:       o.ID,
		Amount:        o.Amount,
		Currency:      o.Currency,
		PaymentStatus: LocalStatusPending,
		Receipt:       o.Receipt,
		Notes:         o.Notes.Clone(),
		CreatedAt:     created,
		UpdatedAt:     now,
	}
}

func (r *LocalOrderRecord) IsPending() bool { return r.PaymentStatus == LocalStatusPending }

func (r *LocalOrderRecord) CustomerPlan() string { return r.Notes.CustomerPlan() }

// ApplyGateway moves a pending record to the status the gateway reports.
func (r *LocalOrderRecord) ApplyGateway(o *GatewayOrder, now time.Time) {
	r.PaymentStatus = LocalStatusFor(o.Status)
	r.Attempts = o.Attempts
	r.AmountPaid = o.AmountPaid
	if r.Currency == "" {
		r.Currency = o.Currency
	}
	r.UpdatedAt = now
}
