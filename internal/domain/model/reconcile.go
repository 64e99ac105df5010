package model

import "time"

// PendingOrder is one row of the locator's work list.
type PendingOrder struct {
	OrderID      string    `json:"orderId"`
	UserID       string    `json:"userId"`
	Name         string    `json:"name"`
	Phone        string    `json:"phone"`
	Amount       int64     `json:"amount"`
	Currency     string    `json:"currency"`
	CustomerPlan string    `json:"customerPlan"`
	CreatedAt    time.Time `json:"createdAt"`
}

type PendingSummary struct {
	TotalPending int   `json:"total_pending"`
	TotalAmount  int64 `json:"total_amount"`
}

type PendingReport struct {
	Orders  []PendingOrder `json:"orders"`
	Summary PendingSummary `json:"summary"`
}

// StatusBreakdown counts gateway orders per status.
type StatusBreakdown struct {
	Created   int `json:"created"`
	Attempted int `json:"attempted"`
	Paid      int `json:"paid"`
	Cancelled int `json:"cancelled"`
	Failed    int `json:"failed"`
	Other     int `json:"other,omitempty"`
}

func (b *StatusBreakdown) Add(s OrderStatus) {
	switch s {
	case OrderStatusCreated:
		b.Created++
	case OrderStatusAttempted:
		b.Attempted++
	case OrderStatusPaid:
		b.Paid++
	case OrderStatusCancelled:
		b.Cancelled++
	case OrderStatusFailed:
		b.Failed++
	default:
		b.Other++
	}
}

// ActivationAction describes what the activator did with an order.
type ActivationAction string

const (
	ActionGranted        ActivationAction = "granted"
	ActionCancelled      ActivationAction = "cancelled"
	ActionAlreadyApplied ActivationAction = "already_applied"
	ActionSkipped        ActivationAction = "skipped"
)

// Wrote reports whether the action changed the user document.
func (a ActivationAction) Wrote() bool {
	return a == ActionGranted || a == ActionCancelled
}

type ActivationResult struct {
	OrderID        string             `json:"orderId"`
	UserID         string             `json:"userId"`
	Action         ActivationAction   `json:"action"`
	PreviousStatus LocalPaymentStatus `json:"previousStatus,omitempty"`
	NewStatus      LocalPaymentStatus `json:"newStatus"`
	Entitlement    *Entitlement       `json:"premiumPlan,omitempty"`
}

// ActivationNotice is what a notifier receives after a successful grant.
type ActivationNotice struct {
	UserID     string
	Name       string
	Phone      string
	OrderID    string
	Plan       string
	PlanTitle  string
	Amount     int64
	Currency   string
	ExpiryDate time.Time
}

// OrderOutcome is the per-order result of a successful fetch.
type OrderOutcome struct {
	Order         *GatewayOrder      `json:"order"`
	WasPaid       bool               `json:"wasPaid"`
	LocalStatus   LocalPaymentStatus `json:"localStatus,omitempty"`
	StatusChanged bool               `json:"statusChanged"`
	Activation    *ActivationResult  `json:"activation,omitempty"`
}

// Error stages inside a batch.
const (
	StageValidate = "validate"
	StageFetch    = "fetch"
	StageActivate = "activate"
)

// OrderError is an itemized per-order failure. It unwraps to the original cause.
type OrderError struct {
	OrderID string `json:"orderId"`
	Stage   string `json:"stage"`
	Kind    string `json:"kind"`
	Message string `json:"error"`

	cause error
}

func NewOrderError(orderID, stage, kind string, cause error) OrderError {
	return OrderError{OrderID: orderID, Stage: stage, Kind: kind, Message: cause.Error(), cause: cause}
}

func (e OrderError) Error() string { return e.OrderID + ": " + e.Stage + ": " + e.Message }
func (e OrderError) Unwrap() error { return e.cause }

type BatchSummary struct {
	TotalRequested     int             `json:"total_requested"`
	SuccessfulFetches  int             `json:"successful_fetches"`
	Errors             int             `json:"errors"`
	StatusBreakdown    StatusBreakdown `json:"status_breakdown"`
	ActivationsApplied int             `json:"activations_applied"`
	StatusMismatches   int             `json:"status_mismatches"`
	Deferred           int             `json:"deferred,omitempty"`
}

// BatchResult carries both the successful subset and the itemized failures.
type BatchResult struct {
	RunID   string         `json:"run_id"`
	Orders  []OrderOutcome `json:"orders"`
	Errors  []OrderError   `json:"errors"`
	Summary BatchSummary   `json:"summary"`
}

// FailedOrderIDs lists the ids an operator can resubmit.
func (r *BatchResult) FailedOrderIDs() []string {
	ids := make([]string, 0, len(r.Errors))
	seen := make(map[string]struct{}, len(r.Errors))
	for _, e := range r.Errors {
		if _, ok := seen[e.OrderID]; ok {
			continue
		}
		seen[e.OrderID] = struct{}{}
		ids = append(ids, e.OrderID)
	}
	return ids
}

// OrderListing is a filtered page of gateway orders with tallies.
type OrderListing struct {
	Orders         []*GatewayOrder `json:"orders"`
	Count          int             `json:"count"`
	TotalAvailable int             `json:"total_available"`
	Skip           int             `json:"skip"`
	HasMore        bool            `json:"has_more"`
	StatusSummary  StatusBreakdown `json:"status_summary"`
	LocalStatus    map[string]int  `json:"local_status"`
}
