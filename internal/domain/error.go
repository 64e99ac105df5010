package domain

import (
	"context"
	"errors"
)

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrConflict        = errors.New("concurrent update conflict")

	// Composition-time
	ErrConfiguration = errors.New("payment gateway is not configured")

	// Gateway outcomes
	ErrGatewayNotFound  = errors.New("gateway order not found")
	ErrGatewayTransient = errors.New("gateway temporarily unavailable")
	ErrGatewayRejected  = errors.New("gateway rejected the request")

	// Reconciliation outcomes
	ErrUserNotResolved = errors.New("no user owns this order")
	ErrActivation      = errors.New("entitlement activation failed")
	ErrBatchAborted    = errors.New("batch aborted before this order was processed")
	ErrSyncInProgress  = errors.New("a pending-order sync is already running")

	// Whole-call preconditions
	ErrEmptyOrderList = errors.New("at least one order id is required")
	ErrTooManyOrders  = errors.New("too many order ids in one request")
)

// Error kinds reported per order in batch results.
const (
	KindNotFound        = "not_found"
	KindTransient       = "transient"
	KindRejected        = "rejected"
	KindUserNotResolved = "user_not_resolved"
	KindActivation      = "activation"
	KindAborted         = "aborted"
	KindInvalid         = "invalid"
	KindUnknown         = "unknown"
)

// Kind maps err to a stable, low-cardinality label.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrBatchAborted):
		return KindAborted
	case errors.Is(err, ErrUserNotResolved):
		return KindUserNotResolved
	case errors.Is(err, ErrActivation), errors.Is(err, ErrConflict):
		return KindActivation
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindAborted
	case errors.Is(err, ErrGatewayNotFound):
		return KindNotFound
	case errors.Is(err, ErrGatewayTransient):
		return KindTransient
	case errors.Is(err, ErrGatewayRejected):
		return KindRejected
	case errors.Is(err, ErrInvalidArgument):
		return KindInvalid
	default:
		return KindUnknown
	}
}

// IsPrecondition reports whether err is a whole-call input violation.
func IsPrecondition(err error) bool {
	return errors.Is(err, ErrEmptyOrderList) ||
		errors.Is(err, ErrTooManyOrders) ||
		errors.Is(err, ErrInvalidArgument)
}
