package model

import (
	"sort"
	"time"
)

// User is the document the platform keeps per customer. Orders is keyed by order id,
// so a user can never hold two records for the same order.
type User struct {
	ID             string                       `json:"id"`
	Name           string                       `json:"name"`
	Phone          string                       `json:"phone"`
	CurrentOrderID string                       `json:"currentOrderId,omitempty"`
	Orders         map[string]*LocalOrderRecord `json:"orders"`
	IsPremium      bool                         `json:"isPremium"`
	PremiumPlan    *Entitlement                 `json:"premiumPlan,omitempty"`
	CreatedAt      time.Time                    `json:"createdAt"`
	UpdatedAt      time.Time                    `json:"updatedAt"`
	Version        int64                        `json:"version"`
}

func (u *User) IsZero() bool { return u == nil || u.ID == "" }
func (u *User) Touch(now time.Time) { u.UpdatedAt = now }

// Order returns the local record for id.
func (u *User) Order(id string) (*LocalOrderRecord, bool) {
	if u.Orders == nil {
		return nil, false
	}
	r, ok := u.Orders[id]
	return r, ok
}

// PutOrder inserts or replaces the record for r.OrderID.
func (u *User) PutOrder(r *LocalOrderRecord) {
	if u.Orders == nil {
		u.Orders = make(map[string]*LocalOrderRecord)
	}
	u.Orders[r.OrderID] = r
}

// OwnsOrder reports order-id membership, falling back to the current order pointer.
func (u *User) OwnsOrder(id string) bool {
	if _, ok := u.Order(id); ok {
		return true
	}
	return u.CurrentOrderID != "" && u.CurrentOrderID == id
}

func (u *User) HasCompletedOrder() bool {
	for _, r := range u.Orders {
		if r.PaymentStatus == LocalStatusCompleted {
			return true
		}
	}
	return false
}

// HasActiveEntitlement reports a settled plan that has not expired at now.
func (u *User) HasActiveEntitlement(now time.Time) bool {
	p := u.PremiumPlan
	if p == nil || p.IsPaymentPending || p.PurchasedDate == nil {
		return false
	}
	return p.ExpiryDate.IsZero() || p.ExpiryDate.After(now)
}

// SortedOrders returns records ordered by creation time, then order id.
func (u *User) SortedOrders() []*LocalOrderRecord {
	out := make([]*LocalOrderRecord, 0, len(u.Orders))
	for _, r := range u.Orders {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].OrderID < out[j].OrderID
	})
	return out
}

// PendingOrders returns the pending subset of SortedOrders.
func (u *User) PendingOrders() []*LocalOrderRecord {
	var out []*LocalOrderRecord
	for _, r := range u.SortedOrders() {
		if r.IsPending() {
			out = append(out, r)
		}
	}
	return out
}

// OrderIDs returns every tracked order id in sorted order.
func (u *User) OrderIDs() []string {
	ids := make([]string, 0, len(u.Orders))
	for id := range u.Orders {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// PendingOrderIDs returns the ids of pending records in sorted order.
func (u *User) PendingOrderIDs() []string {
	var ids []string
	for id, r := range u.Orders {
		if r.IsPending() {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// GrantEntitlement installs plan as the user's premium plan for orderID.
func (u *User) GrantEntitlement(plan *Entitlement, orderID string) {
	u.PremiumPlan = plan
	u.IsPremium = true
	u.CurrentOrderID = orderID
}
