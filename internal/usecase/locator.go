package usecase

import (
	"strings"
	"time"

	"premium-order-sync/internal/domain/model"
)

const (
	defaultName         = "N/A"
	defaultCurrency     = "INR"
	defaultCustomerPlan = "N/A"
)

// LocatePendingOrders selects the pending local orders worth reconciling.
// A user qualifies when it is not premium, holds no completed order, has no
// active plan and its name matches none of excludeNames (demo/test accounts).
// Users keep input order; each user's orders are ordered by creation time.
func LocatePendingOrders(users []*model.User, excludeNames []string, now time.Time) []model.PendingOrder {
	out := []model.PendingOrder{}
	for _, u := range users {
		if u.IsZero() || excludedName(u.Name, excludeNames) {
			continue
		}
		if u.IsPremium || u.HasCompletedOrder() || u.HasActiveEntitlement(now) {
			continue
		}
		for _, r := range u.PendingOrders() {
			out = append(out, pendingOrderOf(u, r))
		}
	}
	return out
}

func pendingOrderOf(u *model.User, r *model.LocalOrderRecord) model.PendingOrder {
	name := u.Name
	if name == "" {
		name = defaultName
	}
	currency := r.Currency
	if currency == "" {
		currency = defaultCurrency
	}
	plan := r.CustomerPlan()
	if plan == "" {
		plan = defaultCustomerPlan
	}
	return model.PendingOrder{
		OrderID:      r.OrderID,
		UserID:       u.ID,
		Name:         name,
		Phone:        u.Phone,
		Amount:       r.Amount,
		Currency:     currency,
		CustomerPlan: plan,
		CreatedAt:    r.CreatedAt,
	}
}

func excludedName(name string, patterns []string) bool {
	for _, p := range patterns {
		if p != "" && strings.Contains(name, p) {
			return true
		}
	}
	return false
}
