package usecase

import "premium-order-sync/internal/domain/model"

// SummarizePending totals the locator output.
func SummarizePending(orders []model.PendingOrder) model.PendingSummary {
	s := model.PendingSummary{TotalPending: len(orders)}
	for _, o := range orders {
		s.TotalAmount += o.Amount
	}
	return s
}

// BreakdownStatuses counts gateway orders per status.
func BreakdownStatuses(orders []*model.GatewayOrder) model.StatusBreakdown {
	var b model.StatusBreakdown
	for _, o := range orders {
		if o != nil {
			b.Add(o.Status)
		}
	}
	return b
}

// TallyLocalStatuses counts the local status of each id across users.
// Ids with no local owner are counted under "untracked".
func TallyLocalStatuses(users []*model.User, ids []string) map[string]int {
	idx := localStatusIndex(users)
	out := make(map[string]int)
	for _, id := range ids {
		if st, ok := idx[id]; ok {
			out[string(st)]++
			continue
		}
		out["untracked"]++
	}
	return out
}

// localStatusIndex maps order id to its local status across users.
func localStatusIndex(users []*model.User) map[string]model.LocalPaymentStatus {
	idx := make(map[string]model.LocalPaymentStatus)
	for _, u := range users {
		for id, r := range u.Orders {
			idx[id] = r.PaymentStatus
		}
	}
	return idx
}
