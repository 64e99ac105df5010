//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"premium-order-sync/internal/domain"
	"premium-order-sync/internal/domain/model"
	"premium-order-sync/internal/domain/ports/repository"
	"premium-order-sync/internal/usecase"
)

type reconcileTestDeps struct {
	users    *MockUserRepo
	gateway  *MockPaymentGateway
	notifier *MockNotifier
	locker   *MockLocker
}

func newReconcileDeps(users ...*model.User) *reconcileTestDeps {
	return &reconcileTestDeps{
		users:    NewMockUserRepo(users...),
		gateway:  NewMockPaymentGateway(),
		notifier: &MockNotifier{},
		locker:   NewMockLocker(),
	}
}

func (d *reconcileTestDeps) uc(cfg usecase.ReconcileConfig) usecase.ReconcileUseCase {
	log := newTestLogger()
	act := usecase.NewActivationUseCase(d.users, NewMockTxManager(), &MockCache{}, d.notifier, time.Second, log)
	runner := usecase.NewBatchRunner(d.gateway, act, usecase.BatchConfig{ChunkSize: 10}, log)
	return usecase.NewReconcileUseCase(d.users, d.gateway, runner, d.locker, cfg, log)
}

func TestReconcileUseCase_SyncPending_CreatedThenPaid(t *testing.T) {
	ctx := context.Background()
	deps := newReconcileDeps(userWith("u1", "Asha", "9000000001", pendingRecord("ord_1", 49900, "Gold", fixtureTime)))
	deps.gateway.SetOrder(gatewayOrder("ord_1", model.OrderStatusCreated, "9000000001", "Gold"))
	uc := deps.uc(usecase.ReconcileConfig{})

	// First sync: gateway still says created.
	res, err := uc.SyncPending(ctx)
	if err != nil {
		t.Fatalf("first sync failed: %v", err)
	}
	if len(res.Orders) != 1 || res.Orders[0].WasPaid || res.Orders[0].StatusChanged {
		t.Fatalf("unexpected first sync result %+v", res.Orders)
	}
	if deps.users.Saves() != 0 {
		t.Fatalf("created orders must not be written, got %d saves", deps.users.Saves())
	}
	report, _ := uc.PendingOrders(ctx)
	if report.Summary.TotalPending != 1 {
		t.Fatalf("order should still be pending, got %+v", report.Summary)
	}

	// The customer pays.
	deps.gateway.SetStatus("ord_1", model.OrderStatusPaid)

	res, err = uc.SyncPending(ctx)
	if err != nil {
		t.Fatalf("second sync failed: %v", err)
	}
	if len(res.Orders) != 1 || !res.Orders[0].WasPaid {
		t.Fatalf("expected wasPaid=true, got %+v", res.Orders)
	}
	if res.Summary.ActivationsApplied != 1 || res.Summary.StatusMismatches != 1 || res.Summary.StatusBreakdown.Paid != 1 {
		t.Errorf("unexpected summary %+v", res.Summary)
	}
	u := deps.users.Get("u1")
	rec, _ := u.Order("ord_1")
	if !u.IsPremium || rec.PaymentStatus != model.LocalStatusCompleted || u.PremiumPlan.IsPaymentPending {
		t.Errorf("expected premium user with completed order, got %+v / %+v", u, rec)
	}

	// Third sync: nothing left to do.
	res, err = uc.SyncPending(ctx)
	if err != nil {
		t.Fatalf("third sync failed: %v", err)
	}
	if len(res.Orders) != 0 || len(res.Errors) != 0 {
		t.Errorf("expected an empty run, got %+v", res)
	}
	if deps.notifier.Count() != 1 {
		t.Errorf("expected exactly one notice, got %d", deps.notifier.Count())
	}
}

func TestReconcileUseCase_SyncPending_Limits(t *testing.T) {
	ctx := context.Background()
	var users []*model.User
	for i := 0; i < 7; i++ {
		id := fmt.Sprintf("ord_%d", i)
		users = append(users, userWith(fmt.Sprintf("u%d", i), "User", "1", pendingRecord(id, 100, "Gold", fixtureTime)))
	}
	deps := newReconcileDeps(users...)
	for i := 0; i < 7; i++ {
		deps.gateway.SetOrder(gatewayOrder(fmt.Sprintf("ord_%d", i), model.OrderStatusAttempted, "1", "Gold"))
	}

	res, err := deps.uc(usecase.ReconcileConfig{SyncLimit: 5}).SyncPending(ctx)
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if res.Summary.TotalRequested != 5 || res.Summary.Deferred != 2 {
		t.Errorf("expected 5 processed and 2 deferred, got %+v", res.Summary)
	}
}

func TestReconcileUseCase_SyncPending_SingleFlight(t *testing.T) {
	deps := newReconcileDeps()
	if _, err := deps.locker.TryLock(context.Background(), "lock:sync_pending_orders", time.Minute); err != nil {
		t.Fatalf("setup lock: %v", err)
	}
	_, err := deps.uc(usecase.ReconcileConfig{}).SyncPending(context.Background())
	if !errors.Is(err, domain.ErrSyncInProgress) {
		t.Fatalf("expected ErrSyncInProgress, got %v", err)
	}
}

func TestReconcileUseCase_OrderStatusIsReadOnly(t *testing.T) {
	ctx := context.Background()
	deps := newReconcileDeps(userWith("u1", "Asha", "1", pendingRecord("ord_1", 100, "Gold", fixtureTime)))
	deps.gateway.SetOrder(gatewayOrder("ord_1", model.OrderStatusPaid, "1", "Gold"))
	uc := deps.uc(usecase.ReconcileConfig{})

	out, err := uc.OrderStatus(ctx, "ord_1")
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if !out.WasPaid || out.LocalStatus != model.LocalStatusPending || !out.StatusChanged {
		t.Errorf("unexpected outcome %+v", out)
	}
	if deps.users.Saves() != 0 || out.Activation != nil {
		t.Error("a status check must not apply the order")
	}

	_, err = uc.OrderStatus(ctx, "ord_missing")
	if !errors.Is(err, domain.ErrGatewayNotFound) {
		t.Errorf("expected ErrGatewayNotFound, got %v", err)
	}
	_, err = uc.OrderStatus(ctx, " ")
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestReconcileUseCase_RefreshOrders(t *testing.T) {
	ctx := context.Background()

	t.Run("should enforce the cap before calling the gateway", func(t *testing.T) {
		deps := newReconcileDeps()
		many := make([]string, 51)
		for i := range many {
			many[i] = fmt.Sprintf("ord_%d", i)
		}
		_, err := deps.uc(usecase.ReconcileConfig{MaxOrders: 50}).RefreshOrders(ctx, many)
		if !errors.Is(err, domain.ErrTooManyOrders) {
			t.Fatalf("expected ErrTooManyOrders, got %v", err)
		}
		if deps.gateway.FetchCalls() != 0 {
			t.Errorf("expected zero gateway calls, got %d", deps.gateway.FetchCalls())
		}
	})

	t.Run("should apply paid and cancelled orders", func(t *testing.T) {
		deps := newReconcileDeps(
			userWith("u1", "Asha", "1", pendingRecord("ord_paid", 100, "Gold", fixtureTime)),
			userWith("u2", "Ravi", "2", pendingRecord("ord_cancel", 100, "Gold", fixtureTime)),
		)
		deps.gateway.SetOrder(gatewayOrder("ord_paid", model.OrderStatusPaid, "1", "Gold"))
		deps.gateway.SetOrder(gatewayOrder("ord_cancel", model.OrderStatusCancelled, "2", "Gold"))
		deps.gateway.SetOrder(gatewayOrder("ord_orphan", model.OrderStatusPaid, "3", "Gold"))

		res, err := deps.uc(usecase.ReconcileConfig{}).RefreshOrders(ctx, []string{"ord_paid", "ord_cancel", "ord_orphan", "ord_nope"})
		if err != nil {
			t.Fatalf("unexpected error %v", err)
		}
		if res.Summary.ActivationsApplied != 2 || res.Summary.SuccessfulFetches != 3 {
			t.Errorf("unexpected summary %+v", res.Summary)
		}
		kinds := map[string]string{}
		for _, e := range res.Errors {
			kinds[e.OrderID] = e.Kind
		}
		if kinds["ord_orphan"] != domain.KindUserNotResolved || kinds["ord_nope"] != domain.KindNotFound {
			t.Errorf("unexpected itemized errors %v", kinds)
		}
		if !deps.users.Get("u1").IsPremium || deps.users.Get("u2").IsPremium {
			t.Error("only the paid order may grant premium")
		}
	})

	t.Run("should still report gateway truth when the local lookup fails", func(t *testing.T) {
		deps := newReconcileDeps()
		deps.users.FindByOrderIDsFunc = func(ctx context.Context, tx repository.Tx, ids []string) ([]*model.User, error) {
			return nil, errors.New("db down")
		}
		deps.gateway.SetOrder(gatewayOrder("ord_1", model.OrderStatusCreated, "1", "Gold"))
		res, err := deps.uc(usecase.ReconcileConfig{}).RefreshOrders(ctx, []string{"ord_1"})
		if err != nil || len(res.Orders) != 1 {
			t.Fatalf("expected gateway result, got %+v, %v", res, err)
		}
	})
}

func TestReconcileUseCase_ListGatewayOrders(t *testing.T) {
	ctx := context.Background()
	deps := newReconcileDeps(userWith("u1", "Asha", "1", pendingRecord("ord_1", 100, "Gold", fixtureTime)))
	deps.gateway.SetOrder(gatewayOrder("ord_1", model.OrderStatusPaid, "1", "Gold"))
	deps.gateway.SetOrder(gatewayOrder("ord_2", model.OrderStatusCreated, "2", "Gold"))
	deps.gateway.SetOrder(gatewayOrder("ord_3", model.OrderStatusPaid, "3", "Gold"))

	uc := deps.uc(usecase.ReconcileConfig{})

	listing, err := uc.ListGatewayOrders(ctx, model.OrderFilter{Count: 500, Status: model.OrderStatusPaid})
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if listing.Count != 2 || listing.TotalAvailable != 3 || listing.HasMore {
		t.Errorf("unexpected listing %+v", listing)
	}
	if listing.StatusSummary.Paid != 2 || listing.StatusSummary.Created != 1 {
		t.Errorf("status summary must cover the whole page, got %+v", listing.StatusSummary)
	}
	if listing.LocalStatus["pending"] != 1 || listing.LocalStatus["untracked"] != 1 {
		t.Errorf("unexpected local tally %v", listing.LocalStatus)
	}

	var seen model.OrderFilter
	deps.gateway.ListOrdersFunc = func(ctx context.Context, f model.OrderFilter) (*model.OrderPage, error) {
		seen = f
		return &model.OrderPage{}, nil
	}
	if _, err := uc.ListGatewayOrders(ctx, model.OrderFilter{Count: 500}); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if seen.Count != 100 {
		t.Errorf("count must be capped at 100, got %d", seen.Count)
	}
	if _, err := uc.ListGatewayOrders(ctx, model.OrderFilter{Skip: -1}); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for negative skip, got %v", err)
	}
}

func TestReconcileUseCase_OrderPayments(t *testing.T) {
	deps := newReconcileDeps()
	deps.gateway.FetchOrderPaymentsFunc = func(ctx context.Context, id string) ([]*model.GatewayPayment, error) {
		if id != "ord_1" {
			return nil, domain.ErrGatewayNotFound
		}
		return []*model.GatewayPayment{{ID: "pay_1", OrderID: id, Status: "failed", ErrorCode: "BAD_REQUEST_ERROR"}}, nil
	}
	uc := deps.uc(usecase.ReconcileConfig{})

	payments, err := uc.OrderPayments(context.Background(), "ord_1")
	if err != nil || len(payments) != 1 || payments[0].ErrorCode != "BAD_REQUEST_ERROR" {
		t.Fatalf("unexpected payments %+v, %v", payments, err)
	}
	if _, err := uc.OrderPayments(context.Background(), "ord_2"); !errors.Is(err, domain.ErrGatewayNotFound) {
		t.Errorf("expected ErrGatewayNotFound, got %v", err)
	}
}
