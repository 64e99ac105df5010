//go:build integration

package postgres

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v4"

	"premium-order-sync/internal/domain"
	"premium-order-sync/internal/domain/model"
	"premium-order-sync/internal/domain/ports/repository"
)

func sortedUserIDs(us []*model.User) []string {
	ids := make([]string, 0, len(us))
	for _, u := range us {
		ids = append(ids, u.ID)
	}
	sort.Strings(ids)
	return ids
}

func newUser(id, phone string, orders ...*model.LocalOrderRecord) *model.User {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	u := &model.User{ID: id, Name: "user " + id, Phone: phone, CreatedAt: now, UpdatedAt: now}
	for _, o := range orders {
		u.PutOrder(o)
	}
	return u
}

func record(id string, status model.LocalPaymentStatus) *model.LocalOrderRecord {
	return &model.LocalOrderRecord{
		OrderID:       id,
		Amount:        49900,
		Currency:      "INR",
		PaymentStatus: status,
		Notes:         model.OrderNotes{model.NoteCustomerPlan: "Gold"},
		CreatedAt:     time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestUserRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}
	repo := NewPostgresUserRepo(testPool)
	ctx := context.Background()

	t.Run("should round-trip the whole document", func(t *testing.T) {
		cleanup(t)
		u := newUser("u1", "9000000001", record("order_1", model.LocalStatusPending))
		u.CurrentOrderID = "order_1"
		if err := repo.Save(ctx, repository.NoTX, u); err != nil {
			t.Fatalf("save failed: %v", err)
		}
		if u.Version != 1 {
			t.Errorf("expected version 1 after insert, got %d", u.Version)
		}

		got, err := repo.FindByID(ctx, repository.NoTX, "u1")
		if err != nil {
			t.Fatalf("find failed: %v", err)
		}
		rec, ok := got.Order("order_1")
		if !ok || rec.PaymentStatus != model.LocalStatusPending || rec.CustomerPlan() != "Gold" {
			t.Errorf("unexpected order record %+v", rec)
		}
		if got.CurrentOrderID != "order_1" || got.PremiumPlan != nil {
			t.Errorf("unexpected document %+v", got)
		}
	})

	t.Run("should resolve owners by membership then current order id", func(t *testing.T) {
		cleanup(t)
		a := newUser("a", "1", record("order_a", model.LocalStatusPending))
		b := newUser("b", "2")
		b.CurrentOrderID = "order_b"
		for _, u := range []*model.User{a, b} {
			if err := repo.Save(ctx, nil, u); err != nil {
				t.Fatal(err)
			}
		}
		if got, err := repo.FindByOrderID(ctx, nil, "order_a"); err != nil || got.ID != "a" {
			t.Errorf("expected a, got %v, %v", got, err)
		}
		if got, err := repo.FindByOrderID(ctx, nil, "order_b"); err != nil || got.ID != "b" {
			t.Errorf("expected b via current order id, got %v, %v", got, err)
		}
		if _, err := repo.FindByOrderID(ctx, nil, "order_none"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		owners, err := repo.FindByOrderIDs(ctx, nil, []string{"order_a", "order_b", "order_none"})
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(sortedUserIDs(owners), []string{"a"}) {
			t.Errorf("expected membership-only match, got %v", sortedUserIDs(owners))
		}
	})

	t.Run("should list only non-premium users with pending orders", func(t *testing.T) {
		cleanup(t)
		pending := newUser("p", "1", record("o1", model.LocalStatusPending))
		done := newUser("d", "2", record("o2", model.LocalStatusCompleted))
		premium := newUser("x", "3", record("o3", model.LocalStatusPending))
		premium.IsPremium = true
		for _, u := range []*model.User{pending, done, premium} {
			if err := repo.Save(ctx, nil, u); err != nil {
				t.Fatal(err)
			}
		}
		got, err := repo.ListWithPendingOrders(ctx, nil)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(sortedUserIDs(got), []string{"p"}) {
			t.Errorf("expected [p], got %v", sortedUserIDs(got))
		}

		// completing the order drops the user from the pending index
		p, _ := repo.FindByID(ctx, nil, "p")
		p.Orders["o1"].PaymentStatus = model.LocalStatusCompleted
		if err := repo.Save(ctx, nil, p); err != nil {
			t.Fatal(err)
		}
		got, _ = repo.ListWithPendingOrders(ctx, nil)
		if len(got) != 0 {
			t.Errorf("expected no pending users, got %v", sortedUserIDs(got))
		}
	})

	t.Run("should reject stale writes", func(t *testing.T) {
		cleanup(t)
		if err := repo.Save(ctx, nil, newUser("u1", "1")); err != nil {
			t.Fatal(err)
		}
		first, _ := repo.FindByID(ctx, nil, "u1")
		second, _ := repo.FindByID(ctx, nil, "u1")

		first.Name = "first"
		if err := repo.Save(ctx, nil, first); err != nil {
			t.Fatalf("first writer should win, got %v", err)
		}
		second.Name = "second"
		if err := repo.Save(ctx, nil, second); !errors.Is(err, domain.ErrConflict) {
			t.Fatalf("expected ErrConflict for the stale writer, got %v", err)
		}
		if err := repo.Save(ctx, nil, newUser("u1", "1")); !errors.Is(err, domain.ErrConflict) {
			t.Errorf("duplicate insert should conflict, got %v", err)
		}
	})

	t.Run("should serialize concurrent activations on the user row", func(t *testing.T) {
		cleanup(t)
		u := newUser("u1", "1", record("o1", model.LocalStatusPending), record("o2", model.LocalStatusPending))
		if err := repo.Save(ctx, nil, u); err != nil {
			t.Fatal(err)
		}
		tm := NewTxManager(testPool)

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i, id := range []string{"o1", "o2"} {
			wg.Add(1)
			go func(i int, id string) {
				defer wg.Done()
				errs[i] = tm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ctx context.Context, tx repository.Tx) error {
					owner, err := repo.FindByOrderID(ctx, tx, id)
					if err != nil {
						return err
					}
					owner.Orders[id].PaymentStatus = model.LocalStatusCompleted
					return repo.Save(ctx, tx, owner)
				})
			}(i, id)
		}
		wg.Wait()
		for i, err := range errs {
			if err != nil {
				t.Fatalf("activation %d failed: %v", i, err)
			}
		}
		got, _ := repo.FindByID(ctx, nil, "u1")
		for _, id := range []string{"o1", "o2"} {
			if got.Orders[id].PaymentStatus != model.LocalStatusCompleted {
				t.Errorf("%s lost its update", id)
			}
		}
		if got.Version != 3 {
			t.Errorf("expected two sequential bumps, got version %d", got.Version)
		}
	})
}
