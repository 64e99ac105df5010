//go:build !integration

package usecase_test

import (
	"context"
	"encoding/json"
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"premium-order-sync/internal/domain"
	"premium-order-sync/internal/domain/model"
	"premium-order-sync/internal/domain/ports/adapter"
	"premium-order-sync/internal/domain/ports/repository"
)

// -----------------------------
// Utilities
// -----------------------------

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// cloneUser deep-copies a user through JSON so tests never share maps with the repo.
func cloneUser(u *model.User) *model.User {
	b, err := json.Marshal(u)
	if err != nil {
		panic(err)
	}
	var out model.User
	if err := json.Unmarshal(b, &out); err != nil {
		panic(err)
	}
	return &out
}

// =============================
// Adapters
// =============================

// ---- Mock PaymentGateway ----

type MockPaymentGateway struct {
	mu     sync.Mutex
	orders map[string]*model.GatewayOrder
	errs   map[string]error

	// optional overrides
	FetchOrderFunc         func(ctx context.Context, id string) (*model.GatewayOrder, error)
	FetchOrderPaymentsFunc func(ctx context.Context, id string) ([]*model.GatewayPayment, error)
	ListOrdersFunc         func(ctx context.Context, f model.OrderFilter) (*model.OrderPage, error)

	fetchCalls atomic.Int64
	inFlight   atomic.Int64
	maxFlight  atomic.Int64
	fetched    []string
}

var _ adapter.PaymentGateway = (*MockPaymentGateway)(nil)

func NewMockPaymentGateway() *MockPaymentGateway {
	return &MockPaymentGateway{orders: map[string]*model.GatewayOrder{}, errs: map[string]error{}}
}

func (g *MockPaymentGateway) Name() string { return "mock" }

func (g *MockPaymentGateway) SetOrder(o *model.GatewayOrder) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.orders[o.ID] = o
}

func (g *MockPaymentGateway) SetStatus(id string, s model.OrderStatus) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.orders[id].Status = s
}

func (g *MockPaymentGateway) SetError(id string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.errs[id] = err
}

func (g *MockPaymentGateway) FetchCalls() int { return int(g.fetchCalls.Load()) }
func (g *MockPaymentGateway) MaxInFlight() int { return int(g.maxFlight.Load()) }

func (g *MockPaymentGateway) Fetched() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := append([]string(nil), g.fetched...)
	sort.Strings(out)
	return out
}

func (g *MockPaymentGateway) FetchOrder(ctx context.Context, id string) (*model.GatewayOrder, error) {
	g.fetchCalls.Add(1)
	n := g.inFlight.Add(1)
	defer g.inFlight.Add(-1)
	for {
		cur := g.maxFlight.Load()
		if n <= cur || g.maxFlight.CompareAndSwap(cur, n) {
			break
		}
	}

	g.mu.Lock()
	g.fetched = append(g.fetched, id)
	g.mu.Unlock()

	if g.FetchOrderFunc != nil {
		return g.FetchOrderFunc(ctx, id)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if err, ok := g.errs[id]; ok {
		return nil, err
	}
	o, ok := g.orders[id]
	if !ok {
		return nil, domain.ErrGatewayNotFound
	}
	cp := *o
	cp.Notes = o.Notes.Clone()
	return &cp, nil
}

func (g *MockPaymentGateway) FetchOrderPayments(ctx context.Context, id string) ([]*model.GatewayPayment, error) {
	if g.FetchOrderPaymentsFunc != nil {
		return g.FetchOrderPaymentsFunc(ctx, id)
	}
	return nil, nil
}

func (g *MockPaymentGateway) ListOrders(ctx context.Context, f model.OrderFilter) (*model.OrderPage, error) {
	if g.ListOrdersFunc != nil {
		return g.ListOrdersFunc(ctx, f)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	ids := make([]string, 0, len(g.orders))
	for id := range g.orders {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	page := &model.OrderPage{}
	for i := f.Skip; i < len(ids) && len(page.Orders) < f.Count; i++ {
		page.Orders = append(page.Orders, g.orders[ids[i]])
	}
	page.Count = len(page.Orders)
	return page, nil
}

// ---- Mock Notifier ----

type MockNotifier struct {
	mu      sync.Mutex
	Notices []model.ActivationNotice
	Err     error
}

var _ adapter.Notifier = (*MockNotifier)(nil)

func (n *MockNotifier) NotifyActivation(ctx context.Context, notice model.ActivationNotice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Notices = append(n.Notices, notice)
	return n.Err
}

func (n *MockNotifier) Count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.Notices)
}

// =============================
// Repositories
// =============================

// ---- In-memory UserRepository ----

type MockUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.User
	saves int

	SaveFunc                  func(ctx context.Context, tx repository.Tx, u *model.User) error
	ListWithPendingOrdersFunc func(ctx context.Context, tx repository.Tx) ([]*model.User, error)
	FindByOrderIDsFunc        func(ctx context.Context, tx repository.Tx, ids []string) ([]*model.User, error)
}

var _ repository.UserRepository = (*MockUserRepo)(nil)

func NewMockUserRepo(users ...*model.User) *MockUserRepo {
	r := &MockUserRepo{users: map[string]*model.User{}}
	for _, u := range users {
		r.users[u.ID] = cloneUser(u)
	}
	return r
}

func (r *MockUserRepo) Saves() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saves
}

// Get returns a copy of the stored document.
func (r *MockUserRepo) Get(id string) *model.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil
	}
	return cloneUser(u)
}

func (r *MockUserRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	if r.SaveFunc != nil {
		if err := r.SaveFunc(ctx, tx, u); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.users[u.ID]; ok && cur.Version != u.Version {
		return domain.ErrConflict
	}
	u.Version++
	r.users[u.ID] = cloneUser(u)
	r.saves++
	return nil
}

func (r *MockUserRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	if u := r.Get(id); u != nil {
		return u, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockUserRepo) FindByOrderID(ctx context.Context, tx repository.Tx, orderID string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := r.sortedIDs()
	for _, id := range ids {
		if _, ok := r.users[id].Orders[orderID]; ok {
			return cloneUser(r.users[id]), nil
		}
	}
	for _, id := range ids {
		if r.users[id].CurrentOrderID == orderID {
			return cloneUser(r.users[id]), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MockUserRepo) FindByOrderIDs(ctx context.Context, tx repository.Tx, ids []string) ([]*model.User, error) {
	if r.FindByOrderIDsFunc != nil {
		return r.FindByOrderIDsFunc(ctx, tx, ids)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.User
	for _, uid := range r.sortedIDs() {
		u := r.users[uid]
		for _, id := range ids {
			if _, ok := u.Orders[id]; ok {
				out = append(out, cloneUser(u))
				break
			}
		}
	}
	return out, nil
}

func (r *MockUserRepo) ListWithPendingOrders(ctx context.Context, tx repository.Tx) ([]*model.User, error) {
	if r.ListWithPendingOrdersFunc != nil {
		return r.ListWithPendingOrdersFunc(ctx, tx)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.User
	for _, id := range r.sortedIDs() {
		u := r.users[id]
		if len(u.PendingOrderIDs()) > 0 && !u.IsPremium {
			out = append(out, cloneUser(u))
		}
	}
	return out, nil
}

func (r *MockUserRepo) sortedIDs() []string {
	ids := make([]string, 0, len(r.users))
	for id := range r.users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ---- Mock TxManager ----

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

func NewMockTxManager() *MockTxManager {
	return &MockTxManager{}
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

// WithTx runs fn immediately with NoTX unless WithTxFunc is set.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, repository.NoTX)
}

// ---- Mock CacheInvalidator ----

type MockCache struct {
	mu   sync.Mutex
	Keys []string
	Err  error
}

var _ repository.CacheInvalidator = (*MockCache)(nil)

func (c *MockCache) Invalidate(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Keys = append(c.Keys, keys...)
	return c.Err
}

// ---- In-memory Locker ----

type MockLocker struct {
	mu   sync.Mutex
	held map[string]string
}

var _ repository.Locker = (*MockLocker)(nil)

func NewMockLocker() *MockLocker {
	return &MockLocker{held: map[string]string{}}
}

func (l *MockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return "", domain.ErrSyncInProgress
	}
	tok := key + "-token"
	l.held[key] = tok
	return tok, nil
}

func (l *MockLocker) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == token {
		delete(l.held, key)
	}
	return nil
}

// =============================
// Fixtures
// =============================

var fixtureTime = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func pendingRecord(orderID string, amount int64, plan string, created time.Time) *model.LocalOrderRecord {
	return &model.LocalOrderRecord{
		OrderID:       orderID,
		Amount:        amount,
		Currency:      "INR",
		PaymentStatus: model.LocalStatusPending,
		Notes:         model.OrderNotes{model.NoteCustomerPlan: plan},
		CreatedAt:     created,
		UpdatedAt:     created,
	}
}

func userWith(id, name, phone string, recs ...*model.LocalOrderRecord) *model.User {
	u := &model.User{ID: id, Name: name, Phone: phone, CreatedAt: fixtureTime, UpdatedAt: fixtureTime}
	for _, r := range recs {
		u.PutOrder(r)
	}
	return u
}

func gatewayOrder(id string, status model.OrderStatus, phone, plan string) *model.GatewayOrder {
	return &model.GatewayOrder{
		ID:        id,
		Status:    status,
		Amount:    49900,
		Currency:  "INR",
		Attempts:  1,
		CreatedAt: fixtureTime,
		Notes: model.OrderNotes{
			model.NoteUserPhone:    phone,
			model.NoteCustomerPlan: plan,
		},
	}
}
