package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"premium-order-sync/internal/domain"
	"premium-order-sync/internal/domain/model"
	"premium-order-sync/internal/domain/ports/repository"
)

var _ repository.UserRepository = (*PostgresUserRepo)(nil)

// PostgresUserRepo stores each user as one row. The order history lives in a
// JSONB column and is mirrored into two text[] columns for indexed lookups.
type PostgresUserRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresUserRepo(pool *pgxpool.Pool) *PostgresUserRepo {
	return &PostgresUserRepo{pool: pool}
}

const userColumns = `id, name, phone, current_order_id, orders, is_premium, premium_plan, version, created_at, updated_at`

// Save inserts a new document (Version 0) or updates the stored one when
// the versions match. On success u.Version is bumped.
func (r *PostgresUserRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	ex, _, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	orders, err := json.Marshal(ordersOrEmpty(u.Orders))
	if err != nil {
		return fmt.Errorf("encode orders: %w", err)
	}
	var plan []byte
	if u.PremiumPlan != nil {
		if plan, err = json.Marshal(u.PremiumPlan); err != nil {
			return fmt.Errorf("encode premium plan: %w", err)
		}
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = u.CreatedAt
	}
	orderIDs := u.OrderIDs()
	pendingIDs := u.PendingOrderIDs()
	if pendingIDs == nil {
		pendingIDs = []string{}
	}

	if u.Version == 0 {
		const q = `
INSERT INTO users (
  id, name, phone, current_order_id, orders, order_ids, pending_order_ids,
  is_premium, premium_plan, version, created_at, updated_at
) VALUES ($1,$2,$3,NULLIF($4,''),$5,$6,$7,$8,$9,1,$10,$11)
ON CONFLICT (id) DO NOTHING;`
		tag, err := ex.Exec(ctx, q, u.ID, u.Name, u.Phone, u.CurrentOrderID, orders, orderIDs, pendingIDs,
			u.IsPremium, plan, u.CreatedAt, u.UpdatedAt)
		if err != nil {
			return mapPgError(fmt.Errorf("insert user %s: %w", u.ID, err))
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: user %s already exists", domain.ErrConflict, u.ID)
		}
		u.Version = 1
		return nil
	}

	const q = `
UPDATE users SET
  name=$2, phone=$3, current_order_id=NULLIF($4,''), orders=$5, order_ids=$6, pending_order_ids=$7,
  is_premium=$8, premium_plan=$9, updated_at=$10, version=version+1
WHERE id=$1 AND version=$11;`
	tag, err := ex.Exec(ctx, q, u.ID, u.Name, u.Phone, u.CurrentOrderID, orders, orderIDs, pendingIDs,
		u.IsPremium, plan, u.UpdatedAt, u.Version)
	if err != nil {
		return mapPgError(fmt.Errorf("update user %s: %w", u.ID, err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: user %s changed since version %d", domain.ErrConflict, u.ID, u.Version)
	}
	u.Version++
	return nil
}

func (r *PostgresUserRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	ex, locked, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	return scanUser(ex.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`+forUpdate(locked), id))
}

// FindByOrderID tries order-id membership first and falls back to current_order_id.
// With a live tx the row is locked until commit.
func (r *PostgresUserRepo) FindByOrderID(ctx context.Context, tx repository.Tx, orderID string) (*model.User, error) {
	ex, locked, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	u, err := scanUser(ex.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE order_ids @> ARRAY[$1]::text[] ORDER BY created_at, id LIMIT 1`+forUpdate(locked),
		orderID))
	if !errors.Is(err, domain.ErrNotFound) {
		return u, err
	}
	return scanUser(ex.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE current_order_id=$1 ORDER BY created_at, id LIMIT 1`+forUpdate(locked),
		orderID))
}

func (r *PostgresUserRepo) FindByOrderIDs(ctx context.Context, tx repository.Tx, ids []string) ([]*model.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	ex, _, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.Query(ctx, `SELECT `+userColumns+` FROM users WHERE order_ids && $1::text[] ORDER BY id`, ids)
	if err != nil {
		return nil, fmt.Errorf("find users by order ids: %w", err)
	}
	return collectUsers(rows)
}

// ListWithPendingOrders uses the GIN-indexed pending_order_ids column.
func (r *PostgresUserRepo) ListWithPendingOrders(ctx context.Context, tx repository.Tx) ([]*model.User, error) {
	ex, _, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.Query(ctx, `
SELECT `+userColumns+` FROM users
 WHERE cardinality(pending_order_ids) > 0 AND NOT is_premium
 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list users with pending orders: %w", err)
	}
	return collectUsers(rows)
}

func forUpdate(locked bool) string {
	if locked {
		return " FOR UPDATE"
	}
	return ""
}

func collectUsers(rows pgx.Rows) ([]*model.User, error) {
	defer rows.Close()
	var out []*model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func scanUser(row pgx.Row) (*model.User, error) {
	var (
		u         model.User
		currentID *string
		orders    []byte
		plan      []byte
	)
	err := row.Scan(&u.ID, &u.Name, &u.Phone, &currentID, &orders, &u.IsPremium, &plan, &u.Version, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	if currentID != nil {
		u.CurrentOrderID = *currentID
	}
	if len(orders) > 0 {
		if err := json.Unmarshal(orders, &u.Orders); err != nil {
			return nil, fmt.Errorf("decode orders of %s: %w", u.ID, err)
		}
	}
	if len(plan) > 0 {
		u.PremiumPlan = &model.Entitlement{}
		if err := json.Unmarshal(plan, u.PremiumPlan); err != nil {
			return nil, fmt.Errorf("decode premium plan of %s: %w", u.ID, err)
		}
	}
	return &u, nil
}

func ordersOrEmpty(m map[string]*model.LocalOrderRecord) map[string]*model.LocalOrderRecord {
	if m == nil {
		return map[string]*model.LocalOrderRecord{}
	}
	return m
}
