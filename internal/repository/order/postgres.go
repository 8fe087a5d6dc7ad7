package order

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"storefront/internal/db"
	"storefront/internal/domain"
	"storefront/internal/events"
	"storefront/internal/outbox"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// querier is implemented by both the pool and an open transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type postgresRepo struct {
	pool   db.Pool
	logger *log.Logger
}

func NewPostgres(pool db.Pool, logger *log.Logger) Repository {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &postgresRepo{pool: pool, logger: logger}
}

// Create prices and stores the draft in one transaction together with its
// line items, submission token and OrderCreated outbox event.
func (r *postgresRepo) Create(ctx context.Context, draft domain.OrderDraft) (domain.CheckoutResult, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.CheckoutResult{}, domain.Persistence("begin checkout", err)
	}
	defer tx.Rollback(ctx)

	if draft.SubmissionToken != "" {
		res, found, err := r.replay(ctx, tx, draft)
		if err != nil || found {
			return res, err
		}
	}

	var userID int64
	if err := tx.QueryRow(ctx, `SELECT id FROM users WHERE id = $1 FOR SHARE`, draft.UserID).Scan(&userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Printf("order repo: create user=%d not found", draft.UserID)
			return domain.CheckoutResult{}, domain.Unresolved("userId", draft.UserID)
		}
		return domain.CheckoutResult{}, domain.Persistence("lock user", err)
	}

	catalog, err := r.lockProducts(ctx, tx, draft.Cart.ProductIDs())
	if err != nil {
		return domain.CheckoutResult{}, err
	}
	items, total, err := domain.PriceOrder(draft.Cart, catalog, draft.ExpectedTotal)
	if err != nil {
		r.logger.Printf("order repo: create user=%d pricing error=%v", draft.UserID, err)
		return domain.CheckoutResult{}, err
	}

	o := domain.Order{
		UserID:          draft.UserID,
		Items:           items,
		Total:           total,
		Status:          domain.StatusPending,
		SubmissionToken: draft.SubmissionToken,
	}
	const insertOrder = `
INSERT INTO orders (user_id, total, status)
VALUES ($1, $2::numeric, $3)
RETURNING id, created_at, updated_at
`
	if err := tx.QueryRow(ctx, insertOrder, o.UserID, o.Total.StringFixed(2), string(o.Status)).
		Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return domain.CheckoutResult{}, r.writeError("insert order", err)
	}

	if err := insertItems(ctx, tx, o.ID, items); err != nil {
		return domain.CheckoutResult{}, r.writeError("insert order items", err)
	}

	if draft.SubmissionToken != "" {
		_, err := tx.Exec(ctx,
			`INSERT INTO order_submissions (token, order_id, fingerprint) VALUES ($1, $2, $3)`,
			draft.SubmissionToken, o.ID, draft.Fingerprint(),
		)
		if err != nil {
			if db.IsUniqueViolation(err) {
				// A concurrent submission with the same token committed first.
				_ = tx.Rollback(ctx)
				r.logger.Printf("order repo: create token=%s lost race, resolving", draft.SubmissionToken)
				return r.resolveRace(ctx, draft)
			}
			return domain.CheckoutResult{}, r.writeError("insert submission", err)
		}
	}

	env := events.NewOrderCreated(o, draft.CorrelationID)
	if err := enqueue(ctx, tx, env); err != nil {
		return domain.CheckoutResult{}, domain.Persistence("enqueue order created", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.CheckoutResult{}, domain.Persistence("commit checkout", err)
	}
	r.logger.Printf("order repo: created id=%d user=%d lines=%d total=%s", o.ID, o.UserID, len(o.Items), o.Total.StringFixed(2))
	return domain.CheckoutResult{Order: &o}, nil
}

// replay looks up an earlier submission with the same token.
func (r *postgresRepo) replay(ctx context.Context, q querier, draft domain.OrderDraft) (domain.CheckoutResult, bool, error) {
	var (
		orderID     int64
		fingerprint string
	)
	err := q.QueryRow(ctx, `SELECT order_id, fingerprint FROM order_submissions WHERE token = $1`, draft.SubmissionToken).
		Scan(&orderID, &fingerprint)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.CheckoutResult{}, false, nil
	}
	if err != nil {
		return domain.CheckoutResult{}, false, domain.Persistence("lookup submission", err)
	}
	if fingerprint != draft.Fingerprint() {
		r.logger.Printf("order repo: token=%s reused for a different cart order=%d", draft.SubmissionToken, orderID)
		return domain.CheckoutResult{}, true, domain.ErrIdempotencyConflict
	}
	o, err := loadOrder(ctx, q, orderID)
	if err != nil {
		return domain.CheckoutResult{}, true, domain.Persistence("load replayed order", err)
	}
	r.logger.Printf("order repo: replay token=%s order=%d", draft.SubmissionToken, orderID)
	return domain.CheckoutResult{Order: o, Replayed: true}, true, nil
}

func (r *postgresRepo) resolveRace(ctx context.Context, draft domain.OrderDraft) (domain.CheckoutResult, error) {
	res, found, err := r.replay(ctx, r.pool, draft)
	if err != nil {
		return domain.CheckoutResult{}, err
	}
	if !found {
		return domain.CheckoutResult{}, domain.Persistence("resolve submission race", errors.New("token vanished"))
	}
	return res, nil
}

func (r *postgresRepo) lockProducts(ctx context.Context, tx pgx.Tx, ids []int64) (map[int64]domain.Product, error) {
	rows, err := tx.Query(ctx, `SELECT id, price::text FROM products WHERE id = ANY($1) FOR SHARE`, ids)
	if err != nil {
		return nil, domain.Persistence("lock products", err)
	}
	defer rows.Close()

	catalog := make(map[int64]domain.Product, len(ids))
	for rows.Next() {
		var (
			p     domain.Product
			price string
		)
		if err := rows.Scan(&p.ID, &price); err != nil {
			return nil, domain.Persistence("scan product", err)
		}
		if p.Price, err = decimal.NewFromString(price); err != nil {
			return nil, domain.Persistence("parse product price", err)
		}
		catalog[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Persistence("lock products", err)
	}
	return catalog, nil
}

func insertItems(ctx context.Context, tx pgx.Tx, orderID int64, items []domain.OrderItem) error {
	positions := make([]int, len(items))
	productIDs := make([]int64, len(items))
	sizes := make([]string, len(items))
	colors := make([]string, len(items))
	prices := make([]string, len(items))
	for i, it := range items {
		positions[i] = it.Position
		productIDs[i] = it.ProductID
		sizes[i] = it.Size
		colors[i] = it.Color
		prices[i] = it.UnitPrice.StringFixed(2)
	}
	const q = `
INSERT INTO order_items (order_id, position, product_id, size, color, unit_price)
SELECT $1, t.position, t.product_id, t.size, t.color, t.unit_price
FROM unnest($2::int[], $3::bigint[], $4::text[], $5::text[], $6::numeric[])
    AS t(position, product_id, size, color, unit_price)
`
	_, err := tx.Exec(ctx, q, orderID, positions, productIDs, sizes, colors, prices)
	return err
}

// enqueue writes env to the outbox inside tx. The event name is the topic.
func enqueue[T any](ctx context.Context, tx pgx.Tx, env events.EventEnvelope[T]) error {
	body, err := env.Encode()
	if err != nil {
		return err
	}
	return outbox.Enqueue(ctx, tx, outbox.Message{
		EventID: env.EventID,
		Topic:   env.EventName,
		Key:     env.PartitionKey,
		Payload: body,
	})
}

// writeError maps constraint failures that can only come from bad references.
func (r *postgresRepo) writeError(op string, err error) error {
	r.logger.Printf("order repo: %s error=%v", op, err)
	if db.IsForeignKeyViolation(err) {
		return &domain.ValidationError{Reason: "referenced row no longer exists", Err: domain.ErrNotFound}
	}
	return domain.Persistence(op, err)
}

func (r *postgresRepo) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	o, err := loadOrder(ctx, r.pool, id)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			r.logger.Printf("order repo: get id=%d error=%v", id, err)
		}
		return nil, domain.Persistence("get order", err)
	}
	return o, nil
}

func (r *postgresRepo) List(ctx context.Context, f domain.OrderFilter) ([]domain.Order, int, error) {
	var (
		conds []string
		args  []any
	)
	if f.Status != "" {
		args = append(args, string(f.Status))
		conds = append(conds, fmt.Sprintf("o.status = $%d", len(args)))
	}
	if f.UserID != 0 {
		args = append(args, f.UserID)
		conds = append(conds, fmt.Sprintf("o.user_id = $%d", len(args)))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM orders o`+where, args...).Scan(&total); err != nil {
		r.logger.Printf("order repo: count filter=%+v error=%v", f, err)
		return nil, 0, domain.Persistence("count orders", err)
	}

	q := orderSelect + where + ` ORDER BY o.created_at DESC, o.id DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit, f.Offset)
		q += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		r.logger.Printf("order repo: list filter=%+v error=%v", f, err)
		return nil, 0, domain.Persistence("list orders", err)
	}
	var (
		orders []domain.Order
		ids    []int64
	)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, 0, domain.Persistence("scan order", err)
		}
		orders = append(orders, *o)
		ids = append(ids, o.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, domain.Persistence("list orders", err)
	}
	if len(ids) == 0 {
		return orders, total, nil
	}

	items, err := loadItems(ctx, r.pool, ids)
	if err != nil {
		return nil, 0, domain.Persistence("list order items", err)
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}
	return orders, total, nil
}

func (r *postgresRepo) UpdateStatus(ctx context.Context, id int64, next domain.OrderStatus, correlationID string) (*domain.Order, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, domain.Persistence("begin status update", err)
	}
	defer tx.Rollback(ctx)

	var current string
	if err := tx.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1 FOR UPDATE`, id).Scan(&current); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.Persistence("lock order", err)
	}
	from := domain.OrderStatus(current)
	if !from.CanTransitionTo(next) {
		r.logger.Printf("order repo: status id=%d %s -> %s rejected", id, from, next)
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, from, next)
	}

	if _, err := tx.Exec(ctx, `UPDATE orders SET status = $2, updated_at = now() WHERE id = $1`, id, string(next)); err != nil {
		return nil, domain.Persistence("update status", err)
	}
	o, err := loadOrder(ctx, tx, id)
	if err != nil {
		return nil, domain.Persistence("reload order", err)
	}

	env := events.NewOrderStatusChanged(*o, from, correlationID)
	if err := enqueue(ctx, tx, env); err != nil {
		return nil, domain.Persistence("enqueue status changed", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, domain.Persistence("commit status update", err)
	}
	r.logger.Printf("order repo: status id=%d %s -> %s", id, from, next)
	return o, nil
}

const orderSelect = `
SELECT o.id, o.user_id, o.total::text, o.status, COALESCE(s.token, ''), o.created_at, o.updated_at
FROM orders o
LEFT JOIN order_submissions s ON s.order_id = o.id`

func loadOrder(ctx context.Context, q querier, id int64) (*domain.Order, error) {
	o, err := scanOrder(q.QueryRow(ctx, orderSelect+` WHERE o.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	items, err := loadItems(ctx, q, []int64{id})
	if err != nil {
		return nil, err
	}
	o.Items = items[id]
	return o, nil
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		o      domain.Order
		total  string
		status string
	)
	if err := row.Scan(&o.ID, &o.UserID, &total, &status, &o.SubmissionToken, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	var err error
	if o.Total, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("order %d total: %w", o.ID, err)
	}
	o.Status = domain.OrderStatus(status)
	return &o, nil
}

func loadItems(ctx context.Context, q querier, orderIDs []int64) (map[int64][]domain.OrderItem, error) {
	const sql = `
SELECT order_id, position, product_id, size, color, unit_price::text
FROM order_items
WHERE order_id = ANY($1)
ORDER BY order_id, position
`
	rows, err := q.Query(ctx, sql, orderIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64][]domain.OrderItem, len(orderIDs))
	for rows.Next() {
		var (
			orderID int64
			it      domain.OrderItem
			price   string
		)
		if err := rows.Scan(&orderID, &it.Position, &it.ProductID, &it.Size, &it.Color, &price); err != nil {
			return nil, err
		}
		if it.UnitPrice, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("order %d item %d price: %w", orderID, it.Position, err)
		}
		out[orderID] = append(out[orderID], it)
	}
	return out, rows.Err()
}
