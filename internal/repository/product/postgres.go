package product

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"storefront/internal/db"
	"storefront/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const productColumns = `id, sku, name, COALESCE(description, ''), price::text, old_price::text, COALESCE(image, ''), COALESCE(category_key, ''), created_at, updated_at`

var sortClauses = map[string]string{
	SortDefault:   "id ASC",
	SortPriceLow:  "price ASC, id ASC",
	SortPriceHigh: "price DESC, id ASC",
	SortName:      "name ASC, id ASC",
}

type postgresRepo struct {
	pool   db.Pool
	logger *log.Logger
}

func NewPostgres(pool db.Pool, logger *log.Logger) *postgresRepo {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &postgresRepo{pool: pool, logger: logger}
}

func (r *postgresRepo) List(ctx context.Context, f ListFilter) ([]domain.Product, int, error) {
	where, args := buildWhere(f)
	order, ok := sortClauses[f.Sort]
	if !ok {
		order = sortClauses[SortDefault]
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM products`+where, args...).Scan(&total); err != nil {
		r.logger.Printf("product repo: count filter=%+v error=%v", f, err)
		return nil, 0, err
	}

	q := `SELECT ` + productColumns + ` FROM products` + where + ` ORDER BY ` + order
	if f.Limit > 0 {
		args = append(args, f.Limit, f.Offset)
		q += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		r.logger.Printf("product repo: list filter=%+v error=%v", f, err)
		return nil, 0, err
	}
	defer rows.Close()

	var result []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, *p)
	}
	if err := rows.Err(); err != nil {
		r.logger.Printf("product repo: list rows error=%v", err)
		return nil, 0, err
	}
	r.logger.Printf("product repo: list category=%q sale=%t count=%d total=%d", f.Category, f.OnSale, len(result), total)
	return result, total, nil
}

func (r *postgresRepo) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	q := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	p, err := scanProduct(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Printf("product repo: get id=%d not found", id)
			return nil, domain.ErrNotFound
		}
		r.logger.Printf("product repo: get id=%d error=%v", id, err)
		return nil, err
	}
	return p, nil
}

func (r *postgresRepo) Upsert(ctx context.Context, p domain.Product) (*domain.Product, error) {
	if err := p.ValidatePrices(); err != nil {
		return nil, err
	}
	var oldPrice *string
	if p.OldPrice.Valid {
		s := p.OldPrice.Decimal.String()
		oldPrice = &s
	}
	const q = `
INSERT INTO products (sku, name, description, price, old_price, image, category_key)
VALUES ($1, $2, NULLIF($3, ''), $4::numeric, $5::numeric, NULLIF($6, ''), NULLIF($7, ''))
ON CONFLICT (sku) DO UPDATE SET
    name = EXCLUDED.name,
    description = EXCLUDED.description,
    price = EXCLUDED.price,
    old_price = EXCLUDED.old_price,
    image = EXCLUDED.image,
    category_key = EXCLUDED.category_key,
    updated_at = now()
RETURNING ` + productColumns
	res, err := scanProduct(r.pool.QueryRow(ctx, q,
		p.SKU,
		p.Name,
		p.Description,
		p.Price.String(),
		oldPrice,
		p.Image,
		p.Category,
	))
	if err != nil {
		r.logger.Printf("product repo: upsert sku=%s error=%v", p.SKU, err)
		return nil, err
	}
	r.logger.Printf("product repo: upserted sku=%s id=%d", res.SKU, res.ID)
	return res, nil
}

func buildWhere(f ListFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if c := strings.TrimSpace(f.Category); c != "" {
		args = append(args, c)
		conds = append(conds, fmt.Sprintf("category_key = $%d", len(args)))
	}
	if f.OnSale {
		conds = append(conds, "old_price IS NOT NULL AND old_price > price")
	}
	if f.MaxPrice != nil {
		args = append(args, f.MaxPrice.String())
		conds = append(conds, fmt.Sprintf("price <= $%d::numeric", len(args)))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var (
		p        domain.Product
		price    string
		oldPrice *string
	)
	if err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.Description, &price, &oldPrice, &p.Image, &p.Category, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	var err error
	if p.Price, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("product %d price: %w", p.ID, err)
	}
	if oldPrice != nil {
		d, err := decimal.NewFromString(*oldPrice)
		if err != nil {
			return nil, fmt.Errorf("product %d old price: %w", p.ID, err)
		}
		p.OldPrice = decimal.NewNullDecimal(d)
	}
	return &p, nil
}
