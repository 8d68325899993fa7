package catalog

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

var ErrNotFound = errors.New("product not found")

type Repo struct{ DB *pgxpool.Pool }

const productCols = `id, name, description, image, price_cents, stock_quantity, status, created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Image, &p.PriceCents,
		&p.StockQuantity, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *Repo) List(ctx context.Context) ([]Product, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+productCols+` FROM products ORDER BY name`)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan product")
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repo) Get(ctx context.Context, id string) (Product, error) {
	p, err := scanProduct(r.DB.QueryRow(ctx,
		`SELECT `+productCols+` FROM products WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	if err != nil {
		return Product{}, errors.Wrap(err, "get product")
	}
	return p, nil
}

// FindByIDs batch-fetches all referenced products in one query. Missing ids
// are simply absent from the result; callers decide what that means.
func (r *Repo) FindByIDs(ctx context.Context, ids []string) (map[string]Product, error) {
	if len(ids) == 0 {
		return map[string]Product{}, nil
	}
	params := ""
	args := make([]any, 0, len(ids))
	for i, id := range ids {
		if i > 0 {
			params += ","
		}
		params += fmt.Sprintf("$%d", i+1)
		args = append(args, id)
	}
	rows, err := r.DB.Query(ctx, `SELECT `+productCols+` FROM products WHERE id IN (`+params+`)`, args...)
	if err != nil {
		return nil, errors.Wrap(err, "find products by ids")
	}
	defer rows.Close()

	out := make(map[string]Product, len(ids))
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan product")
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

func (r *Repo) Create(ctx context.Context, p *Product) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = ProductActive
	}
	row := r.DB.QueryRow(ctx, `
		INSERT INTO products(id, name, description, image, price_cents, stock_quantity, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at, updated_at`,
		p.ID, p.Name, p.Description, p.Image, p.PriceCents, p.StockQuantity, p.Status)
	if err := row.Scan(&p.CreatedAt, &p.UpdatedAt); err != nil {
		return errors.Wrap(err, "insert product")
	}
	return nil
}

// SetStock is the admin inventory edit: an absolute overwrite, unlike the
// conditional decrement used by order placement.
func (r *Repo) SetStock(ctx context.Context, id string, qty int) (Product, error) {
	p, err := scanProduct(r.DB.QueryRow(ctx, `
		UPDATE products SET stock_quantity=$2, updated_at=now()
		WHERE id=$1
		RETURNING `+productCols, id, qty))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	if err != nil {
		return Product{}, errors.Wrap(err, "set stock")
	}
	return p, nil
}
