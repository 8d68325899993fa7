package orders

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

var (
	ErrNotFound = errors.New("order not found")

	// ErrDuplicateOrderNumber means the generated order number collided with
	// an existing order. The caller should advise a retry.
	ErrDuplicateOrderNumber = errors.New("duplicate order number")
)

type Repo struct{ DB *pgxpool.Pool }

const orderCols = `id, user_id, order_number, shipping_address, shipping_city,
	shipping_postal_code, shipping_country, payment_method, items_price_cents,
	tax_price_cents, shipping_price_cents, total_price_cents, status, is_paid,
	paid_at, is_delivered, delivered_at, created_at, updated_at`

// CreateOrder persists the order and its line items, then decrements stock
// per product inside the same transaction. Every decrement is conditional on
// remaining stock, so a concurrent order that won the race turns into a late
// rejection here instead of driving stock negative.
func (r *Repo) CreateOrder(ctx context.Context, o *Order) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin create order")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `
		INSERT INTO orders(id, user_id, order_number, shipping_address, shipping_city,
			shipping_postal_code, shipping_country, payment_method, items_price_cents,
			tax_price_cents, shipping_price_cents, total_price_cents, status, is_paid, paid_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		RETURNING created_at, updated_at`,
		o.ID, o.UserID, o.OrderNumber,
		o.ShippingAddress.Address, o.ShippingAddress.City,
		o.ShippingAddress.PostalCode, o.ShippingAddress.Country,
		o.PaymentMethod, o.ItemsPriceCents, o.TaxPriceCents,
		o.ShippingPriceCents, o.TotalPriceCents, o.Status, o.IsPaid, o.PaidAt)
	if err := row.Scan(&o.CreatedAt, &o.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateOrderNumber
		}
		return errors.Wrap(err, "insert order")
	}

	var problems []string
	for _, it := range o.Items {
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_items(order_id, product_id, name, quantity, price_cents, image)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			o.ID, it.ProductID, it.Name, it.Quantity, it.PriceCents, it.Image); err != nil {
			return errors.Wrap(err, "insert order item")
		}

		ct, err := tx.Exec(ctx, `
			UPDATE products SET stock_quantity = stock_quantity - $2, updated_at = now()
			WHERE id = $1 AND stock_quantity >= $2`, it.ProductID, it.Quantity)
		if err != nil {
			return errors.Wrap(err, "decrement stock")
		}
		if ct.RowsAffected() != 1 {
			var available int
			if err := tx.QueryRow(ctx,
				`SELECT stock_quantity FROM products WHERE id=$1`, it.ProductID).Scan(&available); err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					problems = append(problems, fmt.Sprintf("product with id %s not found", it.ProductID))
					continue
				}
				return errors.Wrap(err, "read stock after failed decrement")
			}
			problems = append(problems, fmt.Sprintf("not enough stock for %s: available %d, requested %d",
				it.Name, available, it.Quantity))
		}
	}
	if len(problems) > 0 {
		// rollback via defer, nothing was written
		return &ValidationError{Problems: problems}
	}

	return errors.Wrap(tx.Commit(ctx), "commit create order")
}

func (r *Repo) Get(ctx context.Context, id string) (Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, errors.Wrap(err, "get order")
	}
	items, err := r.loadItems(ctx, []string{o.ID})
	if err != nil {
		return Order{}, err
	}
	o.Items = items[o.ID]
	return o, nil
}

func (r *Repo) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	return r.list(ctx, `SELECT `+orderCols+` FROM orders WHERE user_id=$1 ORDER BY created_at DESC`, userID)
}

func (r *Repo) ListAll(ctx context.Context) ([]Order, error) {
	return r.list(ctx, `SELECT `+orderCols+` FROM orders ORDER BY created_at DESC`)
}

func (r *Repo) list(ctx context.Context, sql string, args ...any) ([]Order, error) {
	rows, err := r.DB.Query(ctx, sql, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	defer rows.Close()

	var out []Order
	var ids []string
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan order")
		}
		out = append(out, o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	items, err := r.loadItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Items = items[out[i].ID]
	}
	return out, nil
}

// UpdateStatus writes the order's status and delivered fields as mutated by
// ApplyStatus.
func (r *Repo) UpdateStatus(ctx context.Context, o *Order) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders SET status=$2, is_delivered=$3, delivered_at=$4, updated_at=$5
		WHERE id=$1`,
		o.ID, o.Status, o.IsDelivered, o.DeliveredAt, o.UpdatedAt)
	if err != nil {
		return errors.Wrap(err, "update order status")
	}
	if ct.RowsAffected() != 1 {
		return ErrNotFound
	}
	return nil
}

// Delete hard-deletes the order; line items go with it via cascade. Stock is
// not restored.
func (r *Repo) Delete(ctx context.Context, id string) error {
	ct, err := r.DB.Exec(ctx, `DELETE FROM orders WHERE id=$1`, id)
	if err != nil {
		return errors.Wrap(err, "delete order")
	}
	if ct.RowsAffected() != 1 {
		return ErrNotFound
	}
	return nil
}

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.UserID, &o.OrderNumber,
		&o.ShippingAddress.Address, &o.ShippingAddress.City,
		&o.ShippingAddress.PostalCode, &o.ShippingAddress.Country,
		&o.PaymentMethod, &o.ItemsPriceCents, &o.TaxPriceCents,
		&o.ShippingPriceCents, &o.TotalPriceCents, &o.Status, &o.IsPaid,
		&o.PaidAt, &o.IsDelivered, &o.DeliveredAt, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

func (r *Repo) loadItems(ctx context.Context, orderIDs []string) (map[string][]OrderItem, error) {
	out := make(map[string][]OrderItem, len(orderIDs))
	if len(orderIDs) == 0 {
		return out, nil
	}
	params := ""
	args := make([]any, 0, len(orderIDs))
	for i, id := range orderIDs {
		if i > 0 {
			params += ","
		}
		params += fmt.Sprintf("$%d", i+1)
		args = append(args, id)
	}
	rows, err := r.DB.Query(ctx, `
		SELECT order_id, product_id, name, quantity, price_cents, image
		FROM order_items WHERE order_id IN (`+params+`) ORDER BY id`, args...)
	if err != nil {
		return nil, errors.Wrap(err, "load order items")
	}
	defer rows.Close()

	for rows.Next() {
		var orderID string
		var it OrderItem
		if err := rows.Scan(&orderID, &it.ProductID, &it.Name, &it.Quantity, &it.PriceCents, &it.Image); err != nil {
			return nil, errors.Wrap(err, "scan order item")
		}
		out[orderID] = append(out[orderID], it)
	}
	return out, rows.Err()
}
