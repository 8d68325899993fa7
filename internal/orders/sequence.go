package orders

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

const (
	// SeqOrderID is the counter backing human-readable order numbers.
	SeqOrderID = "orderId"

	orderNumberPrefix = "ITS"
	orderNumberWidth  = 9
)

// SequenceRepo issues monotonically increasing integers per named counter.
type SequenceRepo struct{ DB *pgxpool.Pool }

// Next increments and returns the counter in a single statement, creating it
// at 1 if absent. The upsert is the atomicity guarantee: two concurrent
// callers can never see the same value.
func (r *SequenceRepo) Next(ctx context.Context, name string) (int64, error) {
	var seq int64
	err := r.DB.QueryRow(ctx, `
		INSERT INTO counters(name, seq) VALUES ($1, 1)
		ON CONFLICT (name) DO UPDATE SET seq = counters.seq + 1
		RETURNING seq`, name).Scan(&seq)
	if err != nil {
		return 0, errors.Wrapf(err, "next value for sequence %s", name)
	}
	return seq, nil
}

// FormatOrderNumber renders a sequence value as the customer-facing order
// number, e.g. 42 -> "ITS000000042".
func FormatOrderNumber(seq int64) string {
	return fmt.Sprintf("%s%0*d", orderNumberPrefix, orderNumberWidth, seq)
}
