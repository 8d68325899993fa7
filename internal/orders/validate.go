package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/itsstore/go-shop-orders/internal/catalog"
)

// ProductID tolerates the two shapes clients send: a plain id string, or an
// embedded product object carrying "_id" or "id". Anything else parses to
// empty and is reported by the validator, never threaded further.
type ProductID string

func (p *ProductID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*p = ProductID(s)
		return nil
	}
	var obj struct {
		MongoID string `json:"_id"`
		ID      string `json:"id"`
	}
	if err := json.Unmarshal(b, &obj); err == nil {
		if obj.MongoID != "" {
			*p = ProductID(obj.MongoID)
		} else {
			*p = ProductID(obj.ID)
		}
		return nil
	}
	*p = ""
	return nil
}

// Canonical returns the normalized id form, or ok=false when the value is
// not a parseable id.
func (p ProductID) Canonical() (string, bool) {
	id, err := uuid.Parse(string(p))
	if err != nil {
		return "", false
	}
	return id.String(), true
}

type ItemInput struct {
	ProductID ProductID `json:"productId"`
	Name      string    `json:"name"`
	Quantity  int       `json:"quantity"`
}

// ValidationError carries every problem found, so the client gets the full
// list in one round trip instead of one failure at a time.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "order validation failed: " + strings.Join(e.Problems, "; ")
}

type ProductFinder interface {
	FindByIDs(ctx context.Context, ids []string) (map[string]catalog.Product, error)
}

type Validator struct {
	Products ProductFinder
}

// ValidateItems checks every requested line item against the catalog and
// either returns the cleaned items, with name and price snapshotted from the
// catalog, or a ValidationError enumerating every problem found.
func (v *Validator) ValidateItems(ctx context.Context, items []ItemInput) ([]OrderItem, error) {
	if len(items) == 0 {
		return nil, &ValidationError{Problems: []string{"no order items"}}
	}

	var problems []string

	ids := make([]string, 0, len(items))
	for _, it := range items {
		if id, ok := it.ProductID.Canonical(); ok {
			ids = append(ids, id)
		}
	}

	products, err := v.Products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	cleaned := make([]OrderItem, 0, len(items))
	for _, it := range items {
		name := it.Name
		if name == "" {
			name = "Unknown Product"
		}

		id, ok := it.ProductID.Canonical()
		if !ok {
			problems = append(problems, fmt.Sprintf("invalid product id %q for item %s", string(it.ProductID), name))
			continue
		}
		if it.Quantity <= 0 {
			problems = append(problems, fmt.Sprintf("invalid quantity %d for item %s", it.Quantity, name))
			continue
		}

		p, found := products[id]
		if !found {
			problems = append(problems, fmt.Sprintf("product with id %s not found", id))
			continue
		}
		if p.StockQuantity < it.Quantity {
			problems = append(problems, fmt.Sprintf("not enough stock for %s: available %d, requested %d",
				p.Name, p.StockQuantity, it.Quantity))
			continue
		}

		cleaned = append(cleaned, OrderItem{
			ProductID:  p.ID,
			Name:       p.Name,
			Quantity:   it.Quantity,
			PriceCents: p.PriceCents,
			Image:      p.Image,
		})
	}

	if len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}
	return cleaned, nil
}
