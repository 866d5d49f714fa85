// Package catalog holds the product-variant data the order core prices
// lines against. Variants are owned by an external catalog service; this
// package only models the slice of them the order pipeline needs.
package catalog

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when a requested variant does not exist.
var ErrNotFound = errors.New("variant not found")

// Variant is a purchasable product variant.
type Variant struct {
	ID   string
	Name string
	// UnitPrice is the net price per unit in minor currency units.
	UnitPrice int64
	// TaxRate is the applicable tax rate in basis points (2300 = 23%).
	TaxRate int
	// Digital variants need no physical shipping.
	Digital bool
	// Stock is the currently available quantity.
	Stock int
}

// Repository defines read access to variants and their stock levels.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Variant, error)
	GetByIDs(ctx context.Context, ids []string) ([]Variant, error)
}
