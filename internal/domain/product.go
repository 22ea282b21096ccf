package domain

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// PRODUCT / INVENTORY DOMAIN TYPES
// =============================================================================

// Inventory-related domain errors.
var (
	ErrProductNotFound   = &Error{Code: ENOTFOUND, Message: "Product not found"}
	ErrInsufficientStock = &Error{Code: ECONFLICT, Message: "Insufficient stock for one or more items"}
)

// Product is the slice of a catalog entry the checkout pipeline needs.
// Catalog CRUD lives elsewhere; prices are in paise.
type Product struct {
	ID        uuid.UUID
	Name      string
	Slug      string
	Price     int64
	Images    []string
	IsActive  bool
	SoldCount int
	Inventory []Variant
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Variant is one (color, size) stock row of a product.
type Variant struct {
	Color    *string
	Size     *string
	Quantity int
	SKU      string
}

// PrimaryImage returns the first product image or an empty string.
func (p *Product) PrimaryImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

// FindVariant returns the inventory row matching the requested attributes.
// A nil constraint only matches rows where that attribute is also absent.
func (p *Product) FindVariant(color, size *string) *Variant {
	for i := range p.Inventory {
		v := &p.Inventory[i]
		if v.Matches(color, size) {
			return v
		}
	}
	return nil
}

// Available reports whether the matching variant holds at least qty units.
func (p *Product) Available(color, size *string, qty int) bool {
	v := p.FindVariant(color, size)
	return v != nil && v.Quantity >= qty
}

// Matches reports whether the variant is the row for (color, size).
func (v *Variant) Matches(color, size *string) bool {
	return sameAttr(v.Color, color) && sameAttr(v.Size, size)
}

func sameAttr(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// VariantKey renders (color, size) for log lines and error messages.
func VariantKey(color, size *string) string {
	c, s := "-", "-"
	if color != nil {
		c = *color
	}
	if size != nil {
		s = *size
	}
	return c + "/" + s
}
