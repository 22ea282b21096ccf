package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// CART DOMAIN ERRORS
// =============================================================================

var (
	ErrCartNotFound      = &Error{Code: ENOTFOUND, Message: "Cart not found"}
	ErrCartItemNotFound  = &Error{Code: ENOTFOUND, Message: "Item not found in cart"}
	ErrEmptyCart         = &Error{Code: EINVALID, Message: "Cart is empty"}
	ErrInvalidQuantity   = &Error{Code: EINVALID, Message: "Quantity must be greater than 0"}
	ErrOutOfStock        = &Error{Code: EINVALID, Message: "Product out of stock"}
	ErrInsufficientCoins = &Error{Code: EINVALID, Message: "Insufficient coins"}
)

// CartService provides business logic for shopping cart operations.
// Every operation is scoped to the authenticated user; a user owns exactly one cart.
type CartService interface {
	// GetCart returns the live-priced cart view. A user without a cart gets an empty view.
	GetCart(ctx context.Context, userID uuid.UUID) (*CartView, error)

	// AddItem adds a product variant to the cart, merging with an existing line
	// for the same product, color and size.
	AddItem(ctx context.Context, userID uuid.UUID, params AddCartItemParams) (*CartView, error)

	// UpdateItemQuantity sets a line's quantity. Zero or below removes the line.
	UpdateItemQuantity(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*CartView, error)

	// RemoveItem removes a line from the cart.
	RemoveItem(ctx context.Context, userID, itemID uuid.UUID) (*CartView, error)

	// Clear deletes the cart, resetting coupon and coins.
	Clear(ctx context.Context, userID uuid.UUID) error

	// ApplyCoupon validates and stores a coupon code on the cart.
	ApplyCoupon(ctx context.Context, userID uuid.UUID, code string) (*CouponSummary, error)

	// RemoveCoupon clears the stored coupon code.
	RemoveCoupon(ctx context.Context, userID uuid.UUID) error

	// SetCoins records how many coins the user intends to spend.
	SetCoins(ctx context.Context, userID uuid.UUID, coins int64) (int64, error)
}

// Cart is the stored aggregate. CouponCode and CoinsToUse are intent only;
// prices are always recomputed on read.
type Cart struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	Items      []CartItem
	CouponCode *string
	CoinsToUse int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// CartItem is a single line in a cart.
type CartItem struct {
	ID        uuid.UUID
	ProductID uuid.UUID
	Quantity  int
	Color     *string
	Size      *string
	AddedAt   time.Time
}

// SameVariant reports whether the line is for the given product, color and size.
func (i *CartItem) SameVariant(productID uuid.UUID, color, size *string) bool {
	return i.ProductID == productID && sameAttr(i.Color, color) && sameAttr(i.Size, size)
}

// FindItem returns the line with the given ID.
func (c *Cart) FindItem(itemID uuid.UUID) *CartItem {
	for i := range c.Items {
		if c.Items[i].ID == itemID {
			return &c.Items[i]
		}
	}
	return nil
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.Items) == 0
}

// AddCartItemParams is the input to CartService.AddItem.
type AddCartItemParams struct {
	ProductID uuid.UUID
	Quantity  int
	Color     *string
	Size      *string
}

// CartView is a cart joined with live product data and a fresh price breakdown.
type CartView struct {
	ID          uuid.UUID      `json:"id,omitempty"`
	Items       []CartLine     `json:"items"`
	CouponCode  *string        `json:"couponCode"`
	CouponError string         `json:"couponError,omitempty"`
	CoinsToUse  int64          `json:"coinsToUse"`
	Summary     PriceBreakdown `json:"summary"`
}

// CartLine is a cart item decorated with product display data.
type CartLine struct {
	ID        uuid.UUID `json:"id"`
	ProductID uuid.UUID `json:"productId"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Image     string    `json:"image,omitempty"`
	UnitPrice int64     `json:"unitPrice"`
	Quantity  int       `json:"quantity"`
	Color     *string   `json:"color,omitempty"`
	Size      *string   `json:"size,omitempty"`
	LineTotal int64     `json:"lineTotal"`
}

// CouponSummary is returned when a coupon is applied or validated.
type CouponSummary struct {
	Code               string       `json:"code"`
	Type               CouponType   `json:"type"`
	DiscountType       DiscountType `json:"discountType"`
	DiscountValue      int64        `json:"discountValue"`
	MaxDiscount        *int64       `json:"maxDiscount,omitempty"`
	CalculatedDiscount int64        `json:"calculatedDiscount"`
}
