package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func str(s string) *string { return &s }

func TestProduct_FindVariant(t *testing.T) {
	p := Product{
		ID: uuid.New(),
		Inventory: []Variant{
			{Color: str("red"), Size: str("M"), Quantity: 3, SKU: "TEE-RED-M"},
			{Color: str("red"), Quantity: 1, SKU: "TEE-RED"},
			{Quantity: 7, SKU: "TEE"},
		},
	}

	tests := []struct {
		name    string
		color   *string
		size    *string
		wantSKU string
	}{
		{"exact color and size", str("red"), str("M"), "TEE-RED-M"},
		{"color only matches row without size", str("red"), nil, "TEE-RED"},
		{"no attributes matches bare row", nil, nil, "TEE"},
		{"unknown size", str("red"), str("XL"), ""},
		{"size without color", nil, str("M"), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := p.FindVariant(tt.color, tt.size)
			if tt.wantSKU == "" {
				assert.Nil(t, v)
				return
			}
			if assert.NotNil(t, v) {
				assert.Equal(t, tt.wantSKU, v.SKU)
			}
		})
	}
}

func TestProduct_Available(t *testing.T) {
	p := Product{Inventory: []Variant{{Color: str("blue"), Quantity: 2, SKU: "B"}}}

	assert.True(t, p.Available(str("blue"), nil, 2))
	assert.False(t, p.Available(str("blue"), nil, 3))
	assert.False(t, p.Available(str("green"), nil, 1))
}

func TestProduct_PrimaryImage(t *testing.T) {
	assert.Equal(t, "", (&Product{}).PrimaryImage())
	assert.Equal(t, "a.jpg", (&Product{Images: []string{"a.jpg", "b.jpg"}}).PrimaryImage())
}

func TestVariantKey(t *testing.T) {
	assert.Equal(t, "red/M", VariantKey(str("red"), str("M")))
	assert.Equal(t, "-/-", VariantKey(nil, nil))
}

func TestCart_FindItemAndSameVariant(t *testing.T) {
	productID := uuid.New()
	item := CartItem{ID: uuid.New(), ProductID: productID, Quantity: 1, Color: str("red")}
	c := &Cart{Items: []CartItem{item}}

	assert.NotNil(t, c.FindItem(item.ID))
	assert.Nil(t, c.FindItem(uuid.New()))
	assert.True(t, item.SameVariant(productID, str("red"), nil))
	assert.False(t, item.SameVariant(productID, str("red"), str("M")))
	assert.False(t, c.IsEmpty())

	var nilCart *Cart
	assert.True(t, nilCart.IsEmpty())
}
