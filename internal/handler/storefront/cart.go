package storefront

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/dukerupert/kirana/internal/domain"
	"github.com/dukerupert/kirana/internal/handler"
)

// CartHandler serves the authenticated user's cart.
type CartHandler struct {
	carts domain.CartService
}

// NewCartHandler creates a new cart handler
func NewCartHandler(carts domain.CartService) *CartHandler {
	return &CartHandler{carts: carts}
}

type addItemRequest struct {
	ProductID string  `json:"productId" validate:"required,uuid"`
	Quantity  *int    `json:"quantity" validate:"omitempty,min=1,max=100"`
	Color     *string `json:"color" validate:"omitempty,max=64"`
	Size      *string `json:"size" validate:"omitempty,max=64"`
}

type updateItemRequest struct {
	Quantity *int `json:"quantity" validate:"required,max=100"`
}

type applyCouponRequest struct {
	Code string `json:"code" validate:"required,max=64"`
}

type setCoinsRequest struct {
	Coins *int64 `json:"coins" validate:"required"`
}

// Get handles GET /cart
func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	view, err := h.carts.GetCart(r.Context(), domain.RequireUserID(r.Context()))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, map[string]any{"cart": view})
}

// AddItem handles POST /cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	const op = "cart.add_item"

	var req addItemRequest
	if err := handler.DecodeJSON(r, op, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	view, err := h.carts.AddItem(r.Context(), domain.RequireUserID(r.Context()), domain.AddCartItemParams{
		ProductID: uuid.MustParse(req.ProductID),
		Quantity:  quantity,
		Color:     req.Color,
		Size:      req.Size,
	})
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusCreated, map[string]any{"cart": view})
}

// UpdateItem handles PUT /cart/items/{itemID}
func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	const op = "cart.update_item"

	itemID, err := handler.PathUUID(r, "itemID", op)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	var req updateItemRequest
	if err := handler.DecodeJSON(r, op, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	view, err := h.carts.UpdateItemQuantity(r.Context(), domain.RequireUserID(r.Context()), itemID, *req.Quantity)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, map[string]any{"cart": view})
}

// RemoveItem handles DELETE /cart/items/{itemID}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := handler.PathUUID(r, "itemID", "cart.remove_item")
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	view, err := h.carts.RemoveItem(r.Context(), domain.RequireUserID(r.Context()), itemID)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, map[string]any{"cart": view})
}

// Clear handles DELETE /cart
func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.carts.Clear(r.Context(), domain.RequireUserID(r.Context())); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, map[string]string{"message": "Cart cleared"})
}

// ApplyCoupon handles POST /cart/coupon
func (h *CartHandler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	var req applyCouponRequest
	if err := handler.DecodeJSON(r, "cart.apply_coupon", &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	summary, err := h.carts.ApplyCoupon(r.Context(), domain.RequireUserID(r.Context()), req.Code)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, map[string]any{"coupon": summary})
}

// RemoveCoupon handles DELETE /cart/coupon
func (h *CartHandler) RemoveCoupon(w http.ResponseWriter, r *http.Request) {
	if err := h.carts.RemoveCoupon(r.Context(), domain.RequireUserID(r.Context())); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, map[string]string{"message": "Coupon removed"})
}

// SetCoins handles POST /cart/coins
func (h *CartHandler) SetCoins(w http.ResponseWriter, r *http.Request) {
	var req setCoinsRequest
	if err := handler.DecodeJSON(r, "cart.set_coins", &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	coins, err := h.carts.SetCoins(r.Context(), domain.RequireUserID(r.Context()), *req.Coins)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, map[string]int64{"coinsToUse": coins})
}
