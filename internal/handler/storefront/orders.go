package storefront

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/dukerupert/kirana/internal/domain"
	"github.com/dukerupert/kirana/internal/handler"
)

// OrderHandler serves checkout, order history and payment confirmation.
type OrderHandler struct {
	checkout   domain.CheckoutService
	orders     domain.OrderService
	settlement domain.SettlementService
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(checkout domain.CheckoutService, orders domain.OrderService, settlement domain.SettlementService) *OrderHandler {
	return &OrderHandler{checkout: checkout, orders: orders, settlement: settlement}
}

type addressRequest struct {
	Street  string `json:"street" validate:"required,max=200"`
	City    string `json:"city" validate:"required,max=100"`
	State   string `json:"state" validate:"required,max=100"`
	ZipCode string `json:"zipCode" validate:"required,max=12"`
	Country string `json:"country" validate:"required,max=100"`
}

type placeOrderRequest struct {
	ShippingAddress addressRequest `json:"shippingAddress"`
	ContactNumber   string         `json:"contactNumber" validate:"required,min=7,max=20"`
	PaymentMethod   string         `json:"paymentMethod" validate:"omitempty,oneof=card upi cod"`
}

type confirmRequest struct {
	PaymentIntentID string `json:"paymentIntentId" validate:"omitempty,max=255"`
}

type updateStatusRequest struct {
	OrderStatus    *string `json:"orderStatus" validate:"omitempty,oneof=pending processing shipped delivered cancelled"`
	ShippingStatus *string `json:"shippingStatus" validate:"omitempty,oneof=pending packed shipped in_transit delivered"`
	TrackingNumber *string `json:"trackingNumber" validate:"omitempty,max=100"`
	TrackingURL    *string `json:"trackingUrl" validate:"omitempty,url,max=500"`
}

// PlaceOrder handles POST /orders
func (h *OrderHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := handler.DecodeJSON(r, "checkout.place_order", &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	result, err := h.checkout.PlaceOrder(r.Context(), domain.RequireUserID(r.Context()), domain.PlaceOrderParams{
		ShippingAddress: domain.Address(req.ShippingAddress),
		ContactNumber:   req.ContactNumber,
		PaymentMethod:   domain.PaymentMethod(req.PaymentMethod),
	})
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.WriteJSON(w, http.StatusCreated, map[string]any{
		"order":        result.Order,
		"clientSecret": result.ClientSecret,
	})
}

// List handles GET /orders?page=&limit=&status=
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	const op = "order.list"
	q := r.URL.Query()

	var params domain.ListOrdersParams
	var err error
	if params.Page, err = queryInt(q.Get("page")); err != nil {
		handler.ErrorResponse(w, r, domain.NewValidationError(op, "page", "must be a number"))
		return
	}
	if params.Limit, err = queryInt(q.Get("limit")); err != nil {
		handler.ErrorResponse(w, r, domain.NewValidationError(op, "limit", "must be a number"))
		return
	}
	if s := strings.TrimSpace(q.Get("status")); s != "" {
		status := domain.OrderStatus(s)
		params.Status = &status
	}

	page, err := h.orders.ListOrders(r.Context(), domain.RequireUserID(r.Context()), params)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, page)
}

// Get handles GET /orders/{id}
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	orderID, err := handler.PathUUID(r, "id", "order.get")
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	order, err := h.orders.GetOrder(r.Context(), domain.RequireUserID(r.Context()), orderID)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, map[string]any{"order": order})
}

// Confirm handles POST /orders/{id}/confirm. A payment that has not
// succeeded is a client error on this endpoint, not 402.
func (h *OrderHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	const op = "order.confirm"

	orderID, err := handler.PathUUID(r, "id", op)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	var req confirmRequest
	if r.ContentLength != 0 {
		if err := handler.DecodeJSON(r, op, &req); err != nil {
			handler.ErrorResponse(w, r, err)
			return
		}
	}

	result, err := h.settlement.Settle(r.Context(), domain.SettleParams{
		OrderID:         orderID,
		UserID:          domain.RequireUserID(r.Context()),
		PaymentIntentID: req.PaymentIntentID,
		Source:          domain.SettleSourceClient,
	})
	if err != nil {
		if errors.Is(err, domain.ErrPaymentNotSucceeded) {
			handler.ErrorResponseWithStatus(w, r, err, http.StatusBadRequest)
			return
		}
		handler.ErrorResponse(w, r, err)
		return
	}

	message := "Order confirmed"
	if result.AlreadySettled {
		message = "Order already confirmed"
	}
	handler.WriteJSON(w, http.StatusOK, map[string]any{
		"order":   result.Order,
		"message": message,
	})
}

// UpdateStatus handles PUT /admin/orders/{id}/status
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	const op = "order.update_status"

	orderID, err := handler.PathUUID(r, "id", op)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	var req updateStatusRequest
	if err := handler.DecodeJSON(r, op, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	if req.OrderStatus == nil && req.ShippingStatus == nil && req.TrackingNumber == nil && req.TrackingURL == nil {
		handler.ErrorResponse(w, r, domain.Invalid(op, "Nothing to update"))
		return
	}

	params := domain.UpdateOrderStatusParams{
		TrackingNumber: req.TrackingNumber,
		TrackingURL:    req.TrackingURL,
	}
	if req.OrderStatus != nil {
		s := domain.OrderStatus(*req.OrderStatus)
		params.OrderStatus = &s
	}
	if req.ShippingStatus != nil {
		s := domain.ShippingStatus(*req.ShippingStatus)
		params.ShippingStatus = &s
	}

	order, err := h.orders.UpdateOrderStatus(r.Context(), orderID, params)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, map[string]any{"order": order})
}

func queryInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}
