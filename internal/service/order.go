package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dukerupert/kirana/internal/domain"
	"github.com/dukerupert/kirana/internal/repository"
)

const (
	defaultOrderPageSize = 10
	maxOrderPageSize     = 100
)

type orderService struct {
	store  repository.Store
	logger zerolog.Logger
	now    func() time.Time
}

// NewOrderService creates a new OrderService instance
func NewOrderService(store repository.Store, logger zerolog.Logger) domain.OrderService {
	return &orderService{
		store:  store,
		logger: logger.With().Str("service", "order").Logger(),
		now:    time.Now,
	}
}

// ListOrders returns a page of the user's orders, newest first.
func (s *orderService) ListOrders(ctx context.Context, userID uuid.UUID, params domain.ListOrdersParams) (*domain.OrderPage, error) {
	page, limit := params.Page, params.Limit
	if page == 0 {
		page = 1
	}
	if limit == 0 {
		limit = defaultOrderPageSize
	}
	if page < 0 || limit < 0 {
		return nil, ErrInvalidPage
	}
	limit = min(limit, maxOrderPageSize)
	if params.Status != nil && !params.Status.Valid() {
		return nil, domain.ErrInvalidOrderStatus
	}

	orders, total, err := s.store.ListOrdersByUser(ctx, userID, repository.OrderFilter{
		Status: params.Status,
		Limit:  limit,
		Offset: (page - 1) * limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	if orders == nil {
		orders = []domain.Order{}
	}

	return &domain.OrderPage{
		Orders: orders,
		Pagination: domain.Pagination{
			Page:  page,
			Limit: limit,
			Total: total,
			Pages: (total + limit - 1) / limit,
		},
	}, nil
}

// GetOrder returns one of the user's orders. Another user's order reads as
// not found.
func (s *orderService) GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*domain.Order, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, domain.ErrOrderNotFound
	}
	return order, nil
}

// UpdateOrderStatus applies an admin fulfillment update. An order whose
// payment has not completed can only be cancelled.
func (s *orderService) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, params domain.UpdateOrderStatusParams) (*domain.Order, error) {
	if params.OrderStatus != nil && !params.OrderStatus.Valid() {
		return nil, domain.ErrInvalidOrderStatus
	}
	if params.ShippingStatus != nil && !params.ShippingStatus.Valid() {
		return nil, domain.Invalid("order.update_status", "Invalid shipping status")
	}

	var updated *domain.Order
	err := s.store.InTx(ctx, func(q repository.Querier) error {
		order, err := q.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}

		if order.Payment.Status != domain.PaymentStatusCompleted {
			advancing := params.ShippingStatus != nil ||
				(params.OrderStatus != nil && *params.OrderStatus != domain.OrderStatusCancelled && *params.OrderStatus != order.Status)
			if advancing {
				return domain.ErrOrderNotPaid
			}
		}

		var deliveredAt *time.Time
		if (params.OrderStatus != nil && *params.OrderStatus == domain.OrderStatusDelivered) ||
			(params.ShippingStatus != nil && *params.ShippingStatus == domain.ShippingStatusDelivered) {
			now := s.now()
			deliveredAt = &now
		}

		if err := q.UpdateOrderFulfillment(ctx, orderID, params, deliveredAt); err != nil {
			return fmt.Errorf("failed to update order: %w", err)
		}
		updated, err = q.GetOrder(ctx, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("order_id", orderID.String()).
		Str("order_status", string(updated.Status)).
		Str("shipping_status", string(updated.ShippingStatus)).
		Msg("Order status updated")
	return updated, nil
}
