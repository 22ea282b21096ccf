package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dukerupert/kirana/internal/billing"
	"github.com/dukerupert/kirana/internal/domain"
	"github.com/dukerupert/kirana/internal/events"
	"github.com/dukerupert/kirana/internal/pricing"
	"github.com/dukerupert/kirana/internal/repository"
	"github.com/dukerupert/kirana/internal/telemetry"
)

// settlementService implements domain.SettlementService.
type settlementService struct {
	store     repository.Store
	billing   billing.Provider
	policy    pricing.Policy
	publisher events.Publisher
	logger    zerolog.Logger
	now       func() time.Time
}

// NewSettlementService creates a new SettlementService instance. A nil
// publisher disables settlement events.
func NewSettlementService(store repository.Store, provider billing.Provider, policy pricing.Policy, publisher events.Publisher, logger zerolog.Logger) domain.SettlementService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &settlementService{
		store:     store,
		billing:   provider,
		policy:    policy,
		publisher: publisher,
		logger:    logger.With().Str("service", "settlement").Logger(),
		now:       time.Now,
	}
}

// Settle verifies a payment with the processor and applies every settlement
// side effect in one transaction. The pending -> completed transition is the
// guard: whichever caller flips it owns the side effects, every other caller
// gets the settled order back with AlreadySettled set.
func (s *settlementService) Settle(ctx context.Context, params domain.SettleParams) (*domain.SettleResult, error) {
	const op = "settlement.settle"

	source := params.Source
	if source == "" {
		source = domain.SettleSourceClient
	}
	start := time.Now()

	result, err := s.settle(ctx, params)

	if telemetry.Business != nil {
		telemetry.Business.SettlementDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())
		telemetry.Business.Settlements.WithLabelValues(source, settlementResult(result, err)).Inc()
	}
	if err != nil {
		if domain.ErrorCode(err) == domain.EINTERNAL {
			s.logger.Error().Err(err).
				Str("op", op).
				Str("order_id", params.OrderID.String()).
				Str("payment_intent_id", params.PaymentIntentID).
				Str("source", source).
				Msg("Settlement failed")
			telemetry.CaptureErrorWithOrder(err, params.OrderID.String(), params.PaymentIntentID, map[string]interface{}{"source": source})
		}
		return nil, err
	}

	if result.AlreadySettled {
		s.logger.Debug().Str("order_id", result.Order.ID.String()).Str("source", source).Msg("Order already settled")
		return result, nil
	}

	s.logger.Info().
		Str("order_id", result.Order.ID.String()).
		Str("user_id", result.Order.UserID.String()).
		Str("payment_intent_id", result.Order.Payment.IntentID).
		Int64("total", result.Order.Price.Total).
		Str("source", source).
		Msg("Order settled")

	if telemetry.Business != nil {
		telemetry.Business.PaymentSucceeded.WithLabelValues(source).Inc()
		telemetry.Business.RevenueCollected.Add(float64(result.Order.Price.Total))
		if result.Order.CoinsUsed > 0 {
			telemetry.Business.CoinsSpent.Add(float64(result.Order.CoinsUsed))
		}
	}

	evt := events.OrderSettled{
		OrderID:         result.Order.ID,
		UserID:          result.Order.UserID,
		PaymentIntentID: result.Order.Payment.IntentID,
		Total:           result.Order.Price.Total,
		CoinsUsed:       result.Order.CoinsUsed,
		CouponCode:      result.Order.CouponCode,
		Source:          source,
	}
	if result.Order.Payment.PaidAt != nil {
		evt.SettledAt = *result.Order.Payment.PaidAt
	}
	if err := s.publisher.OrderSettled(ctx, evt); err != nil {
		s.logger.Warn().Err(err).Str("order_id", result.Order.ID.String()).Msg("Failed to publish order settled event")
	}

	return result, nil
}

func (s *settlementService) settle(ctx context.Context, params domain.SettleParams) (*domain.SettleResult, error) {
	const op = "settlement.settle"

	order, err := s.loadOrder(ctx, params)
	if err != nil {
		return nil, err
	}
	if order.IsSettled() {
		return &domain.SettleResult{Order: order, AlreadySettled: true}, nil
	}

	start := time.Now()
	intent, err := s.billing.GetPaymentIntent(ctx, order.Payment.IntentID)
	if telemetry.Business != nil {
		telemetry.Business.StripeAPILatency.WithLabelValues("get_payment_intent").Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return nil, domain.Unavailable(errors.Join(domain.ErrPaymentProcessor, err), op, "Failed to verify payment")
	}
	if !intent.Succeeded() {
		return nil, domain.ErrPaymentNotSucceeded
	}
	if intent.Amount != order.Price.Total {
		return nil, &domain.Error{
			Code:    domain.EINTERNAL,
			Op:      op,
			Message: "Payment amount does not match order total",
			Err:     fmt.Errorf("%w: intent %d, order %d", ErrAmountMismatch, intent.Amount, order.Price.Total),
		}
	}

	paidAt := s.now()
	var settled *domain.Order
	err = s.store.InTx(ctx, func(q repository.Querier) error {
		if err := q.MarkOrderPaid(ctx, order.ID, paidAt); err != nil {
			return err
		}
		if err := s.applySideEffects(ctx, q, order, paidAt); err != nil {
			return err
		}
		settled, err = q.GetOrder(ctx, order.ID)
		return err
	})
	if errors.Is(err, repository.ErrAlreadySettled) {
		current, gerr := s.store.GetOrder(ctx, order.ID)
		if gerr != nil {
			return nil, gerr
		}
		return &domain.SettleResult{Order: current, AlreadySettled: true}, nil
	}
	if err != nil {
		if telemetry.Business != nil && errors.Is(err, domain.ErrInsufficientStock) {
			telemetry.Business.InventoryConflicts.Inc()
		}
		return nil, domain.WrapError(err, domain.EINTERNAL, op, "Failed to settle order")
	}

	return &domain.SettleResult{Order: settled}, nil
}

// loadOrder resolves the order a settlement call refers to.
func (s *settlementService) loadOrder(ctx context.Context, params domain.SettleParams) (*domain.Order, error) {
	switch {
	case params.OrderID != uuid.Nil:
		order, err := s.store.GetOrder(ctx, params.OrderID)
		if err != nil {
			return nil, err
		}
		if params.UserID != uuid.Nil && order.UserID != params.UserID {
			return nil, domain.ErrOrderNotFound
		}
		if params.PaymentIntentID != "" && params.PaymentIntentID != order.Payment.IntentID {
			return nil, domain.ErrPaymentIntentMismatch
		}
		return order, nil
	case params.PaymentIntentID != "":
		return s.store.GetOrderByIntentID(ctx, params.PaymentIntentID)
	default:
		return nil, ErrMissingIdentifier
	}
}

// applySideEffects consumes coins, coupon usage and inventory for a freshly
// paid order. Any failure aborts the surrounding transaction.
func (s *settlementService) applySideEffects(ctx context.Context, q repository.Querier, order *domain.Order, paidAt time.Time) error {
	orderID := order.ID

	if order.CoinsUsed > 0 {
		if err := q.DeductCoins(ctx, order.UserID, order.CoinsUsed); err != nil {
			return fmt.Errorf("failed to deduct coins: %w", err)
		}
		if err := q.RecordCoinTransaction(ctx, &domain.CoinTransaction{
			UserID:    order.UserID,
			Amount:    -order.CoinsUsed,
			Reason:    domain.CoinReasonOrderSpend,
			OrderID:   &orderID,
			CreatedAt: paidAt,
		}); err != nil {
			return fmt.Errorf("failed to record coin spend: %w", err)
		}
	}

	if order.CouponCode != nil {
		coupon, err := q.GetCouponByCode(ctx, *order.CouponCode)
		if err != nil {
			return fmt.Errorf("failed to load coupon: %w", err)
		}
		if err := q.IncrementCouponUsage(ctx, coupon.ID, order.UserID, orderID); err != nil {
			return fmt.Errorf("failed to record coupon usage: %w", err)
		}
		if telemetry.Business != nil {
			telemetry.Business.CouponRedemptions.WithLabelValues(string(coupon.Type)).Inc()
		}

		if coupon.IsReferral() {
			bonus := s.policy.ReferralBonus(order.Price.Subtotal)
			if bonus > 0 {
				if err := q.CreditCoins(ctx, *coupon.OwnerID, bonus); err != nil {
					return fmt.Errorf("failed to credit referral bonus: %w", err)
				}
				if err := q.RecordCoinTransaction(ctx, &domain.CoinTransaction{
					UserID:    *coupon.OwnerID,
					Amount:    bonus,
					Reason:    domain.CoinReasonReferralOrder,
					OrderID:   &orderID,
					CreatedAt: paidAt,
				}); err != nil {
					return fmt.Errorf("failed to record referral bonus: %w", err)
				}
				if telemetry.Business != nil {
					telemetry.Business.CoinsCredited.WithLabelValues(string(domain.CoinReasonReferralOrder)).Add(float64(bonus))
				}
			}
		}
	}

	for _, item := range order.Items {
		if err := q.DecrementInventory(ctx, item.ProductID, item.Color, item.Size, item.Quantity); err != nil {
			return fmt.Errorf("failed to decrement inventory for %s: %w", item.Name, err)
		}
		if err := q.IncrementSoldCount(ctx, item.ProductID, item.Quantity); err != nil {
			return fmt.Errorf("failed to increment sold count: %w", err)
		}
	}

	if err := q.DeleteCart(ctx, order.UserID); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

// MarkPaymentFailed records a failed or canceled payment. Orders that are
// no longer pending are left alone, as are unknown intents.
func (s *settlementService) MarkPaymentFailed(ctx context.Context, intentID string, canceled bool) error {
	status := domain.OrderStatusPending
	reason := "payment_failed"
	if canceled {
		status = domain.OrderStatusCancelled
		reason = "canceled"
	}

	updated, err := s.store.MarkOrderPaymentFailed(ctx, intentID, status)
	if errors.Is(err, domain.ErrOrderNotFound) {
		s.logger.Warn().Str("payment_intent_id", intentID).Msg("Payment failure for unknown order")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to mark payment failed: %w", err)
	}
	if !updated {
		s.logger.Debug().Str("payment_intent_id", intentID).Msg("Payment failure ignored for settled order")
		return nil
	}

	if telemetry.Business != nil {
		telemetry.Business.PaymentFailed.WithLabelValues(reason).Inc()
	}
	s.logger.Info().Str("payment_intent_id", intentID).Bool("canceled", canceled).Msg("Order payment failed")

	if err := s.publisher.OrderPaymentFailed(ctx, events.OrderPaymentFailed{
		PaymentIntentID: intentID,
		Canceled:        canceled,
		FailedAt:        s.now(),
	}); err != nil {
		s.logger.Warn().Err(err).Str("payment_intent_id", intentID).Msg("Failed to publish payment failed event")
	}
	return nil
}

func settlementResult(result *domain.SettleResult, err error) string {
	switch {
	case err != nil:
		return "error"
	case result.AlreadySettled:
		return "duplicate"
	default:
		return "settled"
	}
}
