// Package worker runs background reconciliation of payment-pending orders.
//
// The Stripe webhook acknowledges every verified delivery, even when
// settlement fails, so a missed or failed delivery is never retried by the
// processor. The reconciler closes that gap: it periodically re-reads the
// payment intent of every pending order past a minimum age and drives the
// order through the same settlement path the webhook uses. Orders still
// waiting on the shopper after IntentTTL have their intent canceled, which
// keeps abandoned checkouts from accumulating in the pending set.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dukerupert/kirana/internal/billing"
	"github.com/dukerupert/kirana/internal/domain"
	"github.com/dukerupert/kirana/internal/repository"
	"github.com/dukerupert/kirana/internal/telemetry"
)

// Config holds reconciler configuration
type Config struct {
	// WorkerID uniquely identifies this worker instance
	WorkerID string

	// Interval is how often to scan for pending orders
	Interval time.Duration

	// MinAge skips orders younger than this, giving the client confirm call
	// and the webhook time to settle them first
	MinAge time.Duration

	// BatchSize is the page size used to walk the pending orders
	BatchSize int

	// IntentTTL is how long an order may wait on the shopper before its
	// payment intent is canceled and the order closed
	IntentTTL time.Duration

	// MaxConcurrency is the maximum number of orders reconciled concurrently
	MaxConcurrency int
}

// PendingOrderLister is the slice of the store the reconciler reads.
type PendingOrderLister interface {
	ListPendingOrders(ctx context.Context, createdBefore time.Time, after *repository.PendingCursor, limit int) ([]domain.Order, error)
}

// Report summarizes one reconciliation pass.
type Report struct {
	Checked  int
	Settled  int
	Canceled int
	Expired  int
	Skipped  int
	Failed   int
}

// Reconciler settles orders whose payment succeeded without a settlement.
type Reconciler struct {
	config     Config
	orders     PendingOrderLister
	billing    billing.Provider
	settlement domain.SettlementService
	logger     zerolog.Logger
	now        func() time.Time
}

// NewReconciler creates a new reconciliation worker
func NewReconciler(
	orders PendingOrderLister,
	provider billing.Provider,
	settlement domain.SettlementService,
	config Config,
	logger zerolog.Logger,
) *Reconciler {
	// Set defaults
	if config.WorkerID == "" {
		config.WorkerID = fmt.Sprintf("reconciler-%s", uuid.New().String()[:8])
	}
	if config.Interval == 0 {
		config.Interval = 5 * time.Minute
	}
	if config.MinAge == 0 {
		config.MinAge = 15 * time.Minute
	}
	if config.BatchSize == 0 {
		config.BatchSize = 100
	}
	if config.MaxConcurrency == 0 {
		config.MaxConcurrency = 5
	}
	if config.IntentTTL == 0 {
		config.IntentTTL = 24 * time.Hour
	}

	return &Reconciler{
		config:     config,
		orders:     orders,
		billing:    provider,
		settlement: settlement,
		logger:     logger.With().Str("component", "reconciler").Str("worker_id", config.WorkerID).Logger(),
		now:        time.Now,
	}
}

// Start runs a reconciliation pass every Interval until ctx is cancelled.
// A pass in progress when ctx is cancelled is allowed to finish.
func (r *Reconciler) Start(ctx context.Context) error {
	r.logger.Info().
		Dur("interval", r.config.Interval).
		Dur("min_age", r.config.MinAge).
		Int("batch_size", r.config.BatchSize).
		Int("max_concurrency", r.config.MaxConcurrency).
		Dur("intent_ttl", r.config.IntentTTL).
		Msg("Reconciler starting")

	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("Reconciler shutting down")
			return ctx.Err()

		case <-ticker.C:
			// Detach from ctx so shutdown does not abort a half-finished pass
			if _, err := r.RunOnce(context.WithoutCancel(ctx)); err != nil {
				r.logger.Error().Err(err).Msg("Reconciliation pass failed")
			}
		}
	}
}

// RunOnce walks every stale pending order, one page of BatchSize at a time.
func (r *Reconciler) RunOnce(ctx context.Context) (Report, error) {
	var report Report
	if telemetry.Business != nil {
		telemetry.Business.ReconcileRuns.Inc()
	}

	cutoff := r.now().Add(-r.config.MinAge)
	var after *repository.PendingCursor
	for {
		orders, err := r.orders.ListPendingOrders(ctx, cutoff, after, r.config.BatchSize)
		if err != nil {
			return report, fmt.Errorf("failed to list pending orders: %w", err)
		}
		r.reconcileBatch(ctx, orders, &report)
		if len(orders) < r.config.BatchSize {
			break
		}
		after = repository.CursorAfter(&orders[len(orders)-1])
	}

	if telemetry.Business != nil {
		telemetry.Business.ReconcileChecked.Add(float64(report.Checked))
		telemetry.Business.ReconcileSettled.Add(float64(report.Settled))
		telemetry.Business.ReconcileFailed.Add(float64(report.Failed))
		telemetry.Business.ReconcileExpired.Add(float64(report.Expired))
	}

	r.logger.Info().
		Int("checked", report.Checked).
		Int("settled", report.Settled).
		Int("canceled", report.Canceled).
		Int("expired", report.Expired).
		Int("skipped", report.Skipped).
		Int("failed", report.Failed).
		Msg("Reconciliation pass complete")
	return report, nil
}

// reconcileBatch reconciles one page with at most MaxConcurrency in flight.
func (r *Reconciler) reconcileBatch(ctx context.Context, orders []domain.Order, report *Report) {
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		sem = make(chan struct{}, r.config.MaxConcurrency)
	)
	for i := range orders {
		order := &orders[i]
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			outcome := r.reconcileOrder(ctx, order)

			mu.Lock()
			defer mu.Unlock()
			report.Checked++
			switch outcome {
			case outcomeSettled:
				report.Settled++
			case outcomeCanceled:
				report.Canceled++
			case outcomeExpired:
				report.Expired++
			case outcomeFailed:
				report.Failed++
			default:
				report.Skipped++
			}
		}()
	}
	wg.Wait()
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeSettled
	outcomeCanceled
	outcomeExpired
	outcomeFailed
)

// reconcileOrder brings one pending order in line with its payment intent.
func (r *Reconciler) reconcileOrder(ctx context.Context, order *domain.Order) outcome {
	log := r.logger.With().
		Str("order_id", order.ID.String()).
		Str("payment_intent_id", order.Payment.IntentID).
		Logger()

	intent, err := r.billing.GetPaymentIntent(ctx, order.Payment.IntentID)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to retrieve payment intent")
		return outcomeFailed
	}

	switch intent.Status {
	case billing.IntentStatusSucceeded:
		res, err := r.settlement.Settle(ctx, domain.SettleParams{
			OrderID:         order.ID,
			PaymentIntentID: order.Payment.IntentID,
			Source:          domain.SettleSourceReconcile,
		})
		if err != nil {
			log.Error().Err(err).Msg("Failed to settle paid order")
			telemetry.CaptureErrorWithOrder(err, order.ID.String(), order.Payment.IntentID, map[string]interface{}{
				"source": domain.SettleSourceReconcile,
			})
			return outcomeFailed
		}
		if res.AlreadySettled {
			return outcomeSkipped
		}
		log.Info().Msg("Recovered unsettled payment")
		return outcomeSettled

	case billing.IntentStatusCanceled:
		if err := r.settlement.MarkPaymentFailed(ctx, order.Payment.IntentID, true); err != nil {
			log.Error().Err(err).Msg("Failed to mark canceled payment")
			return outcomeFailed
		}
		return outcomeCanceled

	case billing.IntentStatusProcessing:
		// The processor owns the outcome; its webhook or a later pass settles it
		return outcomeSkipped

	default:
		if r.now().Sub(order.CreatedAt) < r.config.IntentTTL {
			return outcomeSkipped
		}
		return r.expireOrder(ctx, order, log)
	}
}

// expireOrder cancels an abandoned payment intent and closes its order.
// A cancel refused by the processor, for example because the shopper paid in
// the meantime, is left for the next pass.
func (r *Reconciler) expireOrder(ctx context.Context, order *domain.Order, log zerolog.Logger) outcome {
	if err := r.billing.CancelPaymentIntent(ctx, order.Payment.IntentID); err != nil {
		log.Warn().Err(err).Msg("Failed to cancel abandoned payment intent")
		return outcomeFailed
	}
	if err := r.settlement.MarkPaymentFailed(ctx, order.Payment.IntentID, true); err != nil {
		log.Error().Err(err).Msg("Failed to close abandoned order")
		return outcomeFailed
	}
	log.Info().Time("created_at", order.CreatedAt).Msg("Expired abandoned checkout")
	return outcomeExpired
}
