package webhook

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/dukerupert/kirana/internal/billing"
	"github.com/dukerupert/kirana/internal/domain"
	"github.com/dukerupert/kirana/internal/handler"
	"github.com/dukerupert/kirana/internal/telemetry"
	"github.com/rs/zerolog"
)

// SignatureHeader carries the processor's HMAC signature.
const SignatureHeader = "Stripe-Signature"

// StripeHandler handles Stripe webhook events
type StripeHandler struct {
	provider   billing.Provider
	settlement domain.SettlementService
}

// NewStripeHandler creates a new Stripe webhook handler
func NewStripeHandler(provider billing.Provider, settlement domain.SettlementService) *StripeHandler {
	return &StripeHandler{provider: provider, settlement: settlement}
}

// HandleWebhook processes incoming Stripe webhook events.
//
// Responses:
//   - 400 when the body cannot be read, the Stripe-Signature header is
//     missing, or the signature does not verify. Stripe retries these, and
//     they are never processed.
//   - 200 {"received": true} for every verified event, including ones whose
//     processing failed. Those failures are logged, counted and sent to
//     Sentry; the reconciler settles anything they leave pending.
//
// Stripe CLI testing:
//
//	stripe listen --forward-to localhost:3000/webhooks/stripe
//	stripe trigger payment_intent.succeeded
func (h *StripeHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	log := zerolog.Ctx(r.Context())

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		log.Warn().Err(err).Msg("webhook: read body")
		handler.ErrorResponse(w, r, domain.Errorf(domain.EINVALID, "", "Error reading request body"))
		return
	}

	signature := r.Header.Get(SignatureHeader)
	if signature == "" {
		log.Warn().Msg("webhook: missing signature header")
		handler.ErrorResponse(w, r, domain.Errorf(domain.EINVALID, "", "Missing signature"))
		return
	}

	event, err := h.provider.ParseWebhookEvent(payload, signature)
	if err != nil {
		log.Warn().Err(err).Int("bytes", len(payload)).Msg("webhook: signature verification failed")
		handler.ErrorResponse(w, r, domain.Errorf(domain.EINVALID, "", "Invalid signature"))
		return
	}

	evLog := log.With().Str("event_id", event.ID).Str("event_type", event.Type).Logger()
	evLog.Info().Msg("webhook received")

	if telemetry.Business != nil {
		telemetry.Business.WebhookReceived.WithLabelValues(event.Type).Inc()
		defer func() {
			telemetry.Business.WebhookLatency.WithLabelValues(event.Type).Observe(time.Since(start).Seconds())
		}()
	}

	// Settlement must finish even if Stripe hangs up first.
	ctx := evLog.WithContext(context.WithoutCancel(r.Context()))

	var procErr error
	switch event.Type {
	case billing.EventPaymentIntentSucceeded:
		procErr = h.handleSucceeded(ctx, event)
	case billing.EventPaymentIntentFailed:
		procErr = h.handleFailed(ctx, event, false)
	case billing.EventPaymentIntentCanceled:
		procErr = h.handleFailed(ctx, event, true)
	case billing.EventPaymentIntentCreated:
		evLog.Debug().Msg("payment intent created")
	default:
		evLog.Debug().Msg("unhandled event type")
	}

	if procErr != nil {
		reason := string(domain.ErrorCode(procErr))
		evLog.Error().Err(procErr).Msg("webhook processing failed")
		if telemetry.Business != nil {
			telemetry.Business.WebhookFailed.WithLabelValues(event.Type, reason).Inc()
		}
		orderID, intentID := intentRefs(event.PaymentIntent)
		telemetry.CaptureErrorWithOrder(procErr, orderID, intentID, map[string]interface{}{
			"event_id":   event.ID,
			"event_type": event.Type,
		})
	} else if telemetry.Business != nil {
		telemetry.Business.WebhookProcessed.WithLabelValues(event.Type).Inc()
	}

	handler.WriteJSON(w, http.StatusOK, map[string]bool{"received": true})
}

func (h *StripeHandler) handleSucceeded(ctx context.Context, event *billing.Event) error {
	pi := event.PaymentIntent
	if pi == nil || pi.ID == "" {
		return domain.Errorf(domain.EINVALID, "webhook.succeeded", "event has no payment intent")
	}

	result, err := h.settlement.Settle(ctx, domain.SettleParams{
		PaymentIntentID: pi.ID,
		Source:          domain.SettleSourceWebhook,
	})
	log := zerolog.Ctx(ctx)
	switch {
	case errors.Is(err, domain.ErrOrderNotFound):
		// Intents created outside checkout have no order.
		log.Warn().Str("payment_intent_id", pi.ID).Msg("no order for payment intent")
		return nil
	case err != nil:
		return err
	}

	log.Info().
		Str("payment_intent_id", pi.ID).
		Str("order_id", result.Order.ID.String()).
		Bool("already_settled", result.AlreadySettled).
		Msg("payment intent settled")
	return nil
}

func (h *StripeHandler) handleFailed(ctx context.Context, event *billing.Event, canceled bool) error {
	pi := event.PaymentIntent
	if pi == nil || pi.ID == "" {
		return domain.Errorf(domain.EINVALID, "webhook.failed", "event has no payment intent")
	}

	e := zerolog.Ctx(ctx).Info().Str("payment_intent_id", pi.ID).Bool("canceled", canceled)
	if pi.LastPaymentError != nil {
		e = e.Str("decline_code", pi.LastPaymentError.DeclineCode).Str("failure", pi.LastPaymentError.Message)
	}
	e.Msg("payment intent did not complete")

	return h.settlement.MarkPaymentFailed(ctx, pi.ID, canceled)
}

// intentRefs returns the order ID stamped in metadata and the intent ID.
func intentRefs(pi *billing.PaymentIntent) (orderID, intentID string) {
	if pi == nil {
		return "", ""
	}
	return pi.Metadata[billing.MetadataOrderID], pi.ID
}
