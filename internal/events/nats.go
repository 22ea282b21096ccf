package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/dukerupert/kirana/internal/telemetry"
)

// conn is the subset of *nats.Conn the publisher needs.
type conn interface {
	Publish(subj string, data []byte) error
	FlushWithContext(ctx context.Context) error
	Drain() error
}

// NATSPublisher publishes JSON encoded events to core NATS subjects.
type NATSPublisher struct {
	nc     conn
	prefix string
	logger zerolog.Logger
}

// NATSConfig configures the NATS connection.
type NATSConfig struct {
	URL string

	// SubjectPrefix is prepended to every subject, e.g. "kirana."
	SubjectPrefix string

	// Name identifies the connection in server monitoring
	Name string
}

// NewNATSPublisher connects to NATS and returns a publisher.
func NewNATSPublisher(cfg NATSConfig, logger zerolog.Logger) (*NATSPublisher, error) {
	name := cfg.Name
	if name == "" {
		name = "kirana"
	}

	nc, err := nats.Connect(cfg.URL,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info().Str("url", c.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	return newNATSPublisher(nc, cfg.SubjectPrefix, logger), nil
}

func newNATSPublisher(nc conn, prefix string, logger zerolog.Logger) *NATSPublisher {
	return &NATSPublisher{
		nc:     nc,
		prefix: prefix,
		logger: logger.With().Str("component", "events").Logger(),
	}
}

// OrderSettled publishes to orders.settled.
func (p *NATSPublisher) OrderSettled(ctx context.Context, e OrderSettled) error {
	return p.publish(ctx, SubjectOrderSettled, e)
}

// OrderPaymentFailed publishes to orders.payment_failed.
func (p *NATSPublisher) OrderPaymentFailed(ctx context.Context, e OrderPaymentFailed) error {
	return p.publish(ctx, SubjectOrderPaymentFailed, e)
}

func (p *NATSPublisher) publish(ctx context.Context, subject string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", subject, err)
	}

	subject = p.prefix + subject
	if err := p.nc.Publish(subject, data); err != nil {
		p.count(subject, "error")
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	if err := p.nc.FlushWithContext(ctx); err != nil {
		p.count(subject, "error")
		return fmt.Errorf("flush %s: %w", subject, err)
	}

	p.count(subject, "ok")
	p.logger.Debug().Str("subject", subject).Int("bytes", len(data)).Msg("Event published")
	return nil
}

func (p *NATSPublisher) count(subject, result string) {
	if telemetry.Business != nil {
		telemetry.Business.EventsPublished.WithLabelValues(subject, result).Inc()
	}
}

// Close drains pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	return p.nc.Drain()
}
