package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/invoicer/internal/telemetry"
	"github.com/nats-io/nats.go"
)

// NATSPublisher publishes JSON notifications on a NATS connection.
type NATSPublisher struct {
	conn   *nats.Conn
	logger *slog.Logger
}

// Connect dials the NATS server at url and returns a publisher.
func Connect(url string, logger *slog.Logger) (*NATSPublisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("invoicer"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	return NewNATSPublisher(conn, logger), nil
}

// NewNATSPublisher wraps an existing connection.
func NewNATSPublisher(conn *nats.Conn, logger *slog.Logger) *NATSPublisher {
	return &NATSPublisher{conn: conn, logger: logger}
}

// InvoiceSent publishes on SubjectInvoiceSent.
func (p *NATSPublisher) InvoiceSent(ctx context.Context, msg InvoiceSent) error {
	return p.publish(SubjectInvoiceSent, msg)
}

// InvoiceStatusChanged publishes on SubjectInvoiceStatusChanged.
func (p *NATSPublisher) InvoiceStatusChanged(ctx context.Context, msg InvoiceStatusChanged) error {
	return p.publish(SubjectInvoiceStatusChanged, msg)
}

func (p *NATSPublisher) publish(subject string, msg interface{}) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal %s notification: %w", subject, err)
	}

	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}

	if telemetry.Business != nil {
		telemetry.Business.NotificationsPublished.WithLabelValues(subject).Inc()
	}
	p.logger.Debug("notification published", "subject", subject)
	return nil
}

// Close drains pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}
