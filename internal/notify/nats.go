package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/nvandessel/polaris/internal/constants"
	"github.com/nvandessel/polaris/internal/logging"
)

// NATSPublisher publishes JSON notifications on a NATS subject.
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
	logger  *slog.Logger
}

// NewNATSPublisher connects to url. An empty subject uses the default
// completion subject.
func NewNATSPublisher(url, subject string, logger *slog.Logger) (*NATSPublisher, error) {
	logger = logging.OrDefault(logger)
	if subject == "" {
		subject = constants.SimulationCompletedSubject
	}

	nc, err := nats.Connect(url,
		nats.Name("polaris"),
		nats.Timeout(10*time.Second),
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
		return nil, fmt.Errorf("connecting to nats at %s: %w", url, err)
	}

	logger.Info("connected to nats", "url", nc.ConnectedUrl(), "subject", subject)
	return &NATSPublisher{conn: nc, subject: subject, logger: logger}, nil
}

// Subject returns the subject messages are published on.
func (p *NATSPublisher) Subject() string {
	return p.subject
}

// Publish encodes msg and sends it. Delivery is fire-and-forget.
func (p *NATSPublisher) Publish(ctx context.Context, msg SimulationCompleted) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding notification: %w", err)
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("publishing to %s: %w", p.subject, err)
	}
	p.logger.Debug("published simulation", "subject", p.subject, "simulation_id", msg.SimulationID, "bytes", len(data))
	return nil
}

// Close flushes buffered messages and closes the connection.
func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}
