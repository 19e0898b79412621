package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/trendreel/internal/interfaces"
)

// natsConn is the subset of *nats.Conn the forwarder uses.
type natsConn interface {
	Publish(subject string, data []byte) error
	Drain() error
}

// envelope is the wire form of a forwarded event.
type envelope struct {
	Type      interfaces.EventType `json:"type"`
	Payload   interface{}          `json:"payload"`
	Timestamp time.Time            `json:"timestamp"`
}

// NATSForwarder republishes local events on NATS subjects of the form
// <prefix>.<event_type>.
type NATSForwarder struct {
	conn    natsConn
	subject string
	now     func() time.Time
	logger  arbor.ILogger
}

// NewNATSForwarder connects to the NATS server at url.
func NewNATSForwarder(url, subject string, logger arbor.ILogger) (*NATSForwarder, error) {
	nc, err := nats.Connect(url,
		nats.Name("trendreel"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect %s: %w", url, err)
	}
	return newNATSForwarder(nc, subject, logger), nil
}

func newNATSForwarder(conn natsConn, subject string, logger arbor.ILogger) *NATSForwarder {
	return &NATSForwarder{conn: conn, subject: subject, now: time.Now, logger: logger}
}

// Handle is an EventHandler that forwards one event.
func (f *NATSForwarder) Handle(ctx context.Context, event interfaces.Event) error {
	data, err := json.Marshal(envelope{Type: event.Type, Payload: event.Payload, Timestamp: f.now().UTC()})
	if err != nil {
		return fmt.Errorf("encode event %s: %w", event.Type, err)
	}

	subject := f.subject + "." + string(event.Type)
	if err := f.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("nats publish %s: %w", subject, err)
	}
	return nil
}

// Attach subscribes the forwarder to every event type.
func (f *NATSForwarder) Attach(eventService interfaces.EventService) error {
	if err := SubscribeAll(eventService, f.Handle); err != nil {
		return err
	}
	f.logger.Info().Str("subject", f.subject).Msg("Forwarding events to NATS")
	return nil
}

// Close drains pending messages and closes the connection.
func (f *NATSForwarder) Close() error {
	return f.conn.Drain()
}
