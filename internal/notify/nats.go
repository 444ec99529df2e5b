package notify

import (
	"context"
	"fmt"
	"pricewatch-backend/internal/components/assert"
	"time"

	"github.com/nats-io/nats.go"
)

// NatsRelay is a Subscriber that republishes every notification on a NATS subject so
// consumers outside this process can follow price changes.
type NatsRelay struct {
	conn    *nats.Conn
	subject string
}

func NewNatsRelay(url, subject string) (*NatsRelay, error) {
	assert.NotEmptyStr(subject)
	conn, err := nats.Connect(
		url,
		nats.Name("pricewatch"),
		nats.Timeout(2*time.Second),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NatsRelay{conn: conn, subject: subject}, nil
}

func (r *NatsRelay) ID() string {
	return "nats:" + r.subject
}

func (r *NatsRelay) Send(ctx context.Context, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := r.conn.Publish(r.subject, []byte(message))
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", r.subject, err)
	}
	return nil
}

// Close flushes pending messages and closes the connection.
func (r *NatsRelay) Close() error {
	return r.conn.Drain()
}
