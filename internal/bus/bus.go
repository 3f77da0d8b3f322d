// Package bus mirrors poll-cycle deltas onto a message broker so services
// other than the browser sessions can consume the same fan-out.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/soclens/soclens/internal/model"
)

// Subjects the mirror publishes on, one per stream.
const (
	SubjectAlertsDelta = "soclens.alerts.delta"
	SubjectAgentsDelta = "soclens.agents.delta"
)

// Publisher is the broker surface the mirror needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Mirror publishes each delta envelope to its stream subject. It
// implements the pipeline Sink.
type Mirror struct {
	pub Publisher
}

// NewMirror creates a Mirror on top of any Publisher.
func NewMirror(pub Publisher) *Mirror {
	return &Mirror{pub: pub}
}

// Deliver publishes the delta for a stream. Unknown streams are ignored.
func (m *Mirror) Deliver(ctx context.Context, stream string, delta []model.Entity) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var subject string
	switch stream {
	case model.StreamAlerts:
		subject = SubjectAlertsDelta
	case model.StreamAgents:
		subject = SubjectAgentsDelta
	default:
		return nil
	}

	data, err := json.Marshal(model.NewDelta(stream, delta))
	if err != nil {
		return fmt.Errorf("marshal delta: %w", err)
	}

	if err := m.pub.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Connect dials NATS with reconnect behavior suited to a long-lived
// dashboard process.
func Connect(url, name string) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return conn, nil
}
