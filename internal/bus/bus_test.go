package bus

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soclens/soclens/internal/model"
)

type fakePublisher struct {
	subjects []string
	payloads [][]byte
	err      error
}

func (f *fakePublisher) Publish(subject string, data []byte) error {
	if f.err != nil {
		return f.err
	}
	f.subjects = append(f.subjects, subject)
	f.payloads = append(f.payloads, data)
	return nil
}

func TestDeliver_PublishesPerStreamSubject(t *testing.T) {
	pub := &fakePublisher{}
	m := NewMirror(pub)
	ctx := context.Background()

	events := []model.Entity{model.NormalizedEvent{ID: "a", Timestamp: time.Now()}}
	agents := []model.Entity{model.NormalizedAgent{ID: "AGT-001", LastSeen: time.Now()}}

	require.NoError(t, m.Deliver(ctx, model.StreamAlerts, events))
	require.NoError(t, m.Deliver(ctx, model.StreamAgents, agents))

	require.Equal(t, []string{SubjectAlertsDelta, SubjectAgentsDelta}, pub.subjects)

	var env model.Envelope
	require.NoError(t, json.Unmarshal(pub.payloads[0], &env))
	assert.Equal(t, model.MessageDelta, env.Type)
	assert.Equal(t, model.StreamAlerts, env.Stream)
}

func TestDeliver_UnknownStreamIgnored(t *testing.T) {
	pub := &fakePublisher{}
	m := NewMirror(pub)

	require.NoError(t, m.Deliver(context.Background(), "sensors", nil))
	assert.Empty(t, pub.subjects)
}

func TestDeliver_PublishErrorPropagated(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	m := NewMirror(pub)

	err := m.Deliver(context.Background(), model.StreamAlerts, nil)
	assert.Error(t, err)
}

func TestDeliver_CancelledContext(t *testing.T) {
	pub := &fakePublisher{}
	m := NewMirror(pub)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, m.Deliver(ctx, model.StreamAlerts, nil))
	assert.Empty(t, pub.subjects)
}
