package syslog

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soclens/soclens/internal/cache"
	"github.com/soclens/soclens/internal/logging"
	"github.com/soclens/soclens/internal/model"
	"github.com/soclens/soclens/internal/pipeline"
)

type recordingSink struct {
	mu         sync.Mutex
	streams    []string
	deliveries [][]model.Entity
}

func (s *recordingSink) Deliver(ctx context.Context, stream string, delta []model.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streams = append(s.streams, stream)
	s.deliveries = append(s.deliveries, delta)
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.deliveries)
}

func TestListener_DeliversDatagramToCacheAndSinks(t *testing.T) {
	c := cache.New(100)
	sink := &recordingSink{}
	l := NewListener("127.0.0.1:0", c, []pipeline.Sink{sink}, logging.Default())

	require.NoError(t, l.Start(context.Background()))
	defer l.Stop()

	conn, err := net.Dial("udp", l.Addr())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("Rule: 5710 Level: 7 Agent: web-01 Description: Invalid user login"))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return sink.count() == 1 },
		2*time.Second, 10*time.Millisecond, "datagram must reach the sink")

	assert.Equal(t, 1, c.Len())

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Equal(t, model.StreamAlerts, sink.streams[0])
	require.Len(t, sink.deliveries[0], 1)
	event := sink.deliveries[0][0].(model.NormalizedEvent)
	assert.Equal(t, "5710", event.RuleID)
	assert.Equal(t, 7, event.RuleLevel)
	assert.Equal(t, "web-01", event.AgentName)
	assert.Equal(t, "Invalid user login", event.RuleDescription)
}

func TestListener_EachDatagramIsOneEvent(t *testing.T) {
	c := cache.New(100)
	sink := &recordingSink{}
	l := NewListener("127.0.0.1:0", c, []pipeline.Sink{sink}, logging.Default())

	require.NoError(t, l.Start(context.Background()))
	defer l.Stop()

	conn, err := net.Dial("udp", l.Addr())
	require.NoError(t, err)
	defer conn.Close()

	for _, msg := range []string{"first event line", "second event line"} {
		_, err = conn.Write([]byte(msg))
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool { return sink.count() == 2 },
		2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 2, c.Len())
}

func TestListener_Lifecycle(t *testing.T) {
	l := NewListener("127.0.0.1:0", cache.New(10), nil, logging.Default())

	ctx := context.Background()
	require.NoError(t, l.Start(ctx))
	assert.Error(t, l.Start(ctx), "second start must be rejected")

	l.Stop()
	l.Stop() // second stop is a no-op
}

func TestListener_BadAddressRejected(t *testing.T) {
	l := NewListener("not-an-address:xyz", cache.New(10), nil, logging.Default())
	assert.Error(t, l.Start(context.Background()))
}
