package syslog

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/soclens/soclens/internal/cache"
	"github.com/soclens/soclens/internal/logging"
	"github.com/soclens/soclens/internal/metrics"
	"github.com/soclens/soclens/internal/model"
	"github.com/soclens/soclens/internal/pipeline"
)

const maxDatagramSize = 8192

// Listener receives events over UDP, parses them and feeds the same cache
// and sinks as the alert poll pipeline, so pushed events reach connected
// sessions immediately.
type Listener struct {
	addr  string
	cache *cache.Cache
	sinks []pipeline.Sink
	log   *logging.Logger

	conn    *net.UDPConn
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewListener creates a Listener bound to addr (e.g. ":1514").
func NewListener(addr string, c *cache.Cache, sinks []pipeline.Sink, log *logging.Logger) *Listener {
	return &Listener{
		addr:  addr,
		cache: c,
		sinks: sinks,
		log:   log,
	}
}

// Start binds the socket and begins receiving in the background.
func (l *Listener) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.running {
		return errors.New("syslog listener already running")
	}

	udpAddr, err := net.ResolveUDPAddr("udp", l.addr)
	if err != nil {
		return fmt.Errorf("failed to resolve syslog address: %w", err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return fmt.Errorf("failed to bind syslog socket: %w", err)
	}

	l.conn = conn
	l.running = true
	l.wg.Add(1)
	go l.receive(ctx)

	l.log.Info("syslog listener started", "addr", l.addr)
	return nil
}

// Addr returns the bound address once Start has succeeded, which resolves
// a ":0" listen address to the kernel-assigned port.
func (l *Listener) Addr() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil {
		return l.addr
	}
	return l.conn.LocalAddr().String()
}

// Stop closes the socket and waits for the receive loop to exit.
func (l *Listener) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	l.running = false
	conn := l.conn
	l.mu.Unlock()

	conn.Close()
	l.wg.Wait()
	l.log.Info("syslog listener stopped")
}

func (l *Listener) receive(ctx context.Context) {
	defer l.wg.Done()

	buf := make([]byte, maxDatagramSize)
	for {
		n, _, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			metrics.SyslogParseErrors.Inc()
			l.log.Warn("syslog read failed", "error", err)
			continue
		}
		if n == 0 {
			continue
		}
		l.handle(ctx, string(buf[:n]))
	}
}

func (l *Listener) handle(ctx context.Context, msg string) {
	event := Parse(msg, time.Now().UTC())
	metrics.SyslogMessages.Inc()

	delta := []model.Entity{event}
	l.cache.InsertBatch(delta)
	metrics.CacheSize.WithLabelValues(model.StreamAlerts).Set(float64(l.cache.Len()))

	for _, sink := range l.sinks {
		if err := sink.Deliver(ctx, model.StreamAlerts, delta); err != nil {
			l.log.Error("syslog sink delivery failed", "error", err)
		}
	}
}
