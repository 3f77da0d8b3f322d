// Package pipeline runs the poll-normalize-cache-broadcast loops. One
// pipeline instance serves the alert stream and another the agent stream;
// each owns its watermark and cache and is the only writer to them.
package pipeline

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/soclens/soclens/internal/cache"
	"github.com/soclens/soclens/internal/logging"
	"github.com/soclens/soclens/internal/metrics"
	"github.com/soclens/soclens/internal/model"
)

// Source fetches raw records from an upstream system. It holds no
// acceptance state; the pipeline decides what is new.
type Source interface {
	Name() string
	Fetch(ctx context.Context, since time.Time, limit int) ([]map[string]any, error)
}

// NormalizeFunc converts one raw record into a canonical entity. An error
// marks the record malformed; it is skipped, never propagated.
type NormalizeFunc func(raw map[string]any) (model.Entity, error)

// Sink receives the delta of each poll cycle. A failing sink is logged and
// isolated; it never blocks the cycle or the other sinks.
type Sink interface {
	Deliver(ctx context.Context, stream string, delta []model.Entity) error
}

// Checkpointer persists watermark and cache contents after a cycle so a
// restart can resume without refetching history. Best effort.
type Checkpointer interface {
	Save(ctx context.Context, stream string, watermark time.Time, snapshot []model.Entity) error
}

// Config configures one pipeline.
type Config struct {
	// Stream names the pipeline in messages, logs and metrics.
	Stream string

	// Interval between poll cycles.
	Interval time.Duration

	// PageSize bounds each upstream query.
	PageSize int

	// Upsert replaces cached entries by key instead of skipping
	// duplicates, and accepts any record that differs from the cached
	// entry rather than filtering on the watermark. The agent stream
	// uses this: a fresher keepalive or a status change supersedes the
	// cached entry for the same agent even when the event time stands
	// still.
	Upsert bool
}

// Pipeline is one poll-normalize-cache-broadcast loop.
type Pipeline struct {
	cfg        Config
	source     Source
	normalize  NormalizeFunc
	cache      *cache.Cache
	sinks      []Sink
	checkpoint Checkpointer
	log        *logging.Logger

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup

	// watermark is read and advanced only by the run goroutine once the
	// pipeline has started; SetWatermark is for pre-start restore.
	watermark   time.Time
	watermarkMu sync.RWMutex
}

// New constructs a pipeline. sinks may be empty; checkpoint may be nil.
func New(cfg Config, source Source, normalize NormalizeFunc, c *cache.Cache, sinks []Sink, checkpoint Checkpointer, log *logging.Logger) *Pipeline {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 50
	}
	return &Pipeline{
		cfg:        cfg,
		source:     source,
		normalize:  normalize,
		cache:      c,
		sinks:      sinks,
		checkpoint: checkpoint,
		log:        log.With("pipeline", cfg.Stream),
	}
}

// Cache exposes the pipeline's live cache for snapshot consumers.
func (p *Pipeline) Cache() *cache.Cache { return p.cache }

// Watermark returns the current watermark.
func (p *Pipeline) Watermark() time.Time {
	p.watermarkMu.RLock()
	defer p.watermarkMu.RUnlock()
	return p.watermark
}

// SetWatermark restores a checkpointed watermark. Call before Start.
func (p *Pipeline) SetWatermark(t time.Time) {
	p.watermarkMu.Lock()
	defer p.watermarkMu.Unlock()
	p.watermark = t
}

func (p *Pipeline) advanceWatermark(t time.Time) {
	p.watermarkMu.Lock()
	defer p.watermarkMu.Unlock()
	if t.After(p.watermark) {
		p.watermark = t
	}
}

// Start begins the poll loop. The first cycle runs immediately.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("pipeline %s already running", p.cfg.Stream)
	}
	p.running = true
	p.stopChan = make(chan struct{})
	p.mu.Unlock()

	p.log.Info("pipeline starting", "interval", p.cfg.Interval.String(), "page_size", p.cfg.PageSize)

	p.wg.Add(1)
	go p.run(ctx)

	return nil
}

// Stop halts the loop and waits for an in-flight cycle to finish.
func (p *Pipeline) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return fmt.Errorf("pipeline %s not running", p.cfg.Stream)
	}
	p.running = false
	close(p.stopChan)
	p.mu.Unlock()

	p.wg.Wait()
	p.log.Info("pipeline stopped")
	return nil
}

// run executes cycles on a ticker. Cycles run synchronously on this
// goroutine, so a tick that fires while a cycle is still in flight is
// dropped by the ticker rather than overlapping the same watermark.
func (p *Pipeline) run(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	p.RunCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopChan:
			return
		case <-ticker.C:
			p.RunCycle(ctx)
		}
	}
}

// RunCycle performs one poll cycle: fetch, normalize, filter, cache,
// deliver, advance. A failed fetch yields zero records and retains
// the watermark; the next cycle retries unconditionally. The watermark is
// advanced only after the cache insert and sink delivery of this cycle are
// applied, so no partial state survives a cancelled cycle.
func (p *Pipeline) RunCycle(ctx context.Context) {
	start := time.Now()
	since := p.Watermark()

	raw, err := p.source.Fetch(ctx, since, p.cfg.PageSize)
	if err != nil {
		p.log.Warn("poll failed, retrying next cycle", "source", p.source.Name(), "error", err)
		metrics.PollErrors.WithLabelValues(p.cfg.Stream).Inc()
		return
	}

	delta := make([]model.Entity, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, record := range raw {
		entity, err := p.normalize(record)
		if err != nil {
			p.log.Warn("skipping malformed record", "error", err)
			metrics.RecordsSkipped.WithLabelValues(p.cfg.Stream).Inc()
			continue
		}
		// A key repeated within one batch would otherwise pass the cache
		// check twice; only the first occurrence enters the delta.
		if _, dup := seen[entity.Key()]; dup {
			continue
		}
		if p.cfg.Upsert {
			// Upsert sources re-report their full record set, and a state
			// change (a keepalive going stale flips an agent offline) can
			// arrive with an unchanged event time. The watermark cannot
			// gate these; a record counts as new when it differs from the
			// cached entry in any field.
			if cached, ok := p.cache.Get(entity.Key()); ok && reflect.DeepEqual(cached, entity) {
				continue
			}
		} else {
			// Records at or before the watermark were accepted in an
			// earlier cycle; the upstream filter already excludes most of
			// them, this guards re-fetched boundary records.
			if !since.IsZero() && !entity.EventTime().After(since) {
				continue
			}
			if p.cache.Contains(entity.Key()) {
				continue
			}
		}
		seen[entity.Key()] = struct{}{}
		delta = append(delta, entity)
	}

	metrics.PollCycles.WithLabelValues(p.cfg.Stream).Inc()
	metrics.PollDuration.WithLabelValues(p.cfg.Stream).Observe(time.Since(start).Seconds())

	if len(delta) == 0 {
		return
	}

	// Deliver oldest first regardless of the upstream sort order.
	sort.SliceStable(delta, func(i, j int) bool {
		return delta[i].EventTime().Before(delta[j].EventTime())
	})

	if p.cfg.Upsert {
		p.cache.Upsert(delta)
	} else {
		p.cache.InsertBatch(delta)
	}
	metrics.RecordsAccepted.WithLabelValues(p.cfg.Stream).Add(float64(len(delta)))
	metrics.CacheSize.WithLabelValues(p.cfg.Stream).Set(float64(p.cache.Len()))

	for _, sink := range p.sinks {
		if err := sink.Deliver(ctx, p.cfg.Stream, delta); err != nil {
			p.log.Warn("sink delivery failed", "error", err)
		}
	}

	p.advanceWatermark(delta[len(delta)-1].EventTime())

	if p.checkpoint != nil {
		if err := p.checkpoint.Save(ctx, p.cfg.Stream, p.Watermark(), p.cache.Snapshot()); err != nil {
			p.log.Warn("checkpoint save failed", "error", err)
		}
	}

	p.log.Debug("cycle complete", "accepted", len(delta), "watermark", p.Watermark().Format(time.RFC3339))
}
