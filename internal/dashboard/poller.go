// Package dashboard reads the KPI endpoints and keeps subscribers supplied
// with the latest snapshot.
package dashboard

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pitabwire/workdesk/internal/observability"
	"github.com/pitabwire/workdesk/internal/query"
	"github.com/pitabwire/workdesk/model"
)

// DefaultInterval is the poll period of the dashboard.
const DefaultInterval = 7 * time.Second

// Source is the dashboard slice of the maintenance API.
type Source interface {
	DashboardSummary(ctx context.Context) (model.Summary, error)
	DashboardByStatus(ctx context.Context) (map[string]int, error)
	DashboardByPriority(ctx context.Context) (map[string]int, error)
	DashboardFeed(ctx context.Context) ([]model.FeedItem, error)
}

// Fetch reads the four dashboard endpoints concurrently. The first error
// cancels the others and is returned.
func Fetch(ctx context.Context, src Source) (model.Snapshot, error) {
	var snap model.Snapshot
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		snap.Summary, err = src.DashboardSummary(ctx)
		return err
	})
	g.Go(func() (err error) {
		snap.ByStatus, err = src.DashboardByStatus(ctx)
		return err
	})
	g.Go(func() (err error) {
		snap.ByPriority, err = src.DashboardByPriority(ctx)
		return err
	})
	g.Go(func() (err error) {
		snap.Feed, err = src.DashboardFeed(ctx)
		return err
	})

	if err := g.Wait(); err != nil {
		return model.Snapshot{}, err
	}
	if snap.Feed == nil {
		snap.Feed = []model.FeedItem{}
	}
	return snap, nil
}

// LocalSnapshot computes a snapshot from a work-order collection. It has no
// activity feed.
func LocalSnapshot(records []model.WorkOrder, now time.Time) model.Snapshot {
	return model.Snapshot{
		Summary:    query.Summarize(records),
		ByStatus:   query.CountByStatus(records),
		ByPriority: query.CountByPriority(records),
		Feed:       []model.FeedItem{},
		FetchedAt:  now,
	}
}

// Poller fetches a snapshot on start and then on every tick. Each fetch is
// numbered when it starts; a result older than the last applied one is
// discarded. Fetch errors keep the previous snapshot and are not retried
// before the next tick.
type Poller struct {
	src      Source
	interval time.Duration
	metrics  *observability.Metrics
	logger   *zap.Logger
	now      func() time.Time

	seq atomic.Uint64

	mu      sync.Mutex
	applied uint64
	latest  *model.Snapshot
	subs    map[int]chan model.Snapshot
	nextID  int
	stopped bool
}

// NewPoller creates a Poller. A non-positive interval means
// DefaultInterval.
func NewPoller(src Source, interval time.Duration, metrics *observability.Metrics, logger *zap.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{
		src:      src,
		interval: interval,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
		subs:     make(map[int]chan model.Snapshot),
	}
}

// Run polls until ctx is cancelled, then closes every subscription.
func (p *Poller) Run(ctx context.Context) {
	defer p.stop()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	_, _ = p.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = p.poll(ctx)
		}
	}
}

// Refresh fetches immediately, outside the tick loop. It returns the
// snapshot if it was applied.
func (p *Poller) Refresh(ctx context.Context) (model.Snapshot, error) {
	return p.poll(ctx)
}

// Subscribe returns a channel that receives every applied snapshot, the
// current one first if there is one. A slow reader only misses
// intermediate snapshots. The channel is closed when Run returns or when
// cancel is called.
func (p *Poller) Subscribe() (<-chan model.Snapshot, func()) {
	ch := make(chan model.Snapshot, 1)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		close(ch)
		return ch, func() {}
	}
	if p.latest != nil {
		ch <- *p.latest
	}
	id := p.nextID
	p.nextID++
	p.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			if sub, ok := p.subs[id]; ok {
				delete(p.subs, id)
				close(sub)
			}
		})
	}
}

// errStale marks a discarded result.
var errStale = errors.New("dashboard: stale snapshot discarded")

// IsStale reports whether err is the result of a discarded fetch.
func IsStale(err error) bool { return errors.Is(err, errStale) }

func (p *Poller) poll(ctx context.Context) (model.Snapshot, error) {
	seq := p.seq.Add(1)
	logger := observability.LoggerFrom(ctx, p.logger)

	snap, err := Fetch(ctx, p.src)
	if err != nil {
		if ctx.Err() == nil {
			p.metrics.RecordDashboardPoll("error")
			logger.Warn("dashboard fetch failed", zap.Uint64("seq", seq), zap.Error(err))
		}
		return model.Snapshot{}, err
	}
	snap.Seq = seq
	snap.FetchedAt = p.now()

	p.mu.Lock()
	defer p.mu.Unlock()
	if seq < p.applied {
		p.metrics.RecordDashboardPoll("stale")
		logger.Debug("discarding stale dashboard snapshot",
			zap.Uint64("seq", seq),
			zap.Uint64("applied", p.applied),
		)
		return model.Snapshot{}, errStale
	}
	p.applied = seq
	p.latest = &snap
	for _, ch := range p.subs {
		offer(ch, snap)
	}
	p.metrics.RecordDashboardPoll("applied")
	return snap, nil
}

// offer replaces any unread snapshot in ch with snap. Must be called with
// mu held so no other sender races on ch.
func offer(ch chan model.Snapshot, snap model.Snapshot) {
	select {
	case ch <- snap:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	ch <- snap
}

func (p *Poller) stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped = true
	for id, ch := range p.subs {
		delete(p.subs, id)
		close(ch)
	}
}
