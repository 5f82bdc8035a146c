package dashboard

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pitabwire/workdesk/internal/observability"
	"github.com/pitabwire/workdesk/model"
)

type fakeSource struct {
	mu       sync.Mutex
	calls    atomic.Int32
	total    int
	err      error
	feedErr  error
	gates    map[int32]chan struct{}
	feedNil  bool
	endpoint []string
}

func (f *fakeSource) record(name string) {
	f.mu.Lock()
	f.endpoint = append(f.endpoint, name)
	f.mu.Unlock()
}

// DashboardSummary numbers each call; a gate registered for that number
// holds the call until it is closed.
func (f *fakeSource) DashboardSummary(ctx context.Context) (model.Summary, error) {
	n := f.calls.Add(1)
	f.record("summary")
	f.mu.Lock()
	gate := f.gates[n]
	err := f.err
	total := f.total + int(n)
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return model.Summary{}, ctx.Err()
		}
	}
	if err != nil {
		return model.Summary{}, err
	}
	return model.Summary{Total: total}, nil
}

func (f *fakeSource) DashboardByStatus(context.Context) (map[string]int, error) {
	f.record("by-status")
	return map[string]int{"OPEN": 2}, nil
}

func (f *fakeSource) DashboardByPriority(context.Context) (map[string]int, error) {
	f.record("by-priority")
	return map[string]int{"HIGH": 1}, nil
}

func (f *fakeSource) DashboardFeed(context.Context) ([]model.FeedItem, error) {
	f.record("feed")
	if f.feedErr != nil {
		return nil, f.feedErr
	}
	if f.feedNil {
		return nil, nil
	}
	return []model.FeedItem{{ID: "f1", Type: model.FeedComment, Message: "hi"}}, nil
}

func (f *fakeSource) gate(n int32) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gates == nil {
		f.gates = map[int32]chan struct{}{}
	}
	ch := make(chan struct{})
	f.gates[n] = ch
	return ch
}

func receive(t *testing.T, ch <-chan model.Snapshot) model.Snapshot {
	t.Helper()
	select {
	case snap, ok := <-ch:
		require.True(t, ok, "subscription closed")
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot received")
	}
	return model.Snapshot{}
}

// --- Fetch ---

func TestFetch_readsEveryEndpoint(t *testing.T) {
	src := &fakeSource{total: 9}
	snap, err := Fetch(context.Background(), src)
	require.NoError(t, err)

	assert.Equal(t, 10, snap.Summary.Total)
	assert.Equal(t, 2, snap.ByStatus["OPEN"])
	assert.Equal(t, 1, snap.ByPriority["HIGH"])
	require.Len(t, snap.Feed, 1)
	assert.ElementsMatch(t, []string{"summary", "by-status", "by-priority", "feed"}, src.endpoint)
}

func TestFetch_firstErrorWins(t *testing.T) {
	src := &fakeSource{feedErr: model.NewNetworkOrServerError(503, "down", nil)}
	_, err := Fetch(context.Background(), src)
	assert.ErrorIs(t, err, model.ErrKindNetwork)
}

func TestFetch_emptyFeedIsNotNil(t *testing.T) {
	snap, err := Fetch(context.Background(), &fakeSource{feedNil: true})
	require.NoError(t, err)
	assert.NotNil(t, snap.Feed)
}

func TestLocalSnapshot(t *testing.T) {
	now := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	records := []model.WorkOrder{
		{ID: "1", Status: model.StatusOpen, Priority: model.PriorityHigh, IsOverdue: true},
		{ID: "2", Status: model.StatusDone, Priority: model.PriorityLow},
	}
	snap := LocalSnapshot(records, now)
	assert.Equal(t, model.Summary{Total: 2, Open: 1, Done: 1, Overdue: 1}, snap.Summary)
	assert.Equal(t, 1, snap.ByStatus["DONE"])
	assert.Equal(t, 1, snap.ByPriority["HIGH"])
	assert.Empty(t, snap.Feed)
	assert.Equal(t, now, snap.FetchedAt)
}

// --- Poller ---

// current reads the snapshot a new subscriber is handed first.
func current(p *Poller) (model.Snapshot, bool) {
	ch, unsubscribe := p.Subscribe()
	defer unsubscribe()
	select {
	case snap := <-ch:
		return snap, true
	default:
		return model.Snapshot{}, false
	}
}

func TestPoller_RefreshAppliesAndNumbers(t *testing.T) {
	metrics := observability.InitMetrics(prometheus.NewRegistry())
	p := NewPoller(&fakeSource{}, 0, metrics, nil)
	assert.Equal(t, DefaultInterval, p.interval)

	_, ok := current(p)
	assert.False(t, ok)

	first, err := p.Refresh(context.Background())
	require.NoError(t, err)
	second, err := p.Refresh(context.Background())
	require.NoError(t, err)

	assert.Greater(t, second.Seq, first.Seq)
	latest, ok := current(p)
	require.True(t, ok)
	assert.Equal(t, second.Seq, latest.Seq)
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.DashboardPollsTotal.WithLabelValues("applied")))
}

func TestPoller_errorKeepsPreviousSnapshot(t *testing.T) {
	metrics := observability.InitMetrics(prometheus.NewRegistry())
	src := &fakeSource{}
	p := NewPoller(src, time.Hour, metrics, nil)

	good, err := p.Refresh(context.Background())
	require.NoError(t, err)

	src.mu.Lock()
	src.err = errors.New("backend down")
	src.mu.Unlock()
	_, err = p.Refresh(context.Background())
	require.Error(t, err)

	latest, ok := current(p)
	require.True(t, ok)
	assert.Equal(t, good.Seq, latest.Seq)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.DashboardPollsTotal.WithLabelValues("error")))
}

func TestPoller_latePollIsDiscarded(t *testing.T) {
	metrics := observability.InitMetrics(prometheus.NewRegistry())
	src := &fakeSource{}
	release := src.gate(1)
	p := NewPoller(src, time.Hour, metrics, nil)

	slow := make(chan error, 1)
	go func() {
		_, err := p.Refresh(context.Background())
		slow <- err
	}()
	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, time.Millisecond)

	fresh, err := p.Refresh(context.Background())
	require.NoError(t, err)

	close(release)
	err = <-slow
	assert.True(t, IsStale(err))

	latest, _ := current(p)
	assert.Equal(t, fresh.Seq, latest.Seq)
	assert.Equal(t, fresh.Summary.Total, latest.Summary.Total)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.DashboardPollsTotal.WithLabelValues("stale")))
}

func TestPoller_RunFetchesImmediatelyAndStopsOnCancel(t *testing.T) {
	src := &fakeSource{}
	p := NewPoller(src, 10*time.Millisecond, nil, nil)
	ch, unsubscribe := p.Subscribe()
	defer unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	first := receive(t, ch)
	assert.Equal(t, uint64(1), first.Seq)
	next := receive(t, ch)
	assert.Greater(t, next.Seq, first.Seq, "ticks keep polling")

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Eventually(t, func() bool {
		_, ok := <-ch
		return !ok
	}, time.Second, time.Millisecond, "subscription must be closed")

	calls := src.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, src.calls.Load(), "no polling after cancel")

	late, _ := p.Subscribe()
	_, ok := <-late
	assert.False(t, ok)
}

func TestPoller_SubscribeGetsCurrentSnapshot(t *testing.T) {
	p := NewPoller(&fakeSource{}, time.Hour, nil, nil)
	snap, err := p.Refresh(context.Background())
	require.NoError(t, err)

	ch, unsubscribe := p.Subscribe()
	assert.Equal(t, snap.Seq, receive(t, ch).Seq)

	unsubscribe()
	unsubscribe()
	_, ok := <-ch
	assert.False(t, ok)
}

func TestPoller_slowSubscriberSeesLatest(t *testing.T) {
	p := NewPoller(&fakeSource{}, time.Hour, nil, nil)
	ch, unsubscribe := p.Subscribe()
	defer unsubscribe()

	for range 3 {
		_, err := p.Refresh(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, uint64(3), receive(t, ch).Seq)
}
