package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pitabwire/workdesk/internal/dashboard"
	"github.com/pitabwire/workdesk/internal/observability"
	"github.com/pitabwire/workdesk/model"
)

const (
	streamKeepAlive = 15 * time.Second
	refreshTimeout  = 10 * time.Second
)

// Snapshot sources.
const (
	SourceAPI   = "api"
	SourceLocal = "local"
)

type dashboardResponse struct {
	model.Snapshot
	Source string `json:"source"`
}

// handleDashboard returns one snapshot. When the dashboard endpoints fail
// the KPIs are computed from the session's work orders instead.
func handleDashboard(engines Engines, src dashboard.Source) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if src != nil {
			snap, err := dashboard.Fetch(r.Context(), src)
			if err == nil {
				snap.FetchedAt = time.Now()
				WriteJSON(w, http.StatusOK, dashboardResponse{Snapshot: snap, Source: SourceAPI})
				return
			}
			observability.RequestLogger(r.Context(), zap.NewNop()).Warn("dashboard endpoints failed, using local KPIs", zap.Error(err))
		}
		e, ok := sessionEngine(w, r, engines, false)
		if !ok {
			return
		}
		WriteJSON(w, http.StatusOK, dashboardResponse{
			Snapshot: dashboard.LocalSnapshot(e.Records(), time.Now()),
			Source:   SourceLocal,
		})
	}
}

// streamHub tracks the pollers of open dashboard streams per session, so a
// mutation can refresh them outside their tick loop.
type streamHub struct {
	src      dashboard.Source
	interval time.Duration
	metrics  *observability.Metrics
	logger   *zap.Logger

	mu      sync.Mutex
	pollers map[string]map[*dashboard.Poller]struct{}
}

func newStreamHub(src dashboard.Source, interval time.Duration, metrics *observability.Metrics, logger *zap.Logger) *streamHub {
	return &streamHub{
		src:      src,
		interval: interval,
		metrics:  metrics,
		logger:   logger,
		pollers:  make(map[string]map[*dashboard.Poller]struct{}),
	}
}

func (h *streamHub) add(key string, p *dashboard.Poller) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.pollers[key]
	if !ok {
		set = make(map[*dashboard.Poller]struct{})
		h.pollers[key] = set
	}
	set[p] = struct{}{}
}

func (h *streamHub) remove(key string, p *dashboard.Poller) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.pollers[key], p)
	if len(h.pollers[key]) == 0 {
		delete(h.pollers, key)
	}
}

// active returns the number of open streams of the session key.
func (h *streamHub) active(key string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.pollers[key])
}

// refresh asks every open stream of the request's session for a fresh
// snapshot. It does not wait for the fetches.
func (h *streamHub) refresh(ctx context.Context) {
	if h == nil {
		return
	}
	s := model.SessionFrom(ctx)
	if s == nil {
		return
	}
	h.mu.Lock()
	pollers := make([]*dashboard.Poller, 0, len(h.pollers[s.Key()]))
	for p := range h.pollers[s.Key()] {
		pollers = append(pollers, p)
	}
	h.mu.Unlock()

	base := context.WithoutCancel(ctx)
	logger := observability.RequestLogger(ctx, h.logger)
	for _, p := range pollers {
		go func() {
			ctx, cancel := context.WithTimeout(base, refreshTimeout)
			defer cancel()
			// A stale result means a newer snapshot already went out.
			if _, err := p.Refresh(ctx); err != nil && !dashboard.IsStale(err) {
				logger.Debug("dashboard refresh after mutation failed", zap.Error(err))
			}
		}()
	}
}

// handleDashboardStream sends every applied snapshot as a server-sent
// event until the client disconnects.
func handleDashboardStream(h *streamHub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := model.SessionFrom(r.Context())
		if s == nil {
			WriteError(w, model.NewUnauthorizedError("missing session"))
			return
		}
		if h.src == nil {
			WriteNotFound(w, "dashboard endpoints are not configured")
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			WriteError(w, model.NewInternalError())
			return
		}
		ctx := r.Context()
		logger := observability.RequestLogger(ctx, h.logger)

		poller := dashboard.NewPoller(h.src, h.interval, h.metrics, h.logger)
		snapshots, unsubscribe := poller.Subscribe()
		defer unsubscribe()
		h.add(s.Key(), poller)
		defer h.remove(s.Key(), poller)
		go poller.Run(ctx)

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		keepAlive := time.NewTicker(streamKeepAlive)
		defer keepAlive.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case snap, ok := <-snapshots:
				if !ok {
					return
				}
				data, err := json.Marshal(dashboardResponse{Snapshot: snap, Source: SourceAPI})
				if err != nil {
					logger.Error("encoding dashboard snapshot failed", zap.Error(err))
					return
				}
				if _, err := fmt.Fprintf(w, "id: %d\nevent: snapshot\ndata: %s\n\n", snap.Seq, data); err != nil {
					return
				}
				flusher.Flush()
			case <-keepAlive.C:
				if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	}
}
