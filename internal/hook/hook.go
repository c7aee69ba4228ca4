package hook

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"devpulse/internal/aggregator"
	"devpulse/internal/models"
)

// Feed is the single seam a UI talks to: current items, loading and
// error state, the source registry, and the refresh/toggle/auto-refresh
// commands. One logical refresh cycle runs at a time; a Refresh that
// arrives while one is in flight is dropped.
type Feed struct {
	coord *aggregator.Coordinator
	log   *logrus.Entry

	mu      sync.Mutex
	items   []models.Item
	filter  models.Filter
	loading bool
	lastErr error

	timerMu   sync.Mutex
	timerStop chan struct{}
}

func New(coord *aggregator.Coordinator, log *logrus.Entry) *Feed {
	if log == nil {
		log = logrus.NewEntry(logrus.New())
	}
	return &Feed{coord: coord, log: log}
}

// Refresh re-runs the aggregation. A nil filter reuses the last one.
// Safe to call from any goroutine; overlapping calls do not start a
// second fetch cycle.
func (f *Feed) Refresh(ctx context.Context, filter *models.Filter) {
	f.mu.Lock()
	if f.loading {
		f.mu.Unlock()
		return
	}
	f.loading = true
	if filter != nil {
		f.filter = *filter
	}
	flt := f.filter
	f.mu.Unlock()

	items, err := f.coord.GetAggregated(ctx, flt)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.loading = false
	f.lastErr = err
	if err == nil {
		f.items = items
	} else {
		f.log.WithError(err).Error("refresh failed")
	}
}

// SetSourceEnabled updates the registry and refreshes with the current
// filter so the toggle is visible immediately.
func (f *Feed) SetSourceEnabled(ctx context.Context, id string, enabled bool) error {
	if err := f.coord.SetSourceEnabled(id, enabled); err != nil {
		return err
	}
	f.Refresh(ctx, nil)
	return nil
}

// SetAutoRefresh schedules periodic refreshes. Any previous timer is
// cancelled first; an interval <= 0 just cancels.
func (f *Feed) SetAutoRefresh(interval time.Duration) {
	f.timerMu.Lock()
	defer f.timerMu.Unlock()

	if f.timerStop != nil {
		close(f.timerStop)
		f.timerStop = nil
	}
	if interval <= 0 {
		return
	}

	stop := make(chan struct{})
	f.timerStop = stop

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				f.Refresh(context.Background(), nil)
			case <-stop:
				return
			}
		}
	}()
}

// Close cancels any scheduled auto-refresh.
func (f *Feed) Close() {
	f.SetAutoRefresh(0)
}

// Items returns the last successful aggregate.
func (f *Feed) Items() []models.Item {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]models.Item, len(f.items))
	copy(out, f.items)
	return out
}

// Loading reports whether a refresh cycle is in flight.
func (f *Feed) Loading() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loading
}

// LastError returns the error of the last refresh, nil after a success.
// Per-source soft failures are not reported here; see SourceErrors.
func (f *Feed) LastError() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastErr
}

func (f *Feed) SourceErrors() []models.SourceError {
	return f.coord.Errors()
}

func (f *Feed) Sources() []models.SourceInfo {
	return f.coord.Sources()
}
