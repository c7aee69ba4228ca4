package aggregator

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"devpulse/internal/cache"
	"devpulse/internal/models"
)

// Coordinator owns the source registry, the per-source error table, and
// the aggregate result cache. All state is constructor-injected; a fresh
// Coordinator per process (or per test) shares nothing.
type Coordinator struct {
	mu          sync.RWMutex
	registry    []models.SourceInfo
	clients     map[string]models.Source
	errTable    map[string]models.SourceError
	agg         *cache.Store
	log         *logrus.Entry
	limit       int
	timeout     time.Duration
	errorMaxAge time.Duration
	now         func() time.Time
}

type Options struct {
	CacheTTL    time.Duration
	FetchLimit  int
	Timeout     time.Duration
	ErrorMaxAge time.Duration
	Logger      *logrus.Entry
}

func New(opts Options) *Coordinator {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}
	if opts.FetchLimit <= 0 {
		opts.FetchLimit = 30
	}
	if opts.ErrorMaxAge <= 0 {
		opts.ErrorMaxAge = time.Hour
	}
	log := opts.Logger
	if log == nil {
		log = logrus.NewEntry(logrus.New())
	}

	return &Coordinator{
		clients:     make(map[string]models.Source),
		errTable:    make(map[string]models.SourceError),
		agg:         cache.New(opts.CacheTTL),
		log:         log,
		limit:       opts.FetchLimit,
		timeout:     opts.Timeout,
		errorMaxAge: opts.ErrorMaxAge,
		now:         time.Now,
	}
}

// Register adds a source to the registry. Registration happens once at
// startup from the static source list; order is preserved and decides
// merge order on ties.
func (c *Coordinator) Register(src models.Source, enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.clients[src.ID()] = src
	c.registry = append(c.registry, models.SourceInfo{
		ID:          src.ID(),
		DisplayName: src.DisplayName(),
		Enabled:     enabled,
	})
}

type fetchOutcome struct {
	sourceID string
	items    []models.Item
	err      error
}

// GetAggregated merges the latest items of the resolved source set,
// applies the filter, and returns them newest first. Individual source
// failures land in the error table and never abort the other sources;
// only an invalid filter is an error.
func (c *Coordinator) GetAggregated(ctx context.Context, filter models.Filter) ([]models.Item, error) {
	resolved, err := c.resolveSources(filter)
	if err != nil {
		return nil, err
	}
	if len(resolved) == 0 {
		return []models.Item{}, nil
	}

	key := filter.CacheKey(resolved)
	if items, ok := c.agg.Get(key); ok {
		return items, nil
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	// Settle-all fan-out: every outcome is captured independently, so a
	// failing source cannot cancel or delay the rest.
	outcomes := make([]fetchOutcome, len(resolved))
	var wg sync.WaitGroup
	for i, id := range resolved {
		src := c.clients[id]
		wg.Add(1)
		go func(i int, id string, src models.Source) {
			defer wg.Done()
			items, err := src.FetchLatest(ctx, c.limit)
			outcomes[i] = fetchOutcome{sourceID: id, items: items, err: err}
		}(i, id, src)
	}
	wg.Wait()

	merged := make([]models.Item, 0, len(resolved)*c.limit)
	seen := make(map[string]bool)
	for _, out := range outcomes {
		if out.err != nil {
			c.recordError(out.sourceID, out.err)
			continue
		}
		c.clearError(out.sourceID)
		for _, item := range out.items {
			if seen[item.Key()] {
				continue
			}
			seen[item.Key()] = true
			merged = append(merged, item)
		}
	}

	merged = applyFilter(merged, filter)

	// Stable sort keeps source-fetch order deterministic on equal timestamps.
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Timestamp > merged[j].Timestamp
	})

	c.agg.Set(key, merged)
	c.log.WithFields(logrus.Fields{"sources": len(resolved), "items": len(merged)}).Debug("aggregated")
	return merged, nil
}

// resolveSources returns the filter's source set if present, otherwise
// the currently enabled set, always in registry order.
func (c *Coordinator) resolveSources(filter models.Filter) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(filter.Sources) > 0 {
		requested := make(map[string]bool, len(filter.Sources))
		for _, id := range filter.Sources {
			if _, known := c.clients[id]; !known {
				return nil, fmt.Errorf("unknown source %q", id)
			}
			requested[id] = true
		}
		var resolved []string
		for _, info := range c.registry {
			if requested[info.ID] {
				resolved = append(resolved, info.ID)
			}
		}
		return resolved, nil
	}

	var resolved []string
	for _, info := range c.registry {
		if info.Enabled {
			resolved = append(resolved, info.ID)
		}
	}
	return resolved, nil
}

func applyFilter(items []models.Item, filter models.Filter) []models.Item {
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	tags := make(map[string]bool, len(filter.Tags))
	for _, t := range filter.Tags {
		tags[strings.ToLower(t)] = true
	}
	if search == "" && len(tags) == 0 {
		return items
	}

	kept := items[:0]
	for _, item := range items {
		if search != "" && !matchesSearch(item, search) {
			continue
		}
		if len(tags) > 0 && !matchesTags(item, tags) {
			continue
		}
		kept = append(kept, item)
	}
	return kept
}

func matchesSearch(item models.Item, search string) bool {
	return strings.Contains(strings.ToLower(item.Title), search) ||
		strings.Contains(strings.ToLower(item.Description), search) ||
		strings.Contains(strings.ToLower(item.Content), search)
}

func matchesTags(item models.Item, tags map[string]bool) bool {
	for _, t := range item.Tags {
		if tags[strings.ToLower(t)] {
			return true
		}
	}
	return false
}

// SetSourceEnabled flips one registry flag and invalidates the whole
// aggregate cache, since every key encodes the enabled set.
func (c *Coordinator) SetSourceEnabled(id string, enabled bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.registry {
		if c.registry[i].ID == id {
			c.registry[i].Enabled = enabled
			c.agg.Clear()
			return nil
		}
	}
	return fmt.Errorf("unknown source %q", id)
}

// Sources returns a snapshot of the registry.
func (c *Coordinator) Sources() []models.SourceInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]models.SourceInfo, len(c.registry))
	copy(out, c.registry)
	return out
}

// Errors returns the current soft-failure records in registry order.
// Records older than the max age are treated as cleared.
func (c *Coordinator) Errors() []models.SourceError {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cutoff := c.now().Add(-c.errorMaxAge)
	var out []models.SourceError
	for _, info := range c.registry {
		if rec, ok := c.errTable[info.ID]; ok && rec.Timestamp.After(cutoff) {
			out = append(out, rec)
		}
	}
	return out
}

func (c *Coordinator) recordError(sourceID string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.errTable[sourceID] = models.SourceError{
		SourceID:  sourceID,
		Message:   err.Error(),
		Timestamp: c.now(),
	}
	c.log.WithFields(logrus.Fields{"source": sourceID}).WithError(err).Warn("source fetch failed")
}

func (c *Coordinator) clearError(sourceID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.errTable, sourceID)
}

// ClearCache drops all aggregate entries.
func (c *Coordinator) ClearCache() {
	c.agg.Clear()
}

func (c *Coordinator) Close() {
	c.agg.Close()
}
