package aggregator

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"devpulse/internal/models"
)

type fakeSource struct {
	id    string
	items []models.Item
	err   error

	mu    sync.Mutex
	calls int
}

func (f *fakeSource) FetchLatest(ctx context.Context, limit int) ([]models.Item, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.items, nil
}

func (f *fakeSource) FetchByID(ctx context.Context, id string) (models.Item, error) {
	return models.Item{}, nil
}

func (f *fakeSource) ID() string          { return f.id }
func (f *fakeSource) DisplayName() string { return strings.ToUpper(f.id) }

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func makeItems(source string, n int, newest int64) []models.Item {
	items := make([]models.Item, n)
	for i := 0; i < n; i++ {
		items[i] = models.Item{
			ID:        strconv.Itoa(i + 1),
			Title:     source + " item " + strconv.Itoa(i+1),
			Source:    source,
			Timestamp: newest - int64(i*60),
		}
	}
	return items
}

func testCoordinator(t *testing.T, ttl time.Duration, srcs ...*fakeSource) *Coordinator {
	t.Helper()
	c := New(Options{CacheTTL: ttl, FetchLimit: 30})
	t.Cleanup(c.Close)
	for _, s := range srcs {
		c.Register(s, true)
	}
	return c
}

func assertSorted(t *testing.T, items []models.Item) {
	t.Helper()
	for i := 1; i < len(items); i++ {
		if items[i].Timestamp > items[i-1].Timestamp {
			t.Fatalf("items not sorted newest-first at index %d", i)
		}
	}
}

func TestAllSourcesSucceed(t *testing.T) {
	now := time.Now().Unix()
	a := &fakeSource{id: "a", items: makeItems("a", 10, now)}
	b := &fakeSource{id: "b", items: makeItems("b", 8, now-10)}
	d := &fakeSource{id: "d", items: makeItems("d", 5, now-20)}
	c := testCoordinator(t, 5*time.Minute, a, b, d)

	items, err := c.GetAggregated(context.Background(), models.Filter{})
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if len(items) != 23 {
		t.Fatalf("expected 23 items, got %d", len(items))
	}
	assertSorted(t, items)
	if errs := c.Errors(); len(errs) != 0 {
		t.Errorf("expected no error records, got %v", errs)
	}
}

func TestPartialFailure(t *testing.T) {
	now := time.Now().Unix()
	a := &fakeSource{id: "a", items: makeItems("a", 10, now)}
	b := &fakeSource{id: "b", err: &models.FetchError{
		Source: "b", Status: http.StatusServiceUnavailable, Retryable: true,
		Err: errors.New("b returned status 503"),
	}}
	d := &fakeSource{id: "d", items: makeItems("d", 5, now-20)}
	c := testCoordinator(t, 5*time.Minute, a, b, d)

	items, err := c.GetAggregated(context.Background(), models.Filter{})
	if err != nil {
		t.Fatalf("partial failure must not be an error: %v", err)
	}
	if len(items) != 15 {
		t.Fatalf("expected the union of the healthy sources (15), got %d", len(items))
	}

	errs := c.Errors()
	if len(errs) != 1 {
		t.Fatalf("expected exactly one error record, got %d", len(errs))
	}
	if errs[0].SourceID != "b" || !strings.Contains(errs[0].Message, "503") {
		t.Errorf("unexpected error record: %+v", errs[0])
	}
}

func TestFailedSourceErrorOverwrittenThenCleared(t *testing.T) {
	now := time.Now().Unix()
	b := &fakeSource{id: "b", err: &models.FetchError{Source: "b", Status: 500, Err: context.DeadlineExceeded}}
	c := testCoordinator(t, 5*time.Minute, b)

	if _, err := c.GetAggregated(context.Background(), models.Filter{}); err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if len(c.Errors()) != 1 {
		t.Fatal("expected an error record after failure")
	}

	// Source recovers; next cycle clears the slot.
	b.err = nil
	b.items = makeItems("b", 2, now)
	c.ClearCache()

	if _, err := c.GetAggregated(context.Background(), models.Filter{}); err != nil {
		t.Fatalf("aggregate after recovery: %v", err)
	}
	if errs := c.Errors(); len(errs) != 0 {
		t.Errorf("expected cleared error table, got %v", errs)
	}
}

func TestEmptySourceSetShortCircuit(t *testing.T) {
	a := &fakeSource{id: "a", items: makeItems("a", 3, time.Now().Unix())}
	c := New(Options{CacheTTL: 5 * time.Minute})
	t.Cleanup(c.Close)
	c.Register(a, false)

	items, err := c.GetAggregated(context.Background(), models.Filter{})
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected empty result, got %d items", len(items))
	}
	if a.callCount() != 0 {
		t.Errorf("expected zero network calls, got %d", a.callCount())
	}
}

func TestIdempotentWithinTTL(t *testing.T) {
	a := &fakeSource{id: "a", items: makeItems("a", 3, time.Now().Unix())}
	c := testCoordinator(t, 5*time.Minute, a)

	filter := models.Filter{Search: "item"}
	if _, err := c.GetAggregated(context.Background(), filter); err != nil {
		t.Fatalf("first aggregate: %v", err)
	}
	if _, err := c.GetAggregated(context.Background(), filter); err != nil {
		t.Fatalf("second aggregate: %v", err)
	}
	if a.callCount() != 1 {
		t.Errorf("expected one fan-out for two calls within TTL, got %d", a.callCount())
	}
}

func TestTTLBoundaryRecomputes(t *testing.T) {
	a := &fakeSource{id: "a", items: makeItems("a", 3, time.Now().Unix())}
	c := testCoordinator(t, 30*time.Millisecond, a)

	if _, err := c.GetAggregated(context.Background(), models.Filter{}); err != nil {
		t.Fatalf("first aggregate: %v", err)
	}
	time.Sleep(40 * time.Millisecond)
	if _, err := c.GetAggregated(context.Background(), models.Filter{}); err != nil {
		t.Fatalf("second aggregate: %v", err)
	}
	if a.callCount() != 2 {
		t.Errorf("expected a fresh fan-out past the TTL, got %d calls", a.callCount())
	}
}

func TestToggleInvalidatesAggregateCache(t *testing.T) {
	now := time.Now().Unix()
	a := &fakeSource{id: "a", items: makeItems("a", 4, now)}
	b := &fakeSource{id: "b", items: makeItems("b", 4, now-5)}
	c := testCoordinator(t, 5*time.Minute, a, b)

	if _, err := c.GetAggregated(context.Background(), models.Filter{}); err != nil {
		t.Fatalf("first aggregate: %v", err)
	}

	if err := c.SetSourceEnabled("b", false); err != nil {
		t.Fatalf("toggle: %v", err)
	}

	items, err := c.GetAggregated(context.Background(), models.Filter{})
	if err != nil {
		t.Fatalf("aggregate after toggle: %v", err)
	}
	for _, item := range items {
		if item.Source == "b" {
			t.Fatalf("disabled source leaked into result: %+v", item)
		}
	}
	if b.callCount() != 1 {
		t.Errorf("disabled source must not be fetched again, got %d calls", b.callCount())
	}
}

func TestFilterSourcesOverride(t *testing.T) {
	now := time.Now().Unix()
	a := &fakeSource{id: "a", items: makeItems("a", 2, now)}
	b := &fakeSource{id: "b", items: makeItems("b", 2, now)}
	c := testCoordinator(t, 5*time.Minute, a, b)

	items, err := c.GetAggregated(context.Background(), models.Filter{Sources: []string{"a"}})
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	for _, item := range items {
		if item.Source != "a" {
			t.Fatalf("unexpected source in result: %+v", item)
		}
	}
	if b.callCount() != 0 {
		t.Errorf("source outside the filter must not be fetched, got %d calls", b.callCount())
	}
}

func TestUnknownFilterSource(t *testing.T) {
	a := &fakeSource{id: "a"}
	c := testCoordinator(t, 5*time.Minute, a)

	if _, err := c.GetAggregated(context.Background(), models.Filter{Sources: []string{"nope"}}); err == nil {
		t.Fatal("expected an error for an unknown source id")
	}
}

func TestSearchFilter(t *testing.T) {
	now := time.Now().Unix()
	a := &fakeSource{id: "a", items: []models.Item{
		{ID: "1", Source: "a", Title: "Rewriting our ingest path in Rust", Timestamp: now},
		{ID: "2", Source: "a", Title: "Weekly roundup", Description: "rust, go and zig links", Timestamp: now - 60},
		{ID: "3", Source: "a", Title: "Postgres tips", Content: "Nothing about crabs here", Timestamp: now - 120},
	}}
	c := testCoordinator(t, 5*time.Minute, a)

	items, err := c.GetAggregated(context.Background(), models.Filter{Search: "RUST"})
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(items))
	}
	assertSorted(t, items)
	for _, item := range items {
		text := strings.ToLower(item.Title + item.Description + item.Content)
		if !strings.Contains(text, "rust") {
			t.Errorf("non-matching item returned: %+v", item)
		}
	}
}

func TestTagFilter(t *testing.T) {
	now := time.Now().Unix()
	a := &fakeSource{id: "a", items: []models.Item{
		{ID: "1", Source: "a", Title: "tagged", Tags: []string{"Go", "perf"}, Timestamp: now},
		{ID: "2", Source: "a", Title: "other tags", Tags: []string{"python"}, Timestamp: now - 60},
		{ID: "3", Source: "a", Title: "untagged", Timestamp: now - 120},
	}}
	c := testCoordinator(t, 5*time.Minute, a)

	items, err := c.GetAggregated(context.Background(), models.Filter{Tags: []string{"go"}})
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if len(items) != 1 || items[0].ID != "1" {
		t.Fatalf("expected only the go-tagged item, got %+v", items)
	}
}

func TestDeduplicatesByIdentity(t *testing.T) {
	now := time.Now().Unix()
	dup := models.Item{ID: "1", Source: "a", Title: "dup", Timestamp: now}
	a := &fakeSource{id: "a", items: []models.Item{dup, dup}}
	c := testCoordinator(t, 5*time.Minute, a)

	items, err := c.GetAggregated(context.Background(), models.Filter{})
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected duplicate identity to collapse, got %d items", len(items))
	}
}

func TestTieBreakIsDeterministic(t *testing.T) {
	ts := time.Now().Unix()
	a := &fakeSource{id: "a", items: []models.Item{{ID: "1", Source: "a", Title: "first", Timestamp: ts}}}
	b := &fakeSource{id: "b", items: []models.Item{{ID: "1", Source: "b", Title: "second", Timestamp: ts}}}
	c := testCoordinator(t, 5*time.Minute, a, b)

	items, err := c.GetAggregated(context.Background(), models.Filter{})
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if len(items) != 2 || items[0].Source != "a" || items[1].Source != "b" {
		t.Fatalf("expected registry order on equal timestamps, got %+v", items)
	}
}

func TestErrorRecordsAgeOut(t *testing.T) {
	b := &fakeSource{id: "b", err: &models.FetchError{Source: "b", Status: 500, Err: context.DeadlineExceeded}}
	c := testCoordinator(t, 5*time.Minute, b)

	if _, err := c.GetAggregated(context.Background(), models.Filter{}); err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if len(c.Errors()) != 1 {
		t.Fatal("expected one error record")
	}

	base := time.Now()
	c.now = func() time.Time { return base.Add(2 * time.Hour) }
	if errs := c.Errors(); len(errs) != 0 {
		t.Errorf("expected aged-out record to be treated as cleared, got %v", errs)
	}
}
