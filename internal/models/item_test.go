package models

import "testing"

func TestFilterCacheKeyCanonical(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Filter
		srcA     []string
		srcB     []string
		wantSame bool
	}{
		{
			name:     "source order does not matter",
			a:        Filter{},
			b:        Filter{},
			srcA:     []string{"devto", "hackernews"},
			srcB:     []string{"hackernews", "devto"},
			wantSame: true,
		},
		{
			name:     "search is case-insensitive",
			a:        Filter{Search: "Rust"},
			b:        Filter{Search: "rust"},
			srcA:     []string{"devto"},
			srcB:     []string{"devto"},
			wantSame: true,
		},
		{
			name:     "tag order and case do not matter",
			a:        Filter{Tags: []string{"Go", "perf"}},
			b:        Filter{Tags: []string{"PERF", "go"}},
			srcA:     []string{"devto"},
			srcB:     []string{"devto"},
			wantSame: true,
		},
		{
			name:     "different source sets differ",
			a:        Filter{},
			b:        Filter{},
			srcA:     []string{"devto"},
			srcB:     []string{"hackernews"},
			wantSame: false,
		},
		{
			name:     "different search differs",
			a:        Filter{Search: "go"},
			b:        Filter{Search: "zig"},
			srcA:     []string{"devto"},
			srcB:     []string{"devto"},
			wantSame: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ka := tc.a.CacheKey(tc.srcA)
			kb := tc.b.CacheKey(tc.srcB)
			if (ka == kb) != tc.wantSame {
				t.Errorf("keys %q vs %q, wantSame=%v", ka, kb, tc.wantSame)
			}
		})
	}
}

func TestItemKey(t *testing.T) {
	a := Item{ID: "1", Source: "devto"}
	b := Item{ID: "1", Source: "hackernews"}
	if a.Key() == b.Key() {
		t.Error("same id from different sources must have distinct identities")
	}
}
