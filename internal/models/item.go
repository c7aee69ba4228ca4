package models

import (
	"context"
	"sort"
	"strings"
	"time"
)

// Item is the normalized unit every provider payload maps into. ID is
// unique only within a source; (Source, ID) is the global identity.
// Provider-specific fields are zero-valued when the source does not
// carry them at all, e.g. a repository has no ReadingTime.
type Item struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	URL          string   `json:"url,omitempty"`
	Description  string   `json:"description,omitempty"`
	Content      string   `json:"content,omitempty"`
	Author       string   `json:"author,omitempty"`
	Timestamp    int64    `json:"timestamp"`
	Source       string   `json:"source"`
	Points       int      `json:"points,omitempty"`
	CommentCount int      `json:"comment_count,omitempty"`
	Reactions    int      `json:"reactions,omitempty"`
	Stars        int      `json:"stars,omitempty"`
	Forks        int      `json:"forks,omitempty"`
	Language     string   `json:"language,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	ReadingTime  int      `json:"reading_time,omitempty"`
	CoverImage   string   `json:"cover_image,omitempty"`
}

// Key returns the global identity used for de-duplication.
func (i Item) Key() string {
	return i.Source + "/" + i.ID
}

// Source fetches and normalizes items from one external provider.
type Source interface {
	FetchLatest(ctx context.Context, limit int) ([]Item, error)
	FetchByID(ctx context.Context, id string) (Item, error)
	ID() string
	DisplayName() string
}

// SourceInfo is a registry entry. Enabled is the only mutable field.
type SourceInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Enabled     bool   `json:"enabled"`
}

// SourceError is the single error slot kept per source, overwritten on
// the next failure and cleared on the next success.
type SourceError struct {
	SourceID  string    `json:"source_id"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Filter narrows an aggregate request. An empty Sources slice means
// "use the currently enabled set".
type Filter struct {
	Sources []string `json:"sources,omitempty"`
	Search  string   `json:"search,omitempty"`
	Tags    []string `json:"tags,omitempty"`
}

// CacheKey encodes the filter plus the resolved source set into a
// canonical string, so equivalent requests share one aggregate entry.
func (f Filter) CacheKey(resolved []string) string {
	srcs := append([]string(nil), resolved...)
	sort.Strings(srcs)

	tags := make([]string, len(f.Tags))
	for i, t := range f.Tags {
		tags[i] = strings.ToLower(t)
	}
	sort.Strings(tags)

	return strings.Join(srcs, ",") + "|" + strings.ToLower(f.Search) + "|" + strings.Join(tags, ",")
}
