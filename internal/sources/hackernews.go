package sources

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"devpulse/internal/models"
)

const hnWebURL = "https://news.ycombinator.com"

// HackerNewsClient reads the Firebase-backed HN API: a top-story id
// list plus a per-id item endpoint.
type HackerNewsClient struct {
	*client
}

type hnItem struct {
	ID          int    `json:"id"`
	Type        string `json:"type"`
	By          string `json:"by"`
	Time        int64  `json:"time"`
	Text        string `json:"text"`
	Dead        bool   `json:"dead"`
	Deleted     bool   `json:"deleted"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Score       int    `json:"score"`
	Descendants int    `json:"descendants"`
}

func NewHackerNewsClient(opts Options) *HackerNewsClient {
	return &HackerNewsClient{client: newClient("hackernews", opts)}
}

func (c *HackerNewsClient) ID() string {
	return "hackernews"
}

func (c *HackerNewsClient) DisplayName() string {
	return "Hacker News"
}

func (c *HackerNewsClient) FetchLatest(ctx context.Context, limit int) ([]models.Item, error) {
	limit = clampLimit(limit)

	key := requestKey("/topstories.json", map[string]string{"limit": strconv.Itoa(limit)})
	if items, ok := c.cache.Get(key); ok {
		return items, nil
	}

	var ids []int
	if err := c.getJSON(ctx, "/topstories.json", nil, &ids); err != nil {
		return nil, err
	}
	if len(ids) > limit {
		ids = ids[:limit]
	}

	// One request per story id; their network time overlaps.
	results := make([]*models.Item, len(ids))
	errs := make([]error, len(ids))
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i, id int) {
			defer wg.Done()
			var raw hnItem
			if err := c.getJSON(ctx, fmt.Sprintf("/item/%d.json", id), nil, &raw); err != nil {
				errs[i] = err
				return
			}
			if raw.Deleted || raw.Dead || raw.Title == "" {
				return
			}
			item := c.normalize(raw)
			results[i] = &item
		}(i, id)
	}
	wg.Wait()

	items := make([]models.Item, 0, len(ids))
	for _, r := range results {
		if r != nil {
			items = append(items, *r)
		}
	}
	if len(items) == 0 {
		for _, err := range errs {
			if err != nil {
				return nil, err
			}
		}
	}

	c.cache.Set(key, items)
	c.log.WithField("items", len(items)).Debug("fetched top stories")
	return items, nil
}

func (c *HackerNewsClient) FetchByID(ctx context.Context, id string) (models.Item, error) {
	key := requestKey("/item/"+id+".json", nil)
	if items, ok := c.cache.Get(key); ok && len(items) == 1 {
		return items[0], nil
	}

	var raw hnItem
	if err := c.getJSON(ctx, "/item/"+id+".json", nil, &raw); err != nil {
		return models.Item{}, err
	}
	if raw.Deleted || raw.Dead || raw.Title == "" {
		return models.Item{}, fmt.Errorf("hackernews: item %s is unavailable", id)
	}

	item := c.normalize(raw)
	c.cache.Set(key, []models.Item{item})
	return item, nil
}

func (c *HackerNewsClient) normalize(raw hnItem) models.Item {
	url := raw.URL
	if url == "" {
		// Ask HN and text posts have no external link.
		url = fmt.Sprintf("%s/item?id=%d", hnWebURL, raw.ID)
	}

	return models.Item{
		ID:           strconv.Itoa(raw.ID),
		Title:        raw.Title,
		URL:          url,
		Content:      raw.Text,
		Author:       raw.By,
		Timestamp:    raw.Time,
		Source:       "hackernews",
		Points:       raw.Score,
		CommentCount: raw.Descendants,
	}
}
