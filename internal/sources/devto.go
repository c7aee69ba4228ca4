package sources

import (
	"context"
	"strconv"
	"time"

	"devpulse/internal/models"
)

// DevToClient reads the DEV.to articles API.
type DevToClient struct {
	*client
}

type devtoArticle struct {
	ID                     int      `json:"id"`
	Title                  string   `json:"title"`
	Description            string   `json:"description"`
	URL                    string   `json:"url"`
	PublishedAt            string   `json:"published_at"`
	TagList                []string `json:"tag_list"`
	PositiveReactionsCount int      `json:"positive_reactions_count"`
	CommentsCount          int      `json:"comments_count"`
	ReadingTimeMinutes     int      `json:"reading_time_minutes"`
	CoverImage             string   `json:"cover_image"`
	User                   struct {
		Name     string `json:"name"`
		Username string `json:"username"`
	} `json:"user"`
}

// devtoSingleArticle covers the by-id endpoint, which flips tag_list to
// a comma-joined string and carries the array under "tags" instead. The
// string form shadows the embedded list field so decoding stays total.
type devtoSingleArticle struct {
	devtoArticle
	TagList string   `json:"tag_list"`
	Tags    []string `json:"tags"`
}

func NewDevToClient(opts Options) *DevToClient {
	return &DevToClient{client: newClient("devto", opts)}
}

func (c *DevToClient) ID() string {
	return "devto"
}

func (c *DevToClient) DisplayName() string {
	return "DEV Community"
}

func (c *DevToClient) FetchLatest(ctx context.Context, limit int) ([]models.Item, error) {
	limit = clampLimit(limit)

	query := map[string]string{"per_page": strconv.Itoa(limit)}
	key := requestKey("/articles", query)
	if items, ok := c.cache.Get(key); ok {
		return items, nil
	}

	var raw []devtoArticle
	if err := c.getJSON(ctx, "/articles", query, &raw); err != nil {
		return nil, err
	}

	items := make([]models.Item, 0, len(raw))
	for _, a := range raw {
		items = append(items, c.normalize(a, a.TagList))
	}

	c.cache.Set(key, items)
	c.log.WithField("items", len(items)).Debug("fetched articles")
	return items, nil
}

func (c *DevToClient) FetchByID(ctx context.Context, id string) (models.Item, error) {
	key := requestKey("/articles/"+id, nil)
	if items, ok := c.cache.Get(key); ok && len(items) == 1 {
		return items[0], nil
	}

	var raw devtoSingleArticle
	if err := c.getJSON(ctx, "/articles/"+id, nil, &raw); err != nil {
		return models.Item{}, err
	}

	item := c.normalize(raw.devtoArticle, raw.Tags)
	c.cache.Set(key, []models.Item{item})
	return item, nil
}

func (c *DevToClient) normalize(raw devtoArticle, tags []string) models.Item {
	var ts int64
	if t, err := time.Parse(time.RFC3339, raw.PublishedAt); err == nil {
		ts = t.Unix()
	}

	return models.Item{
		ID:           strconv.Itoa(raw.ID),
		Title:        raw.Title,
		URL:          raw.URL,
		Description:  raw.Description,
		Author:       raw.User.Name,
		Timestamp:    ts,
		Source:       "devto",
		Reactions:    raw.PositiveReactionsCount,
		CommentCount: raw.CommentsCount,
		ReadingTime:  raw.ReadingTimeMinutes,
		CoverImage:   raw.CoverImage,
		Tags:         tags,
	}
}
