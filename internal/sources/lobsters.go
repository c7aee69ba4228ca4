package sources

import (
	"context"
	"strconv"

	"github.com/mmcdole/gofeed"

	"devpulse/internal/models"
)

// LobstersClient reads the Lobsters RSS feed. The feed has no per-id
// endpoint, so FetchByID is unsupported.
type LobstersClient struct {
	*client
	parser *gofeed.Parser
}

func NewLobstersClient(opts Options) *LobstersClient {
	return &LobstersClient{
		client: newClient("lobsters", opts),
		parser: gofeed.NewParser(),
	}
}

func (c *LobstersClient) ID() string {
	return "lobsters"
}

func (c *LobstersClient) DisplayName() string {
	return "Lobsters"
}

func (c *LobstersClient) FetchLatest(ctx context.Context, limit int) ([]models.Item, error) {
	limit = clampLimit(limit)

	key := requestKey("", map[string]string{"limit": strconv.Itoa(limit)})
	if items, ok := c.cache.Get(key); ok {
		return items, nil
	}

	body, err := c.getBody(ctx, "")
	if err != nil {
		return nil, err
	}

	feed, err := c.parser.ParseString(body)
	if err != nil {
		return nil, &models.FetchError{Source: c.source, Retryable: false, Err: err}
	}

	items := make([]models.Item, 0, limit)
	for _, entry := range feed.Items {
		if len(items) >= limit {
			break
		}
		items = append(items, c.normalize(entry))
	}

	c.cache.Set(key, items)
	c.log.WithField("items", len(items)).Debug("fetched feed entries")
	return items, nil
}

func (c *LobstersClient) FetchByID(ctx context.Context, id string) (models.Item, error) {
	return models.Item{}, ErrNoItemLookup
}

func (c *LobstersClient) normalize(entry *gofeed.Item) models.Item {
	id := entry.GUID
	if id == "" {
		id = entry.Link
	}

	var ts int64
	if entry.PublishedParsed != nil {
		ts = entry.PublishedParsed.Unix()
	} else if entry.UpdatedParsed != nil {
		ts = entry.UpdatedParsed.Unix()
	}

	var author string
	if entry.Author != nil {
		author = entry.Author.Name
	}

	return models.Item{
		ID:          id,
		Title:       entry.Title,
		URL:         entry.Link,
		Description: entry.Description,
		Author:      author,
		Timestamp:   ts,
		Source:      "lobsters",
		Tags:        entry.Categories,
	}
}
