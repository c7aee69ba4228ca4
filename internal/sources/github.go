package sources

import (
	"context"
	"strconv"
	"time"

	"devpulse/internal/models"
)

// GitHubClient reads the repository search API, sorted by stars.
type GitHubClient struct {
	*client
}

type githubRepo struct {
	ID              int      `json:"id"`
	FullName        string   `json:"full_name"`
	HTMLURL         string   `json:"html_url"`
	Description     string   `json:"description"`
	StargazersCount int      `json:"stargazers_count"`
	ForksCount      int      `json:"forks_count"`
	Language        string   `json:"language"`
	Topics          []string `json:"topics"`
	CreatedAt       string   `json:"created_at"`
	Owner           struct {
		Login     string `json:"login"`
		AvatarURL string `json:"avatar_url"`
		HTMLURL   string `json:"html_url"`
	} `json:"owner"`
}

type githubSearchResponse struct {
	TotalCount int          `json:"total_count"`
	Items      []githubRepo `json:"items"`
}

func NewGitHubClient(opts Options) *GitHubClient {
	c := &GitHubClient{client: newClient("github", opts)}
	c.http.SetHeader("Accept", "application/vnd.github+json")
	return c
}

func (c *GitHubClient) ID() string {
	return "github"
}

func (c *GitHubClient) DisplayName() string {
	return "GitHub"
}

func (c *GitHubClient) FetchLatest(ctx context.Context, limit int) ([]models.Item, error) {
	limit = clampLimit(limit)

	query := map[string]string{
		"q":        "stars:>1000",
		"sort":     "stars",
		"order":    "desc",
		"per_page": strconv.Itoa(limit),
	}
	key := requestKey("/search/repositories", query)
	if items, ok := c.cache.Get(key); ok {
		return items, nil
	}

	var raw githubSearchResponse
	if err := c.getJSON(ctx, "/search/repositories", query, &raw); err != nil {
		return nil, err
	}

	items := make([]models.Item, 0, len(raw.Items))
	for _, repo := range raw.Items {
		items = append(items, c.normalize(repo))
	}

	c.cache.Set(key, items)
	c.log.WithField("items", len(items)).Debug("fetched repositories")
	return items, nil
}

func (c *GitHubClient) FetchByID(ctx context.Context, id string) (models.Item, error) {
	key := requestKey("/repositories/"+id, nil)
	if items, ok := c.cache.Get(key); ok && len(items) == 1 {
		return items[0], nil
	}

	var raw githubRepo
	if err := c.getJSON(ctx, "/repositories/"+id, nil, &raw); err != nil {
		return models.Item{}, err
	}

	item := c.normalize(raw)
	c.cache.Set(key, []models.Item{item})
	return item, nil
}

func (c *GitHubClient) normalize(raw githubRepo) models.Item {
	var ts int64
	if t, err := time.Parse(time.RFC3339, raw.CreatedAt); err == nil {
		ts = t.Unix()
	}

	return models.Item{
		ID:          strconv.Itoa(raw.ID),
		Title:       raw.FullName,
		URL:         raw.HTMLURL,
		Description: raw.Description,
		Author:      raw.Owner.Login,
		Timestamp:   ts,
		Source:      "github",
		Stars:       raw.StargazersCount,
		Forks:       raw.ForksCount,
		Language:    raw.Language,
		Tags:        raw.Topics,
	}
}
