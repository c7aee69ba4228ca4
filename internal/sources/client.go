package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"devpulse/internal/cache"
	"devpulse/internal/models"
)

const maxLimit = 100

// ErrNoItemLookup is returned by FetchByID for providers without a
// per-id endpoint.
var ErrNoItemLookup = errors.New("source does not support per-id lookup")

// Options configures one source client. Every client owns its own
// response cache and rate limiter; nothing is shared between providers.
type Options struct {
	BaseURL      string
	Timeout      time.Duration
	Retries      int
	RetryWait    time.Duration
	RetryMaxWait time.Duration
	RatePerSec   float64
	RateBurst    int
	CacheTTL     time.Duration
	Logger       *logrus.Entry
}

// client is the plumbing shared by all providers: a retry-aware resty
// client, a private rate limiter, and a private TTL cache holding
// normalized items keyed by the resolved request.
type client struct {
	source  string
	http    *resty.Client
	limiter *rate.Limiter
	cache   *cache.Store
	log     *logrus.Entry
}

func newClient(source string, opts Options) *client {
	limiter := rate.NewLimiter(rate.Limit(opts.RatePerSec), opts.RateBurst)

	hc := resty.New().
		SetBaseURL(opts.BaseURL).
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.Retries).
		SetRetryWaitTime(opts.RetryWait).
		SetRetryMaxWaitTime(opts.RetryMaxWait).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= 500
		})

	// Every attempt takes a rate-limit slot, retries included.
	hc.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return limiter.Wait(req.Context())
	})

	log := opts.Logger
	if log == nil {
		log = logrus.NewEntry(logrus.New())
	}

	return &client{
		source:  source,
		http:    hc,
		limiter: limiter,
		cache:   cache.New(opts.CacheTTL),
		log:     log.WithField("source", source),
	}
}

// getJSON performs one GET with retry/backoff and decodes the body.
// A body that fails to decode is a non-retryable failure.
func (c *client) getJSON(ctx context.Context, path string, query map[string]string, out any) error {
	req := c.http.R().SetContext(ctx)
	if len(query) > 0 {
		req.SetQueryParams(query)
	}

	resp, err := req.Get(path)
	if cerr := c.classify(resp, err); cerr != nil {
		return cerr
	}

	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return &models.FetchError{
			Source:    c.source,
			Status:    resp.StatusCode(),
			Retryable: false,
			Err:       fmt.Errorf("decoding body: %w", err),
		}
	}
	return nil
}

// getBody performs one GET and returns the raw body for non-JSON
// payloads (RSS).
func (c *client) getBody(ctx context.Context, path string) (string, error) {
	resp, err := c.http.R().SetContext(ctx).Get(path)
	if cerr := c.classify(resp, err); cerr != nil {
		return "", cerr
	}
	return resp.String(), nil
}

func (c *client) classify(resp *resty.Response, err error) error {
	if err != nil {
		return &models.FetchError{Source: c.source, Status: 0, Retryable: true, Err: err}
	}

	code := resp.StatusCode()
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusTooManyRequests || code >= 500:
		return &models.FetchError{
			Source:    c.source,
			Status:    code,
			Retryable: true,
			Err:       fmt.Errorf("%s returned status %d", c.source, code),
		}
	default:
		return &models.FetchError{
			Source:    c.source,
			Status:    code,
			Retryable: false,
			Err:       fmt.Errorf("%s returned status %d", c.source, code),
		}
	}
}

// requestKey builds the cache key from the fully resolved request, so
// identical requests within the TTL share one entry.
func requestKey(path string, query map[string]string) string {
	if len(query) == 0 {
		return path
	}
	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	vals := url.Values{}
	for _, k := range keys {
		vals.Set(k, query[k])
	}
	return path + "?" + vals.Encode()
}

func (c *client) Close() {
	c.cache.Close()
}

// clampLimit bounds a requested page size to 1..100 instead of
// rejecting out-of-range values.
func clampLimit(limit int) int {
	if limit < 1 {
		return 1
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}
