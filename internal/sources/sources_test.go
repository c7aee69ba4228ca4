package sources

import (
	"testing"
	"time"
)

// testOptions keeps retries fast and the limiter wide open so tests
// exercise behavior, not wall-clock delays.
func testOptions(t *testing.T, baseURL string) Options {
	t.Helper()
	return Options{
		BaseURL:      baseURL,
		Timeout:      2 * time.Second,
		Retries:      2,
		RetryWait:    5 * time.Millisecond,
		RetryMaxWait: 20 * time.Millisecond,
		RatePerSec:   1000,
		RateBurst:    1000,
		CacheTTL:     5 * time.Minute,
	}
}
