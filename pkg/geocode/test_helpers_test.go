package geocode

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/sells-group/prospect-cli/internal/model"
	"github.com/sells-group/prospect-cli/internal/resilience"
)

func newTestLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Inf, 1)
}

func testRetry() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		Multiplier:     2,
	}
}

// newTestGeocoder points both services at srvURL through the default URLs,
// so request paths are exercised as in production.
func newTestGeocoder(srvURL string) *geocoder {
	g := NewClient(
		WithHTTPClient(newRewriteClient(srvURL, "https://viacep.com.br", "https://nominatim.openstreetmap.org")),
		WithRetry(testRetry()),
	).(*geocoder)
	g.limiter = newTestLimiter()
	return g
}

// newRewriteClient sends requests whose URL starts with one of prefixes to
// the test server instead.
func newRewriteClient(testServerURL string, prefixes ...string) *http.Client {
	return &http.Client{
		Transport: &rewriteTransport{
			base:       http.DefaultTransport,
			testServer: testServerURL,
			prefixes:   prefixes,
		},
	}
}

type rewriteTransport struct {
	base       http.RoundTripper
	testServer string
	prefixes   []string
}

func (t *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	orig := req.URL.String()
	for _, p := range t.prefixes {
		if !strings.HasPrefix(orig, p) {
			continue
		}
		parsed, err := req.URL.Parse(t.testServer + orig[len(p):])
		if err != nil {
			return nil, err
		}
		out := req.Clone(req.Context())
		out.URL = parsed
		out.Host = parsed.Host
		return t.base.RoundTrip(out)
	}
	return t.base.RoundTrip(req)
}

type memCache struct {
	mu      sync.Mutex
	entries map[string]*model.Coordinates
	puts    int
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string]*model.Coordinates)}
}

func (c *memCache) GetGeocode(_ context.Context, key string) (*model.Coordinates, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	return v, ok, nil
}

func (c *memCache) PutGeocode(_ context.Context, key string, coords *model.Coordinates) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = coords
	c.puts++
	return nil
}
