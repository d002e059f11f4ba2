// Package geocode resolves Brazilian postal codes (CEP) to coordinates via
// ViaCEP (postal lookup) and Nominatim (OpenStreetMap search).
package geocode

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/prospect-cli/internal/model"
	"github.com/sells-group/prospect-cli/internal/resilience"
)

const (
	// DefaultViaCEPURL is the ViaCEP base; the CEP and "/json/" are appended.
	DefaultViaCEPURL = "https://viacep.com.br/ws"
	// DefaultNominatimURL is the Nominatim search endpoint.
	DefaultNominatimURL = "https://nominatim.openstreetmap.org/search"
	// DefaultUserAgent identifies the client to Nominatim, which rejects anonymous traffic.
	DefaultUserAgent = "prospect-cli/1.0"
)

var (
	// ErrInvalidPostalCode is returned when the CEP is not 8 digits.
	ErrInvalidPostalCode = eris.New("geocode: invalid postal code")
	// ErrPostalCodeNotFound is returned when ViaCEP has no record for the CEP.
	ErrPostalCodeNotFound = eris.New("geocode: postal code not found")
)

// Client resolves postal codes and addresses.
type Client interface {
	// LookupPostalCode returns the address registered for an 8-digit CEP.
	LookupPostalCode(ctx context.Context, cep string) (*PostalAddress, error)

	// Geocode resolves a CEP (plus optional free-text address) to
	// coordinates. An address no search can place is returned as
	// Result{Matched: false} with a nil error.
	Geocode(ctx context.Context, in AddressInput) (*Result, error)
}

// AddressInput is what a caller knows about a location.
type AddressInput struct {
	PostalCode string
	// Address is an optional full address; when empty one is composed from
	// the postal lookup.
	Address string
}

// PostalAddress is a ViaCEP record.
type PostalAddress struct {
	PostalCode   string
	Street       string
	Neighborhood string
	City         string
	State        string
}

// Result holds the geocoding output.
type Result struct {
	Coordinates model.Coordinates
	Query       string
	// Quality is "address" for a full-address hit and "city" for the
	// city+state fallback.
	Quality string
	Matched bool
	Postal  *PostalAddress
}

// Cache stores search outcomes keyed by CacheKey. A nil coordinate is a
// cached miss.
type Cache interface {
	GetGeocode(ctx context.Context, key string) (coords *model.Coordinates, found bool, err error)
	PutGeocode(ctx context.Context, key string, coords *model.Coordinates) error
}

// Option configures the geocoder.
type Option func(*geocoder)

// WithHTTPClient sets the HTTP client used for both services.
func WithHTTPClient(hc *http.Client) Option {
	return func(g *geocoder) {
		g.httpClient = hc
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(g *geocoder) {
		if d > 0 {
			g.httpClient = &http.Client{Timeout: d}
		}
	}
}

// WithRateLimit sets the Nominatim request budget in requests per second.
func WithRateLimit(rps float64) Option {
	return func(g *geocoder) {
		if rps > 0 {
			g.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithUserAgent sets the User-Agent sent to Nominatim.
func WithUserAgent(ua string) Option {
	return func(g *geocoder) {
		if ua != "" {
			g.userAgent = ua
		}
	}
}

// WithViaCEPURL overrides the ViaCEP base URL.
func WithViaCEPURL(u string) Option {
	return func(g *geocoder) {
		if u != "" {
			g.viaCEPURL = strings.TrimRight(u, "/")
		}
	}
}

// WithNominatimURL overrides the Nominatim search URL.
func WithNominatimURL(u string) Option {
	return func(g *geocoder) {
		if u != "" {
			g.nominatimURL = u
		}
	}
}

// WithCache enables search result caching.
func WithCache(c Cache) Option {
	return func(g *geocoder) {
		g.cache = c
	}
}

// WithRetry overrides the retry policy for transient HTTP failures.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(g *geocoder) {
		g.retry = cfg
	}
}

type geocoder struct {
	httpClient   *http.Client
	limiter      *rate.Limiter
	userAgent    string
	viaCEPURL    string
	nominatimURL string
	cache        Cache
	retry        resilience.RetryConfig
}

// NewClient creates a geocoding Client. Nominatim calls share one limiter
// at 1 req/s unless overridden.
func NewClient(opts ...Option) Client {
	g := &geocoder{
		httpClient:   &http.Client{Timeout: 15 * time.Second},
		limiter:      rate.NewLimiter(rate.Limit(1), 1),
		userAgent:    DefaultUserAgent,
		viaCEPURL:    DefaultViaCEPURL,
		nominatimURL: DefaultNominatimURL,
		retry:        resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Geocode validates the CEP, looks it up, then searches the full address and
// falls back to city+state.
func (g *geocoder) Geocode(ctx context.Context, in AddressInput) (*Result, error) {
	postal, err := g.LookupPostalCode(ctx, in.PostalCode)
	if err != nil {
		return nil, err
	}

	full := strings.TrimSpace(in.Address)
	if full == "" {
		full = composeAddress(postal)
	}

	if full != "" {
		coords, err := g.search(ctx, full)
		if err != nil {
			return nil, err
		}
		if coords != nil {
			return &Result{Coordinates: *coords, Query: full, Quality: "address", Matched: true, Postal: postal}, nil
		}
	}

	coarse := joinNonEmpty(", ", postal.City, postal.State)
	if coarse != "" && coarse != full {
		coords, err := g.search(ctx, coarse)
		if err != nil {
			return nil, err
		}
		if coords != nil {
			return &Result{Coordinates: *coords, Query: coarse, Quality: "city", Matched: true, Postal: postal}, nil
		}
	}

	zap.L().Debug("geocode: unresolved", zap.String("postal_code", postal.PostalCode))
	return &Result{Matched: false, Postal: postal}, nil
}

// search runs one Nominatim query through the cache.
func (g *geocoder) search(ctx context.Context, query string) (*model.Coordinates, error) {
	key := CacheKey(query)
	if g.cache != nil {
		coords, found, err := g.cache.GetGeocode(ctx, key)
		if err != nil {
			zap.L().Warn("geocode: cache read failed", zap.Error(err))
		} else if found {
			return coords, nil
		}
	}

	coords, err := g.searchNominatim(ctx, query)
	if err != nil {
		return nil, err
	}

	if g.cache != nil {
		if err := g.cache.PutGeocode(ctx, key, coords); err != nil {
			zap.L().Warn("geocode: cache write failed", zap.Error(err))
		}
	}
	return coords, nil
}

func composeAddress(p *PostalAddress) string {
	return joinNonEmpty(", ", p.Street, p.Neighborhood, p.City, p.State)
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}
