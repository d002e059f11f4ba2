package geocode

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/sells-group/prospect-cli/internal/model"
)

const viaCEPSe = `{
	"cep": "01001-000",
	"logradouro": "Praça da Sé",
	"complemento": "lado ímpar",
	"bairro": "Sé",
	"localidade": "São Paulo",
	"uf": "SP"
}`

func TestLookupPostalCode(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, viaCEPSe)
	}))
	defer srv.Close()

	g := newTestGeocoder(srv.URL)
	addr, err := g.LookupPostalCode(context.Background(), "01001-000")
	require.NoError(t, err)
	assert.Equal(t, "/ws/01001000/json/", gotPath)
	assert.Equal(t, &PostalAddress{
		PostalCode:   "01001000",
		Street:       "Praça da Sé",
		Neighborhood: "Sé",
		City:         "São Paulo",
		State:        "SP",
	}, addr)
}

func TestLookupPostalCode_Invalid(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	g := newTestGeocoder(srv.URL)
	for _, raw := range []string{"", "0100-100", "010010001", "abc"} {
		_, err := g.LookupPostalCode(context.Background(), raw)
		require.Error(t, err, raw)
		assert.True(t, errors.Is(err, ErrInvalidPostalCode), raw)
		assert.True(t, model.IsValidation(err), raw)
	}
	assert.Equal(t, int32(0), calls.Load(), "invalid codes must not reach the service")
}

func TestLookupPostalCode_NotFound(t *testing.T) {
	bodies := []string{`{"erro": true}`, `{"erro": "true"}`}
	for _, body := range bodies {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, body)
		}))

		g := newTestGeocoder(srv.URL)
		_, err := g.LookupPostalCode(context.Background(), "99999999")
		require.Error(t, err, body)
		assert.True(t, errors.Is(err, ErrPostalCodeNotFound), body)
		assert.True(t, model.IsNotFound(err), body)
		srv.Close()
	}
}

func TestLookupPostalCode_BadRequestIsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := newTestGeocoder(srv.URL).LookupPostalCode(context.Background(), "00000000")
	assert.True(t, model.IsNotFound(err))
}

func TestLookupPostalCode_RetriesServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, viaCEPSe)
	}))
	defer srv.Close()

	addr, err := newTestGeocoder(srv.URL).LookupPostalCode(context.Background(), "01001000")
	require.NoError(t, err)
	assert.Equal(t, "São Paulo", addr.City)
	assert.Equal(t, int32(2), calls.Load())
}

func TestLookupPostalCode_PermanentErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := newTestGeocoder(srv.URL).LookupPostalCode(context.Background(), "01001000")
	require.Error(t, err)
	assert.False(t, model.IsNotFound(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestGeocode_ComposedAddress(t *testing.T) {
	var query, userAgent, limit, country string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/search" {
			query = r.URL.Query().Get("q")
			limit = r.URL.Query().Get("limit")
			country = r.URL.Query().Get("countrycodes")
			userAgent = r.Header.Get("User-Agent")
			_, _ = io.WriteString(w, `[{"lat":"-23.5503","lon":"-46.6339","display_name":"Praça da Sé"}]`)
			return
		}
		_, _ = io.WriteString(w, viaCEPSe)
	}))
	defer srv.Close()

	res, err := newTestGeocoder(srv.URL).Geocode(context.Background(), AddressInput{PostalCode: "01001-000"})
	require.NoError(t, err)
	assert.True(t, res.Matched)
	assert.Equal(t, "address", res.Quality)
	assert.InDelta(t, -23.5503, res.Coordinates.Lat, 1e-9)
	assert.InDelta(t, -46.6339, res.Coordinates.Lng, 1e-9)
	assert.Equal(t, "Praça da Sé, Sé, São Paulo, SP", query)
	assert.Equal(t, "1", limit)
	assert.Equal(t, "br", country)
	assert.Equal(t, DefaultUserAgent, userAgent)
}

func TestGeocode_PrefersCallerAddress(t *testing.T) {
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/search" {
			query = r.URL.Query().Get("q")
			_, _ = io.WriteString(w, `[{"lat":"-23.5","lon":"-46.6"}]`)
			return
		}
		_, _ = io.WriteString(w, viaCEPSe)
	}))
	defer srv.Close()

	_, err := newTestGeocoder(srv.URL).Geocode(context.Background(), AddressInput{
		PostalCode: "01001000",
		Address:    "Praça da Sé, 100, São Paulo - SP",
	})
	require.NoError(t, err)
	assert.Equal(t, "Praça da Sé, 100, São Paulo - SP", query)
}

func TestGeocode_CityFallback(t *testing.T) {
	var queries []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/search" {
			q := r.URL.Query().Get("q")
			queries = append(queries, q)
			if q == "São Paulo, SP" {
				_, _ = io.WriteString(w, `[{"lat":"-23.55","lon":"-46.63"}]`)
				return
			}
			_, _ = io.WriteString(w, `[]`)
			return
		}
		_, _ = io.WriteString(w, viaCEPSe)
	}))
	defer srv.Close()

	res, err := newTestGeocoder(srv.URL).Geocode(context.Background(), AddressInput{PostalCode: "01001000"})
	require.NoError(t, err)
	assert.True(t, res.Matched)
	assert.Equal(t, "city", res.Quality)
	assert.Equal(t, []string{"Praça da Sé, Sé, São Paulo, SP", "São Paulo, SP"}, queries)
}

func TestGeocode_UnresolvedIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/search" {
			_, _ = io.WriteString(w, `[]`)
			return
		}
		_, _ = io.WriteString(w, viaCEPSe)
	}))
	defer srv.Close()

	res, err := newTestGeocoder(srv.URL).Geocode(context.Background(), AddressInput{PostalCode: "01001000"})
	require.NoError(t, err)
	assert.False(t, res.Matched)
	require.NotNil(t, res.Postal)
	assert.Equal(t, "São Paulo", res.Postal.City)
}

func TestGeocode_InvalidPostalCode(t *testing.T) {
	g := NewClient()
	_, err := g.Geocode(context.Background(), AddressInput{PostalCode: "123"})
	assert.True(t, errors.Is(err, ErrInvalidPostalCode))
}

func TestGeocode_UsesCache(t *testing.T) {
	var searches atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/search" {
			searches.Add(1)
			_, _ = io.WriteString(w, `[]`)
			return
		}
		_, _ = io.WriteString(w, viaCEPSe)
	}))
	defer srv.Close()

	cache := newMemCache()
	g := newTestGeocoder(srv.URL)
	g.cache = cache

	for range 2 {
		res, err := g.Geocode(context.Background(), AddressInput{PostalCode: "01001000"})
		require.NoError(t, err)
		assert.False(t, res.Matched)
	}
	// address and city queries each hit the service once; misses are cached.
	assert.Equal(t, int32(2), searches.Load())
	assert.Equal(t, 2, cache.puts)
}

func TestGeocode_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/search" {
			_, _ = io.WriteString(w, `[]`)
			return
		}
		_, _ = io.WriteString(w, viaCEPSe)
	}))
	defer srv.Close()

	g := newTestGeocoder(srv.URL)
	g.limiter = rate.NewLimiter(rate.Every(50*time.Millisecond), 1)

	start := time.Now()
	_, err := g.Geocode(context.Background(), AddressInput{PostalCode: "01001000"})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 45*time.Millisecond, "second search must wait for the limiter")
}

func TestNewClient_Options(t *testing.T) {
	g := NewClient(
		WithRateLimit(2),
		WithUserAgent("acme/2"),
		WithViaCEPURL("http://cep.local/ws/"),
		WithNominatimURL("http://osm.local/search"),
		WithTimeout(time.Second),
	).(*geocoder)

	assert.Equal(t, rate.Limit(2), g.limiter.Limit())
	assert.Equal(t, 1, g.limiter.Burst())
	assert.Equal(t, "acme/2", g.userAgent)
	assert.Equal(t, "http://cep.local/ws", g.viaCEPURL)
	assert.Equal(t, "http://osm.local/search", g.nominatimURL)
	assert.Equal(t, time.Second, g.httpClient.Timeout)
}

func TestNewClient_Defaults(t *testing.T) {
	g := NewClient().(*geocoder)
	assert.Equal(t, rate.Limit(1), g.limiter.Limit())
	assert.Equal(t, DefaultViaCEPURL, g.viaCEPURL)
	assert.Equal(t, DefaultNominatimURL, g.nominatimURL)
	assert.Equal(t, DefaultUserAgent, g.userAgent)
}
