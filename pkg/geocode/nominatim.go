package geocode

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prospect-cli/internal/model"
	"github.com/sells-group/prospect-cli/internal/resilience"
)

type nominatimResult struct {
	DisplayName string `json:"display_name"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
}

// searchNominatim returns the best match for query, or nil when Nominatim
// has none. Every attempt, retries included, waits on the shared limiter.
func (g *geocoder) searchNominatim(ctx context.Context, query string) (*model.Coordinates, error) {
	results, err := resilience.DoVal(ctx, g.retryConfig("nominatim"), func(ctx context.Context) ([]nominatimResult, error) {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "geocode: nominatim rate limit")
		}
		return g.fetchNominatim(ctx, query)
	})
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return nil, eris.Wrapf(err, "geocode: nominatim parse lat %q", results[0].Lat)
	}
	lng, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return nil, eris.Wrapf(err, "geocode: nominatim parse lon %q", results[0].Lon)
	}

	coords := model.Coordinates{Lat: lat, Lng: lng}
	if !coords.Valid() {
		return nil, eris.Errorf("geocode: nominatim returned out-of-range coordinates %v", coords)
	}

	zap.L().Debug("geocode: nominatim hit",
		zap.String("query", query),
		zap.String("display_name", results[0].DisplayName),
	)
	return &coords, nil
}

func (g *geocoder) fetchNominatim(ctx context.Context, query string) ([]nominatimResult, error) {
	params := url.Values{
		"q":            {query},
		"format":       {"json"},
		"limit":        {"1"},
		"countrycodes": {"br"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.nominatimURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim build request")
	}
	req.Header.Set("User-Agent", g.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, resilience.StatusError("geocode: nominatim", resp.StatusCode)
	}

	var out []nominatimResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim parse response")
	}
	return out, nil
}
