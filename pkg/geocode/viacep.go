package geocode

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rotisserie/eris"

	"github.com/sells-group/prospect-cli/internal/model"
	"github.com/sells-group/prospect-cli/internal/resilience"
)

// viaCEPResponse is the ViaCEP JSON record. A miss comes back as
// {"erro": true}, or {"erro": "true"} on older deployments.
type viaCEPResponse struct {
	CEP        string `json:"cep"`
	Logradouro string `json:"logradouro"`
	Bairro     string `json:"bairro"`
	Localidade string `json:"localidade"`
	UF         string `json:"uf"`
	Erro       any    `json:"erro"`
}

func (r viaCEPResponse) notFound() bool {
	switch v := r.Erro.(type) {
	case bool:
		return v
	case string:
		return v == "true"
	default:
		return false
	}
}

// LookupPostalCode validates and looks up a CEP on ViaCEP.
func (g *geocoder) LookupPostalCode(ctx context.Context, raw string) (*PostalAddress, error) {
	cep, err := model.NormalizePostalCode(raw)
	if err != nil {
		return nil, model.NewValidation("geocode: lookup postal code", eris.Wrapf(ErrInvalidPostalCode, "%q", raw))
	}

	resp, err := resilience.DoVal(ctx, g.retryConfig("viacep"), func(ctx context.Context) (*viaCEPResponse, error) {
		return g.fetchViaCEP(ctx, cep)
	})
	if err != nil {
		return nil, err
	}
	if resp == nil || resp.notFound() {
		return nil, model.NewNotFound("geocode: lookup postal code", eris.Wrapf(ErrPostalCodeNotFound, "%s", cep))
	}

	return &PostalAddress{
		PostalCode:   cep,
		Street:       resp.Logradouro,
		Neighborhood: resp.Bairro,
		City:         resp.Localidade,
		State:        resp.UF,
	}, nil
}

// fetchViaCEP returns a nil response for a CEP ViaCEP rejects outright.
func (g *geocoder) fetchViaCEP(ctx context.Context, cep string) (*viaCEPResponse, error) {
	reqURL := g.viaCEPURL + "/" + cep + "/json/"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: viacep build request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: viacep request")
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusNotFound:
		return nil, nil
	case resp.StatusCode != http.StatusOK:
		return nil, resilience.StatusError("geocode: viacep", resp.StatusCode)
	}

	var out viaCEPResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, eris.Wrap(err, "geocode: viacep parse response")
	}
	return &out, nil
}

func (g *geocoder) retryConfig(service string) resilience.RetryConfig {
	cfg := g.retry
	if cfg.OnRetry == nil {
		cfg.OnRetry = resilience.LogRetry(service, "lookup")
	}
	return cfg
}
