package territory

import (
	"io"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/prospect-cli/internal/model"
)

// sellerNamespace seeds IDs for sellers declared without one, so reloading
// the same file upserts instead of duplicating.
var sellerNamespace = uuid.MustParse("5f0c4b8e-52a1-4f3e-9d2c-6a7e1b0d9c41")

type sellersFile struct {
	Sellers []sellerEntry `yaml:"sellers" validate:"dive"`
}

type sellerEntry struct {
	ID        string          `yaml:"id"`
	Name      string          `yaml:"name" validate:"required"`
	Email     string          `yaml:"email" validate:"omitempty,email"`
	Active    *bool           `yaml:"active"`
	Territory model.Territory `yaml:"territory"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("cep", func(fl validator.FieldLevel) bool {
		_, err := model.PostalCodeValue(fl.Field().String())
		return err == nil
	})
	return v
}

// LoadSellers parses a YAML seller file:
//
//	sellers:
//	  - name: Ana
//	    territory:
//	      kind: range
//	      ranges:
//	        - {name: Guarulhos, start: "07000000", end: "07499999"}
//	  - name: Bruno
//	    active: false
//	    territory:
//	      kind: radius
//	      default: true
//	      radius: {center: {lat: -23.55, lng: -46.63}, km: 12}
//
// Sellers are active unless marked otherwise. At most one active seller may
// carry a default territory.
func LoadSellers(r io.Reader) ([]model.Seller, error) {
	var f sellersFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, eris.Wrap(err, "territory: parse sellers")
	}

	if err := newValidator().Struct(f); err != nil {
		return nil, model.NewValidation("territory: load sellers", err)
	}

	seen := make(map[string]string, len(f.Sellers))
	defaultSeller := ""
	out := make([]model.Seller, 0, len(f.Sellers))
	for _, e := range f.Sellers {
		name := strings.TrimSpace(e.Name)
		if err := e.Territory.Validate(); err != nil {
			return nil, model.NewValidation("territory: load sellers", eris.Wrapf(err, "seller %q", name))
		}

		id := strings.TrimSpace(e.ID)
		if id == "" {
			id = uuid.NewSHA1(sellerNamespace, []byte(strings.ToLower(name))).String()
		}
		if other, dup := seen[id]; dup {
			return nil, model.NewValidation("territory: load sellers", eris.Errorf("sellers %q and %q share id %s", other, name, id))
		}
		seen[id] = name

		active := true
		if e.Active != nil {
			active = *e.Active
		}
		if active && e.Territory.Default {
			if defaultSeller != "" {
				return nil, model.NewValidation("territory: load sellers", eris.Errorf("sellers %q and %q are both default", defaultSeller, name))
			}
			defaultSeller = name
		}
		out = append(out, model.Seller{
			ID:        id,
			Name:      name,
			Email:     strings.TrimSpace(e.Email),
			Active:    active,
			Territory: e.Territory,
		})
	}
	return out, nil
}

// LoadSellersFile reads sellers from path.
func LoadSellersFile(path string) ([]model.Seller, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "territory: open %s", path)
	}
	defer f.Close() //nolint:errcheck
	return LoadSellers(f)
}
