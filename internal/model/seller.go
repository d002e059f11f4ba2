package model

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// Coordinates is a WGS84 latitude/longitude pair.
type Coordinates struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

// Valid reports whether the pair lies within WGS84 bounds.
func (c Coordinates) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// TerritoryKind discriminates the active territory representation of a seller.
type TerritoryKind string

const (
	TerritoryRange  TerritoryKind = "range"
	TerritoryRadius TerritoryKind = "radius"
)

// PostalRange is a named inclusive CEP interval.
type PostalRange struct {
	Name  string `json:"name" yaml:"name"`
	Start string `json:"start" yaml:"start" validate:"required,cep"`
	End   string `json:"end" yaml:"end" validate:"required,cep"`
}

// Bounds returns the numeric bounds of the range.
func (r PostalRange) Bounds() (lo, hi int, err error) {
	lo, err = PostalCodeValue(r.Start)
	if err != nil {
		return 0, 0, eris.Wrapf(err, "range %q start", r.Name)
	}
	hi, err = PostalCodeValue(r.End)
	if err != nil {
		return 0, 0, eris.Wrapf(err, "range %q end", r.Name)
	}
	return lo, hi, nil
}

// RadiusArea is a circle around a base coordinate.
type RadiusArea struct {
	Center Coordinates `json:"center" yaml:"center"`
	KM     float64     `json:"km" yaml:"km" validate:"gt=0"`
}

// Territory is the geographic area of responsibility of a seller. Exactly one
// of Ranges or Radius is populated, selected by Kind. A Default territory
// also receives the leads no other territory covers.
type Territory struct {
	Kind    TerritoryKind `json:"kind" yaml:"kind" validate:"oneof=range radius"`
	Ranges  []PostalRange `json:"ranges,omitempty" yaml:"ranges,omitempty" validate:"dive"`
	Radius  *RadiusArea   `json:"radius,omitempty" yaml:"radius,omitempty"`
	Default bool          `json:"default,omitempty" yaml:"default,omitempty"`
}

// RangeTerritory builds a postal-code range territory.
func RangeTerritory(ranges ...PostalRange) Territory {
	return Territory{Kind: TerritoryRange, Ranges: ranges}
}

// RadiusTerritory builds a center+radius territory.
func RadiusTerritory(center Coordinates, km float64) Territory {
	return Territory{Kind: TerritoryRadius, Radius: &RadiusArea{Center: center, KM: km}}
}

// Validate enforces the one-active-representation invariant.
func (t Territory) Validate() error {
	switch t.Kind {
	case TerritoryRange:
		if t.Radius != nil {
			return eris.New("territory: range territory must not carry a radius")
		}
		if len(t.Ranges) == 0 {
			return eris.New("territory: range territory needs at least one range")
		}
		for _, r := range t.Ranges {
			lo, hi, err := r.Bounds()
			if err != nil {
				return eris.Wrap(err, "territory")
			}
			if lo > hi {
				return eris.Errorf("territory: range %q start %s is after end %s", r.Name, r.Start, r.End)
			}
		}
		return nil
	case TerritoryRadius:
		if len(t.Ranges) > 0 {
			return eris.New("territory: radius territory must not carry ranges")
		}
		if t.Radius == nil {
			return eris.New("territory: radius territory needs a center and radius")
		}
		if t.Radius.KM <= 0 {
			return eris.Errorf("territory: radius must be positive, got %g", t.Radius.KM)
		}
		if !t.Radius.Center.Valid() {
			return eris.Errorf("territory: invalid center %v", t.Radius.Center)
		}
		return nil
	default:
		return eris.Errorf("territory: unknown kind %q", t.Kind)
	}
}

// Seller owns a sales territory.
type Seller struct {
	ID        string    `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name" validate:"required"`
	Email     string    `json:"email,omitempty" yaml:"email,omitempty" validate:"omitempty,email"`
	Active    bool      `json:"active" yaml:"active"`
	Territory Territory `json:"territory" yaml:"territory"`
}

func digitsOnly(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizePostalCode strips non-digits and returns the 8-digit CEP, or an
// error of KindValidation when the result is not exactly 8 digits.
func NormalizePostalCode(raw string) (string, error) {
	digits := digitsOnly(raw)
	if len(digits) != 8 {
		return "", NewValidation("normalize postal code", eris.Errorf("postal code %q must have 8 digits", raw))
	}
	return digits, nil
}

// PostalCodeValue returns the numeric value of a CEP. Shorter inputs are
// zero-padded on the left (spreadsheets drop the leading zero of 0xxxxxxx).
func PostalCodeValue(raw string) (int, error) {
	digits := digitsOnly(raw)
	if digits == "" || len(digits) > 8 {
		return 0, NewValidation("parse postal code", eris.Errorf("postal code %q must have up to 8 digits", raw))
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, NewValidation("parse postal code", err)
	}
	return n, nil
}

// PadPostalCode left-pads a 7-digit CEP that lost its leading zero and
// returns the 8-digit form. Other lengths are rejected.
func PadPostalCode(raw string) (string, error) {
	digits := digitsOnly(raw)
	if len(digits) == 7 {
		digits = "0" + digits
	}
	return NormalizePostalCode(digits)
}
