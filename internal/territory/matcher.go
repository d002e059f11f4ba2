// Package territory routes leads to the seller whose territory covers them.
package territory

import (
	"sort"

	"github.com/sells-group/prospect-cli/internal/model"
)

// Location is what is known about where a lead is.
type Location struct {
	PostalCode  string
	Coordinates *model.Coordinates
}

// LocationOf returns the location signals of a lead.
func LocationOf(l *model.Lead) Location {
	return Location{PostalCode: l.Address.PostalCode, Coordinates: l.Coordinates}
}

// MatchDefault is the Match kind of a lead routed to the default seller
// because no territory covers it.
const MatchDefault model.TerritoryKind = "default"

// Match describes why a seller covers a location.
type Match struct {
	SellerID   string
	SellerName string
	Kind       model.TerritoryKind
	// Zone is the name of the matching postal range.
	Zone string
	// Width is the number of postal codes in the matching range.
	Width int
	// DistanceKM is the distance to the seller's base for radius matches.
	DistanceKM float64
}

// Matcher picks at most one seller per location.
//
// When several sellers cover a location, a postal range beats a radius, the
// narrowest range wins among ranges, and the nearest base wins among radii.
// Remaining ties go to the seller name, then the ID. A location nothing
// covers goes to the default seller, if one exists.
type Matcher struct {
	sellers   []model.Seller
	fallback  *model.Seller
	hasRadius bool
}

// NewMatcher builds a matcher over the active sellers.
func NewMatcher(sellers []model.Seller) *Matcher {
	m := &Matcher{}
	for _, s := range sellers {
		if !s.Active {
			continue
		}
		m.sellers = append(m.sellers, s)
		if s.Territory.Kind == model.TerritoryRadius {
			m.hasRadius = true
		}
	}
	sort.SliceStable(m.sellers, func(i, j int) bool {
		if m.sellers[i].Name != m.sellers[j].Name {
			return m.sellers[i].Name < m.sellers[j].Name
		}
		return m.sellers[i].ID < m.sellers[j].ID
	})
	for i := range m.sellers {
		if m.sellers[i].Territory.Default {
			m.fallback = &m.sellers[i]
			break
		}
	}
	return m
}

// Default returns the seller that receives uncovered leads, or nil.
func (m *Matcher) Default() *model.Seller {
	return m.fallback
}

// Len returns the number of active sellers.
func (m *Matcher) Len() int {
	return len(m.sellers)
}

// NeedsCoordinates reports whether any active seller uses a radius, in which
// case leads without coordinates are worth geocoding.
func (m *Matcher) NeedsCoordinates() bool {
	return m.hasRadius
}

// Match returns the seller covering loc, falling back to the default seller.
// It reports false only when nothing covers loc and there is no default.
func (m *Matcher) Match(loc Location) (Match, bool) {
	var best Match
	found := false
	for i := range m.sellers {
		s := &m.sellers[i]
		c, ok := covers(s.Territory, loc)
		if !ok {
			continue
		}
		c.SellerID = s.ID
		c.SellerName = s.Name
		if !found || better(c, best) {
			best = c
			found = true
		}
	}
	if !found && m.fallback != nil {
		return Match{SellerID: m.fallback.ID, SellerName: m.fallback.Name, Kind: MatchDefault}, true
	}
	return best, found
}

// Assign sets the seller of an unassigned lead. Leads that already have a
// seller are left alone, as are leads no seller covers when there is no
// default seller.
func (m *Matcher) Assign(lead *model.Lead) (Match, bool) {
	if lead.Assigned() {
		return Match{}, false
	}
	match, ok := m.Match(LocationOf(lead))
	if !ok {
		return Match{}, false
	}
	id := match.SellerID
	lead.SellerID = &id
	return match, true
}

func covers(t model.Territory, loc Location) (Match, bool) {
	switch t.Kind {
	case model.TerritoryRange:
		return coversRange(t.Ranges, loc.PostalCode)
	case model.TerritoryRadius:
		if t.Radius == nil || loc.Coordinates == nil {
			return Match{}, false
		}
		d := DistanceKM(*loc.Coordinates, t.Radius.Center)
		if d > t.Radius.KM {
			return Match{}, false
		}
		return Match{Kind: model.TerritoryRadius, DistanceKM: d}, true
	default:
		return Match{}, false
	}
}

func coversRange(ranges []model.PostalRange, postalCode string) (Match, bool) {
	if postalCode == "" {
		return Match{}, false
	}
	v, err := model.PostalCodeValue(postalCode)
	if err != nil {
		return Match{}, false
	}

	var best Match
	found := false
	for _, r := range ranges {
		lo, hi, err := r.Bounds()
		if err != nil || v < lo || v > hi {
			continue
		}
		width := hi - lo + 1
		if !found || width < best.Width {
			best = Match{Kind: model.TerritoryRange, Zone: r.Name, Width: width}
			found = true
		}
	}
	return best, found
}

func better(a, b Match) bool {
	if a.Kind != b.Kind {
		return a.Kind == model.TerritoryRange
	}
	switch a.Kind {
	case model.TerritoryRange:
		if a.Width != b.Width {
			return a.Width < b.Width
		}
	case model.TerritoryRadius:
		if a.DistanceKM != b.DistanceKM {
			return a.DistanceKM < b.DistanceKM
		}
	}
	if a.SellerName != b.SellerName {
		return a.SellerName < b.SellerName
	}
	return a.SellerID < b.SellerID
}
