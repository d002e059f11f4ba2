package territory

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prospect-cli/internal/model"
	"github.com/sells-group/prospect-cli/pkg/geocode"
)

const defaultPageSize = 200

// LeadRepository is the slice of the store the assigner needs.
type LeadRepository interface {
	ListLeads(ctx context.Context, f model.LeadFilter) ([]model.Lead, error)
	SetLeadSeller(ctx context.Context, leadID, sellerID string) error
	SetLeadCoordinates(ctx context.Context, leadID string, c model.Coordinates) error
}

// Stats summarizes an assignment run.
type Stats struct {
	Scanned   int
	Assigned  int
	Unmatched int
	Geocoded  int
	Failed    int
}

// Assigner routes every unassigned lead through the matcher.
type Assigner struct {
	repo     LeadRepository
	matcher  *Matcher
	geocoder geocode.Client
	pageSize int
}

// AssignerOption configures an Assigner.
type AssignerOption func(*Assigner)

// WithGeocoder lets the assigner resolve coordinates for leads that lack
// them when radius sellers exist.
func WithGeocoder(g geocode.Client) AssignerOption {
	return func(a *Assigner) {
		a.geocoder = g
	}
}

// WithPageSize sets how many leads are read per query.
func WithPageSize(n int) AssignerOption {
	return func(a *Assigner) {
		if n > 0 {
			a.pageSize = n
		}
	}
}

// NewAssigner creates an Assigner.
func NewAssigner(repo LeadRepository, matcher *Matcher, opts ...AssignerOption) *Assigner {
	a := &Assigner{repo: repo, matcher: matcher, pageSize: defaultPageSize}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run assigns sellers to unassigned leads. Leads are processed one at a
// time so geocoder calls stay serialized; a failing lead is logged and
// counted without stopping the run.
func (a *Assigner) Run(ctx context.Context) (Stats, error) {
	var stats Stats
	if a.matcher.Len() == 0 {
		zap.L().Warn("territory: no active sellers, nothing to assign")
		return stats, nil
	}

	after := 0
	for {
		leads, err := a.repo.ListLeads(ctx, model.LeadFilter{Unassigned: true, AfterCode: after, Limit: a.pageSize})
		if err != nil {
			return stats, eris.Wrap(err, "territory: list unassigned leads")
		}
		if len(leads) == 0 {
			break
		}

		for i := range leads {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
			a.assignOne(ctx, &leads[i], &stats)
			after = leads[i].ClientCode
		}

		if len(leads) < a.pageSize {
			break
		}
	}

	zap.L().Info("territory: assignment complete",
		zap.Int("scanned", stats.Scanned),
		zap.Int("assigned", stats.Assigned),
		zap.Int("unmatched", stats.Unmatched),
		zap.Int("geocoded", stats.Geocoded),
		zap.Int("failed", stats.Failed),
	)
	return stats, nil
}

func (a *Assigner) assignOne(ctx context.Context, lead *model.Lead, stats *Stats) {
	stats.Scanned++
	log := zap.L().With(zap.String("lead_id", lead.ID), zap.Int("client_code", lead.ClientCode))

	if a.geocoder != nil && a.matcher.NeedsCoordinates() && lead.Coordinates == nil {
		ok, err := Locate(ctx, a.geocoder, lead)
		switch {
		case err != nil:
			log.Warn("territory: geocode failed", zap.Error(err))
		case ok:
			if err := a.repo.SetLeadCoordinates(ctx, lead.ID, *lead.Coordinates); err != nil {
				log.Warn("territory: save coordinates failed", zap.Error(err))
			} else {
				stats.Geocoded++
			}
		}
	}

	match, ok := a.matcher.Assign(lead)
	if !ok {
		stats.Unmatched++
		return
	}
	if err := a.repo.SetLeadSeller(ctx, lead.ID, match.SellerID); err != nil {
		log.Warn("territory: save assignment failed", zap.Error(err))
		lead.SellerID = nil
		stats.Failed++
		return
	}
	stats.Assigned++
	log.Debug("territory: assigned",
		zap.String("seller_id", match.SellerID),
		zap.String("kind", string(match.Kind)),
	)
}

// Locate fills in the coordinates of a lead from its postal code and street
// address. It reports false when the lead has no postal code or no search
// could place it.
func Locate(ctx context.Context, g geocode.Client, lead *model.Lead) (bool, error) {
	if lead.Coordinates != nil {
		return true, nil
	}
	if lead.Address.PostalCode == "" {
		return false, nil
	}

	in := geocode.AddressInput{PostalCode: lead.Address.PostalCode}
	if strings.TrimSpace(lead.Address.Street) != "" {
		in.Address = FullAddress(lead.Address)
	}

	res, err := g.Geocode(ctx, in)
	if err != nil {
		return false, err
	}
	if !res.Matched {
		return false, nil
	}
	c := res.Coordinates
	lead.Coordinates = &c
	return true, nil
}

// FullAddress renders an address as one search line.
func FullAddress(a model.Address) string {
	parts := make([]string, 0, 4)
	for _, p := range []string{a.Street, a.Neighborhood, a.City, a.State} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}
