package scorer

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prospect-cli/internal/model"
)

const rescorePageSize = 500

// LeadRepository is the slice of the store the rescorer needs.
type LeadRepository interface {
	ListLeads(ctx context.Context, f model.LeadFilter) ([]model.Lead, error)
	ListComments(ctx context.Context, leadID string) ([]model.Comment, error)
	SetLeadPriority(ctx context.Context, leadID string, p model.Priority) error
}

// Stats summarizes a rescoring run.
type Stats struct {
	Scanned int
	Changed int
	Failed  int
}

// Rescorer reapplies the scorer to every stored lead. Because scoring only
// promotes, a second run over unchanged comments changes nothing.
type Rescorer struct {
	repo   LeadRepository
	scorer *Scorer
}

// NewRescorer creates a Rescorer.
func NewRescorer(repo LeadRepository, s *Scorer) *Rescorer {
	return &Rescorer{repo: repo, scorer: s}
}

// Run scans all leads. Per-lead failures are logged and counted.
func (r *Rescorer) Run(ctx context.Context) (Stats, error) {
	var stats Stats
	after := 0
	for {
		leads, err := r.repo.ListLeads(ctx, model.LeadFilter{AfterCode: after, Limit: rescorePageSize})
		if err != nil {
			return stats, eris.Wrap(err, "scorer: list leads")
		}

		for i := range leads {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
			r.rescoreOne(ctx, &leads[i], &stats)
			after = leads[i].ClientCode
		}

		if len(leads) < rescorePageSize {
			break
		}
	}

	zap.L().Info("scorer: rescoring complete",
		zap.Int("scanned", stats.Scanned),
		zap.Int("changed", stats.Changed),
		zap.Int("failed", stats.Failed),
	)
	return stats, nil
}

func (r *Rescorer) rescoreOne(ctx context.Context, lead *model.Lead, stats *Stats) {
	stats.Scanned++
	log := zap.L().With(zap.String("lead_id", lead.ID), zap.Int("client_code", lead.ClientCode))

	comments, err := r.repo.ListComments(ctx, lead.ID)
	if err != nil {
		log.Warn("scorer: list comments failed", zap.Error(err))
		stats.Failed++
		return
	}
	lead.Comments = comments

	before := lead.Priority
	if !r.scorer.Prioritize(lead) {
		return
	}
	if err := r.repo.SetLeadPriority(ctx, lead.ID, lead.Priority); err != nil {
		log.Warn("scorer: save priority failed", zap.Error(err))
		stats.Failed++
		return
	}
	stats.Changed++
	log.Debug("scorer: priority raised",
		zap.String("from", string(before)),
		zap.String("to", string(lead.Priority)),
	)
}
