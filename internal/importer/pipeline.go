// Package importer loads prospect spreadsheets into the lead store: rows are
// normalized, deduplicated, located, routed to a seller, scored, and saved
// under a fresh client code.
package importer

import (
	"context"
	"errors"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prospect-cli/internal/address"
	"github.com/sells-group/prospect-cli/internal/fetcher"
	"github.com/sells-group/prospect-cli/internal/model"
	"github.com/sells-group/prospect-cli/internal/scorer"
	"github.com/sells-group/prospect-cli/internal/store"
	"github.com/sells-group/prospect-cli/internal/territory"
	"github.com/sells-group/prospect-cli/pkg/geocode"
)

// maxCodeAttempts bounds the retries after a client code conflict.
const maxCodeAttempts = 20

// Store is the persistence the pipeline needs.
type Store interface {
	CodeSource
	FindLead(ctx context.Context, dedupKey string) (*model.Lead, error)
	CreateLead(ctx context.Context, lead *model.Lead) error
}

// Stats summarizes an import run.
type Stats struct {
	Files      int `json:"files"`
	Rows       int `json:"rows"`
	Created    int `json:"created"`
	Duplicates int `json:"duplicates"`
	Invalid    int `json:"invalid"`
	Failed     int `json:"failed"`
	Unresolved int `json:"unresolved"`
	Assigned   int `json:"assigned"`
	Skipped    int `json:"skipped"`
}

// Outcome describes what happened to one imported record.
type Outcome struct {
	Lead       *model.Lead      `json:"lead"`
	Match      *territory.Match `json:"match,omitempty"`
	Geocoded   bool             `json:"geocoded"`
	Unresolved bool             `json:"unresolved"`
}

// Pipeline imports spreadsheet rows one at a time.
type Pipeline struct {
	store       Store
	normalizer  *address.Normalizer
	matcher     *territory.Matcher
	scorer      *scorer.Scorer
	geocoder    geocode.Client
	codes       *CodeAllocator
	codeStart   int
	maxComments int
	dryRun      bool

	mu   sync.Mutex
	seen map[string]bool
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithMatcher routes imported leads to the matcher's sellers.
func WithMatcher(m *territory.Matcher) Option {
	return func(p *Pipeline) { p.matcher = m }
}

// WithScorer replaces the default keyword scorer.
func WithScorer(s *scorer.Scorer) Option {
	return func(p *Pipeline) { p.scorer = s }
}

// WithGeocoder enables coordinate lookup for radius territories.
func WithGeocoder(g geocode.Client) Option {
	return func(p *Pipeline) { p.geocoder = g }
}

// WithNormalizer replaces the default header table.
func WithNormalizer(n *address.Normalizer) Option {
	return func(p *Pipeline) { p.normalizer = n }
}

// WithClientCodeStart sets the first client code tried.
func WithClientCodeStart(start int) Option {
	return func(p *Pipeline) { p.codeStart = start }
}

// WithMaxCommentColumns bounds the numbered comment columns read per row.
func WithMaxCommentColumns(n int) Option {
	return func(p *Pipeline) { p.maxComments = n }
}

// WithDryRun normalizes, routes, and scores rows without writing them.
func WithDryRun(dry bool) Option {
	return func(p *Pipeline) { p.dryRun = dry }
}

// New creates a Pipeline over st.
func New(st Store, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:       st,
		codeStart:   DefaultClientCodeStart,
		maxComments: DefaultMaxCommentColumns,
		seen:        make(map[string]bool),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.normalizer == nil {
		p.normalizer = address.NewNormalizer()
	}
	if p.matcher == nil {
		p.matcher = territory.NewMatcher(nil)
	}
	if p.scorer == nil {
		p.scorer = scorer.New(scorer.DefaultScorerConfig())
	}
	p.codes = NewCodeAllocator(st, p.codeStart)
	return p
}

// Run imports every spreadsheet in dir, in name order. Only a failure to
// list the directory or a cancelled context ends the run early.
func (p *Pipeline) Run(ctx context.Context, dir string) (Stats, error) {
	var stats Stats

	files, skipped, err := fetcher.ListSpreadsheets(dir)
	if err != nil {
		return stats, err
	}
	for _, name := range skipped {
		zap.L().Info("importer: skipping unsupported file", zap.String("file", name))
	}
	stats.Skipped = len(skipped)

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if err := p.ImportFile(ctx, path, &stats); err != nil {
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			zap.L().Warn("importer: file failed", zap.String("file", path), zap.Error(err))
			stats.Skipped++
			continue
		}
		stats.Files++
	}

	zap.L().Info("importer: import complete",
		zap.String("dir", dir),
		zap.Bool("dry_run", p.dryRun),
		zap.Int("files", stats.Files),
		zap.Int("rows", stats.Rows),
		zap.Int("created", stats.Created),
		zap.Int("duplicates", stats.Duplicates),
		zap.Int("invalid", stats.Invalid),
		zap.Int("failed", stats.Failed),
		zap.Int("unresolved", stats.Unresolved),
		zap.Int("assigned", stats.Assigned),
		zap.Int("skipped", stats.Skipped),
	)
	return stats, nil
}

// ImportFile imports the rows of one spreadsheet into stats. A row that
// fails is logged and counted; it never stops the file.
func (p *Pipeline) ImportFile(ctx context.Context, path string, stats *Stats) error {
	sheet, err := fetcher.ReadSheet(ctx, path)
	if err != nil {
		return err
	}
	log := zap.L().With(zap.String("file", sheet.Source))
	if len(sheet.Headers) == 0 {
		log.Warn("importer: file has no header row")
		return nil
	}

	for i, cells := range sheet.Rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Rows++
		// Spreadsheet line numbers: 1-based, after the header.
		p.importRow(ctx, address.NewRow(sheet.Headers, cells), sheet.Source, i+2, stats, log)
	}
	return nil
}

func (p *Pipeline) importRow(ctx context.Context, row address.Row, source string, line int, stats *Stats, log *zap.Logger) {
	log = log.With(zap.Int("line", line))

	rec, err := p.normalizer.Normalize(row)
	if err != nil {
		stats.Invalid++
		log.Warn("importer: invalid row", zap.Error(err))
		return
	}

	out, err := p.ImportRecord(ctx, rec, CollectComments(row, p.maxComments), source)
	if out.Unresolved {
		stats.Unresolved++
	}
	switch {
	case err == nil:
	case model.IsDuplicate(err):
		stats.Duplicates++
		log.Debug("importer: duplicate lead", zap.String("name", rec.Name), zap.String("city", rec.Address.City))
		return
	case model.IsValidation(err):
		stats.Invalid++
		log.Warn("importer: invalid row", zap.Error(err))
		return
	default:
		stats.Failed++
		log.Warn("importer: row failed", zap.String("name", rec.Name), zap.Error(err))
		return
	}

	stats.Created++
	if out.Match != nil {
		stats.Assigned++
	}
	log.Debug("importer: lead created",
		zap.Int("client_code", out.Lead.ClientCode),
		zap.String("priority", string(out.Lead.Priority)),
	)
}

// ImportRecord deduplicates, locates, routes, scores, and persists one
// normalized record. A duplicate is reported as a model duplicate error.
// Geocoding problems never fail the record; the lead is saved without
// coordinates and Outcome.Unresolved is set.
func (p *Pipeline) ImportRecord(ctx context.Context, rec address.Record, comments []string, source string) (Outcome, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	lead := rec.Lead()
	lead.Source = source
	for _, c := range comments {
		lead.Comments = append(lead.Comments, model.Comment{Text: c})
	}
	out := Outcome{Lead: lead}

	key := lead.DedupKey()
	if p.seen[key] {
		return out, model.NewDuplicate("importer: import record", eris.Errorf("lead %q in %q seen earlier in this run", lead.Name, lead.Address.City))
	}
	existing, err := p.store.FindLead(ctx, key)
	if err != nil {
		return out, model.NewPersistence("importer: import record", err)
	}
	if existing != nil {
		return out, model.NewDuplicate("importer: import record", eris.Errorf("lead %q in %q exists as client %d", lead.Name, lead.Address.City, existing.ClientCode))
	}

	p.locate(ctx, lead, &out)

	if match, ok := p.matcher.Assign(lead); ok {
		out.Match = &match
	}
	p.scorer.Prioritize(lead)

	if p.dryRun {
		p.seen[key] = true
		return out, nil
	}

	if err := p.create(ctx, lead); err != nil {
		return out, err
	}
	return out, nil
}

// locate geocodes a lead when some seller territory needs coordinates.
func (p *Pipeline) locate(ctx context.Context, lead *model.Lead, out *Outcome) {
	if p.geocoder == nil || !p.matcher.NeedsCoordinates() || lead.Coordinates != nil {
		return
	}
	if lead.Address.PostalCode == "" {
		out.Unresolved = true
		return
	}
	ok, err := territory.Locate(ctx, p.geocoder, lead)
	if err != nil {
		zap.L().Warn("importer: geocode failed",
			zap.String("postal_code", lead.Address.PostalCode),
			zap.Error(err),
		)
	}
	out.Geocoded = ok
	out.Unresolved = !ok
}

// create persists lead under a fresh client code, moving past codes that
// another writer claimed in the meantime.
func (p *Pipeline) create(ctx context.Context, lead *model.Lead) error {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := p.codes.Next(ctx)
		if err != nil {
			return model.NewPersistence("importer: allocate client code", err)
		}
		lead.ClientCode = code

		err = p.store.CreateLead(ctx, lead)
		if err == nil {
			return nil
		}
		if !errors.Is(err, store.ErrClientCodeTaken) {
			lead.ClientCode = 0
			return err
		}
		zap.L().Debug("importer: client code taken, probing", zap.Int("client_code", code))
	}
	lead.ClientCode = 0
	return model.NewPersistence("importer: allocate client code",
		eris.Errorf("no free client code after %d attempts", maxCodeAttempts))
}
