package scorer

import (
	"strings"
	"unicode"

	"github.com/sells-group/prospect-cli/internal/config"
	"github.com/sells-group/prospect-cli/internal/model"
	"github.com/sells-group/prospect-cli/internal/textnorm"
)

// Result is the outcome of scanning a lead's comments.
type Result struct {
	// Tier is the priority the comments justify; standard when nothing matched.
	Tier model.Priority
	// Matched lists the keywords found, critical tier first.
	Matched []string
}

// Apply returns the priority a lead at current should have. Priorities are
// only ever raised.
func (r Result) Apply(current model.Priority) model.Priority {
	return current.Max(r.Tier)
}

// Scorer matches comments against keyword tiers. Matching ignores case and
// accents and anchors each keyword at the start of a word, so "FRIAS"
// matches "fria" and "gelados" matches "gelado" but "geladeira" does not.
type Scorer struct {
	critical    []string
	temperature []string
	cosmetic    []string
}

// New builds a Scorer from cfg; empty tiers use the defaults.
func New(cfg config.ScorerConfig) *Scorer {
	cfg = WithDefaults(cfg)
	return &Scorer{
		critical:    foldAll(cfg.CriticalKeywords),
		temperature: foldAll(cfg.TemperatureKeywords),
		cosmetic:    foldAll(cfg.CosmeticKeywords),
	}
}

// Score scans comments. A critical keyword yields diamond; any other tier
// yields gold.
func (s *Scorer) Score(comments []string) Result {
	text := wordText(comments)
	if text == "" {
		return Result{Tier: model.PriorityStandard}
	}

	critical := matchKeywords(s.critical, text)
	matched := append(critical, matchKeywords(s.temperature, text)...)
	matched = append(matched, matchKeywords(s.cosmetic, text)...)

	switch {
	case len(critical) > 0:
		return Result{Tier: model.PriorityDiamond, Matched: matched}
	case len(matched) > 0:
		return Result{Tier: model.PriorityGold, Matched: matched}
	default:
		return Result{Tier: model.PriorityStandard}
	}
}

// Prioritize rescans the lead's comments and raises its priority when
// warranted. It reports whether the priority changed.
func (s *Scorer) Prioritize(lead *model.Lead) bool {
	next := s.Score(lead.CommentTexts()).Apply(lead.Priority)
	if next == lead.Priority {
		return false
	}
	lead.Priority = next
	return true
}

func foldAll(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if w := words(kw); w != "" {
			out = append(out, " "+w)
		}
	}
	return out
}

// wordText folds each comment to its words, space-padded and separated by
// "|" so a phrase never spans two comments.
func wordText(comments []string) string {
	var b strings.Builder
	for _, c := range comments {
		if w := words(c); w != "" {
			b.WriteString(" " + w + " |")
		}
	}
	return b.String()
}

func words(s string) string {
	folded := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, textnorm.FoldKey(s))
	return strings.Join(strings.Fields(folded), " ")
}

func matchKeywords(keywords []string, text string) []string {
	var matched []string
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			matched = append(matched, strings.TrimSpace(kw))
		}
	}
	return matched
}
