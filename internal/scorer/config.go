// Package scorer prioritizes leads from the complaints in their comments.
package scorer

import (
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/prospect-cli/internal/config"
)

// DefaultScorerConfig returns the built-in Portuguese keyword tiers.
func DefaultScorerConfig() config.ScorerConfig {
	return config.ScorerConfig{
		// Leaks and spills: the package failed outright.
		CriticalKeywords: []string{
			"vazando", "vazou", "vazaram", "vazar", "vazava", "vazamento", "vazado", "vazada",
			"derramou", "derramaram", "derramado", "derramada", "derramando",
			"encharcado", "encharcada", "escorrendo", "escorreu",
			"molhado", "molhada",
		},
		TemperatureKeywords: []string{
			"frio", "fria", "gelado", "gelada", "congelado", "congelada",
			"morno", "morna", "esfriou", "chegou frio", "chegou fria",
		},
		CosmeticKeywords: []string{
			"amassado", "amassada", "revirado", "revirada",
			"bagunçado", "bagunçada", "desmontado", "desmontada",
			"tombado", "tombada", "mal embalado", "mal embalada",
			"embalagem fraca", "embalagem rasgada",
		},
	}
}

// WithDefaults fills empty tiers of c from DefaultScorerConfig.
func WithDefaults(c config.ScorerConfig) config.ScorerConfig {
	def := DefaultScorerConfig()
	if len(c.CriticalKeywords) == 0 {
		c.CriticalKeywords = def.CriticalKeywords
	}
	if len(c.TemperatureKeywords) == 0 {
		c.TemperatureKeywords = def.TemperatureKeywords
	}
	if len(c.CosmeticKeywords) == 0 {
		c.CosmeticKeywords = def.CosmeticKeywords
	}
	return c
}

// ValidateConfig checks that every tier has at least one usable keyword.
func ValidateConfig(c config.ScorerConfig) error {
	var errs []string

	tiers := []struct {
		name     string
		keywords []string
	}{
		{"critical_keywords", c.CriticalKeywords},
		{"temperature_keywords", c.TemperatureKeywords},
		{"cosmetic_keywords", c.CosmeticKeywords},
	}
	for _, tier := range tiers {
		if len(tier.keywords) == 0 {
			errs = append(errs, tier.name+" must not be empty")
			continue
		}
		for _, kw := range tier.keywords {
			if strings.TrimSpace(kw) == "" {
				errs = append(errs, tier.name+" contains a blank keyword")
				break
			}
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("scorer: config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
