package candidate

import (
	"fmt"

	"github.com/google/uuid"

	"audiolevel/internal/models"
)

// Generate produces 3-4 distinct processing candidates from the analysis
// and detected problems, per the content-type rule table and the
// always-Conservative/always-Balanced/conditional-Aggressive/always-
// Content-Optimized generation rule.
func Generate(metrics *models.AnalysisMetrics, classification *models.ContentClassification, problems *models.AudioProblems) []models.ProcessingCandidate {
	content := classification.Type

	base := baseConfigFor(content, metrics, problems)

	candidates := []models.ProcessingCandidate{
		build("Conservative", "Minimal correction, safest result", models.Conservative, conservativeConfig(base)),
		build("Balanced", "Recommended correction for most material", models.Balanced, base),
	}

	if problems.MaxSeverity() == models.SeverityModerate || problems.MaxSeverity() == models.SeveritySevere {
		candidates = append(candidates, build("Aggressive", "Stronger correction for problem material", models.Aggressive, aggressiveConfig(base)))
	}

	candidates = append(candidates, build(
		fmt.Sprintf("Content-Optimized (%s)", content),
		"Tuned specifically for the detected content type",
		models.Balanced,
		contentOptimizedConfig(base, content),
	))

	return candidates
}

func build(name, description string, aggr models.Aggressiveness, cfg Config) models.ProcessingCandidate {
	spec, applied := BuildFilterSpec(&cfg)
	return models.ProcessingCandidate{
		ID:             uuid.New().String(),
		Name:           name,
		Description:    description,
		Aggressiveness: aggr,
		FilterChain:    spec,
		FiltersApplied: applied,
		TargetLUFS:     cfg.TargetLUFS,
		TargetTruePeak: cfg.TargetTruePeak,
	}
}

// baseConfigFor implements the per-content-type rule table from §4.5.
func baseConfigFor(content models.ContentType, metrics *models.AnalysisMetrics, problems *models.AudioProblems) Config {
	cfg := Config{LoudnessRange: 11}

	switch content {
	case models.ContentSpeech:
		cfg.HighpassHz = 80
		cfg.UseLeveler = true
		cfg.DeesserOn = problems.Sibilance.Detected
		cfg.TargetLUFS, cfg.TargetTruePeak = -16, -1.5
	case models.ContentPodcastMixed:
		cfg.HighpassHz = 60
		cfg.UseLeveler = true
		cfg.DeesserOn = problems.Sibilance.Detected
		cfg.TargetLUFS, cfg.TargetTruePeak = -16, -1.5
	case models.ContentMusic:
		cfg.HighpassHz = 30
		if problems.ExcessiveDynamicRange.Detected && metrics.LoudnessRange > 20 {
			cfg.UseCompressor = true
			cfg.CompressRatio = 1.5
		}
		cfg.TargetLUFS, cfg.TargetTruePeak = -14, -1
	default: // unknown — as balanced
		cfg.HighpassHz = 30
		cfg.TargetLUFS, cfg.TargetTruePeak = -14, -1
	}

	if problems.NoiseFloor.Detected {
		cfg.NoiseStrength = severityToStrength(problems.NoiseFloor.Severity)
	}
	if problems.Muddiness.Detected {
		cfg.MudCutDb = -3
	}

	return cfg
}

func severityToStrength(sev models.Severity) float64 {
	switch sev {
	case models.SeverityMild:
		return 7
	case models.SeverityModerate:
		return 9
	case models.SeveritySevere:
		return 11
	default:
		return 0
	}
}

// conservativeConfig softens a base config: gentler noise reduction, no
// compression regardless of content-type rule.
func conservativeConfig(base Config) Config {
	c := base
	if c.NoiseStrength > 0 {
		c.NoiseStrength *= 0.5
	}
	c.UseCompressor = false
	c.MudCutDb = 0
	return c
}

// aggressiveConfig strengthens a base config for higher-severity material.
func aggressiveConfig(base Config) Config {
	c := base
	if c.NoiseStrength > 0 {
		c.NoiseStrength *= 1.4
	}
	if c.MudCutDb != 0 {
		c.MudCutDb *= 1.5
	}
	if c.UseCompressor {
		c.CompressRatio += 0.5
	}
	return c
}

// contentOptimizedConfig is the balanced config as-is; it is
// distinguished only by name, per §4.5's note that it is classified as
// balanced for scheduling.
func contentOptimizedConfig(base Config, content models.ContentType) Config {
	return base
}
