package candidate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"audiolevel/internal/models"
)

func findCandidate(t *testing.T, candidates []models.ProcessingCandidate, name string) models.ProcessingCandidate {
	t.Helper()
	for _, c := range candidates {
		if c.Name == name {
			return c
		}
	}
	require.Fail(t, "candidate not found", name)
	return models.ProcessingCandidate{}
}

// TestGenerate_SpeechWithMildSibilanceAndNoise covers spec §8 scenario 1:
// a speech recording with mild sibilance and mild noise floor.
func TestGenerate_SpeechWithMildSibilanceAndNoise(t *testing.T) {
	metrics := &models.AnalysisMetrics{}
	classification := &models.ContentClassification{Type: models.ContentSpeech}
	problems := &models.AudioProblems{
		Sibilance:  models.ProblemEntry{Detected: true, Severity: models.SeverityMild},
		NoiseFloor: models.ProblemEntry{Detected: true, Severity: models.SeverityMild},
	}

	candidates := Generate(metrics, classification, problems)
	balanced := findCandidate(t, candidates, "Balanced")

	assert.Contains(t, balanced.FilterChain, "anlmdn=s=7")
	assert.Contains(t, balanced.FilterChain, "deesser")
	assert.Contains(t, balanced.FilterChain, "dynaudnorm")
	assert.True(t, strings.HasSuffix(balanced.FilterChain, "loudnorm=I=-16:TP=-1.5:LRA=11:linear=true"))
}

// TestGenerate_CleanMusicLowLRA covers spec §8 scenario 2: clean music
// with LRA=8, no problems detected.
func TestGenerate_CleanMusicLowLRA(t *testing.T) {
	metrics := &models.AnalysisMetrics{LoudnessRange: 8}
	classification := &models.ContentClassification{Type: models.ContentMusic}
	problems := &models.AudioProblems{}

	candidates := Generate(metrics, classification, problems)
	balanced := findCandidate(t, candidates, "Balanced")

	assert.Contains(t, balanced.FilterChain, "highpass=f=30")
	assert.NotContains(t, balanced.FilterChain, "dynaudnorm")
	assert.NotContains(t, balanced.FilterChain, "acompressor")
	assert.NotContains(t, balanced.FilterChain, "deesser")
	assert.True(t, strings.HasSuffix(balanced.FilterChain, "loudnorm=I=-14:TP=-1:LRA=11:linear=true"))
}

// TestGenerate_MusicWithExcessiveDynamicRange covers spec §8 scenario 3:
// music with LRA=22 and moderate excessive-dynamic-range severity.
func TestGenerate_MusicWithExcessiveDynamicRange(t *testing.T) {
	metrics := &models.AnalysisMetrics{LoudnessRange: 22}
	classification := &models.ContentClassification{Type: models.ContentMusic}
	problems := &models.AudioProblems{
		ExcessiveDynamicRange: models.ProblemEntry{Detected: true, Severity: models.SeverityModerate},
	}

	candidates := Generate(metrics, classification, problems)
	balanced := findCandidate(t, candidates, "Balanced")
	conservative := findCandidate(t, candidates, "Conservative")

	assert.Contains(t, balanced.FilterChain, "acompressor")
	assert.Contains(t, balanced.FilterChain, "ratio=1.5")
	assert.NotContains(t, conservative.FilterChain, "acompressor")
}
