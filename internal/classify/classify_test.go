package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"audiolevel/internal/models"
)

func TestClassify_SpeechSignature(t *testing.T) {
	m := &models.AnalysisMetrics{
		SilenceRatio:     0.2,
		CrestFactor:      10,
		SpectralFlatness: 0.1,
		LoudnessRange:    6,
		SpectralCentroid: 2800,
	}

	out := Classify(m)

	assert.Equal(t, models.ContentSpeech, out.Type)
	assert.NotEmpty(t, out.Signals)
}

func TestClassify_MusicSignature(t *testing.T) {
	m := &models.AnalysisMetrics{
		SilenceRatio:     0.01,
		CrestFactor:      22,
		SpectralFlatness: 0.4,
		LoudnessRange:    18,
		SpectralCentroid: 1000,
	}

	out := Classify(m)

	assert.Equal(t, models.ContentMusic, out.Type)
}

func TestClassify_AmbiguousIsMixedOrUnknown(t *testing.T) {
	m := &models.AnalysisMetrics{
		SilenceRatio:     0.08,
		CrestFactor:      16,
		SpectralFlatness: 0.25,
		LoudnessRange:    12,
		SpectralCentroid: 1900,
	}

	out := Classify(m)

	assert.Contains(t, []models.ContentType{models.ContentPodcastMixed, models.ContentUnknown}, out.Type)
}
