package problems

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"audiolevel/internal/models"
)

func TestDetect_CleanRecordingHasNoProblems(t *testing.T) {
	m := &models.AnalysisMetrics{
		RMSDb:          -20,
		IntegratedLUFS: -18,
		LoudnessRange:  9,
		LowBandEnergy:  0.3, MidBandEnergy: 0.4, HighBandEnergy: 0.2, VeryHighBandEnergy: 0.05,
	}

	p := Detect(m, models.ContentSpeech)

	assert.Equal(t, models.SeverityNone, p.MaxSeverity())
	assert.False(t, p.NoiseFloor.Detected)
	assert.False(t, p.LowLoudness.Detected)
}

func TestDetect_NoiseFloorSeverityEscalates(t *testing.T) {
	m := &models.AnalysisMetrics{RMSDb: -70, IntegratedLUFS: -18, MidBandEnergy: 1}

	p := Detect(m, models.ContentSpeech)

	assert.True(t, p.NoiseFloor.Detected)
	assert.Equal(t, models.SeveritySevere, p.NoiseFloor.Severity)
}

func TestDetect_SibilanceSkippedForMusic(t *testing.T) {
	m := &models.AnalysisMetrics{RMSDb: -20, IntegratedLUFS: -16, MidBandEnergy: 1, VeryHighBandEnergy: 0.9}

	p := Detect(m, models.ContentMusic)

	assert.False(t, p.Sibilance.Detected, "sibilance is only evaluated for non-music content")
}

func TestDetect_ExcessiveDynamicRangeThresholdDiffersByContent(t *testing.T) {
	m := &models.AnalysisMetrics{RMSDb: -20, IntegratedLUFS: -16, LoudnessRange: 17, MidBandEnergy: 1}

	speechResult := Detect(m, models.ContentSpeech)
	musicResult := Detect(m, models.ContentMusic)

	assert.True(t, speechResult.ExcessiveDynamicRange.Detected, "17 LU exceeds the 15 LU speech threshold")
	assert.False(t, musicResult.ExcessiveDynamicRange.Detected, "17 LU is within the 20 LU music threshold")
}
