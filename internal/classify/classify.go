// Package classify implements the Content Classifier: weighted signal
// scoring followed by the documented decision rule.
package classify

import "audiolevel/internal/models"

type weightedSignal struct {
	name   string
	value  float64
	speech float64 // contribution toward "speech" when positive, toward "music" when negative
	weight float64
}

// Classify scores speech vs. music from the weighted signal set and
// applies the margin/threshold decision rule from the specification.
func Classify(m *models.AnalysisMetrics) *models.ContentClassification {
	signals := []weightedSignal{
		{"silence_ratio", m.SilenceRatio, speechLeaning(m.SilenceRatio, 0.15, 0.02), 0.25},
		{"crest_factor", m.CrestFactor, musicLeaning(m.CrestFactor, 12, 20), 0.2},
		{"spectral_flatness", m.SpectralFlatness, musicLeaning(m.SpectralFlatness, 0.15, 0.35), 0.2},
		{"loudness_range", m.LoudnessRange, musicLeaning(m.LoudnessRange, 8, 16), 0.2},
		{"spectral_centroid", m.SpectralCentroid, speechLeaning(m.SpectralCentroid, 2500, 1200), 0.15},
	}

	var speechScore, musicScore float64
	out := make([]models.ClassificationSignal, 0, len(signals))
	for _, s := range signals {
		contribution := s.speech * s.weight
		if contribution >= 0 {
			speechScore += contribution
			out = append(out, models.ClassificationSignal{Name: s.name, Value: s.value, Points: models.ContentSpeech, Weight: s.weight})
		} else {
			musicScore += -contribution
			out = append(out, models.ClassificationSignal{Name: s.name, Value: s.value, Points: models.ContentMusic, Weight: s.weight})
		}
	}

	classification := decide(normalizeScore(speechScore, speechWeightTotal), normalizeScore(musicScore, musicWeightTotal))
	classification.Signals = out
	return classification
}

// speechWeightTotal and musicWeightTotal are the sums of the signal
// table's weights on each side (0.25+0.15 and 0.2+0.2+0.2 respectively).
// speechScore/musicScore are raw weighted sums bounded by these totals,
// not by 1, so each is normalized to its own achievable max before the
// decision rule applies the specification's literal 0.2/0.6/0.3 cutoffs
// against a common [0,1] scale.
const (
	speechWeightTotal = 0.4
	musicWeightTotal  = 0.6
)

func normalizeScore(score, total float64) float64 {
	if total == 0 {
		return 0
	}
	return min1(score / total)
}

// decide applies the specification's literal decision rule to scores
// already normalized to [0,1]: speech if speech-music>0.2 && speech>0.6,
// music if music-speech>0.2 && music>0.6, podcast_mixed if both>0.3.
func decide(speech, music float64) *models.ContentClassification {
	switch {
	case speech-music > 0.2 && speech > 0.6:
		return &models.ContentClassification{Type: models.ContentSpeech, Confidence: speech}
	case music-speech > 0.2 && music > 0.6:
		return &models.ContentClassification{Type: models.ContentMusic, Confidence: music}
	case speech > 0.3 && music > 0.3:
		return &models.ContentClassification{Type: models.ContentPodcastMixed, Confidence: 0.6}
	default:
		return &models.ContentClassification{Type: models.ContentUnknown, Confidence: 0.5}
	}
}

func min1(v float64) float64 {
	if v > 1 {
		return 1
	}
	return v
}

// speechLeaning returns a positive value as a metric rises past lowBound
// toward highBound (saturating at 1), indicating speech-ness.
func speechLeaning(value, highBound, lowBound float64) float64 {
	if highBound == lowBound {
		return 0
	}
	frac := (value - lowBound) / (highBound - lowBound)
	return clamp01(frac)
}

// musicLeaning returns a negative value (pointing toward music) as a
// metric rises past lowBound toward highBound.
func musicLeaning(value, lowBound, highBound float64) float64 {
	if highBound == lowBound {
		return 0
	}
	frac := (value - lowBound) / (highBound - lowBound)
	return -clamp01(frac)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
