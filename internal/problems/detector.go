// Package problems implements the Problem Detector: fixed thresholds
// mapping measurements and content type onto the defect taxonomy.
package problems

import "audiolevel/internal/models"

// Detect maps metrics and content type onto the fixed AudioProblems
// record, per the thresholds documented in the specification.
func Detect(m *models.AnalysisMetrics, content models.ContentType) *models.AudioProblems {
	p := &models.AudioProblems{}

	p.Clipping = entry(m.PeakSamples > 100 || m.FlatFactor > 0, severityFromRatio(float64(m.PeakSamples)/100, 1, 3))
	p.Clipping.Metric = float64(m.PeakSamples)

	noiseFloorDetected := m.RMSDb < -50
	p.NoiseFloor = entry(noiseFloorDetected, severityFromRatio(-50-m.RMSDb, 5, 15))
	p.NoiseFloor.Metric = m.RMSDb

	p.DCOffset = entry(m.DCOffset > 0.01, severityFromRatio(m.DCOffset/0.01, 2, 5))
	p.DCOffset.Metric = m.DCOffset

	p.LowLoudness = entry(m.IntegratedLUFS < -24, severityFromRatio(-24-m.IntegratedLUFS, 4, 10))
	p.LowLoudness.Metric = m.IntegratedLUFS

	lraThreshold := 15.0
	if content == models.ContentMusic {
		lraThreshold = 20.0
	}
	p.ExcessiveDynamicRange = entry(m.LoudnessRange > lraThreshold, severityFromRatio(m.LoudnessRange-lraThreshold, 3, 8))
	p.ExcessiveDynamicRange.Metric = m.LoudnessRange

	sibilanceRatio := 0.0
	if m.MidBandEnergy > 0 {
		sibilanceRatio = m.VeryHighBandEnergy / m.MidBandEnergy
	}
	sibilanceDetected := content != models.ContentMusic && sibilanceRatio >= 0.5
	p.Sibilance = entry(sibilanceDetected, severityFromRatio(sibilanceRatio-0.5, 0.2, 0.5))
	p.Sibilance.Metric = sibilanceRatio

	muddinessRatio := 0.0
	if m.MidBandEnergy > 0 {
		muddinessRatio = m.LowBandEnergy / m.MidBandEnergy
	}
	p.Muddiness = entry(muddinessRatio > 1.5, severityFromRatio(muddinessRatio-1.5, 0.5, 1.5))
	p.Muddiness.Metric = muddinessRatio

	p.StereoImbalance = entry(abs(m.StereoBalance) > 3, severityFromRatio(abs(m.StereoBalance)-3, 2, 6))
	p.StereoImbalance.Metric = m.StereoBalance

	padding := m.LeadingSilence
	if m.TrailingSilence > padding {
		padding = m.TrailingSilence
	}
	p.SilencePadding = entry(padding > 0.5, severityFromRatio(padding-0.5, 1, 3))
	p.SilencePadding.Metric = padding

	return p
}

func entry(detected bool, sev models.Severity) models.ProblemEntry {
	if !detected {
		return models.ProblemEntry{Detected: false, Severity: models.SeverityNone}
	}
	return models.ProblemEntry{Detected: true, Severity: sev}
}

// severityFromRatio escalates mild->moderate->severe as excess crosses
// the two secondary thresholds.
func severityFromRatio(excess, moderateAt, severeAt float64) models.Severity {
	switch {
	case excess >= severeAt:
		return models.SeveritySevere
	case excess >= moderateAt:
		return models.SeverityModerate
	default:
		return models.SeverityMild
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
