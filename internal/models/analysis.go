package models

// AnalysisMetrics is an immutable measurement snapshot produced by the
// Analysis Probe.
type AnalysisMetrics struct {
	Channels   int     `json:"channels"`
	SampleRate int     `json:"sampleRate"`
	BitDepth   int     `json:"bitDepth"`
	DurationS  float64 `json:"durationS"`

	IntegratedLUFS float64 `json:"integratedLufs"`
	LoudnessRange  float64 `json:"loudnessRange"`
	TruePeak       float64 `json:"truePeak"`

	RMSDb        float64 `json:"rmsDb"`
	PeakDb       float64 `json:"peakDb"`
	CrestFactor  float64 `json:"crestFactor"`
	FlatFactor   float64 `json:"flatFactor"`
	PeakSamples  int     `json:"peakSamples"`

	SilenceRatio    float64 `json:"silenceRatio"`
	LeadingSilence  float64 `json:"leadingSilenceS"`
	TrailingSilence float64 `json:"trailingSilenceS"`

	SpectralCentroid float64 `json:"spectralCentroidHz"`
	SpectralFlatness float64 `json:"spectralFlatness"`
	LowBandEnergy    float64 `json:"lowBandEnergy"`
	MidBandEnergy    float64 `json:"midBandEnergy"`
	HighBandEnergy   float64 `json:"highBandEnergy"`
	VeryHighBandEnergy float64 `json:"veryHighBandEnergy"`

	DCOffset      float64 `json:"dcOffset"`
	StereoBalance float64 `json:"stereoBalanceDb"`
}

// LoudnessSummary is the loudness-only measurement returned by the
// Analysis Probe's MeasureSummary.
type LoudnessSummary struct {
	IntegratedLUFS float64 `json:"integratedLufs"`
	LoudnessRange  float64 `json:"loudnessRange"`
	TruePeak       float64 `json:"truePeak"`
}

// ContentType is the classifier's output label.
type ContentType string

const (
	ContentSpeech        ContentType = "speech"
	ContentMusic         ContentType = "music"
	ContentPodcastMixed  ContentType = "podcast_mixed"
	ContentUnknown       ContentType = "unknown"
)

// ClassificationSignal names one heuristic contribution to a classification.
type ClassificationSignal struct {
	Name   string      `json:"name"`
	Value  float64     `json:"value"`
	Points ContentType `json:"pointsTo"`
	Weight float64     `json:"weight"`
}

// ContentClassification is the classifier's full output.
type ContentClassification struct {
	Type       ContentType            `json:"type"`
	Confidence float64                `json:"confidence"`
	Signals    []ClassificationSignal `json:"signals"`
}

// Severity grades a detected audio defect.
type Severity string

const (
	SeverityNone     Severity = "none"
	SeverityMild     Severity = "mild"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
)

// ProblemEntry is one row of the fixed defect taxonomy.
type ProblemEntry struct {
	Detected bool     `json:"detected"`
	Severity Severity `json:"severity"`
	Metric   float64  `json:"metric"`
}

// AudioProblems is the fixed-shape record of every defect kind the
// Problem Detector evaluates.
type AudioProblems struct {
	Clipping              ProblemEntry `json:"clipping"`
	NoiseFloor            ProblemEntry `json:"noiseFloor"`
	DCOffset              ProblemEntry `json:"dcOffset"`
	LowLoudness           ProblemEntry `json:"lowLoudness"`
	ExcessiveDynamicRange ProblemEntry `json:"excessiveDynamicRange"`
	Sibilance             ProblemEntry `json:"sibilance"`
	Muddiness             ProblemEntry `json:"muddiness"`
	StereoImbalance       ProblemEntry `json:"stereoImbalance"`
	SilencePadding        ProblemEntry `json:"silencePadding"`
}

// MaxSeverity returns the highest severity among all detected problems,
// SeverityNone if nothing was detected.
func (p *AudioProblems) MaxSeverity() Severity {
	rank := map[Severity]int{SeverityNone: 0, SeverityMild: 1, SeverityModerate: 2, SeveritySevere: 3}
	max := SeverityNone
	for _, e := range []ProblemEntry{
		p.Clipping, p.NoiseFloor, p.DCOffset, p.LowLoudness, p.ExcessiveDynamicRange,
		p.Sibilance, p.Muddiness, p.StereoImbalance, p.SilencePadding,
	} {
		if e.Detected && rank[e.Severity] > rank[max] {
			max = e.Severity
		}
	}
	return max
}
