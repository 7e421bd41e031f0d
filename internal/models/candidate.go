package models

// Aggressiveness classifies a candidate's scheduling bucket. The
// content-optimized candidate is a fourth named variety but is classified
// as balanced for scheduling purposes.
type Aggressiveness string

const (
	Conservative Aggressiveness = "conservative"
	Balanced     Aggressiveness = "balanced"
	Aggressive   Aggressiveness = "aggressive"
)

// ProcessingCandidate is one end-to-end processing configuration.
type ProcessingCandidate struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	Description     string         `json:"description"`
	Aggressiveness  Aggressiveness `json:"aggressiveness"`
	FilterChain     string         `json:"filterChain"`
	FiltersApplied  []string       `json:"filtersApplied"`
	TargetLUFS      float64        `json:"targetLufs"`
	TargetTruePeak  float64        `json:"targetTruePeak"`
}

// CandidateResult is the Executor's per-candidate outcome.
type CandidateResult struct {
	CandidateID     string `json:"candidateId"`
	Success         bool   `json:"success"`
	OutputPath      string `json:"outputPath,omitempty"`
	Error           string `json:"error,omitempty"`
	ProcessingTimeMs int64 `json:"processingTimeMs"`
}

// SubScores are the five weighted evaluation dimensions.
type SubScores struct {
	LoudnessAccuracy float64 `json:"loudnessAccuracy"`
	DynamicRange     float64 `json:"dynamicRange"`
	PeakSafety       float64 `json:"peakSafety"`
	NoiseReduction   float64 `json:"noiseReduction"`
	PerceptualQuality float64 `json:"perceptualQuality"`
}

// EvaluationScore is the Evaluator's verdict for one candidate.
type EvaluationScore struct {
	CandidateID     string           `json:"candidateId"`
	CandidateName   string           `json:"candidateName"`
	SubScores       SubScores        `json:"subScores"`
	TotalScore      float64          `json:"totalScore"`
	Metrics         *AnalysisMetrics `json:"metrics,omitempty"`
	PassedSafety    bool             `json:"passedSafety"`
	RejectionReason string           `json:"rejectionReason,omitempty"`
	QualityFallback bool             `json:"qualityFallback"`
}
