// Package evaluate implements the Evaluator: re-measures every successful
// candidate, scores it against content-type-specific weights, applies
// safety vetoes, and picks a winner.
package evaluate

import (
	"context"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/google/shlex"
	"golang.org/x/sync/singleflight"

	"audiolevel/internal/analysis"
	"audiolevel/internal/models"
	"audiolevel/pkg/binaries"
	"audiolevel/pkg/logger"
)

const (
	safetyTruePeakDbTP = -0.5
	safetyMinMOS       = 3.0
	tieBreakMargin     = 0.05 // 5%
)

type weights struct {
	loudness, dynamics, peak, noise, perceptual float64
}

func weightsFor(content models.ContentType) weights {
	switch content {
	case models.ContentMusic:
		return weights{loudness: 0.15, dynamics: 0.3, peak: 0.2, noise: 0.1, perceptual: 0.25}
	default: // speech, podcast_mixed, unknown
		return weights{loudness: 0.25, dynamics: 0.15, peak: 0.2, noise: 0.3, perceptual: 0.1}
	}
}

// Evaluator scores and selects a winning candidate.
type Evaluator struct {
	probe   *analysis.Probe
	group   singleflight.Group
	qualityBin string
	qualityWeightsPath string
}

// New returns an Evaluator that re-measures scratch artifacts through the
// given Probe.
func New(probe *analysis.Probe) *Evaluator {
	return &Evaluator{
		probe:              probe,
		qualityBin:         binaries.QualityModel(),
		qualityWeightsPath: binaries.QualityModelWeights(),
	}
}

// Evaluate scores every successful candidate result and returns the
// scores, in the order their scoring finished, plus the winning
// candidate's id.
func (e *Evaluator) Evaluate(ctx context.Context, inputPath string, candidates []models.ProcessingCandidate, results []models.CandidateResult, content models.ContentType) (scores []models.EvaluationScore, winnerID string, err error) {
	w := weightsFor(content)

	byID := make(map[string]models.ProcessingCandidate, len(candidates))
	for _, c := range candidates {
		byID[c.ID] = c
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	scores = make([]models.EvaluationScore, 0, len(results))

	for _, r := range results {
		if !r.Success {
			continue
		}
		r := r
		cand := byID[r.CandidateID]
		wg.Add(1)
		go func() {
			defer wg.Done()
			score := e.scoreOne(ctx, cand, r, w)
			mu.Lock()
			scores = append(scores, score)
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(scores) == 0 {
		return nil, "", fmt.Errorf("evaluate: no successful candidates to score")
	}

	winnerID = e.selectWinner(scores, byID)
	return scores, winnerID, nil
}

func (e *Evaluator) scoreOne(ctx context.Context, cand models.ProcessingCandidate, result models.CandidateResult, w weights) models.EvaluationScore {
	metrics, measureErr := e.probe.Measure(ctx, result.OutputPath)
	if measureErr != nil {
		logger.Debug("evaluate: re-measure failed", "candidate", cand.Name, "error", measureErr.Error())
		metrics = &models.AnalysisMetrics{}
	}

	sub := models.SubScores{
		LoudnessAccuracy: scoreLoudness(metrics.IntegratedLUFS, cand.TargetLUFS),
		DynamicRange:     scoreDynamicRange(metrics.LoudnessRange, cand.Aggressiveness),
		PeakSafety:       scorePeakSafety(metrics.TruePeak),
		NoiseReduction:   scoreNoiseReduction(metrics.RMSDb),
	}

	mos, fallback := e.perceptualQuality(ctx, result.OutputPath)
	sub.PerceptualQuality = (mos - 1) / 4 * 100 // map [1,5] MOS to [0,100]

	total := sub.LoudnessAccuracy*w.loudness + sub.DynamicRange*w.dynamics +
		sub.PeakSafety*w.peak + sub.NoiseReduction*w.noise + sub.PerceptualQuality*w.perceptual

	passedSafety := metrics.TruePeak <= safetyTruePeakDbTP && mos >= safetyMinMOS
	var rejection string
	if !passedSafety {
		if metrics.TruePeak > safetyTruePeakDbTP {
			rejection = "true peak exceeds safety ceiling"
		} else {
			rejection = "perceptual quality below safety floor"
		}
	}

	logger.CandidateOutcome("", cand.ID, passedSafety, total, rejection)

	return models.EvaluationScore{
		CandidateID:     cand.ID,
		CandidateName:   cand.Name,
		SubScores:       sub,
		TotalScore:      total,
		Metrics:         metrics,
		PassedSafety:    passedSafety,
		RejectionReason: rejection,
		QualityFallback: fallback,
	}
}

func scoreLoudness(measured, target float64) float64 {
	diff := math.Abs(measured - target)
	return clamp(100-diff*10, 0, 100)
}

func scoreDynamicRange(lra float64, aggr models.Aggressiveness) float64 {
	ideal := 11.0
	if aggr == models.Conservative {
		ideal = 13.0
	}
	diff := math.Abs(lra - ideal)
	return clamp(100-diff*5, 0, 100)
}

func scorePeakSafety(truePeak float64) float64 {
	if truePeak > safetyTruePeakDbTP {
		return clamp(50-(truePeak-safetyTruePeakDbTP)*50, 0, 50)
	}
	return clamp(100-(safetyTruePeakDbTP-truePeak)*5, 50, 100)
}

func scoreNoiseReduction(rmsDb float64) float64 {
	// A healthier (less negative) noise floor after processing scores higher.
	return clamp(100+rmsDb, 0, 100)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// perceptualQuality uses the configured external quality-model binary
// when available; otherwise falls back to the fallbackMOS heuristic,
// which reports a MOS-scale estimate.
func (e *Evaluator) perceptualQuality(ctx context.Context, path string) (mos float64, fallback bool) {
	if e.qualityBin == "" {
		return e.fallbackMOS(path), true
	}

	v, err, _ := e.group.Do(e.qualityBin+"\x00"+path, func() (interface{}, error) {
		args, parseErr := shlex.Split(e.qualityBin)
		if parseErr != nil || len(args) == 0 {
			return nil, fmt.Errorf("evaluate: parse quality model command: %v", parseErr)
		}
		argv := args[1:]
		if e.qualityWeightsPath != "" {
			argv = append(argv, "--weights", e.qualityWeightsPath)
		}
		argv = append(argv, path)
		cmd := exec.CommandContext(ctx, args[0], argv...)
		out, runErr := cmd.Output()
		if runErr != nil {
			return nil, runErr
		}
		return strings.TrimSpace(string(out)), nil
	})
	if err != nil {
		logger.Debug("evaluate: quality model unavailable, using fallback", "error", err.Error())
		return e.fallbackMOS(path), true
	}
	parsed, parseErr := strconv.ParseFloat(fmt.Sprint(v), 64)
	if parseErr != nil {
		return e.fallbackMOS(path), true
	}
	return clamp(parsed, 1, 5), false
}

// fallbackMOS is the heuristic used when no external quality model is
// configured or it fails: it starts at 3.0 and adjusts by the candidate
// output's own spectral flatness and stereo balance, clamped to [1,5].
// It does not compare the output against the input.
func (e *Evaluator) fallbackMOS(path string) float64 {
	metrics, err := e.probe.Measure(context.Background(), path)
	if err != nil {
		return 3.0
	}
	score := 3.0
	score += clamp((0.3-metrics.SpectralFlatness)*2, -0.5, 1)
	score += clamp((50-math.Abs(metrics.StereoBalance))/50, -0.5, 0.5)
	return clamp(score, 1, 5)
}

// selectWinner applies the safety veto, its fallback order, and the
// Conservative-wins tie-break.
func (e *Evaluator) selectWinner(scores []models.EvaluationScore, byID map[string]models.ProcessingCandidate) string {
	var safe []models.EvaluationScore
	for _, s := range scores {
		if s.PassedSafety {
			safe = append(safe, s)
		}
	}

	pool := safe
	if len(pool) == 0 {
		// Every candidate failed safety: fall back to Conservative
		// regardless of score, else the highest total score overall.
		for _, s := range scores {
			if byID[s.CandidateID].Aggressiveness == models.Conservative {
				return s.CandidateID
			}
		}
		pool = scores
	}

	best := pool[0]
	for _, s := range pool[1:] {
		if s.TotalScore > best.TotalScore {
			best = s
		}
	}

	for _, s := range pool {
		if s.CandidateID == best.CandidateID {
			continue
		}
		if best.TotalScore-s.TotalScore <= best.TotalScore*tieBreakMargin && byID[s.CandidateID].Aggressiveness == models.Conservative {
			return s.CandidateID
		}
	}

	return best.CandidateID
}

// WinnerReason synthesizes a human-readable sentence from which
// sub-scores exceed named thresholds.
func WinnerReason(s models.EvaluationScore) string {
	var reasons []string
	if s.SubScores.LoudnessAccuracy >= 80 {
		reasons = append(reasons, "hit its loudness target precisely")
	}
	if s.SubScores.DynamicRange >= 80 {
		reasons = append(reasons, "preserved a natural dynamic range")
	}
	if s.SubScores.PeakSafety >= 90 {
		reasons = append(reasons, "kept true peak well within safety margin")
	}
	if s.SubScores.NoiseReduction >= 80 {
		reasons = append(reasons, "reduced background noise effectively")
	}
	if s.SubScores.PerceptualQuality >= 80 {
		reasons = append(reasons, "scored highest on perceptual quality")
	}
	if len(reasons) == 0 {
		return fmt.Sprintf("%s was selected as the best available option", s.CandidateName)
	}
	return fmt.Sprintf("%s was selected because it %s", s.CandidateName, strings.Join(reasons, " and "))
}
