// Package pipeline wires the Analysis Probe, Content Classifier, Problem
// Detector, Candidate Generator, Candidate Executor, and Evaluator into a
// single queue.Processor — the Worker Pool's per-job driver.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"audiolevel/internal/analysis"
	"audiolevel/internal/apperr"
	"audiolevel/internal/candidate"
	"audiolevel/internal/classify"
	"audiolevel/internal/evaluate"
	"audiolevel/internal/executor"
	"audiolevel/internal/media"
	"audiolevel/internal/models"
	"audiolevel/internal/problems"
	"audiolevel/internal/queue"
	"audiolevel/pkg/binaries"
)

// Pipeline drives one job attempt through every analysis/processing stage.
type Pipeline struct {
	probe      *analysis.Probe
	executor   *executor.Executor
	evaluator  *evaluate.Evaluator
	runner     *media.Runner
	outputDir  string
	finalEncodeTimeout time.Duration
}

// New constructs a Pipeline with the given timeouts.
func New(outputDir string, processingTimeout, finalEncodeTimeout time.Duration) *Pipeline {
	probe := analysis.New(processingTimeout)
	return &Pipeline{
		probe:              probe,
		executor:           executor.New(processingTimeout),
		evaluator:          evaluate.New(probe),
		runner:             media.New(binaries.FFmpeg()),
		outputDir:          outputDir,
		finalEncodeTimeout: finalEncodeTimeout,
	}
}

var _ queue.Processor = (*Pipeline)(nil)

// Process implements queue.Processor.
func (p *Pipeline) Process(ctx context.Context, job *models.Job, report queue.ProgressFunc) (*models.JobResult, error) {
	report(0, "analyzing")
	metrics, err := p.probe.Measure(ctx, job.InputPath)
	if err != nil {
		return nil, apperr.ErrParseFailed.Wrap(err)
	}

	report(15, "classifying")
	classification := classify.Classify(metrics)

	report(20, "detecting_problems")
	detected := problems.Detect(metrics, classification.Type)

	report(25, "generating_candidates")
	candidates := candidate.Generate(metrics, classification, detected)

	scratchDir, err := p.scratchDir(job.JobID)
	if err != nil {
		return nil, apperr.ErrProcessingFailed.Wrap(err)
	}
	defer os.RemoveAll(scratchDir)

	report(30, "processing")
	results := p.executor.ExecuteAll(ctx, job.InputPath, scratchDir, metrics.SampleRate, metrics.BitDepth, candidates)

	anySucceeded := false
	for _, r := range results {
		if r.Success {
			anySucceeded = true
			break
		}
	}
	if !anySucceeded {
		return nil, apperr.ErrProcessingFailed
	}

	report(75, "evaluating")
	scores, winnerID, err := p.evaluator.Evaluate(ctx, job.InputPath, candidates, results, classification.Type)
	if err != nil {
		return nil, apperr.ErrProcessingFailed.Wrap(err)
	}

	var winnerResult *models.CandidateResult
	var winnerScore models.EvaluationScore
	for i := range results {
		if results[i].CandidateID == winnerID {
			winnerResult = &results[i]
		}
	}
	for _, s := range scores {
		if s.CandidateID == winnerID {
			winnerScore = s
		}
	}
	if winnerResult == nil {
		return nil, apperr.ErrProcessingFailed.Wrap(fmt.Errorf("pipeline: winner candidate result missing"))
	}

	executor.Cleanup(results, winnerResult.OutputPath)

	report(90, "encoding")
	if err := p.finalEncode(ctx, winnerResult.OutputPath, job.OutputPath); err != nil {
		return nil, apperr.ErrProcessingFailed.Wrap(err)
	}
	_ = os.Remove(winnerResult.OutputPath)

	report(100, "complete")

	var winnerName string
	for _, c := range candidates {
		if c.ID == winnerID {
			winnerName = c.Name
		}
	}

	return &models.JobResult{
		OutputPath:     job.OutputPath,
		Winner:         winnerName,
		WinnerScore:    winnerScore.TotalScore,
		Reason:         evaluate.WinnerReason(winnerScore),
		Metrics:        metrics,
		Classification: classification,
	}, nil
}

func (p *Pipeline) scratchDir(jobID string) (string, error) {
	dir := filepath.Join(p.outputDir, ".intelligent-work", fmt.Sprintf("job-%s-%d", jobID, time.Now().UnixNano()))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// finalEncode re-encodes the winning scratch artifact into the job's
// output path, preserving the original container via its extension.
func (p *Pipeline) finalEncode(ctx context.Context, winnerPath, outputPath string) error {
	argv := []string{"-y", "-hide_banner", "-nostats", "-i", winnerPath, outputPath}
	res, err := p.runner.Run(ctx, argv, p.finalEncodeTimeout, nil)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("pipeline: final encode exited with code %d", res.ExitCode)
	}
	return nil
}
