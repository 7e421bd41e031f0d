// Package executor implements the Candidate Executor: every candidate is
// run in parallel through the Media Runner against the same input, into a
// per-job scratch directory. Grounded on the teacher's ffmpeg-invocation
// pattern (audio merger's executeFFmpegCommand) and on golang.org/x/sync's
// errgroup for the "launch N, await all, collect, cancel on outer cancel"
// structured-concurrency primitive the design notes call for.
package executor

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"audiolevel/internal/media"
	"audiolevel/internal/models"
	"audiolevel/pkg/binaries"
	"audiolevel/pkg/logger"
)

// Executor runs candidate filter chains concurrently.
type Executor struct {
	runner  *media.Runner
	timeout time.Duration
}

// New returns an Executor driving ffmpeg through the Media Runner.
func New(timeout time.Duration) *Executor {
	return &Executor{runner: media.New(binaries.FFmpeg()), timeout: timeout}
}

// ExecuteAll runs every candidate in parallel, writing each into
// scratchDir/<candidateId>.wav at the given sampleRate, as 32-bit PCM when
// bitDepth is 24 or more and 16-bit PCM otherwise. Results are returned in
// the same order as candidates.
func (e *Executor) ExecuteAll(ctx context.Context, inputPath, scratchDir string, sampleRate, bitDepth int, candidates []models.ProcessingCandidate) []models.CandidateResult {
	results := make([]models.CandidateResult, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	for i, c := range candidates {
		i, c := i, c
		g.Go(func() error {
			results[i] = e.runOne(gctx, inputPath, scratchDir, sampleRate, bitDepth, c)
			return nil
		})
	}
	_ = g.Wait() // errors are captured per-candidate in results, never propagated as a group failure

	return results
}

func (e *Executor) runOne(ctx context.Context, inputPath, scratchDir string, sampleRate, bitDepth int, c models.ProcessingCandidate) models.CandidateResult {
	start := time.Now()
	outputPath := filepath.Join(scratchDir, c.ID+".wav")

	sampleFmt := "s16"
	if bitDepth >= 24 {
		sampleFmt = "s32"
	}

	argv := []string{"-y", "-hide_banner", "-nostats", "-i", inputPath}
	if c.FilterChain != "" {
		argv = append(argv, "-af", c.FilterChain)
	}
	argv = append(argv,
		"-ar", fmt.Sprint(sampleRate),
		"-sample_fmt", sampleFmt,
		"-c:a", "pcm_"+sampleFmt+"le",
		outputPath,
	)

	res, err := e.runner.Run(ctx, argv, e.timeout, nil)
	elapsed := time.Since(start)
	if err == nil && res.ExitCode != 0 {
		err = fmt.Errorf("executor: ffmpeg exited with code %d", res.ExitCode)
	}

	if err != nil {
		logger.Debug("executor: candidate failed", "candidate", c.Name, "error", err.Error())
		return models.CandidateResult{CandidateID: c.ID, Success: false, Error: err.Error(), ProcessingTimeMs: elapsed.Milliseconds()}
	}
	return models.CandidateResult{CandidateID: c.ID, Success: true, OutputPath: outputPath, ProcessingTimeMs: elapsed.Milliseconds()}
}

// Cleanup removes every scratch artifact except the keepPath, if given.
func Cleanup(results []models.CandidateResult, keepPath string) {
	for _, r := range results {
		if !r.Success || r.OutputPath == "" || r.OutputPath == keepPath {
			continue
		}
		_ = removeFile(r.OutputPath)
	}
}
