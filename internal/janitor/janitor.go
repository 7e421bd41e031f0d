// Package janitor implements the three periodic sweeps that keep the
// server from accumulating disk and session garbage: age-based file
// eviction, cleanup of job-named upload/output files whose job is gone,
// and idle real-time session eviction. Directories, including scratch
// work directories, are not removed by any sweep.
package janitor

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"audiolevel/internal/bus"
	"audiolevel/internal/store"
	"audiolevel/pkg/logger"
)

var orphanNamePattern = regexp.MustCompile(`^([A-Za-z0-9_-]{12})-(input|output)\.[A-Za-z0-9]+$`)

// Janitor runs the age, orphan, and heartbeat sweeps on independent timers.
type Janitor struct {
	uploadDir, outputDir string
	retention            time.Duration
	store                store.Store
	bus                  *bus.Bus

	// negativeCache avoids re-querying the store for the same absent
	// JobIds every orphan sweep; a short TTL keeps it from masking a job
	// that is admitted shortly after its file appears on disk.
	negativeCache *gocache.Cache

	cancel context.CancelFunc
}

// New constructs a Janitor.
func New(uploadDir, outputDir string, retention time.Duration, s store.Store, b *bus.Bus) *Janitor {
	return &Janitor{
		uploadDir:     uploadDir,
		outputDir:     outputDir,
		retention:     retention,
		store:         s,
		bus:           b,
		negativeCache: gocache.New(2*time.Minute, 5*time.Minute),
	}
}

// Start launches all three sweeps.
func (j *Janitor) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	j.cancel = cancel

	go j.loop(ctx, 5*time.Minute, j.ageSweep)
	go j.loop(ctx, 10*time.Minute, j.orphanSweep)
	go j.loop(ctx, 30*time.Second, j.heartbeatSweep)

	logger.Startup("janitor", "retention sweeps started")
}

// Stop cancels every sweep.
func (j *Janitor) Stop() {
	if j.cancel != nil {
		j.cancel()
	}
}

func (j *Janitor) loop(ctx context.Context, interval time.Duration, sweep func(ctx context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep(ctx)
		}
	}
}

// ageSweep deletes regular files in upload/output directories older than
// the retention window.
func (j *Janitor) ageSweep(ctx context.Context) {
	cutoff := time.Now().Add(-j.retention)
	for _, dir := range []string{j.uploadDir, j.outputDir} {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				continue
			}
			if info.ModTime().Before(cutoff) {
				path := filepath.Join(dir, entry.Name())
				if err := os.Remove(path); err == nil {
					logger.Debug("janitor: age-evicted file", "path", path)
				}
			}
		}
	}
}

// orphanSweep deletes job-pattern files whose JobId is unknown to the
// queue. On an unknown-job lookup failure it assumes the job exists
// (fails safe) rather than deleting under uncertainty.
func (j *Janitor) orphanSweep(ctx context.Context) {
	cutoff := time.Now().Add(-5 * time.Minute)
	for _, dir := range []string{j.uploadDir, j.outputDir} {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			match := orphanNamePattern.FindStringSubmatch(entry.Name())
			if match == nil {
				continue
			}
			info, err := entry.Info()
			if err != nil || info.ModTime().After(cutoff) {
				continue
			}

			jobID := match[1]
			if _, found := j.negativeCache.Get(jobID); found {
				path := filepath.Join(dir, entry.Name())
				if err := os.Remove(path); err == nil {
					logger.Debug("janitor: orphan-evicted file", "path", path)
				}
				continue
			}

			_, err = j.store.GetJob(ctx, jobID)
			if err == nil {
				continue // job exists, not an orphan
			}
			if !isNotFound(err) {
				continue // fail safe: assume the job exists on a lookup error
			}

			j.negativeCache.SetDefault(jobID, true)
			path := filepath.Join(dir, entry.Name())
			if err := os.Remove(path); err == nil {
				logger.Debug("janitor: orphan-evicted file", "path", path)
			}
		}
	}
}

func isNotFound(err error) bool {
	return strings.Contains(err.Error(), "JOB_NOT_FOUND")
}

// heartbeatSweep closes Progress Bus sessions idle for more than 60s.
func (j *Janitor) heartbeatSweep(ctx context.Context) {
	j.bus.SweepIdle(60 * time.Second)
}
