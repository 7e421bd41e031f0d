// Package admission implements the Admission Controller: every check that
// must pass before a job ever enters the queue.
package admission

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/shirou/gopsutil/v3/disk"

	"audiolevel/internal/apperr"
	"audiolevel/internal/config"
	"audiolevel/internal/models"
	"audiolevel/internal/queue"
	"audiolevel/internal/store"
)

var allowedExtensions = map[string]bool{
	".mp3": true, ".wav": true, ".flac": true, ".m4a": true, ".aac": true,
	".ogg": true, ".opus": true, ".wma": true, ".mp4": true, ".mov": true, ".mkv": true, ".webm": true,
}

// Controller runs the admission checks for one upload request.
type Controller struct {
	cfg   *config.Config
	store store.Store
	q     *queue.Queue

	// inFlightBytes sums the overhead-scaled size of every admitted job
	// that hasn't reached a terminal state yet, so CheckDiskSpace can
	// account for concurrent reservations rather than only the single
	// file in front of it.
	inFlightBytes atomic.Int64
}

// New constructs an admission Controller.
func New(cfg *config.Config, s store.Store, q *queue.Queue) *Controller {
	return &Controller{cfg: cfg, store: s, q: q}
}

// ClientIdentifier extracts the rate-limit bucket key from a request, per
// the documented precedence order.
func ClientIdentifier(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	if r.RemoteAddr != "" {
		host := r.RemoteAddr
		if i := strings.LastIndex(host, ":"); i != -1 {
			host = host[:i]
		}
		return host
	}
	return "unknown"
}

// CheckRateLimit evaluates the sliding-window bucket. On store
// unavailability the limiter fails open.
func (c *Controller) CheckRateLimit(ctx context.Context, clientID string) (allowed bool, retryAfterSec int, err error) {
	allowed, retryAfterSec, err = c.store.CheckRateLimit(ctx, clientID, c.cfg.RateLimitWindowMS, c.cfg.RateLimitMax)
	if err != nil {
		return true, 0, nil // fail open
	}
	return allowed, retryAfterSec, nil
}

// CheckQueueGate reports whether the queue currently admits a job of the
// given priority, and the current health for reporting.
func (c *Controller) CheckQueueGate(ctx context.Context, priority models.Priority) (bool, queue.HealthReport, error) {
	health, err := c.q.Health(ctx)
	if err != nil {
		return false, health, err
	}
	return health.AdmitsPriority(priority), health, nil
}

// CheckDiskSpace verifies free disk space covers the incoming file with
// the configured overhead factor, accounting for other in-flight
// reservations.
func (c *Controller) CheckDiskSpace(path string, fileSize int64, inFlightReserved int64) error {
	usage, err := disk.Usage(path)
	if err != nil {
		return fmt.Errorf("admission: disk usage: %w", err)
	}
	needed := fileSize*int64(c.cfg.DiskOverheadRatio) + inFlightReserved
	if int64(usage.Free) < c.cfg.DiskHeadroomBytes+needed {
		return apperr.ErrInsufficientStorage
	}
	return nil
}

// InFlightReserved returns the current sum of overhead-scaled
// reservations held by jobs admitted but not yet completed, for passing
// into CheckDiskSpace.
func (c *Controller) InFlightReserved() int64 {
	return c.inFlightBytes.Load()
}

// ReserveDiskSpace records a newly admitted job's reservation. Call once
// per job, right after it is durably enqueued.
func (c *Controller) ReserveDiskSpace(fileSize int64) {
	c.inFlightBytes.Add(fileSize * int64(c.cfg.DiskOverheadRatio))
}

// ReleaseDiskSpace releases a reservation made by ReserveDiskSpace. Call
// once per job, when it reaches a terminal state (completed or failed).
func (c *Controller) ReleaseDiskSpace(fileSize int64) {
	c.inFlightBytes.Add(-fileSize * int64(c.cfg.DiskOverheadRatio))
}

// ValidateExtension checks the filename's extension against the allow-list.
func ValidateExtension(filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExtensions[ext] {
		return "", apperr.ErrInvalidFileType
	}
	return ext, nil
}

// SaveUpload streams the multipart file to disk without fully buffering
// it. It does not inspect the content; SniffContentType does that.
func (c *Controller) SaveUpload(file multipart.File, destPath string) error {
	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("admission: create upload file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, file); err != nil {
		_ = os.Remove(destPath)
		return fmt.Errorf("admission: stream upload: %w", err)
	}
	return nil
}

// SniffContentType reads the first 8 KiB of the saved upload and checks
// the detected media type belongs to an accepted family. On mismatch it
// deletes the on-disk copy, per the specification.
func (c *Controller) SniffContentType(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("admission: open for sniff: %w", err)
	}
	defer f.Close()

	buf := make([]byte, 8192)
	n, _ := f.Read(buf)
	detected := http.DetectContentType(buf[:n])

	if strings.HasPrefix(detected, "audio/") || strings.HasPrefix(detected, "video/") {
		return nil
	}

	_ = os.Remove(path)
	return apperr.ErrInvalidFormat
}
