package api

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"audiolevel/internal/admission"
	"audiolevel/internal/apperr"
	"audiolevel/internal/bus"
	"audiolevel/internal/models"
)

func (s *Server) handleUpload(c *gin.Context) {
	clientID := "upload:" + admission.ClientIdentifier(c.Request)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		writeAppErr(c, apperr.ErrNoFile)
		return
	}

	// Rate-limit counting happens before content-sniffing: the reference
	// behavior is that a sniff-rejected upload still consumes one slot.
	allowed, retryAfter, _ := s.admission.CheckRateLimit(c.Request.Context(), clientID)
	if !allowed {
		c.Header("Retry-After", fmt.Sprint(retryAfter))
		writeAppErr(c, apperr.ErrRateLimited)
		return
	}

	if fileHeader.Size <= 0 {
		writeAppErr(c, apperr.ErrEmptyFile)
		return
	}
	if fileHeader.Size > s.cfg.MaxFileSize {
		writeAppErr(c, apperr.ErrFileTooLarge)
		return
	}

	ext, err := admission.ValidateExtension(fileHeader.Filename)
	if err != nil {
		writeAppErr(c, err)
		return
	}

	priority := models.PriorityForSize(fileHeader.Size)
	health, queueErr := s.queue.Health(c.Request.Context())
	if queueErr == nil && !health.AdmitsPriority(priority) {
		writeAppErr(c, apperr.ErrQueueOverloaded)
		return
	}

	if err := s.admission.CheckDiskSpace(s.cfg.UploadDir, fileHeader.Size, s.admission.InFlightReserved()); err != nil {
		writeAppErr(c, err)
		return
	}

	jobID := models.NewJobID()
	inputPath := filepath.Join(s.cfg.UploadDir, fmt.Sprintf("%s-input%s", jobID, ext))
	outputPath := filepath.Join(s.cfg.OutputDir, fmt.Sprintf("%s-output%s", jobID, ext))

	file, err := fileHeader.Open()
	if err != nil {
		writeAppErr(c, apperr.ErrProcessingFailed.Wrap(err))
		return
	}
	defer file.Close()

	if err := s.admission.SaveUpload(file, inputPath); err != nil {
		writeAppErr(c, apperr.ErrProcessingFailed.Wrap(err))
		return
	}

	if err := s.admission.SniffContentType(inputPath); err != nil {
		writeAppErr(c, err)
		return
	}

	job := &models.Job{
		JobID:        jobID,
		InputPath:    inputPath,
		OutputPath:   outputPath,
		OriginalName: fileHeader.Filename,
		Extension:    ext,
		FileSize:     fileHeader.Size,
		Priority:     priority,
	}
	if err := s.queue.Enqueue(c.Request.Context(), job); err != nil {
		_ = os.Remove(inputPath)
		writeAppErr(c, apperr.ErrProcessingFailed.Wrap(err))
		return
	}
	s.admission.ReserveDiskSpace(fileHeader.Size)

	c.JSON(http.StatusCreated, gin.H{
		"jobId":             jobID,
		"status":            "queued",
		"outputFormat":      ext,
		"originalName":      fileHeader.Filename,
		"estimatedWaitTime": health.EstimatedWaitTime,
	})
}

func (s *Server) handleJobStatus(c *gin.Context) {
	id := c.Param("id")
	if !ValidJobID(id) {
		writeAppErr(c, apperr.ErrInvalidJobID)
		return
	}

	job, err := s.store.GetJob(c.Request.Context(), id)
	if err != nil {
		writeAppErr(c, apperr.ErrJobNotFound)
		return
	}

	resp := gin.H{"jobId": job.JobID, "status": job.State, "progress": job.Progress}
	if job.Result != nil {
		resp["result"] = job.Result
	}
	if job.FailedReason != "" {
		resp["error"] = job.FailedReason
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleDownload(c *gin.Context) {
	id := c.Param("id")
	if !ValidJobID(id) {
		writeAppErr(c, apperr.ErrInvalidJobID)
		return
	}

	job, err := s.store.GetJob(c.Request.Context(), id)
	if err != nil {
		writeAppErr(c, apperr.ErrJobNotFound)
		return
	}
	if job.State != models.StateCompleted || job.Result == nil {
		writeAppErr(c, apperr.ErrNotReady)
		return
	}
	if _, statErr := os.Stat(job.Result.OutputPath); statErr != nil {
		writeAppErr(c, apperr.ErrFileExpired)
		return
	}

	filename := SanitizeDownloadName(job.OriginalName, job.Extension)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.File(job.Result.OutputPath)
}

func (s *Server) handleWS(c *gin.Context) {
	bus.ServeWS(s.bus, c.Writer, c.Request)
}

func writeAppErr(c *gin.Context, err error) {
	if ae, ok := err.(*apperr.Error); ok {
		c.JSON(ae.Status, gin.H{"error": ae.Code, "message": ae.Message})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL", "message": err.Error()})
}
