package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yunusdemirbag/dolphinmanager-sub002/internal/api/dto"
	"github.com/yunusdemirbag/dolphinmanager-sub002/internal/listing"
	"github.com/yunusdemirbag/dolphinmanager-sub002/internal/queue"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// SubmitJob handles POST /api/v1/jobs
// Decodes and validates the payload up front, then enqueues the job and
// returns 202 with its id. Processing happens asynchronously.
func (h *JobHandler) SubmitJob(c *gin.Context) {
	var req dto.SubmitJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid job submission", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	jobType := queue.JobType(req.JobType)
	payload, err := queue.DecodePayload(jobType, req.Payload)
	if err != nil {
		if errors.Is(err, queue.ErrUnknownJobType) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown job type: " + req.JobType})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload: " + err.Error()})
		return
	}

	job, err := h.manager.AddJob(c.Request.Context(), req.ShopID, jobType, payload)
	if err != nil {
		var vErr *listing.ValidationError
		if errors.As(err, &vErr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Error()})
			return
		}

		h.logger.Error("failed to enqueue job",
			slog.String("shop_id", req.ShopID),
			slog.String("job_type", req.JobType),
			slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enqueue job"})
		return
	}

	h.logger.Info("job accepted",
		slog.String("job_id", job.ID),
		slog.String("shop_id", job.ShopID),
		slog.String("job_type", string(job.Type)))

	c.JSON(http.StatusAccepted, dto.SubmitJobResponse{
		JobID:  job.ID,
		Status: string(job.Status),
	})
}

// GetJob handles GET /api/v1/jobs/:job_id
// For a running batch job the result field carries a progress snapshot.
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID := c.Param("job_id")
	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id format"})
		return
	}

	job, err := h.manager.GetJob(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, queue.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}

		h.logger.Error("failed to get job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get job"})
		return
	}

	c.JSON(http.StatusOK, toJobDTO(job))
}

// ListJobs handles GET /api/v1/jobs
// Supports filtering by shop_id, job_type and status, with cursor pagination.
func (h *JobHandler) ListJobs(c *gin.Context) {
	var req dto.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters: " + err.Error()})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = defaultPageSize
	}
	if req.PageSize > maxPageSize {
		req.PageSize = maxPageSize
	}

	cursor, err := DecodeJobCursor(req.Cursor)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid cursor"})
		return
	}

	filter := queue.ListFilter{
		ShopID:   req.ShopID,
		Type:     queue.JobType(req.JobType),
		Status:   queue.JobStatus(req.Status),
		PageSize: req.PageSize,
		Cursor:   cursor,
	}

	jobs, err := h.repo.List(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list jobs", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list jobs"})
		return
	}

	resp := dto.ListJobsResponse{Jobs: make([]dto.JobDTO, 0, len(jobs))}

	// The repository returns up to PageSize+1 rows so we can tell whether
	// another page exists without a count query.
	hasMore := len(jobs) > req.PageSize
	if hasMore {
		jobs = jobs[:req.PageSize]
	}

	for i := range jobs {
		resp.Jobs = append(resp.Jobs, toJobDTO(&jobs[i]))
	}

	if hasMore && len(jobs) > 0 {
		last := jobs[len(jobs)-1]
		resp.NextCursor = EncodeJobCursor(&queue.Cursor{
			CreatedAt: last.CreatedAt,
			JobID:     last.ID,
		})
	}

	c.JSON(http.StatusOK, resp)
}

func toJobDTO(job *queue.Job) dto.JobDTO {
	d := dto.JobDTO{
		JobID:             job.ID,
		ShopID:            job.ShopID,
		JobType:           string(job.Type),
		Status:            string(job.Status),
		Result:            job.Result,
		Error:             job.ErrorMessage,
		ExternalListingID: job.ExternalListingID,
		RetryCount:        job.RetryCount,
		MaxRetries:        job.MaxRetries,
		CreatedAt:         job.CreatedAt.Format(time.RFC3339),
	}
	if job.StartedAt != nil {
		d.StartedAt = job.StartedAt.Format(time.RFC3339)
	}
	if job.CompletedAt != nil {
		d.CompletedAt = job.CompletedAt.Format(time.RFC3339)
	}
	return d
}
