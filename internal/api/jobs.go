package api

import (
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/datacite/lupo-sub003/infrastructure/logger"
	"github.com/datacite/lupo-sub003/internal/domain"
	"github.com/datacite/lupo-sub003/internal/job"
	"github.com/datacite/lupo-sub003/internal/query"
	"github.com/datacite/lupo-sub003/internal/worker"
)

// EnqueueRequest is the body of POST /api/v1/jobs.
type EnqueueRequest struct {
	Operation string   `json:"operation" binding:"required"`
	Args      job.Args `json:"args"`
}

// EnqueueJob handles POST /api/v1/jobs.
func (h *Handler) EnqueueJob(c *gin.Context) {
	var req EnqueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body: " + err.Error(),
			"code":  CodeInvalidInput,
		})
		return
	}

	if !slices.Contains(worker.Operations(), req.Operation) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "unknown operation " + req.Operation,
			"code":  CodeInvalidInput,
		})
		return
	}

	j, err := h.enqueuer.Enqueue(c.Request.Context(), worker.QueueFor(req.Operation), req.Operation, req.Args)
	if err != nil {
		h.logger.Error("Failed to enqueue job",
			logger.Operation(req.Operation),
			logger.Error(err),
		)
		code, status := classify(err)
		c.JSON(status, gin.H{"error": "failed to enqueue job", "code": code})
		return
	}

	h.logger.Info("Job enqueued",
		logger.JobID(j.ID),
		logger.Operation(j.Operation),
		logger.String("queue", j.Queue),
	)
	c.JSON(http.StatusAccepted, j)
}

// GetJob handles GET /api/v1/jobs/:id.
func (h *Handler) GetJob(c *gin.Context) {
	id := c.Param("id")
	j, err := h.jobs.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found", "code": CodeNotFound})
			return
		}
		h.logger.Error("Failed to load job", logger.JobID(id), logger.Error(err))
		code, status := classify(err)
		c.JSON(status, gin.H{"error": "failed to load job", "code": code})
		return
	}
	c.JSON(http.StatusOK, j)
}

var jobStatuses = []job.Status{
	job.StatusQueued, job.StatusRunning, job.StatusSucceeded, job.StatusRetrying, job.StatusFailed,
}

// ListJobs handles GET /api/v1/jobs. Paging is by offset; page[number] is
// clamped so the scan stays within the result window.
func (h *Handler) ListJobs(c *gin.Context) {
	status := job.Status(strings.TrimSpace(c.Query("status")))
	if status != "" && !slices.Contains(jobStatuses, status) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "unknown status " + string(status),
			"code":  CodeInvalidInput,
		})
		return
	}

	size := query.ClampPageSize(optionalInt(c.Query("page[size]")))
	number := 1
	if n := optionalInt(c.Query("page[number]")); n != nil {
		number = *n
	}
	number = query.ClampPageNumber(number, size)

	jobs, err := h.jobs.List(c.Request.Context(), status, size, (number-1)*size)
	if err != nil {
		h.logger.Error("Failed to list jobs", logger.Error(err))
		code, httpStatus := classify(err)
		c.JSON(httpStatus, gin.H{"error": "failed to list jobs", "code": code})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"jobs": jobs,
		"meta": gin.H{"page": number, "size": size},
	})
}

// Operations handles GET /api/v1/jobs/operations.
func (h *Handler) Operations(c *gin.Context) {
	ops := worker.Operations()
	queues := make(map[string]string, len(ops))
	for _, op := range ops {
		queues[op] = worker.QueueFor(op)
	}
	c.JSON(http.StatusOK, gin.H{"operations": queues})
}

// JobStats handles GET /api/v1/jobs/stats.
func (h *Handler) JobStats(c *gin.Context) {
	counts, err := h.jobs.CountByStatus(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to count jobs", logger.Error(err))
		code, status := classify(err)
		c.JSON(status, gin.H{"error": "failed to count jobs", "code": code})
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": counts})
}
