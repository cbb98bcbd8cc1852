package handlers

import (
	"net/http"

	"github.com/batisuivi/situations-api/internal/services"
	"github.com/gin-gonic/gin"
)

type JobHandler struct {
	jobService *services.JobService
}

func NewJobHandler(jobSvc *services.JobService) *JobHandler {
	return &JobHandler{
		jobService: jobSvc,
	}
}

// Status returns the current worker status
// @Summary Get background job status
// @Description Worker statistics and the last run of each scheduled job
// @Tags Jobs
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Router /jobs/status [get]
func (h *JobHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.jobService.GetStatus())
}

// Reconcile queues a reconciliation pass over pending and partial statements
// @Summary Trigger statement reconciliation
// @Description Replays the missing snapshot writes of stale statements in the background
// @Tags Jobs
// @Produce json
// @Security BearerAuth
// @Success 202 {object} map[string]interface{}
// @Router /jobs/reconcile [post]
func (h *JobHandler) Reconcile(c *gin.Context) {
	h.jobService.TriggerReconcile()
	c.JSON(http.StatusAccepted, gin.H{"job": services.JobReconcileStatements, "status": "queued"})
}
