package v1

import (
	"github.com/gin-gonic/gin"

	"github.com/radvia/faturamento/internal/service"
)

type PipelineHandler struct {
	svc *service.PipelineService
}

func NewPipelineHandler(svc *service.PipelineService) *PipelineHandler {
	return &PipelineHandler{svc: svc}
}

type triggerRunRequest struct {
	SourceBatchID   string `json:"source_batch_id" binding:"required"`
	ReferencePeriod string `json:"reference_period" binding:"required"`
	Retroactive     bool   `json:"retroactive"`
}

type triggerRunResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// TriggerRun dispatches a pipeline run and returns 202 with the job id; the
// caller polls GetJob for the outcome.
func (h *PipelineHandler) TriggerRun(c *gin.Context) {
	var req triggerRunRequest
	if !bindJSON(c, &req) {
		return
	}

	j, err := h.svc.TriggerRun(c.Request.Context(), req.SourceBatchID, req.ReferencePeriod, req.Retroactive)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondAccepted(c, triggerRunResponse{
		JobID:  j.ID.String(),
		Status: string(j.Status),
	})
}

func (h *PipelineHandler) GetJob(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	j, err := h.svc.GetJob(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, j)
}

func (h *PipelineHandler) ListJobs(c *gin.Context) {
	batchID := c.Query("batch")
	if batchID == "" {
		respondError(c, 400, "query parameter batch is required")
		return
	}

	jobs, err := h.svc.ListJobs(c.Request.Context(), batchID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, jobs)
}
