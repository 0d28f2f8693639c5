package v1

import (
	"github.com/gin-gonic/gin"

	"github.com/radvia/faturamento/internal/domain/exam"
	"github.com/radvia/faturamento/internal/service"
)

type IngestHandler struct {
	svc *service.IngestService
}

func NewIngestHandler(svc *service.IngestService) *IngestHandler {
	return &IngestHandler{svc: svc}
}

type ingestRequest struct {
	SourceBatchID string        `json:"source_batch_id" binding:"required"`
	Rows          []exam.RawRow `json:"rows" binding:"required"`
}

// Ingest admits the ordered rows the upload/column-mapping UI produced.
func (h *IngestHandler) Ingest(c *gin.Context) {
	var req ingestRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.svc.IngestBatch(c.Request.Context(), req.SourceBatchID, req.Rows)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondCreated(c, result)
}
