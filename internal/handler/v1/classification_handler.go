package v1

import (
	"github.com/gin-gonic/gin"

	"github.com/radvia/faturamento/internal/service"
)

type ClassificationHandler struct {
	classificationSvc *service.ClassificationService
}

func NewClassificationHandler(classificationSvc *service.ClassificationService) *ClassificationHandler {
	return &ClassificationHandler{classificationSvc: classificationSvc}
}

// Run re-runs tipificação synchronously and returns the counts. An empty
// body reclassifies every record that still carries a stale or missing tag.
func (h *ClassificationHandler) Run(c *gin.Context) {
	var req service.ClassificationRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}

	result, err := h.classificationSvc.Run(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, result)
}
