package v1

import (
	"github.com/gin-gonic/gin"

	"github.com/radvia/faturamento/internal/service"
)

type BillingHandler struct {
	billingSvc *service.BillingService
}

func NewBillingHandler(billingSvc *service.BillingService) *BillingHandler {
	return &BillingHandler{billingSvc: billingSvc}
}

type computeRequest struct {
	Period         string `json:"period" binding:"required"`
	ForceRecompute bool   `json:"force_recompute"`
}

// Compute runs the billing computation engine for a period. Cached
// statements are returned unchanged unless force_recompute is set.
func (h *BillingHandler) Compute(c *gin.Context) {
	var req computeRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.billingSvc.Compute(c.Request.Context(), req.Period, req.ForceRecompute)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, result)
}

// ListDemonstrativos serves the persisted statements of a period, read-only,
// for the reporting layer.
func (h *BillingHandler) ListDemonstrativos(c *gin.Context) {
	period := c.Query("period")

	ds, err := h.billingSvc.ListDemonstrativos(c.Request.Context(), period)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, ds)
}
