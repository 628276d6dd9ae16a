package handler

import (
	"net/http"

	"packline/internal/apierror"
	"packline/internal/dto"
	"packline/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AuditHandler exposes the stock-vs-ledger reconciliation and the settlement
// service's balance push.
type AuditHandler struct {
	svc service.AuditService
}

func NewAuditHandler(svc service.AuditService) *AuditHandler {
	return &AuditHandler{svc: svc}
}

// Discrepancies lists every product whose packet-derived item count drifted
// from the settlement ledger.
func (h *AuditHandler) Discrepancies(c *gin.Context) {
	resp, err := h.svc.Discrepancies(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp, "count": len(resp)})
}

// UpsertBalance records the settlement service's scalar balance for one
// product. Negative balances are rejected.
func (h *AuditHandler) UpsertBalance(c *gin.Context) {
	productID, err := uuid.Parse(c.Param("product_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid product_id"))
		return
	}
	var req dto.BalanceUpsertRequest
	if !bindAndValidate(c, &req) {
		return
	}
	if err := h.svc.UpsertBalance(c.Request.Context(), productID, req.TotalItems); err != nil {
		if req.TotalItems.IsNegative() {
			c.JSON(http.StatusUnprocessableEntity, apierror.New(err.Error()))
			return
		}
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
