package handler

import (
	"net/http"

	"packline/internal/apierror"
	"packline/internal/dto"
	"packline/internal/middleware"
	"packline/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ReturnsHandler exposes the return adjustment planner: dry-run planning,
// transactional execution, and the availability summary.
type ReturnsHandler struct {
	planner service.ReturnPlanner
}

func NewReturnsHandler(planner service.ReturnPlanner) *ReturnsHandler {
	return &ReturnsHandler{planner: planner}
}

// Plan computes the adjustment sequence a request would execute, committing
// nothing. A plan that cannot be satisfied returns 422 with the per-variant
// shortfall.
func (h *ReturnsHandler) Plan(c *gin.Context) {
	var req dto.ReturnRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.planner.Plan(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Execute re-plans against current state and applies every adjustment inside
// one transaction. All-or-nothing: a shortfall or lost race rolls the whole
// return back.
func (h *ReturnsHandler) Execute(c *gin.Context) {
	var req dto.ReturnRequest
	if !bindAndValidate(c, &req) {
		return
	}

	actorID := uuid.Nil
	if claims := middleware.GetClaims(c); claims != nil {
		if parsed, err := uuid.Parse(claims.UserID); err == nil {
			actorID = parsed
		}
	}

	resp, err := h.planner.Execute(c.Request.Context(), actorID, req)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Summary reports per-variant availability for a (product, supplier) pair.
func (h *ReturnsHandler) Summary(c *gin.Context) {
	productID, err := uuid.Parse(c.Query("product_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid product_id"))
		return
	}
	supplierID, err := uuid.Parse(c.Query("supplier_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid supplier_id"))
		return
	}
	resp, err := h.planner.Summary(c.Request.Context(), productID, supplierID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
