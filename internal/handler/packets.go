package handler

import (
	"context"
	"net/http"
	"strconv"

	"packline/internal/dto"
	"packline/internal/middleware"
	"packline/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// PacketsHandler exposes the packet stock aggregate: replenishment, counter
// mutations, the break operation, and the audit histories.
type PacketsHandler struct {
	svc               service.PacketService
	breaks            service.BreakService
	lowStockThreshold int
}

func NewPacketsHandler(svc service.PacketService, breaks service.BreakService, lowStockThreshold int) *PacketsHandler {
	return &PacketsHandler{svc: svc, breaks: breaks, lowStockThreshold: lowStockThreshold}
}

// Replenish lands a supplier dispatch. Same (supplier, product, composition)
// accumulates into the existing aggregate; a new configuration creates one
// and queues its label.
func (h *PacketsHandler) Replenish(c *gin.Context) {
	var req dto.ReplenishRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Replenish(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *PacketsHandler) Get(c *gin.Context) {
	resp, err := h.svc.Get(c.Request.Context(), c.Param("barcode"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *PacketsHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	filter := dto.PacketFilter{
		ProductID:         c.Query("product_id"),
		SupplierID:        c.Query("supplier_id"),
		Loose:             c.Query("loose"),
		Active:            c.Query("active"),
		LowStock:          c.Query("low_stock"),
		LowStockThreshold: h.lowStockThreshold,
		Page:              page,
		Limit:             limit,
	}
	resp, err := h.svc.List(c.Request.Context(), filter)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// quantityOp factors the shared bind/dispatch shape of the quantity-only
// counter mutations.
func (h *PacketsHandler) quantityOp(c *gin.Context, op func(ctx context.Context, barcode string, quantity int) (*dto.PacketResponse, error)) {
	var req dto.QuantityRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := op(c.Request.Context(), c.Param("barcode"), req.Quantity)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *PacketsHandler) Reserve(c *gin.Context) {
	h.quantityOp(c, h.svc.Reserve)
}

func (h *PacketsHandler) Release(c *gin.Context) {
	h.quantityOp(c, h.svc.Release)
}

func (h *PacketsHandler) Sell(c *gin.Context) {
	h.quantityOp(c, h.svc.Sell)
}

func (h *PacketsHandler) ReturnSupplier(c *gin.Context) {
	h.quantityOp(c, h.svc.ReturnWholeToSupplier)
}

func (h *PacketsHandler) Restore(c *gin.Context) {
	var req dto.RestoreRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Restore(c.Request.Context(), c.Param("barcode"), req.Quantity, req.Reason)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Break opens one sealed packet: requested items leave stock, the remainder
// becomes loose.
func (h *PacketsHandler) Break(c *gin.Context) {
	var req dto.BreakRequest
	if !bindAndValidate(c, &req) {
		return
	}

	actorID := uuid.Nil
	if claims := middleware.GetClaims(c); claims != nil {
		if parsed, err := uuid.Parse(claims.UserID); err == nil {
			actorID = parsed
		}
	}

	resp, err := h.breaks.Break(c.Request.Context(), actorID, c.Param("barcode"), req)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *PacketsHandler) Deactivate(c *gin.Context) {
	if err := h.svc.Deactivate(c.Request.Context(), c.Param("barcode")); err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *PacketsHandler) Reactivate(c *gin.Context) {
	if err := h.svc.Reactivate(c.Request.Context(), c.Param("barcode")); err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *PacketsHandler) ListBreaks(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	events, total, err := h.svc.ListBreaks(c.Request.Context(), c.Param("barcode"), page, limit)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": events, "total": total, "page": page, "limit": limit})
}

func (h *PacketsHandler) ListDispatches(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	orders, total, err := h.svc.ListDispatches(c.Request.Context(), c.Param("barcode"), page, limit)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": orders, "total": total, "page": page, "limit": limit})
}
