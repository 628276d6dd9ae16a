package handler

import (
	"net/http"

	"packline/internal/apierror"
	"packline/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// MasterDataHandler serves the read-only product and supplier views.
type MasterDataHandler struct {
	svc service.MasterDataService
}

func NewMasterDataHandler(svc service.MasterDataService) *MasterDataHandler {
	return &MasterDataHandler{svc: svc}
}

func (h *MasterDataHandler) ListProducts(c *gin.Context) {
	resp, err := h.svc.ListProducts(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *MasterDataHandler) GetProduct(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid id"))
		return
	}
	resp, err := h.svc.GetProduct(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *MasterDataHandler) ListSuppliers(c *gin.Context) {
	resp, err := h.svc.ListSuppliers(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *MasterDataHandler) GetSupplier(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid id"))
		return
	}
	resp, err := h.svc.GetSupplier(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
