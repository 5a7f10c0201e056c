package handlers

import (
	"github.com/gin-gonic/gin"

	"acmesync/internal/domain/stock"
	"acmesync/internal/infrastructure/http/v1/dto"
)

// StockHandler handles stock level endpoints.
type StockHandler struct {
	*BaseHandler
	service *stock.Service
}

// NewStockHandler creates a new stock handler.
func NewStockHandler(base *BaseHandler, service *stock.Service) *StockHandler {
	return &StockHandler{
		BaseHandler: base,
		service:     service,
	}
}

// Adjust handles POST /stock/:productId/adjust
func (h *StockHandler) Adjust(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.AdjustStockRequest
	if !h.BindJSON(c, &req) {
		return
	}

	lvl, err := h.service.Adjust(ctx, c.Param("productId"), req.Delta, req.Reference)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, lvl)
}

// Get handles GET /stock/:productId
func (h *StockHandler) Get(c *gin.Context) {
	lvl, err := h.service.Get(c.Request.Context(), c.Param("productId"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, lvl)
}

// List handles GET /stock
func (h *StockHandler) List(c *gin.Context) {
	levels, err := h.service.List(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(levels, int64(len(levels))))
}

// RegisterRoutes registers stock routes.
func (h *StockHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.GET("/:productId", h.Get)
	rg.POST("/:productId/adjust", h.Adjust)
}
