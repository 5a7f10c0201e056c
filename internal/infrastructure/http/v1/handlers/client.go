package handlers

import (
	"github.com/gin-gonic/gin"

	"acmesync/internal/domain/client"
	"acmesync/internal/infrastructure/http/v1/dto"
)

// ClientHandler handles client catalog endpoints.
type ClientHandler struct {
	*BaseHandler
	service *client.Service
}

// NewClientHandler creates a new client handler.
func NewClientHandler(base *BaseHandler, service *client.Service) *ClientHandler {
	return &ClientHandler{
		BaseHandler: base,
		service:     service,
	}
}

// Upsert handles POST /clients
func (h *ClientHandler) Upsert(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.UpsertClientRequest
	if !h.BindJSON(c, &req) {
		return
	}

	result, err := h.service.Upsert(ctx, req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, result)
}

// Get handles GET /clients/:id
func (h *ClientHandler) Get(c *gin.Context) {
	result, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, result)
}

// List handles GET /clients
func (h *ClientHandler) List(c *gin.Context) {
	items, err := h.service.List(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(items, int64(len(items))))
}

// RegisterRoutes registers client routes.
func (h *ClientHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Upsert)
	rg.GET("", h.List)
	rg.GET("/:id", h.Get)
}
