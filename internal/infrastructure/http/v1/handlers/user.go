package handlers

import (
	"github.com/gin-gonic/gin"

	"acmesync/internal/domain/user"
	"acmesync/internal/infrastructure/http/v1/dto"
)

// UserHandler handles account management endpoints.
type UserHandler struct {
	*BaseHandler
	service *user.Service
}

// NewUserHandler creates a new user handler.
func NewUserHandler(base *BaseHandler, service *user.Service) *UserHandler {
	return &UserHandler{
		BaseHandler: base,
		service:     service,
	}
}

// Upsert handles POST /users
func (h *UserHandler) Upsert(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.UpsertUserRequest
	if !h.BindJSON(c, &req) {
		return
	}

	u, err := h.service.Upsert(ctx, req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromUser(u))
}

// RegisterRoutes registers user routes. Account management is admin-only.
func (h *UserHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Upsert)
}
