package handlers

import (
	"github.com/gin-gonic/gin"

	"acmesync/internal/core/apperror"
	appctx "acmesync/internal/core/context"
	"acmesync/internal/domain/auth"
	"acmesync/internal/domain/user"
	"acmesync/internal/infrastructure/http/v1/dto"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	*BaseHandler
	users *user.Service
	jwt   *auth.JWTService
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(base *BaseHandler, users *user.Service, jwt *auth.JWTService) *AuthHandler {
	return &AuthHandler{
		BaseHandler: base,
		users:       users,
		jwt:         jwt,
	}
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.LoginRequest
	if !h.BindJSON(c, &req) {
		return
	}

	u, err := h.users.Authenticate(ctx, req.Username, req.Password)
	if err != nil {
		h.Error(c, err)
		return
	}

	token, expiresAt, err := h.jwt.GenerateAccessToken(u.Username, u.Role)
	if err != nil {
		h.Error(c, apperror.NewInternal(err))
		return
	}

	h.OK(c, dto.LoginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt,
		User:        dto.FromUser(u),
	})
}

// Me handles GET /auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	userCtx := appctx.GetUser(c.Request.Context())
	if userCtx == nil {
		h.Error(c, apperror.NewUnauthorized("not authenticated"))
		return
	}

	h.OK(c, gin.H{
		"username": userCtx.Username,
		"role":     userCtx.Role,
	})
}
