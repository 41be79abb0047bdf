package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct{ svc *Service }

func RegisterRoutes(r gin.IRoutes, svc *Service) {
	h := &AuthHandler{svc: svc}
	r.POST("/auth/login", h.Login)
	r.POST("/auth/register", h.Register)
}

type LoginRequest struct {
	ID       string `json:"id" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RegisterRequest struct {
	ID       string `json:"id" binding:"required,min=3,max=64"`
	Password string `json:"password" binding:"required,min=8,max=72"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortJSON(c, http.StatusBadRequest, "INVALID_ARGUMENT", "invalid request")
		return
	}

	token, err := h.svc.Login(c.Request.Context(), req.ID, req.Password)
	switch {
	case err == nil:
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrAccountDisabled):
		abortJSON(c, http.StatusUnauthorized, "UNAUTHENTICATED", "IDまたはパスワードが間違っています")
		return
	default:
		slog.ErrorContext(c.Request.Context(), "login failed", "error", err)
		abortJSON(c, http.StatusInternalServerError, "INTERNAL", "login failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortJSON(c, http.StatusBadRequest, "INVALID_ARGUMENT", err.Error())
		return
	}

	if err := h.svc.Register(c.Request.Context(), req.ID, req.Password); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			abortJSON(c, http.StatusConflict, "CONFLICT", "id already exists")
			return
		}
		slog.ErrorContext(c.Request.Context(), "register failed", "error", err)
		abortJSON(c, http.StatusInternalServerError, "INTERNAL", "register failed")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": req.ID, "role": RoleCustomer})
}

func abortJSON(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": gin.H{"code": code, "message": msg}})
}
