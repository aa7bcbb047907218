package handlers

import (
	"net/http"
	"strings"
	"time"

	"fungiscan/internal/apperr"
	"fungiscan/internal/models"
	"fungiscan/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AuthHandler struct {
	service service.AuthService
	log     *zap.Logger
}

func NewAuthHandler(service service.AuthService, log *zap.Logger) *AuthHandler {
	return &AuthHandler{service: service, log: log}
}

type credentialsRequest struct {
	Username string `json:"username" binding:"required,max=150"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.log, apperr.Validation("username and password are required, username at most %d characters", models.MaxUsernameLength))
		return
	}

	if err := h.service.Register(c.Request.Context(), req.Username, req.Password); err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"status": "ok"})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.log, apperr.ErrInvalidCredentials)
		return
	}

	session, err := h.service.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"token":      session.Token,
		"username":   session.Username,
		"expires_at": session.ExpiresAt.Format(time.RFC3339),
	})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.service.Logout(c.Request.Context(), bearerToken(c)); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// bearerToken returns the token from "Authorization: Bearer <token>", or "".
func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
