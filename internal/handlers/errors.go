package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"fungiscan/internal/apperr"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorResponse is the body of every non-upstream error.
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondError is the only place typed errors become HTTP statuses.
func respondError(c *gin.Context, log *zap.Logger, err error) {
	var upstream *apperr.UpstreamError
	var transport *apperr.TransportError

	switch {
	case errors.As(err, &upstream):
		log.Warn("upstream inference error", zap.Int("upstream_status", upstream.StatusCode))
		if json.Valid(upstream.Payload) {
			c.Data(http.StatusInternalServerError, "application/json; charset=utf-8", upstream.Payload)
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: string(upstream.Payload)})
	case errors.Is(err, apperr.ErrValidation):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.Is(err, apperr.ErrTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: err.Error()})
	case errors.Is(err, apperr.ErrConflict):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "username already exists"})
	case errors.Is(err, apperr.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid credentials"})
	case errors.As(err, &transport), errors.Is(err, apperr.ErrEmptyCompletion):
		log.Error("inference unavailable", zap.Error(err))
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: "inference service unavailable"})
	case errors.Is(err, apperr.ErrBusy):
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "too many analyses in progress, try again"})
	case errors.Is(err, apperr.ErrStoreUnavailable):
		log.Error("store unavailable", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "storage unavailable, try again"})
	case errors.Is(err, apperr.ErrMissingCredential):
		log.Error("inference credential missing", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	default:
		log.Error("unhandled error", zap.Error(err), zap.String("path", c.FullPath()))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}
