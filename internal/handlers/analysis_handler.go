package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"fungiscan/internal/apperr"
	"fungiscan/internal/repository"
	"fungiscan/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// DefaultMaxUploadBytes caps an uploaded image when no limit is configured.
const DefaultMaxUploadBytes = 20 << 20

// multipartOverhead is the room left in the request body for form fields and part headers.
const multipartOverhead = 1 << 20

type AnalysisHandler struct {
	analysis  service.AnalysisService
	auth      service.AuthService
	maxUpload int64
	log       *zap.Logger
}

func NewAnalysisHandler(analysis service.AnalysisService, auth service.AuthService, maxUploadBytes int64, log *zap.Logger) *AnalysisHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	return &AnalysisHandler{analysis: analysis, auth: auth, maxUpload: maxUploadBytes, log: log}
}

// AnalyzeImage accepts a multipart upload with a required "image" file and an optional "username".
func (h *AnalysisHandler) AnalyzeImage(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload+multipartOverhead)

	header, err := c.FormFile("image")
	var bodyTooLarge *http.MaxBytesError
	if errors.As(err, &bodyTooLarge) {
		respondError(c, h.log, h.tooLarge())
		return
	}
	if err != nil {
		respondError(c, h.log, apperr.Validation("image file is required"))
		return
	}
	if header.Size > h.maxUpload {
		respondError(c, h.log, h.tooLarge())
		return
	}

	file, err := header.Open()
	if err != nil {
		respondError(c, h.log, apperr.Validation("unreadable image: %v", err))
		return
	}
	defer file.Close()

	image, err := io.ReadAll(io.LimitReader(file, h.maxUpload+1))
	if err != nil {
		respondError(c, h.log, apperr.Validation("unreadable image: %v", err))
		return
	}
	if int64(len(image)) > h.maxUpload {
		respondError(c, h.log, h.tooLarge())
		return
	}

	record, err := h.analysis.Analyze(c.Request.Context(), h.username(c), image)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, record)
}

func (h *AnalysisHandler) tooLarge() error {
	return fmt.Errorf("%w: image must be at most %d bytes", apperr.ErrTooLarge, h.maxUpload)
}

// username prefers a valid session over the form field.
func (h *AnalysisHandler) username(c *gin.Context) string {
	if token := bearerToken(c); token != "" {
		username, err := h.auth.Resolve(c.Request.Context(), token)
		if err == nil {
			return username
		}
		if !errors.Is(err, apperr.ErrInvalidCredentials) {
			h.log.Warn("session lookup failed, using form username", zap.Error(err))
		}
	}
	return c.PostForm("username")
}

func (h *AnalysisHandler) History(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(repository.DefaultHistoryLimit)))
	if err != nil {
		limit = repository.DefaultHistoryLimit
	}

	records, err := h.analysis.History(c.Request.Context(), c.Query("username"), limit)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, records)
}

func (h *AnalysisHandler) Export(c *gin.Context) {
	file, err := h.analysis.Export(c.Request.Context(), c.Query("username"), c.DefaultQuery("format", "xlsx"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	c.Data(http.StatusOK, file.ContentType, file.Data)
}
