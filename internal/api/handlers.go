package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/RishiKendai/cellguard/internal/config"
	"github.com/RishiKendai/cellguard/internal/models"
	"github.com/RishiKendai/cellguard/internal/plagiarism"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// StatusReader returns the latest step of a check
type StatusReader interface {
	Get(ctx context.Context, documentVersionID string) (models.Step, error)
}

// Handler holds dependencies for handlers
type Handler struct {
	cfg            *config.Config
	service        *plagiarism.Service
	status         StatusReader
	computeSem     chan struct{} // Semaphore for bounded concurrency
	computeTimeout time.Duration
	acquireTimeout time.Duration
}

// NewHandler creates a new handler
func NewHandler(
	cfg *config.Config,
	service *plagiarism.Service,
	status StatusReader,
) *Handler {
	// Create semaphore for bounded concurrency
	sem := make(chan struct{}, cfg.MaxConcurrentChecks)

	return &Handler{
		cfg:            cfg,
		service:        service,
		status:         status,
		computeSem:     sem,
		computeTimeout: cfg.ComputationTimeout,
		acquireTimeout: 30 * time.Second,
	}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
	})
}

// Check compares a version against its checkpoint siblings and returns the matches
func (h *Handler) Check(c *gin.Context) {
	var req models.CheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	language, threshold, err := h.checkParams(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: err.Error(),
			Code:  "INVALID_REQUEST",
		})
		return
	}

	ctx := c.Request.Context()

	// Acquire semaphore (bounded concurrency)
	acquire := time.NewTimer(h.acquireTimeout)
	defer acquire.Stop()
	select {
	case h.computeSem <- struct{}{}:
		defer func() { <-h.computeSem }()
	case <-acquire.C:
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: "Too many checks in progress",
			Code:  "BUSY",
		})
		return
	case <-ctx.Done():
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: "Too many checks in progress",
			Code:  "BUSY",
		})
		return
	}

	checkCtx, cancel := context.WithTimeout(ctx, h.computeTimeout)
	defer cancel()

	result, err := h.service.Check(checkCtx, req.DocVersionID, language, threshold)
	if err != nil {
		// A timed out check still returns what it compared
		if result != nil && result.Incomplete && errors.Is(err, context.DeadlineExceeded) {
			log.Warn().Err(err).Str("documentVersionId", req.DocVersionID).Msg("Check incomplete")
			c.JSON(http.StatusOK, result)
			return
		}
		log.Error().Err(err).Str("documentVersionId", req.DocVersionID).Msg("Check failed")
		status, body := errorResponse(err)
		c.JSON(status, body)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Explain scores two raw fragments and reports their shared token runs
func (h *Handler) Explain(c *gin.Context) {
	var req models.ExplainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	language := strings.TrimSpace(req.Language)
	if language == "" {
		language = h.cfg.DefaultLanguage
	}

	resp, err := plagiarism.Explain(h.service.Tokenizer(), req.SourceA, req.SourceB, language)
	if err != nil {
		status, body := errorResponse(err)
		c.JSON(status, body)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Status returns the latest step of a version's check
func (h *Handler) Status(c *gin.Context) {
	versionID := c.Param("versionId")

	step, err := h.status.Get(c.Request.Context(), versionID)
	if err != nil {
		status, body := errorResponse(err)
		c.JSON(status, body)
		return
	}

	c.JSON(http.StatusOK, models.StatusResponse{
		DocVersionID: versionID,
		Step:         step,
	})
}

func (h *Handler) checkParams(req models.CheckRequest) (string, float64, error) {
	if strings.TrimSpace(req.DocVersionID) == "" {
		return "", 0, fmt.Errorf("doc_version_id is required")
	}

	language := strings.TrimSpace(req.Language)
	if language == "" {
		language = h.cfg.DefaultLanguage
	}

	threshold := h.cfg.DefaultThreshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}

	return language, threshold, nil
}

// errorResponse maps service errors to HTTP responses
func errorResponse(err error) (int, ErrorResponse) {
	switch {
	case errors.Is(err, plagiarism.ErrUnsupportedLanguage):
		return http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "UNSUPPORTED_LANGUAGE"}
	case errors.Is(err, plagiarism.ErrInvalidThreshold):
		return http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_THRESHOLD"}
	case errors.Is(err, plagiarism.ErrNotFound):
		return http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "NOT_FOUND"}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, ErrorResponse{Error: "Check timed out", Code: "TIMEOUT"}
	default:
		return http.StatusInternalServerError, ErrorResponse{Error: "Internal server error", Code: "INTERNAL_ERROR"}
	}
}
