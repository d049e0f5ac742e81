package httptransport

import (
	"context"
	"fmt"
	"net/http"

	"github.com/fiapx/fiapx-pose-service/internal/domain/entity"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Extractor runs the pose pipeline for one video URL.
type Extractor interface {
	Execute(ctx context.Context, videoURL string) (*entity.Result, error)
}

type Handler struct {
	extractor Extractor
	logger    *zap.Logger
}

func NewHandler(extractor Extractor, logger *zap.Logger) *Handler {
	return &Handler{extractor: extractor, logger: logger}
}

// Extract answers with the full Result on success and {"error": msg} with
// status 500 on any failure, a malformed body included.
func (h *Handler) Extract(c *gin.Context) {
	var req entity.ExtractionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("malformed extraction request", zap.Error(err))
		c.JSON(http.StatusInternalServerError, entity.ErrorResponse{
			Error: fmt.Sprintf("%v: %v", entity.ErrInvalidRequest, err),
		})
		return
	}

	result, err := h.extractor.Execute(c.Request.Context(), req.VideoURL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, entity.ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}
