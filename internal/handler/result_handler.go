package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/vocab-quiz/internal/middleware"
	"github.com/stemsi/vocab-quiz/internal/model"
	"github.com/stemsi/vocab-quiz/internal/response"
	"github.com/stemsi/vocab-quiz/internal/service"
)

// ResultReader reads stored results.
type ResultReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.ResultRecord, error)
}

// ResultHandler serves stored results.
type ResultHandler struct {
	results ResultReader
	log     zerolog.Logger
}

// NewResultHandler creates a new ResultHandler.
func NewResultHandler(results ResultReader, log zerolog.Logger) *ResultHandler {
	return &ResultHandler{
		results: results,
		log:     log.With().Str("component", "result_handler").Logger(),
	}
}

// GetResult godoc
// GET /api/v1/results/:result_id
// Only the learner who produced the result can read it.
func (h *ResultHandler) GetResult(c *gin.Context) {
	resultID, ok := paramUUID(c, "result_id")
	if !ok {
		return
	}

	rec, err := h.results.GetByID(c.Request.Context(), resultID)
	if err != nil {
		failFrom(c, h.log, err)
		return
	}
	if rec.UserID != middleware.CurrentUser(c) {
		failFrom(c, h.log, service.ErrResultNotFound)
		return
	}

	response.Success(c, http.StatusOK, rec)
}
