package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/vocab-quiz/internal/engine"
	"github.com/stemsi/vocab-quiz/internal/lifecycle"
	"github.com/stemsi/vocab-quiz/internal/model"
	"github.com/stemsi/vocab-quiz/internal/response"
	"github.com/stemsi/vocab-quiz/internal/service"
)

// errorCode maps a domain error to its HTTP status and response code.
func errorCode(err error) (int, response.ErrCode) {
	switch {
	case errors.Is(err, service.ErrTestNotFound):
		return http.StatusNotFound, response.ErrTestNotFound
	case errors.Is(err, service.ErrSessionNotFound):
		return http.StatusNotFound, response.ErrSessionNotFound
	case errors.Is(err, service.ErrResultNotFound):
		return http.StatusNotFound, response.ErrResultNotFound
	case errors.Is(err, engine.ErrEmptyQuestionSet):
		return http.StatusUnprocessableEntity, response.ErrEmptyQuestionSet
	case errors.Is(err, model.ErrInvalidConfig):
		return http.StatusBadRequest, response.ErrInvalidConfig
	case errors.Is(err, engine.ErrInvalidTransition):
		return http.StatusConflict, response.ErrInvalidTransition
	case errors.Is(err, engine.ErrSessionClosed):
		return http.StatusGone, response.ErrSessionClosed
	case errors.Is(err, service.ErrNotSubmitted):
		return http.StatusConflict, response.ErrNotSubmitted
	case errors.Is(err, lifecycle.ErrNoDraft):
		return http.StatusConflict, response.ErrNoDraft
	case errors.Is(err, lifecycle.ErrPromotion):
		return http.StatusBadGateway, response.ErrPromotionFailed
	default:
		return http.StatusInternalServerError, response.ErrInternal
	}
}

// failFrom writes the error envelope for err, logging unexpected failures.
func failFrom(c *gin.Context, log zerolog.Logger, err error) {
	status, code := errorCode(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
	}
	response.Fail(c, status, code)
}

// paramUUID parses a UUID path parameter, answering INVALID_ID on failure.
func paramUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}
