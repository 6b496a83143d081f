package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/vocab-quiz/internal/engine"
	"github.com/stemsi/vocab-quiz/internal/middleware"
	"github.com/stemsi/vocab-quiz/internal/model"
	"github.com/stemsi/vocab-quiz/internal/response"
	"github.com/stemsi/vocab-quiz/internal/service"
	"github.com/stemsi/vocab-quiz/internal/validator"
)

// SessionRunner is the part of service.SessionService the handlers drive.
type SessionRunner interface {
	Start(ctx context.Context, userID string, testID uuid.UUID, req *model.SessionConfigRequest) (engine.Snapshot, error)
	Dispatch(ctx context.Context, sessionID uuid.UUID, userID string, in engine.Intent) (engine.Snapshot, error)
	Snapshot(ctx context.Context, sessionID uuid.UUID, userID string) (engine.Snapshot, error)
	Subscribe(ctx context.Context, sessionID uuid.UUID, userID string) (<-chan engine.Snapshot, func(), error)
	Abandon(ctx context.Context, sessionID uuid.UUID, userID string) error
	Result(ctx context.Context, sessionID uuid.UUID, userID string) (*service.Review, error)
	Promote(ctx context.Context, sessionID uuid.UUID, userID string) (*service.Review, error)
}

// SessionHandler exposes the session lifecycle over REST.
type SessionHandler struct {
	sessions SessionRunner
	log      zerolog.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessions SessionRunner, log zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		log:      log.With().Str("component", "session_handler").Logger(),
	}
}

// StartSession godoc
// POST /api/v1/tests/:test_id/sessions
// Starts a session. Without a body the stored config (or the test defaults) is used.
func (h *SessionHandler) StartSession(c *gin.Context) {
	userID := middleware.CurrentUser(c)
	if userID == "" {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	testID, ok := paramUUID(c, "test_id")
	if !ok {
		return
	}

	var req model.StartSessionRequest
	if _, fields := validator.BindOptional(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	snap, err := h.sessions.Start(c.Request.Context(), userID, testID, req.Config)
	if err != nil {
		failFrom(c, h.log, err)
		return
	}

	response.Success(c, http.StatusCreated, snap)
}

// GetSession godoc
// GET /api/v1/sessions/:session_id
func (h *SessionHandler) GetSession(c *gin.Context) {
	sessionID, ok := paramUUID(c, "session_id")
	if !ok {
		return
	}

	snap, err := h.sessions.Snapshot(c.Request.Context(), sessionID, middleware.CurrentUser(c))
	if err != nil {
		failFrom(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, snap)
}

// ApplyAction godoc
// POST /api/v1/sessions/:session_id/actions
// Applies one learner intent. A rejected intent answers 409 with the
// unchanged snapshot.
func (h *SessionHandler) ApplyAction(c *gin.Context) {
	sessionID, ok := paramUUID(c, "session_id")
	if !ok {
		return
	}

	var req model.SessionActionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	in := engine.Intent{Action: engine.Action(req.Action), Label: req.Label}
	snap, err := h.sessions.Dispatch(c.Request.Context(), sessionID, middleware.CurrentUser(c), in)
	if errors.Is(err, engine.ErrInvalidTransition) {
		response.FailWithData(c, http.StatusConflict, response.ErrInvalidTransition, snap)
		return
	}
	if err != nil {
		failFrom(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, snap)
}

// AbandonSession godoc
// DELETE /api/v1/sessions/:session_id
func (h *SessionHandler) AbandonSession(c *gin.Context) {
	sessionID, ok := paramUUID(c, "session_id")
	if !ok {
		return
	}

	if err := h.sessions.Abandon(c.Request.Context(), sessionID, middleware.CurrentUser(c)); err != nil {
		failFrom(c, h.log, err)
		return
	}
	response.NoContent(c)
}

// GetResult godoc
// GET /api/v1/sessions/:session_id/result
// Returns the compiled result from memory, whether or not the draft persisted.
func (h *SessionHandler) GetResult(c *gin.Context) {
	sessionID, ok := paramUUID(c, "session_id")
	if !ok {
		return
	}

	review, err := h.sessions.Result(c.Request.Context(), sessionID, middleware.CurrentUser(c))
	if err != nil {
		failFrom(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, review)
}

// PromoteResult godoc
// POST /api/v1/sessions/:session_id/promote
// Confirms the draft result. Safe to retry.
func (h *SessionHandler) PromoteResult(c *gin.Context) {
	sessionID, ok := paramUUID(c, "session_id")
	if !ok {
		return
	}

	review, err := h.sessions.Promote(c.Request.Context(), sessionID, middleware.CurrentUser(c))
	if err != nil {
		failFrom(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, review)
}
