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
	"github.com/stemsi/vocab-quiz/internal/validator"
)

// ConfigStore persists the config chosen on the settings screen.
type ConfigStore interface {
	Get(ctx context.Context, userID string, testID uuid.UUID) (*model.SessionConfig, error)
	Save(ctx context.Context, userID string, testID uuid.UUID, cfg model.SessionConfig) error
}

// TestMetaReader reads test metadata.
type TestMetaReader interface {
	FetchTestMeta(ctx context.Context, testID uuid.UUID) (*model.TestMeta, error)
}

// ConfigHandler serves the session config storage.
type ConfigHandler struct {
	configs ConfigStore
	tests   TestMetaReader
	log     zerolog.Logger
}

// NewConfigHandler creates a new ConfigHandler.
func NewConfigHandler(configs ConfigStore, tests TestMetaReader, log zerolog.Logger) *ConfigHandler {
	return &ConfigHandler{
		configs: configs,
		tests:   tests,
		log:     log.With().Str("component", "config_handler").Logger(),
	}
}

type configResponse struct {
	Config model.SessionConfig `json:"config"`
	Stored bool                `json:"stored"`
}

// GetConfig godoc
// GET /api/v1/tests/:test_id/config
// Returns the stored config, or the defaults derived from the test.
func (h *ConfigHandler) GetConfig(c *gin.Context) {
	testID, ok := paramUUID(c, "test_id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	meta, err := h.tests.FetchTestMeta(ctx, testID)
	if err != nil {
		failFrom(c, h.log, err)
		return
	}

	stored, err := h.configs.Get(ctx, middleware.CurrentUser(c), testID)
	if err != nil {
		failFrom(c, h.log, err)
		return
	}
	if stored == nil {
		response.Success(c, http.StatusOK, configResponse{Config: model.DefaultSessionConfig(meta)})
		return
	}
	response.Success(c, http.StatusOK, configResponse{Config: *stored, Stored: true})
}

// SaveConfig godoc
// PUT /api/v1/tests/:test_id/config
func (h *ConfigHandler) SaveConfig(c *gin.Context) {
	testID, ok := paramUUID(c, "test_id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	var req model.SessionConfigRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	cfg, err := req.ToConfig()
	if err != nil {
		failFrom(c, h.log, err)
		return
	}

	if _, err := h.tests.FetchTestMeta(ctx, testID); err != nil {
		failFrom(c, h.log, err)
		return
	}
	if err := h.configs.Save(ctx, middleware.CurrentUser(c), testID, cfg); err != nil {
		failFrom(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, configResponse{Config: cfg, Stored: true})
}
