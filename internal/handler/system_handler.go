package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/vocab-quiz/internal/config"
	"github.com/stemsi/vocab-quiz/internal/response"
)

const statusTimeout = 2 * time.Second

// Pinger checks a backing store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ActiveCounter reports the number of running sessions.
type ActiveCounter interface {
	Active() int
}

// SystemHandler reports liveness and runtime status.
type SystemHandler struct {
	db        Pinger
	rdb       *redis.Client
	sessions  ActiveCounter
	startTime time.Time
	log       zerolog.Logger
}

// NewSystemHandler creates a new SystemHandler.
func NewSystemHandler(db Pinger, rdb *redis.Client, sessions ActiveCounter, log zerolog.Logger) *SystemHandler {
	return &SystemHandler{
		db:        db,
		rdb:       rdb,
		sessions:  sessions,
		startTime: time.Now(),
		log:       log.With().Str("component", "system_handler").Logger(),
	}
}

type systemStatus struct {
	Status   string `json:"status"`
	Uptime   string `json:"uptime"`
	Postgres string `json:"postgres"`
	Redis    string `json:"redis"`

	ActiveSessions int    `json:"active_sessions"`
	Goroutines     int    `json:"goroutines"`
	HeapAlloc      uint64 `json:"heap_alloc"`
	NumGC          uint32 `json:"num_gc"`
	GoVersion      string `json:"go_version"`

	QueueResults      int64 `json:"queue_results"`
	QueueAnswerEvents int64 `json:"queue_answer_events"`
}

// Health godoc
// GET /health
func (h *SystemHandler) Health(c *gin.Context) {
	response.Success(c, http.StatusOK, gin.H{"status": "ok"})
}

// Status godoc
// GET /api/v1/system/status
// Answers 503 when a backing store is unreachable.
func (h *SystemHandler) Status(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), statusTimeout)
	defer cancel()

	s := systemStatus{
		Status:    "ok",
		Uptime:    time.Since(h.startTime).Truncate(time.Second).String(),
		Postgres:  "ok",
		Redis:     "ok",
		GoVersion: runtime.Version(),
	}

	if h.db != nil {
		if err := h.db.Ping(ctx); err != nil {
			h.log.Warn().Err(err).Msg("PostgreSQL ping failed")
			s.Postgres, s.Status = "down", "degraded"
		}
	}

	if h.rdb != nil {
		// Worker queues (pipelined LLEN).
		pipe := h.rdb.Pipeline()
		resultsCmd := pipe.LLen(ctx, config.WorkerKey.PersistResultsQueue)
		eventsCmd := pipe.LLen(ctx, config.WorkerKey.PersistAnswerEventsQueue)
		if _, err := pipe.Exec(ctx); err != nil {
			h.log.Warn().Err(err).Msg("Redis status check failed")
			s.Redis, s.Status = "down", "degraded"
		} else {
			s.QueueResults, _ = resultsCmd.Result()
			s.QueueAnswerEvents, _ = eventsCmd.Result()
		}
	}

	if h.sessions != nil {
		s.ActiveSessions = h.sessions.Active()
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	s.Goroutines = runtime.NumGoroutine()
	s.HeapAlloc = ms.HeapAlloc
	s.NumGC = ms.NumGC

	status := http.StatusOK
	if s.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	response.Success(c, status, s)
}
