package worker

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/vocab-quiz/internal/config"
	"github.com/stemsi/vocab-quiz/internal/model"
)

// AnswerEventWriter persists answer events.
type AnswerEventWriter interface {
	CopyBatch(ctx context.Context, events []*model.AnswerEvent) (int64, error)
	Insert(ctx context.Context, e *model.AnswerEvent) error
}

// AnswerEventWorker copies the answer event log into PostgreSQL.
type AnswerEventWorker struct {
	repo AnswerEventWriter
	rdb  *redis.Client
	log  zerolog.Logger
}

func NewAnswerEventWorker(repo AnswerEventWriter, rdb *redis.Client, log zerolog.Logger) *AnswerEventWorker {
	return &AnswerEventWorker{
		repo: repo,
		rdb:  rdb,
		log:  log.With().Str("component", "answer_event_worker").Logger(),
	}
}

func (w *AnswerEventWorker) Start(ctx context.Context) {
	w.log.Info().Msg("AnswerEventWorker started")
	drainQueue(ctx, w.rdb, config.WorkerKey.PersistAnswerEventsQueue, w.log, w.flushSafe)
}

// flushSafe attempts a COPY, then row-by-row inserts, then requeues.
func (w *AnswerEventWorker) flushSafe(ctx context.Context, batch []*model.AnswerEvent) {
	if len(batch) == 0 {
		return
	}
	_, err := w.repo.CopyBatch(ctx, batch)
	if err == nil {
		return
	}
	w.log.Warn().Err(err).Int("count", len(batch)).Msg("Bulk insert failed, attempting row-by-row recovery")

	var failed []*model.AnswerEvent
	for _, e := range batch {
		if err := w.repo.Insert(ctx, e); err != nil {
			w.log.Error().Err(err).Str("session_id", e.SessionID.String()).Msg("Insert failed, requeueing")
			failed = append(failed, e)
		}
	}
	requeue(ctx, w.rdb, config.WorkerKey.PersistAnswerEventsQueue, w.log, failed)
}
