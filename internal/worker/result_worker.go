package worker

import (
	"context"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/vocab-quiz/internal/config"
	"github.com/stemsi/vocab-quiz/internal/model"
)

// ResultWriter persists result records.
type ResultWriter interface {
	UpsertBatch(ctx context.Context, recs []*model.ResultRecord) error
	Upsert(ctx context.Context, rec *model.ResultRecord) error
}

// ResultWorker flushes results queued by the result store into PostgreSQL.
type ResultWorker struct {
	repo ResultWriter
	rdb  *redis.Client
	log  zerolog.Logger
}

func NewResultWorker(repo ResultWriter, rdb *redis.Client, log zerolog.Logger) *ResultWorker {
	return &ResultWorker{
		repo: repo,
		rdb:  rdb,
		log:  log.With().Str("component", "result_worker").Logger(),
	}
}

func (w *ResultWorker) Start(ctx context.Context) {
	w.log.Info().Msg("ResultWorker started")
	drainQueue(ctx, w.rdb, config.WorkerKey.PersistResultsQueue, w.log, w.flushSafe)
}

// flushSafe tries one batch upsert, then row by row, then requeues.
func (w *ResultWorker) flushSafe(ctx context.Context, batch []*model.ResultRecord) {
	batch = dedupeResults(batch)
	if len(batch) == 0 {
		return
	}

	err := w.repo.UpsertBatch(ctx, batch)
	if err == nil {
		w.log.Debug().Int("count", len(batch)).Msg("Results persisted")
		return
	}
	w.log.Warn().Err(err).Int("count", len(batch)).Msg("Bulk result upsert failed, using fallback")

	var failed []*model.ResultRecord
	for _, rec := range batch {
		if err := w.repo.Upsert(ctx, rec); err != nil {
			w.log.Error().Err(err).Str("result_id", rec.ID.String()).Msg("Result upsert failed, requeueing")
			failed = append(failed, rec)
		}
	}
	requeue(ctx, w.rdb, config.WorkerKey.PersistResultsQueue, w.log, failed)
}

// dedupeResults keeps one record per id. An active record wins over a draft
// of the same result; otherwise the latest update wins.
func dedupeResults(batch []*model.ResultRecord) []*model.ResultRecord {
	byID := make(map[uuid.UUID]int, len(batch))
	out := make([]*model.ResultRecord, 0, len(batch))
	for _, rec := range batch {
		if rec == nil || rec.ID == uuid.Nil {
			continue
		}
		i, seen := byID[rec.ID]
		if !seen {
			byID[rec.ID] = len(out)
			out = append(out, rec)
			continue
		}
		cur := out[i]
		if cur.Status == model.ResultStatusActive && rec.Status != model.ResultStatusActive {
			continue
		}
		if (rec.Status == model.ResultStatusActive && cur.Status != model.ResultStatusActive) ||
			rec.UpdatedAt.After(cur.UpdatedAt) {
			out[i] = rec
		}
	}
	return out
}
