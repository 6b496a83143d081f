package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/vocab-quiz/internal/config"
	"github.com/stemsi/vocab-quiz/internal/model"
	"github.com/stemsi/vocab-quiz/internal/repository"
)

var (
	// ErrResultNotFound is returned when a result id matches nothing.
	ErrResultNotFound = errors.New("result not found")
	// ErrInvalidStatus rejects any status change other than draft to active.
	ErrInvalidStatus = errors.New("invalid result status transition")
)

// ResultStore is the fast lane for results: writes land in Redis and on the
// persist queue, and ResultWorker flushes them to PostgreSQL.
type ResultStore struct {
	repo *repository.ResultRepository
	rdb  *redis.Client
	ttl  time.Duration
	log  zerolog.Logger
	now  func() time.Time
}

// NewResultStore creates a new ResultStore.
func NewResultStore(repo *repository.ResultRepository, rdb *redis.Client, ttl time.Duration, log zerolog.Logger) *ResultStore {
	return &ResultStore{
		repo: repo,
		rdb:  rdb,
		ttl:  ttl,
		log:  log.With().Str("component", "result_store").Logger(),
		now:  time.Now,
	}
}

// CreateDraft stores payload as a new draft and returns its id.
func (s *ResultStore) CreateDraft(ctx context.Context, payload model.ResultPayload) (uuid.UUID, error) {
	now := s.now().UTC()
	rec := &model.ResultRecord{
		ID:            uuid.New(),
		ResultPayload: payload,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	rec.Status = model.ResultStatusDraft

	if err := s.write(ctx, rec); err != nil {
		return uuid.Nil, fmt.Errorf("create draft: %w", err)
	}
	return rec.ID, nil
}

// SetStatus moves a draft to active. Setting active on an active result is a
// no-op.
func (s *ResultStore) SetStatus(ctx context.Context, id uuid.UUID, status model.ResultStatus) error {
	if status != model.ResultStatusActive {
		return fmt.Errorf("%w: %s", ErrInvalidStatus, status)
	}
	rec, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if rec.Status == model.ResultStatusActive {
		return nil
	}
	rec.Status = model.ResultStatusActive
	rec.UpdatedAt = s.now().UTC()
	if err := s.write(ctx, rec); err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	return nil
}

// GetByID reads a result from Redis, then PostgreSQL.
func (s *ResultStore) GetByID(ctx context.Context, id uuid.UUID) (*model.ResultRecord, error) {
	key := config.CacheKey.ResultKey(id.String())

	data, err := s.rdb.Get(ctx, key).Bytes()
	if err == nil {
		rec := &model.ResultRecord{}
		if err := json.Unmarshal(data, rec); err == nil {
			return rec, nil
		}
		s.log.Warn().Str("result_id", id.String()).Msg("Corrupt cached result, reading database")
	} else if !errors.Is(err, redis.Nil) {
		s.log.Warn().Err(err).Str("result_id", id.String()).Msg("Result cache read failed, reading database")
	}

	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrResultNotFound
		}
		return nil, fmt.Errorf("get result: %w", err)
	}

	if raw, err := json.Marshal(rec); err == nil {
		_ = s.rdb.Set(ctx, key, raw, s.ttl).Err()
	}
	return rec, nil
}

// write caches rec and queues it for persistence atomically.
func (s *ResultStore) write(ctx context.Context, rec *model.ResultRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, config.CacheKey.ResultKey(rec.ID.String()), raw, s.ttl)
	pipe.RPush(ctx, config.WorkerKey.PersistResultsQueue, raw)
	_, err = pipe.Exec(ctx)
	return err
}
