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

// ErrTestNotFound is returned when a test id matches nothing.
var ErrTestNotFound = errors.New("test not found")

// QuestionBankService serves question banks and test metadata from Redis,
// falling back to PostgreSQL and refilling the cache.
type QuestionBankService struct {
	questionRepo *repository.QuestionRepository
	testRepo     *repository.TestRepository
	rdb          *redis.Client
	ttl          time.Duration
	log          zerolog.Logger
}

// NewQuestionBankService creates a new QuestionBankService.
func NewQuestionBankService(
	questionRepo *repository.QuestionRepository,
	testRepo *repository.TestRepository,
	rdb *redis.Client,
	ttl time.Duration,
	log zerolog.Logger,
) *QuestionBankService {
	return &QuestionBankService{
		questionRepo: questionRepo,
		testRepo:     testRepo,
		rdb:          rdb,
		ttl:          ttl,
		log:          log.With().Str("component", "question_bank").Logger(),
	}
}

// FetchQuestions returns the raw bank of a test in authoring order.
func (s *QuestionBankService) FetchQuestions(ctx context.Context, testID uuid.UUID) ([]model.Question, error) {
	key := config.CacheKey.TestQuestionsKey(testID.String())

	var questions []model.Question
	hit, err := s.getJSON(ctx, key, &questions)
	if err != nil {
		s.log.Warn().Err(err).Str("test_id", testID.String()).Msg("Question cache read failed, using database")
	}
	if hit {
		return questions, nil
	}

	questions, err = s.questionRepo.ListByTest(ctx, testID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	s.setJSON(ctx, key, questions)
	return questions, nil
}

// FetchTestMeta returns the metadata of a test.
func (s *QuestionBankService) FetchTestMeta(ctx context.Context, testID uuid.UUID) (*model.TestMeta, error) {
	key := config.CacheKey.TestMetaKey(testID.String())

	meta := &model.TestMeta{}
	hit, err := s.getJSON(ctx, key, meta)
	if err != nil {
		s.log.Warn().Err(err).Str("test_id", testID.String()).Msg("Test meta cache read failed, using database")
	}
	if hit {
		return meta, nil
	}

	meta, err = s.testRepo.GetMeta(ctx, testID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("get test meta: %w", err)
	}
	s.setJSON(ctx, key, meta)
	return meta, nil
}

// Invalidate drops the cached bank and metadata of a test.
func (s *QuestionBankService) Invalidate(ctx context.Context, testID uuid.UUID) error {
	return s.rdb.Del(ctx,
		config.CacheKey.TestQuestionsKey(testID.String()),
		config.CacheKey.TestMetaKey(testID.String()),
	).Err()
}

func (s *QuestionBankService) getJSON(ctx context.Context, key string, dst any) (bool, error) {
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (s *QuestionBankService) setJSON(ctx context.Context, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := s.rdb.Set(ctx, key, raw, s.ttl).Err(); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Failed to fill cache")
	}
}
