package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/vocab-quiz/internal/config"
	"github.com/stemsi/vocab-quiz/internal/model"
)

// SessionConfigStore keeps the config a learner chose on the settings screen
// until a session for that test starts.
type SessionConfigStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewSessionConfigStore creates a new SessionConfigStore.
func NewSessionConfigStore(rdb *redis.Client, ttl time.Duration) *SessionConfigStore {
	return &SessionConfigStore{rdb: rdb, ttl: ttl}
}

// Get returns the stored config, or nil when none was saved.
func (s *SessionConfigStore) Get(ctx context.Context, userID string, testID uuid.UUID) (*model.SessionConfig, error) {
	data, err := s.rdb.Get(ctx, config.CacheKey.SessionConfigKey(userID, testID.String())).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get session config: %w", err)
	}
	cfg := &model.SessionConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("decode session config: %w", err)
	}
	return cfg, nil
}

// Save stores cfg for the learner and test.
func (s *SessionConfigStore) Save(ctx context.Context, userID string, testID uuid.UUID, cfg model.SessionConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, config.CacheKey.SessionConfigKey(userID, testID.String()), raw, s.ttl).Err()
}
