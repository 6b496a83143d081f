package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/vocab-quiz/internal/model"
)

// TestRepository handles test metadata access.
type TestRepository struct {
	pool *pgxpool.Pool
}

// NewTestRepository creates a new TestRepository.
func NewTestRepository(pool *pgxpool.Pool) *TestRepository {
	return &TestRepository{pool: pool}
}

// GetMeta retrieves a test with its question count.
func (r *TestRepository) GetMeta(ctx context.Context, id uuid.UUID) (*model.TestMeta, error) {
	m := &model.TestMeta{}
	err := r.pool.QueryRow(ctx,
		`SELECT t.id, t.title, t.time_limit_minutes, t.difficulty, t.topic, t.subtopic, t.created_at,
		        (SELECT COUNT(*) FROM questions q WHERE q.test_id = t.id)
		 FROM tests t WHERE t.id = $1`, id,
	).Scan(&m.ID, &m.Title, &m.TimeLimitMinutes, &m.Difficulty, &m.Topic, &m.Subtopic, &m.CreatedAt, &m.TotalQuestions)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Upsert inserts a test or updates its metadata when the id exists.
func (r *TestRepository) Upsert(ctx context.Context, m *model.TestMeta) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return r.pool.QueryRow(ctx,
		`INSERT INTO tests (id, title, time_limit_minutes, difficulty, topic, subtopic)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE
		 SET title = EXCLUDED.title,
		     time_limit_minutes = EXCLUDED.time_limit_minutes,
		     difficulty = EXCLUDED.difficulty,
		     topic = EXCLUDED.topic,
		     subtopic = EXCLUDED.subtopic
		 RETURNING created_at`,
		m.ID, m.Title, m.TimeLimitMinutes, m.Difficulty, m.Topic, m.Subtopic,
	).Scan(&m.CreatedAt)
}
