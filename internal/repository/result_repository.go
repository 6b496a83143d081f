package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/vocab-quiz/internal/model"
)

// ResultRepository handles persisted result access. Writes normally arrive
// through the result worker; the repository serves reads and single-row
// fallbacks.
type ResultRepository struct {
	pool *pgxpool.Pool
}

// NewResultRepository creates a new ResultRepository.
func NewResultRepository(pool *pgxpool.Pool) *ResultRepository {
	return &ResultRepository{pool: pool}
}

// GetByID retrieves a result that has not been soft-deleted.
func (r *ResultRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.ResultRecord, error) {
	rec := &model.ResultRecord{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, test_id, user_id, answers, score, correct_answers, total_questions,
		        time_taken, status, created_at, updated_at
		 FROM results WHERE id = $1 AND deleted_at IS NULL`, id,
	).Scan(&rec.ID, &rec.TestID, &rec.UserID, &rec.Answers, &rec.Score, &rec.CorrectAnswers,
		&rec.TotalQuestions, &rec.TimeTaken, &rec.Status, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Upsert writes one result. A stored active result never goes back to draft.
func (r *ResultRepository) Upsert(ctx context.Context, rec *model.ResultRecord) error {
	_, err := r.pool.Exec(ctx, upsertResultSQL,
		rec.ID, rec.TestID, rec.UserID, rec.Answers, rec.Score, rec.CorrectAnswers,
		rec.TotalQuestions, rec.TimeTaken, rec.Status, rec.CreatedAt, rec.UpdatedAt)
	return err
}

// UpsertBatch writes many results in one statement using UNNEST.
func (r *ResultRepository) UpsertBatch(ctx context.Context, recs []*model.ResultRecord) error {
	n := len(recs)
	ids := make([]uuid.UUID, n)
	testIDs := make([]uuid.UUID, n)
	userIDs := make([]string, n)
	answers := make([]string, n)
	scores := make([]int32, n)
	corrects := make([]int32, n)
	totals := make([]int32, n)
	taken := make([]int32, n)
	statuses := make([]string, n)
	created := make([]time.Time, n)
	updated := make([]time.Time, n)

	for i, rec := range recs {
		ids[i] = rec.ID
		testIDs[i] = rec.TestID
		userIDs[i] = rec.UserID
		raw, err := json.Marshal(rec.Answers)
		if err != nil {
			return err
		}
		answers[i] = string(raw)
		scores[i] = int32(rec.Score)
		corrects[i] = int32(rec.CorrectAnswers)
		totals[i] = int32(rec.TotalQuestions)
		taken[i] = int32(rec.TimeTaken)
		statuses[i] = string(rec.Status)
		created[i] = rec.CreatedAt
		updated[i] = rec.UpdatedAt
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO results (id, test_id, user_id, answers, score, correct_answers,
		                     total_questions, time_taken, status, created_at, updated_at)
		SELECT u.id, u.test_id, u.user_id, u.answers::jsonb, u.score, u.correct_answers,
		       u.total_questions, u.time_taken, u.status, u.created_at, u.updated_at
		FROM UNNEST(
			$1::uuid[], $2::uuid[], $3::text[], $4::text[], $5::int[], $6::int[],
			$7::int[], $8::int[], $9::text[], $10::timestamptz[], $11::timestamptz[]
		) AS u(id, test_id, user_id, answers, score, correct_answers,
		       total_questions, time_taken, status, created_at, updated_at)
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status,
		    updated_at = EXCLUDED.updated_at
		WHERE results.status = 'draft'
	`, ids, testIDs, userIDs, answers, scores, corrects, totals, taken, statuses, created, updated)
	return err
}

const upsertResultSQL = `
	INSERT INTO results (id, test_id, user_id, answers, score, correct_answers,
	                     total_questions, time_taken, status, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	ON CONFLICT (id) DO UPDATE
	SET status = EXCLUDED.status,
	    updated_at = EXCLUDED.updated_at
	WHERE results.status = 'draft'`

// IsNotFound reports whether err means no row matched.
func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
