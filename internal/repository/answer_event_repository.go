package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/vocab-quiz/internal/model"
)

// AnswerEventRepository stores the analytics log of locked answers.
type AnswerEventRepository struct {
	pool *pgxpool.Pool
}

// NewAnswerEventRepository creates a new AnswerEventRepository.
func NewAnswerEventRepository(pool *pgxpool.Pool) *AnswerEventRepository {
	return &AnswerEventRepository{pool: pool}
}

var answerEventColumns = []string{
	"session_id", "test_id", "user_id", "question_id", "selected_labels",
	"correctness", "forced", "time_spent_seconds", "recorded_at",
}

// CopyBatch bulk-inserts events with the COPY protocol.
func (r *AnswerEventRepository) CopyBatch(ctx context.Context, events []*model.AnswerEvent) (int64, error) {
	return r.pool.CopyFrom(ctx,
		pgx.Identifier{"answer_events"},
		answerEventColumns,
		pgx.CopyFromSlice(len(events), func(i int) ([]any, error) {
			e := events[i]
			return []any{
				e.SessionID, e.TestID, e.UserID, e.QuestionID, e.SelectedLabels,
				string(e.Correctness), e.Forced, e.TimeSpentSeconds, time.Unix(e.RecordedAt, 0),
			}, nil
		}),
	)
}

// Insert writes a single event.
func (r *AnswerEventRepository) Insert(ctx context.Context, e *model.AnswerEvent) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO answer_events (session_id, test_id, user_id, question_id, selected_labels,
		                            correctness, forced, time_spent_seconds, recorded_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.SessionID, e.TestID, e.UserID, e.QuestionID, e.SelectedLabels,
		string(e.Correctness), e.Forced, e.TimeSpentSeconds, time.Unix(e.RecordedAt, 0))
	return err
}
