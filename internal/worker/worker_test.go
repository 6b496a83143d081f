package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/vocab-quiz/internal/model"
)

func record(id uuid.UUID, status model.ResultStatus, at time.Time) *model.ResultRecord {
	rec := &model.ResultRecord{ID: id, UpdatedAt: at}
	rec.Status = status
	return rec
}

func TestDedupeResults(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	t0 := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	out := dedupeResults([]*model.ResultRecord{
		record(a, model.ResultStatusDraft, t0),
		record(b, model.ResultStatusDraft, t0),
		record(a, model.ResultStatusActive, t0.Add(time.Second)),
		// A late draft of an active result must not win.
		record(a, model.ResultStatusDraft, t0.Add(2*time.Second)),
		nil,
	})

	if len(out) != 2 {
		t.Fatalf("expected 2 records, got %d", len(out))
	}
	if out[0].ID != a || out[0].Status != model.ResultStatusActive {
		t.Errorf("expected active record for a, got %+v", out[0])
	}
	if out[1].ID != b {
		t.Errorf("order not preserved, got %s", out[1].ID)
	}
}

type fakeResultWriter struct {
	batchErr error
	rowErr   map[uuid.UUID]error
	batches  int
	rows     []uuid.UUID
}

func (f *fakeResultWriter) UpsertBatch(ctx context.Context, recs []*model.ResultRecord) error {
	f.batches++
	return f.batchErr
}

func (f *fakeResultWriter) Upsert(ctx context.Context, rec *model.ResultRecord) error {
	f.rows = append(f.rows, rec.ID)
	return f.rowErr[rec.ID]
}

func TestResultWorkerFallback(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	now := time.Now()
	batch := []*model.ResultRecord{record(a, model.ResultStatusDraft, now), record(b, model.ResultStatusDraft, now)}

	t.Run("BatchSucceeds", func(t *testing.T) {
		repo := &fakeResultWriter{}
		NewResultWorker(repo, nil, zerolog.Nop()).flushSafe(context.Background(), batch)
		if repo.batches != 1 || len(repo.rows) != 0 {
			t.Errorf("expected a single batch write, got %d batches %d rows", repo.batches, len(repo.rows))
		}
	})

	t.Run("RowByRow", func(t *testing.T) {
		repo := &fakeResultWriter{batchErr: errors.New("deadlock detected")}
		NewResultWorker(repo, nil, zerolog.Nop()).flushSafe(context.Background(), batch)
		if len(repo.rows) != 2 {
			t.Errorf("expected fallback for both rows, got %v", repo.rows)
		}
	})
}

type fakeEventWriter struct {
	copyErr error
	copied  int
	inserts int
}

func (f *fakeEventWriter) CopyBatch(ctx context.Context, events []*model.AnswerEvent) (int64, error) {
	if f.copyErr != nil {
		return 0, f.copyErr
	}
	f.copied += len(events)
	return int64(len(events)), nil
}

func (f *fakeEventWriter) Insert(ctx context.Context, e *model.AnswerEvent) error {
	f.inserts++
	return nil
}

func TestAnswerEventWorkerFallback(t *testing.T) {
	batch := []*model.AnswerEvent{{SessionID: uuid.New()}, {SessionID: uuid.New()}, {SessionID: uuid.New()}}

	repo := &fakeEventWriter{}
	w := NewAnswerEventWorker(repo, nil, zerolog.Nop())
	w.flushSafe(context.Background(), batch)
	if repo.copied != 3 || repo.inserts != 0 {
		t.Errorf("expected COPY of 3, got copied=%d inserts=%d", repo.copied, repo.inserts)
	}

	repo = &fakeEventWriter{copyErr: errors.New("conn closed")}
	w = NewAnswerEventWorker(repo, nil, zerolog.Nop())
	w.flushSafe(context.Background(), batch)
	if repo.inserts != 3 {
		t.Errorf("expected 3 fallback inserts, got %d", repo.inserts)
	}
}
