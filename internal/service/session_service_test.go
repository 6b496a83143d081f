package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/vocab-quiz/internal/engine"
	"github.com/stemsi/vocab-quiz/internal/lifecycle"
	"github.com/stemsi/vocab-quiz/internal/model"
)

// idleTicker never fires, so timers stay frozen during these tests.
type idleTicker struct{}

func (idleTicker) C() <-chan time.Time { return nil }
func (idleTicker) Stop()               {}

func newIdleTicker(time.Duration) engine.Ticker { return idleTicker{} }

type fakeProvider struct {
	meta *model.TestMeta
	bank []model.Question
}

func (f *fakeProvider) FetchQuestions(ctx context.Context, testID uuid.UUID) ([]model.Question, error) {
	return f.bank, nil
}

func (f *fakeProvider) FetchTestMeta(ctx context.Context, testID uuid.UUID) (*model.TestMeta, error) {
	if f.meta == nil || f.meta.ID != testID {
		return nil, ErrTestNotFound
	}
	return f.meta, nil
}

type fakeConfigs struct {
	cfg *model.SessionConfig
}

func (f *fakeConfigs) Get(ctx context.Context, userID string, testID uuid.UUID) (*model.SessionConfig, error) {
	return f.cfg, nil
}

type memResults struct {
	mu        sync.Mutex
	records   map[uuid.UUID]model.ResultRecord
	creates   int
	setCalls  int
	createErr error
}

func (m *memResults) CreateDraft(ctx context.Context, payload model.ResultPayload) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
	if m.createErr != nil {
		return uuid.Nil, m.createErr
	}
	id := uuid.New()
	m.records[id] = model.ResultRecord{ID: id, ResultPayload: payload}
	return id, nil
}

func (m *memResults) SetStatus(ctx context.Context, id uuid.UUID, status model.ResultStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setCalls++
	rec := m.records[id]
	rec.Status = status
	m.records[id] = rec
	return nil
}

func (m *memResults) GetByID(ctx context.Context, id uuid.UUID) (*model.ResultRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, ErrResultNotFound
	}
	return &rec, nil
}

type memEvents struct {
	mu     sync.Mutex
	events []model.AnswerEvent
}

func (m *memEvents) Publish(ctx context.Context, events []model.AnswerEvent) error {
	m.mu.Lock()
	m.events = append(m.events, events...)
	m.mu.Unlock()
	return nil
}

func (m *memEvents) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

type fixture struct {
	svc      *SessionService
	provider *fakeProvider
	configs  *fakeConfigs
	results  *memResults
	events   *memEvents
	testID   uuid.UUID
	now      time.Time
	nowMu    sync.Mutex
}

func (f *fixture) clock() time.Time {
	f.nowMu.Lock()
	defer f.nowMu.Unlock()
	return f.now
}

func (f *fixture) advance(d time.Duration) {
	f.nowMu.Lock()
	f.now = f.now.Add(d)
	f.nowMu.Unlock()
}

func newFixture(t *testing.T, n int) *fixture {
	t.Helper()
	testID := uuid.New()
	bank := make([]model.Question, n)
	for i := range bank {
		bank[i] = model.Question{
			ID:            uuid.New(),
			TestID:        testID,
			Prompt:        fmt.Sprintf("word %d", i+1),
			Options:       []model.Option{{Label: "A", Text: "yes"}, {Label: "B", Text: "no"}},
			CorrectLabels: []string{"A"},
		}
	}
	f := &fixture{
		provider: &fakeProvider{
			meta: &model.TestMeta{ID: testID, Title: "Animals", TotalQuestions: n, TimeLimitMinutes: 10},
			bank: bank,
		},
		configs: &fakeConfigs{},
		results: &memResults{records: make(map[uuid.UUID]model.ResultRecord)},
		events:  &memEvents{},
		testID:  testID,
		now:     time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
	}
	f.svc = NewSessionService(f.provider, f.configs, f.results, f.events, SessionServiceOptions{
		IdleTimeout:               5 * time.Minute,
		DefaultPerQuestionSeconds: 15,
		Ticker:                    newIdleTicker,
		Now:                       f.clock,
		Seed:                      func() (uint64, uint64) { return 1, 2 },
	}, zerolog.Nop())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = f.svc.Shutdown(ctx)
	})
	return f
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStartConfigResolution(t *testing.T) {
	ctx := context.Background()

	t.Run("DefaultsFromMeta", func(t *testing.T) {
		f := newFixture(t, 3)
		snap, err := f.svc.Start(ctx, "u1", f.testID, nil)
		if err != nil {
			t.Fatalf("start: %v", err)
		}
		if snap.Mode != model.ModeFlexible || snap.RemainingGlobalSeconds == nil || *snap.RemainingGlobalSeconds != 600 {
			t.Errorf("expected flexible with a 600s global timer, got %+v", snap)
		}
		if snap.Ordinal != "1/3" {
			t.Errorf("default config shows the ordinal, got %q", snap.Ordinal)
		}
	})

	t.Run("StoredConfig", func(t *testing.T) {
		f := newFixture(t, 3)
		f.configs.cfg = &model.SessionConfig{
			Mode:        model.PerQuestionTimer{PerQuestionSeconds: 8},
			CheckTiming: model.CheckAfterEach,
		}
		snap, err := f.svc.Start(ctx, "u1", f.testID, nil)
		if err != nil {
			t.Fatalf("start: %v", err)
		}
		if snap.Mode != model.ModePerQuestionTimer || *snap.RemainingQuestionSeconds != 8 {
			t.Errorf("stored config ignored: %+v", snap)
		}
		if snap.RemainingGlobalSeconds != nil {
			t.Error("stored config has no global timer")
		}
	})

	t.Run("RequestWithDefaultSeconds", func(t *testing.T) {
		f := newFixture(t, 3)
		req := &model.SessionConfigRequest{Mode: "per_question_timer", CheckTiming: "after_each"}
		snap, err := f.svc.Start(ctx, "u1", f.testID, req)
		if err != nil {
			t.Fatalf("start: %v", err)
		}
		if *snap.RemainingQuestionSeconds != 15 {
			t.Errorf("expected default 15s per question, got %d", *snap.RemainingQuestionSeconds)
		}
	})

	t.Run("UnknownTest", func(t *testing.T) {
		f := newFixture(t, 3)
		if _, err := f.svc.Start(ctx, "u1", uuid.New(), nil); !errors.Is(err, ErrTestNotFound) {
			t.Errorf("expected ErrTestNotFound, got %v", err)
		}
	})

	t.Run("EmptyBank", func(t *testing.T) {
		f := newFixture(t, 0)
		if _, err := f.svc.Start(ctx, "u1", f.testID, nil); !errors.Is(err, engine.ErrEmptyQuestionSet) {
			t.Errorf("expected ErrEmptyQuestionSet, got %v", err)
		}
		if f.svc.Active() != 0 {
			t.Error("failed start must not register a session")
		}
	})
}

func TestSessionLifecycle(t *testing.T) {
	f := newFixture(t, 3)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.svc.Run(ctx, time.Hour)

	snap, err := f.svc.Start(ctx, "u1", f.testID, nil)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	id := snap.SessionID

	if _, err := f.svc.Snapshot(ctx, id, "intruder"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("other learner: expected ErrSessionNotFound, got %v", err)
	}
	if _, err := f.svc.Result(ctx, id, "u1"); !errors.Is(err, ErrNotSubmitted) {
		t.Errorf("early result: expected ErrNotSubmitted, got %v", err)
	}

	if _, err := f.svc.Dispatch(ctx, id, "u1", engine.Intent{Action: engine.ActionSelect, Label: "A"}); err != nil {
		t.Fatalf("select: %v", err)
	}
	if _, err := f.svc.Dispatch(ctx, id, "u1", engine.Intent{Action: engine.ActionRetreat}); !errors.Is(err, engine.ErrInvalidTransition) {
		t.Errorf("retreat on first question: expected ErrInvalidTransition, got %v", err)
	}
	for i := 0; i < 2; i++ {
		snap, err = f.svc.Dispatch(ctx, id, "u1", engine.Intent{Action: engine.ActionSubmit})
		if err != nil {
			t.Fatalf("submit #%d: %v", i+1, err)
		}
	}
	if snap.State != engine.StateSubmitted {
		t.Fatalf("expected submitted, got %s", snap.State)
	}

	review, err := f.svc.Result(ctx, id, "u1")
	if err != nil {
		t.Fatalf("result: %v", err)
	}
	if review.Result.Stats.Correct != 1 || review.Result.Stats.Unanswered != 2 || review.Result.Percentage != 33 {
		t.Errorf("unexpected result %+v", review.Result.Stats)
	}

	waitFor(t, "draft", func() bool {
		r, err := f.svc.Result(ctx, id, "u1")
		return err == nil && r.Lifecycle.DraftPersisted
	})

	for i := 0; i < 2; i++ {
		review, err = f.svc.Promote(ctx, id, "u1")
		if err != nil {
			t.Fatalf("promote #%d: %v", i+1, err)
		}
	}
	if !review.Lifecycle.Promoted || review.Lifecycle.ResultID == nil {
		t.Errorf("unexpected lifecycle %+v", review.Lifecycle)
	}
	f.results.mu.Lock()
	creates, sets := f.results.creates, f.results.setCalls
	status := f.results.records[*review.Lifecycle.ResultID].Status
	f.results.mu.Unlock()
	if creates != 1 || sets != 1 || status != model.ResultStatusActive {
		t.Errorf("expected one draft and one promotion, got %d creates %d sets status %s", creates, sets, status)
	}

	waitFor(t, "answer events", func() bool { return f.events.count() == 3 })
}

func TestDraftFailureKeepsReview(t *testing.T) {
	f := newFixture(t, 2)
	f.results.createErr = errors.New("redis down")
	ctx := context.Background()

	snap, err := f.svc.Start(ctx, "u1", f.testID, nil)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	id := snap.SessionID
	_, _ = f.svc.Dispatch(ctx, id, "u1", engine.Intent{Action: engine.ActionSelect, Label: "B"})
	if _, err := f.svc.Dispatch(ctx, id, "u1", engine.Intent{Action: engine.ActionSubmit}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	waitFor(t, "draft failure", func() bool {
		r, err := f.svc.Result(ctx, id, "u1")
		return err == nil && r.Lifecycle.Draft == lifecycle.DraftFailed
	})

	review, err := f.svc.Result(ctx, id, "u1")
	if err != nil {
		t.Fatalf("result: %v", err)
	}
	if review.Result == nil || review.Lifecycle.DraftPersisted {
		t.Errorf("review should come from memory, got %+v", review.Lifecycle)
	}
	if _, err := f.svc.Promote(ctx, id, "u1"); !errors.Is(err, lifecycle.ErrNoDraft) {
		t.Errorf("expected ErrNoDraft, got %v", err)
	}
}

func TestAbandonDiscardsSession(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	snap, err := f.svc.Start(ctx, "u1", f.testID, nil)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	id := snap.SessionID

	stream, unsubscribe, err := f.svc.Subscribe(ctx, id, "u1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer unsubscribe()
	if first := <-stream; first.SessionID != id {
		t.Fatal("stream should start with the current snapshot")
	}

	_, _ = f.svc.Dispatch(ctx, id, "u1", engine.Intent{Action: engine.ActionSelect, Label: "A"})
	if err := f.svc.Abandon(ctx, id, "u1"); err != nil {
		t.Fatalf("abandon: %v", err)
	}

	var last engine.Snapshot
	for s := range stream {
		last = s
	}
	if last.State != engine.StateAbandoned {
		t.Errorf("stream should end on the abandoned snapshot, got %s", last.State)
	}
	if f.svc.Active() != 0 {
		t.Error("abandoned session still registered")
	}
	if _, err := f.svc.Snapshot(ctx, id, "u1"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
	f.results.mu.Lock()
	creates := f.results.creates
	f.results.mu.Unlock()
	if creates != 0 {
		t.Error("abandonment must not create a draft")
	}
}

func TestEvictIdle(t *testing.T) {
	f := newFixture(t, 2)
	f.configs.cfg = &model.SessionConfig{Mode: model.Flexible{}, CheckTiming: model.CheckAfterSubmit}
	ctx := context.Background()

	idle, err := f.svc.Start(ctx, "u1", f.testID, nil)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	f.advance(3 * time.Minute)
	busy, err := f.svc.Start(ctx, "u2", f.testID, nil)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	f.advance(3 * time.Minute)
	if n := f.svc.EvictIdle(f.clock()); n != 1 {
		t.Fatalf("expected one eviction, got %d", n)
	}
	if _, err := f.svc.Snapshot(ctx, idle.SessionID, "u1"); !errors.Is(err, ErrSessionNotFound) {
		t.Error("idle session should be gone")
	}
	if _, err := f.svc.Snapshot(ctx, busy.SessionID, "u2"); err != nil {
		t.Errorf("recent session evicted: %v", err)
	}
}

func TestEvictIdleKeepsActiveSessions(t *testing.T) {
	ctx := context.Background()

	t.Run("SnapshotCountsAsActivity", func(t *testing.T) {
		f := newFixture(t, 2)
		f.configs.cfg = &model.SessionConfig{Mode: model.Flexible{}, CheckTiming: model.CheckAfterSubmit}
		snap, err := f.svc.Start(ctx, "u1", f.testID, nil)
		if err != nil {
			t.Fatalf("start: %v", err)
		}
		for i := 0; i < 6; i++ {
			f.advance(time.Minute)
			if _, err := f.svc.Snapshot(ctx, snap.SessionID, "u1"); err != nil {
				t.Fatalf("snapshot at minute %d: %v", i+1, err)
			}
		}
		if n := f.svc.EvictIdle(f.clock()); n != 0 {
			t.Fatalf("polled session evicted (%d)", n)
		}
	})

	t.Run("RunningGlobalTimer", func(t *testing.T) {
		f := newFixture(t, 2)
		snap, err := f.svc.Start(ctx, "u1", f.testID, nil)
		if err != nil {
			t.Fatalf("start: %v", err)
		}
		if snap.RemainingGlobalSeconds == nil {
			t.Fatal("fixture should run a global timer")
		}
		f.advance(time.Hour)
		if n := f.svc.EvictIdle(f.clock()); n != 0 {
			t.Fatalf("timed session evicted before its timer submitted it (%d)", n)
		}
		if _, err := f.svc.Snapshot(ctx, snap.SessionID, "u1"); err != nil {
			t.Fatalf("timed session gone: %v", err)
		}

		if _, err := f.svc.Dispatch(ctx, snap.SessionID, "u1", engine.Intent{Action: engine.ActionSelect, Label: "A"}); err != nil {
			t.Fatalf("select: %v", err)
		}
		if _, err := f.svc.Dispatch(ctx, snap.SessionID, "u1", engine.Intent{Action: engine.ActionSubmit}); err != nil {
			t.Fatalf("submit: %v", err)
		}
		waitFor(t, "draft", func() bool {
			f.results.mu.Lock()
			defer f.results.mu.Unlock()
			return f.results.creates == 1
		})

		f.advance(4 * time.Minute)
		if n := f.svc.EvictIdle(f.clock()); n != 0 {
			t.Fatalf("submitted session evicted inside the idle window (%d)", n)
		}
		f.advance(2 * time.Minute)
		if n := f.svc.EvictIdle(f.clock()); n != 1 {
			t.Fatalf("expected the idle submitted session to be evicted, got %d", n)
		}
	})
}
