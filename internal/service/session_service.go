package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/vocab-quiz/internal/engine"
	"github.com/stemsi/vocab-quiz/internal/lifecycle"
	"github.com/stemsi/vocab-quiz/internal/model"
)

var (
	// ErrSessionNotFound is returned for unknown sessions and for sessions
	// owned by another learner.
	ErrSessionNotFound = errors.New("session not found")
	// ErrNotSubmitted is returned when reading or promoting a result early.
	ErrNotSubmitted = errors.New("session is not submitted")
)

// QuestionProvider fetches question banks and test metadata.
type QuestionProvider interface {
	FetchQuestions(ctx context.Context, testID uuid.UUID) ([]model.Question, error)
	FetchTestMeta(ctx context.Context, testID uuid.UUID) (*model.TestMeta, error)
}

// ConfigReader reads the config saved on the settings screen.
type ConfigReader interface {
	Get(ctx context.Context, userID string, testID uuid.UUID) (*model.SessionConfig, error)
}

// AnswerEventPublisher ships answer events to the analytics log.
type AnswerEventPublisher interface {
	Publish(ctx context.Context, events []model.AnswerEvent) error
}

// SessionServiceOptions tune a SessionService. Zero values fall back to defaults.
type SessionServiceOptions struct {
	IdleTimeout               time.Duration
	DefaultPerQuestionSeconds int
	ResultWriteTimeout        time.Duration
	Ticker                    engine.TickerFunc
	Now                       func() time.Time
	Seed                      func() (uint64, uint64)
}

// Review is what the review screen shows after submission.
type Review struct {
	SessionID uuid.UUID        `json:"session_id"`
	TestID    uuid.UUID        `json:"test_id"`
	Result    *engine.Result   `json:"result"`
	Lifecycle lifecycle.Status `json:"lifecycle"`
}

// SessionService is the registry of running sessions. Each session runs on
// its own engine.Runner goroutine.
type SessionService struct {
	questions QuestionProvider
	configs   ConfigReader
	results   lifecycle.ResultStore
	events    AnswerEventPublisher
	opts      SessionServiceOptions
	rootLog   zerolog.Logger
	log       zerolog.Logger

	baseCtx    context.Context
	baseCancel context.CancelFunc
	wg         sync.WaitGroup

	mu       sync.RWMutex
	sessions map[uuid.UUID]*liveSession

	eventsCh chan []model.AnswerEvent
}

// NewSessionService creates a new SessionService.
func NewSessionService(
	questions QuestionProvider,
	configs ConfigReader,
	results lifecycle.ResultStore,
	events AnswerEventPublisher,
	opts SessionServiceOptions,
	log zerolog.Logger,
) *SessionService {
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = 30 * time.Minute
	}
	if opts.DefaultPerQuestionSeconds <= 0 {
		opts.DefaultPerQuestionSeconds = 20
	}
	if opts.ResultWriteTimeout <= 0 {
		opts.ResultWriteTimeout = 10 * time.Second
	}
	if opts.Ticker == nil {
		opts.Ticker = engine.NewTicker
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Seed == nil {
		opts.Seed = func() (uint64, uint64) { return rand.Uint64(), rand.Uint64() }
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &SessionService{
		questions:  questions,
		configs:    configs,
		results:    results,
		events:     events,
		opts:       opts,
		rootLog:    log,
		log:        log.With().Str("component", "session_service").Logger(),
		baseCtx:    ctx,
		baseCancel: cancel,
		sessions:   make(map[uuid.UUID]*liveSession),
		eventsCh:   make(chan []model.AnswerEvent, 256),
	}
}

// Start loads the test, resolves the config and starts a session. A nil req
// uses the stored config, then the defaults derived from the test metadata.
func (s *SessionService) Start(ctx context.Context, userID string, testID uuid.UUID, req *model.SessionConfigRequest) (engine.Snapshot, error) {
	meta, err := s.questions.FetchTestMeta(ctx, testID)
	if err != nil {
		return engine.Snapshot{}, err
	}

	cfg, err := s.resolveConfig(ctx, userID, meta, req)
	if err != nil {
		return engine.Snapshot{}, err
	}

	bank, err := s.questions.FetchQuestions(ctx, testID)
	if err != nil {
		return engine.Snapshot{}, fmt.Errorf("fetch questions: %w", err)
	}

	seed1, seed2 := s.opts.Seed()
	sess, err := engine.Start(bank, cfg, rand.New(rand.NewPCG(seed1, seed2)), engine.Options{
		TestID: testID,
		UserID: userID,
		Now:    s.opts.Now,
	})
	if err != nil {
		return engine.Snapshot{}, err
	}

	ls := &liveSession{
		id:           sess.ID(),
		userID:       userID,
		testID:       testID,
		timed:        cfg.GlobalTimerEnabled(),
		lifecycle:    lifecycle.NewClient(s.results, s.rootLog, s.opts.ResultWriteTimeout),
		lastActivity: s.opts.Now(),
		subscribers:  make(map[chan engine.Snapshot]struct{}),
	}
	ls.runner = engine.NewRunner(sess, engine.RunnerOptions{
		Ticker:   s.opts.Ticker,
		Observer: s.observer(ls),
		Logger:   s.rootLog.With().Str("component", "session_runner").Logger(),
	})

	runCtx, cancel := context.WithCancel(s.baseCtx)
	ls.cancel = cancel

	s.mu.Lock()
	s.sessions[ls.id] = ls
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_ = ls.runner.Run(runCtx)
	}()

	s.log.Info().
		Str("session_id", ls.id.String()).
		Str("test_id", testID.String()).
		Str("user_id", userID).
		Str("mode", string(cfg.Mode.Name())).
		Msg("Session started")

	return ls.runner.Snapshot(ctx)
}

func (s *SessionService) resolveConfig(ctx context.Context, userID string, meta *model.TestMeta, req *model.SessionConfigRequest) (model.SessionConfig, error) {
	if req != nil {
		r := *req
		if r.Mode == string(model.ModePerQuestionTimer) && r.PerQuestionSeconds == 0 {
			r.PerQuestionSeconds = s.opts.DefaultPerQuestionSeconds
		}
		return r.ToConfig()
	}

	if s.configs != nil {
		stored, err := s.configs.Get(ctx, userID, meta.ID)
		if err != nil {
			s.log.Warn().Err(err).Str("test_id", meta.ID.String()).Msg("Stored session config unavailable, using defaults")
		} else if stored != nil {
			return *stored, stored.Validate()
		}
	}
	return model.DefaultSessionConfig(meta), nil
}

// Dispatch applies a learner intent.
func (s *SessionService) Dispatch(ctx context.Context, sessionID uuid.UUID, userID string, in engine.Intent) (engine.Snapshot, error) {
	ls, err := s.lookup(sessionID, userID)
	if err != nil {
		return engine.Snapshot{}, err
	}
	ls.touch(s.opts.Now())
	return ls.runner.Dispatch(ctx, in)
}

// Snapshot returns the current snapshot of a session.
func (s *SessionService) Snapshot(ctx context.Context, sessionID uuid.UUID, userID string) (engine.Snapshot, error) {
	ls, err := s.lookup(sessionID, userID)
	if err != nil {
		return engine.Snapshot{}, err
	}
	ls.touch(s.opts.Now())
	return ls.runner.Snapshot(ctx)
}

// Subscribe streams snapshots of a session, starting with the current one.
// The channel keeps only the newest snapshot for slow readers and is closed
// when the session is released or unsubscribe is called.
func (s *SessionService) Subscribe(ctx context.Context, sessionID uuid.UUID, userID string) (<-chan engine.Snapshot, func(), error) {
	ls, err := s.lookup(sessionID, userID)
	if err != nil {
		return nil, nil, err
	}
	snap, err := ls.runner.Snapshot(ctx)
	if err != nil {
		return nil, nil, err
	}

	ch := make(chan engine.Snapshot, 1)
	ch <- snap
	if !ls.subscribe(ch) {
		return nil, nil, ErrSessionNotFound
	}
	ls.touch(s.opts.Now())
	return ch, func() { ls.unsubscribe(ch) }, nil
}

// Abandon cancels a session. Unsubmitted sessions are discarded without a
// draft; submitted ones are simply released.
func (s *SessionService) Abandon(ctx context.Context, sessionID uuid.UUID, userID string) error {
	ls, err := s.lookup(sessionID, userID)
	if err != nil {
		return err
	}
	if err := ls.runner.Abandon(ctx); err != nil && !errors.Is(err, engine.ErrInvalidTransition) {
		return err
	}
	s.release(ls)
	return nil
}

// Result returns the in-memory review, whether or not the draft persisted.
func (s *SessionService) Result(ctx context.Context, sessionID uuid.UUID, userID string) (*Review, error) {
	ls, err := s.lookup(sessionID, userID)
	if err != nil {
		return nil, err
	}
	ls.touch(s.opts.Now())
	return ls.review()
}

// Promote confirms the draft result. It can be retried after a failure and
// is a no-op once it succeeded.
func (s *SessionService) Promote(ctx context.Context, sessionID uuid.UUID, userID string) (*Review, error) {
	ls, err := s.lookup(sessionID, userID)
	if err != nil {
		return nil, err
	}
	ls.touch(s.opts.Now())
	if _, err := ls.review(); err != nil {
		return nil, err
	}
	if _, err := ls.lifecycle.Promote(ctx); err != nil {
		return nil, err
	}
	return ls.review()
}

// EvictIdle releases sessions without activity for the idle timeout.
// Sessions with a live stream are kept, and so are unsubmitted sessions whose
// global timer still runs: the timer submits them.
func (s *SessionService) EvictIdle(now time.Time) int {
	s.mu.RLock()
	var idle []*liveSession
	for _, ls := range s.sessions {
		if ls.idleSince(now) >= s.opts.IdleTimeout {
			idle = append(idle, ls)
		}
	}
	s.mu.RUnlock()

	for _, ls := range idle {
		s.log.Info().Str("session_id", ls.id.String()).Msg("Evicting idle session")
		s.release(ls)
	}
	return len(idle)
}

// Active returns the number of registered sessions.
func (s *SessionService) Active() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Run publishes answer events and evicts idle sessions until ctx ends.
func (s *SessionService) Run(ctx context.Context, evictEvery time.Duration) {
	if evictEvery <= 0 {
		evictEvery = time.Minute
	}
	ticker := time.NewTicker(evictEvery)
	defer ticker.Stop()

	s.log.Info().Msg("SessionService started")
	for {
		select {
		case <-ctx.Done():
			s.drainEvents()
			return
		case batch := <-s.eventsCh:
			s.publishEvents(batch)
		case <-ticker.C:
			if n := s.EvictIdle(s.opts.Now()); n > 0 {
				s.log.Info().Int("evicted", n).Int("active", s.Active()).Msg("Idle sessions evicted")
			}
		}
	}
}

// Shutdown abandons every running session and waits for the runners.
func (s *SessionService) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	all := make([]*liveSession, 0, len(s.sessions))
	for _, ls := range s.sessions {
		all = append(all, ls)
	}
	s.mu.RUnlock()
	for _, ls := range all {
		s.release(ls)
	}
	s.baseCancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SessionService) lookup(sessionID uuid.UUID, userID string) (*liveSession, error) {
	s.mu.RLock()
	ls, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok || ls.userID != userID {
		return nil, ErrSessionNotFound
	}
	return ls, nil
}

func (s *SessionService) release(ls *liveSession) {
	s.mu.Lock()
	delete(s.sessions, ls.id)
	s.mu.Unlock()
	ls.cancel()
	<-ls.runner.Done()
	ls.closeSubscribers()
}

func (s *SessionService) observer(ls *liveSession) engine.Observer {
	return func(events []engine.Event, snap engine.Snapshot) {
		var answers []model.AnswerEvent
		for _, e := range events {
			switch e.Kind {
			case engine.EventLocked:
				answers = append(answers, model.AnswerEvent{
					SessionID:        ls.id,
					TestID:           ls.testID,
					UserID:           ls.userID,
					QuestionID:       e.Record.QuestionID,
					SelectedLabels:   e.Record.SelectedLabels,
					Correctness:      e.Record.Correctness,
					Forced:           e.Forced,
					TimeSpentSeconds: e.Record.TimeSpentSeconds,
					RecordedAt:       s.opts.Now().Unix(),
				})
			case engine.EventSubmitted:
				ls.setResult(e.Result, s.opts.Now())
				ls.lifecycle.CreateDraft(e.Result.Payload(ls.testID, ls.userID))
				s.log.Info().
					Str("session_id", ls.id.String()).
					Int("score", e.Result.Percentage).
					Bool("forced", e.Forced).
					Msg("Session submitted")
			}
		}
		if len(answers) > 0 && s.events != nil {
			select {
			case s.eventsCh <- answers:
			default:
				s.log.Warn().Int("dropped", len(answers)).Msg("Answer event buffer full")
			}
		}
		ls.broadcast(snap)
	}
}

func (s *SessionService) publishEvents(batch []model.AnswerEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.ResultWriteTimeout)
	defer cancel()
	if err := s.events.Publish(ctx, batch); err != nil {
		s.log.Error().Err(err).Int("count", len(batch)).Msg("Failed to publish answer events")
	}
}

func (s *SessionService) drainEvents() {
	for {
		select {
		case batch := <-s.eventsCh:
			s.publishEvents(batch)
		default:
			return
		}
	}
}

type liveSession struct {
	id        uuid.UUID
	userID    string
	testID    uuid.UUID
	timed     bool
	runner    *engine.Runner
	cancel    context.CancelFunc
	lifecycle *lifecycle.Client

	mu           sync.Mutex
	lastActivity time.Time
	result       *engine.Result
	subscribers  map[chan engine.Snapshot]struct{}
	closed       bool
}

func (ls *liveSession) touch(now time.Time) {
	ls.mu.Lock()
	ls.lastActivity = now
	ls.mu.Unlock()
}

func (ls *liveSession) idleSince(now time.Time) time.Duration {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if len(ls.subscribers) > 0 || (ls.timed && ls.result == nil) {
		return 0
	}
	return now.Sub(ls.lastActivity)
}

func (ls *liveSession) setResult(r *engine.Result, now time.Time) {
	ls.mu.Lock()
	ls.result = r
	ls.lastActivity = now
	ls.mu.Unlock()
}

func (ls *liveSession) review() (*Review, error) {
	ls.mu.Lock()
	res := ls.result
	ls.mu.Unlock()
	if res == nil {
		return nil, ErrNotSubmitted
	}
	return &Review{
		SessionID: ls.id,
		TestID:    ls.testID,
		Result:    res,
		Lifecycle: ls.lifecycle.Status(),
	}, nil
}

func (ls *liveSession) subscribe(ch chan engine.Snapshot) bool {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if ls.closed {
		return false
	}
	ls.subscribers[ch] = struct{}{}
	return true
}

func (ls *liveSession) unsubscribe(ch chan engine.Snapshot) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if _, ok := ls.subscribers[ch]; ok {
		delete(ls.subscribers, ch)
		close(ch)
	}
}

func (ls *liveSession) broadcast(snap engine.Snapshot) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if ls.closed {
		return
	}
	for ch := range ls.subscribers {
		select {
		case ch <- snap:
		default:
			// Drop the stale snapshot so the reader sees the newest one.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

func (ls *liveSession) closeSubscribers() {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.closed = true
	for ch := range ls.subscribers {
		close(ch)
		delete(ls.subscribers, ch)
	}
}
