package engine

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// Observer receives the events of one transition and the snapshot after it.
// It runs on the runner goroutine and must not block.
type Observer func(events []Event, snap Snapshot)

// RunnerOptions configure a Runner.
type RunnerOptions struct {
	// Ticker creates the one-second intervals. Defaults to NewTicker.
	Ticker   TickerFunc
	Observer Observer
	Logger   zerolog.Logger
}

type request struct {
	fn    func(*Session) error
	reply chan reply
}

type reply struct {
	snap Snapshot
	err  error
}

// Runner is the single goroutine that owns a Session. Intents and timer ticks
// are serialised through it, and it keeps at most one interval per timer,
// recreating an interval only when the timer is rearmed.
type Runner struct {
	session   *Session
	newTicker TickerFunc
	observer  Observer
	log       zerolog.Logger

	requests chan request
	done     chan struct{}

	global        Ticker
	question      Ticker
	questionEpoch uint64
}

// NewRunner wraps a session. Call Run to start it.
func NewRunner(s *Session, opts RunnerOptions) *Runner {
	if opts.Ticker == nil {
		opts.Ticker = NewTicker
	}
	return &Runner{
		session:   s,
		newTicker: opts.Ticker,
		observer:  opts.Observer,
		log: opts.Logger.With().
			Str("session_id", s.ID().String()).
			Str("test_id", s.TestID().String()).
			Logger(),
		requests: make(chan request),
		done:     make(chan struct{}),
	}
}

// Done is closed when Run returns.
func (r *Runner) Done() <-chan struct{} { return r.done }

// Run drives the session until ctx is cancelled. Cancelling an unfinished
// session abandons it.
func (r *Runner) Run(ctx context.Context) error {
	defer close(r.done)
	defer r.stopTimers()

	r.publish()
	for {
		r.syncTimers()

		select {
		case <-ctx.Done():
			if !r.session.State().Terminal() {
				_ = r.session.Abandon()
				r.publish()
				r.log.Info().Msg("Session abandoned")
			}
			return ctx.Err()

		case req := <-r.requests:
			err := req.fn(r.session)
			if errors.Is(err, ErrInvalidTransition) {
				r.log.Debug().Err(err).Msg("Transition rejected")
			}
			r.syncTimers()
			snap := r.publish()
			req.reply <- reply{snap: snap, err: err}

		case <-tickerC(r.global):
			r.session.TickGlobal()
			r.publish()

		case <-tickerC(r.question):
			// A global tick due in the same second wins.
			select {
			case <-tickerC(r.global):
				r.session.TickGlobal()
			default:
			}
			r.session.TickQuestion()
			r.publish()
		}
	}
}

// Dispatch applies a learner intent and returns the resulting snapshot.
// A rejected intent returns ErrInvalidTransition with the unchanged snapshot.
func (r *Runner) Dispatch(ctx context.Context, in Intent) (Snapshot, error) {
	return r.do(ctx, func(s *Session) error { return s.Apply(in) })
}

// Snapshot returns the current snapshot.
func (r *Runner) Snapshot(ctx context.Context) (Snapshot, error) {
	return r.do(ctx, func(*Session) error { return nil })
}

// Abandon cancels the session from inside the loop.
func (r *Runner) Abandon(ctx context.Context) error {
	_, err := r.do(ctx, func(s *Session) error { return s.Abandon() })
	return err
}

// Result returns the compiled result, nil before submission.
func (r *Runner) Result(ctx context.Context) (*Result, error) {
	var res *Result
	_, err := r.do(ctx, func(s *Session) error {
		res = s.Result()
		return nil
	})
	return res, err
}

func (r *Runner) do(ctx context.Context, fn func(*Session) error) (Snapshot, error) {
	req := request{fn: fn, reply: make(chan reply, 1)}
	select {
	case r.requests <- req:
	case <-r.done:
		return Snapshot{}, ErrSessionClosed
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
	rep := <-req.reply
	return rep.snap, rep.err
}

func (r *Runner) publish() Snapshot {
	events := r.session.Drain()
	snap := r.session.Snapshot()
	if r.observer != nil {
		r.observer(events, snap)
	}
	return snap
}

// syncTimers reconciles the intervals with the session. The global interval
// lives until the session ends; the question interval is recreated whenever
// the clock rearms it and torn down while it is paused or stopped.
func (r *Runner) syncTimers() {
	s := r.session
	if s.State().Terminal() {
		r.stopTimers()
		return
	}
	if r.global == nil {
		r.global = r.newTicker(time.Second)
	}

	clock := s.Clock()
	if !clock.QuestionRunning() {
		if r.question != nil {
			r.question.Stop()
			r.question = nil
		}
		return
	}
	if r.question == nil || r.questionEpoch != clock.QuestionEpoch() {
		if r.question != nil {
			r.question.Stop()
		}
		r.question = r.newTicker(time.Second)
		r.questionEpoch = clock.QuestionEpoch()
	}
}

func (r *Runner) stopTimers() {
	if r.global != nil {
		r.global.Stop()
		r.global = nil
	}
	if r.question != nil {
		r.question.Stop()
		r.question = nil
	}
}

func tickerC(t Ticker) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C()
}
