package engine

import "github.com/stemsi/vocab-quiz/internal/model"

// Countdown is a one-second resolution countdown. It only moves when Tick is
// called and fires at most once per reset.
type Countdown struct {
	initial   int
	remaining int
	running   bool
	expired   bool
}

// NewCountdown creates a stopped countdown of the given length.
func NewCountdown(seconds int) *Countdown {
	return &Countdown{initial: seconds, remaining: seconds}
}

// Start resumes the countdown unless it already expired.
func (c *Countdown) Start() {
	if c.expired || c.remaining <= 0 {
		return
	}
	c.running = true
}

// Stop halts the countdown, keeping the remaining time.
func (c *Countdown) Stop() {
	c.running = false
}

// Reset rewinds the countdown to seconds and leaves it stopped.
func (c *Countdown) Reset(seconds int) {
	c.initial = seconds
	c.remaining = seconds
	c.running = false
	c.expired = false
}

// Tick consumes one second. It returns true exactly once, on the tick that
// reaches zero.
func (c *Countdown) Tick() bool {
	if !c.running {
		return false
	}
	c.remaining--
	if c.remaining > 0 {
		return false
	}
	c.remaining = 0
	c.running = false
	c.expired = true
	return true
}

// Remaining returns the seconds left.
func (c *Countdown) Remaining() int { return c.remaining }

// Running reports whether ticks currently decrement the countdown.
func (c *Countdown) Running() bool { return c.running }

// Expired reports whether the countdown reached zero since the last reset.
func (c *Countdown) Expired() bool { return c.expired }

// Elapsed returns the seconds consumed since the last reset.
func (c *Countdown) Elapsed() int { return c.initial - c.remaining }

// Clock owns the countdowns of one session: the whole-session timer and, in
// per-question mode, the question timer.
type Clock struct {
	global      *Countdown
	question    *Countdown
	perQuestion int
	// questionEpoch changes every time the question timer is rearmed so the
	// runner knows to recreate its interval.
	questionEpoch uint64
}

// NewClock builds the countdowns the config asks for. Nothing runs until Start.
func NewClock(cfg model.SessionConfig) *Clock {
	c := &Clock{}
	if cfg.GlobalTimerEnabled() {
		c.global = NewCountdown(cfg.GlobalSeconds)
	}
	if secs, ok := cfg.QuestionSeconds(); ok {
		c.perQuestion = secs
		c.question = NewCountdown(secs)
	}
	return c
}

// Start runs every configured countdown.
func (c *Clock) Start() {
	if c.global != nil {
		c.global.Start()
	}
	c.startQuestion()
}

// StopAll halts every countdown for good.
func (c *Clock) StopAll() {
	if c.global != nil {
		c.global.Stop()
	}
	if c.question != nil {
		c.question.Stop()
	}
}

// ResetQuestion rearms the question timer for a new current question.
func (c *Clock) ResetQuestion() {
	if c.question == nil {
		return
	}
	c.question.Reset(c.perQuestion)
	c.startQuestion()
}

// PauseQuestion halts the question timer while a check result is displayed.
func (c *Clock) PauseQuestion() {
	if c.question != nil {
		c.question.Stop()
	}
}

func (c *Clock) startQuestion() {
	if c.question == nil {
		return
	}
	c.question.Start()
	c.questionEpoch++
}

// TickGlobal advances the global countdown and reports expiry.
func (c *Clock) TickGlobal() bool {
	if c.global == nil {
		return false
	}
	return c.global.Tick()
}

// TickQuestion advances the question countdown and reports expiry.
func (c *Clock) TickQuestion() bool {
	if c.question == nil {
		return false
	}
	return c.question.Tick()
}

// GlobalActive reports whether the session has a global timer at all.
func (c *Clock) GlobalActive() bool { return c.global != nil }

// GlobalRunning reports whether the global timer needs ticks.
func (c *Clock) GlobalRunning() bool { return c.global != nil && c.global.Running() }

// QuestionRunning reports whether the question timer needs ticks.
func (c *Clock) QuestionRunning() bool { return c.question != nil && c.question.Running() }

// QuestionEpoch identifies the current arming of the question timer.
func (c *Clock) QuestionEpoch() uint64 { return c.questionEpoch }

// RemainingGlobal returns the global seconds left, or false without a global timer.
func (c *Clock) RemainingGlobal() (int, bool) {
	if c.global == nil {
		return 0, false
	}
	return c.global.Remaining(), true
}

// RemainingQuestion returns the question seconds left, or false outside per-question mode.
func (c *Clock) RemainingQuestion() (int, bool) {
	if c.question == nil {
		return 0, false
	}
	return c.question.Remaining(), true
}

// GlobalElapsed returns the seconds consumed by the global timer.
func (c *Clock) GlobalElapsed() int {
	if c.global == nil {
		return 0
	}
	return c.global.Elapsed()
}
