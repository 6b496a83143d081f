package model

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidConfig is returned when a session config cannot drive a session.
var ErrInvalidConfig = errors.New("invalid session config")

// ModeName is the wire name of a session mode.
type ModeName string

const (
	ModeFlexible         ModeName = "flexible"
	ModePerQuestionTimer ModeName = "per_question_timer"
)

// CheckTiming controls when answers are checked in flexible mode.
type CheckTiming string

const (
	CheckAfterEach   CheckTiming = "after_each"
	CheckAfterSubmit CheckTiming = "after_submit"
)

// Mode is the timing regime of a session. It is either Flexible or
// PerQuestionTimer; fields that only make sense in one regime live on it.
type Mode interface {
	Name() ModeName
}

// Flexible lets the learner move freely between questions.
type Flexible struct{}

// Name implements Mode.
func (Flexible) Name() ModeName { return ModeFlexible }

// PerQuestionTimer gives every question its own countdown and forbids going back.
type PerQuestionTimer struct {
	PerQuestionSeconds int
}

// Name implements Mode.
func (PerQuestionTimer) Name() ModeName { return ModePerQuestionTimer }

// SessionConfig is chosen before a session starts and never changes afterwards.
type SessionConfig struct {
	Mode             Mode
	ShowGlobalTimer  bool
	CheckTiming      CheckTiming
	ShowOrdinal      bool
	ShuffleQuestions bool
	ShuffleOptions   bool
	GlobalSeconds    int
}

// Validate checks that the config is internally consistent.
func (c SessionConfig) Validate() error {
	switch m := c.Mode.(type) {
	case Flexible:
	case PerQuestionTimer:
		if m.PerQuestionSeconds <= 0 {
			return fmt.Errorf("%w: per_question_seconds must be positive", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown mode", ErrInvalidConfig)
	}
	if c.CheckTiming != CheckAfterEach && c.CheckTiming != CheckAfterSubmit {
		return fmt.Errorf("%w: unknown check timing %q", ErrInvalidConfig, c.CheckTiming)
	}
	if c.GlobalSeconds < 0 {
		return fmt.Errorf("%w: global_seconds must not be negative", ErrInvalidConfig)
	}
	return nil
}

// GlobalTimerEnabled reports whether a whole-session countdown runs.
// A zero GlobalSeconds disables it regardless of ShowGlobalTimer.
func (c SessionConfig) GlobalTimerEnabled() bool {
	return c.ShowGlobalTimer && c.GlobalSeconds > 0
}

// QuestionSeconds returns the per-question budget when the mode has one.
func (c SessionConfig) QuestionSeconds() (int, bool) {
	if m, ok := c.Mode.(PerQuestionTimer); ok {
		return m.PerQuestionSeconds, true
	}
	return 0, false
}

// PerQuestion reports whether the session runs in per-question timer mode.
func (c SessionConfig) PerQuestion() bool {
	_, ok := c.Mode.(PerQuestionTimer)
	return ok
}

type sessionConfigJSON struct {
	Mode               ModeName    `json:"mode"`
	ShowGlobalTimer    bool        `json:"show_global_timer"`
	CheckTiming        CheckTiming `json:"check_timing"`
	ShowOrdinal        bool        `json:"show_ordinal"`
	ShuffleQuestions   bool        `json:"shuffle_questions"`
	ShuffleOptions     bool        `json:"shuffle_options"`
	PerQuestionSeconds int         `json:"per_question_seconds,omitempty"`
	GlobalSeconds      int         `json:"global_seconds"`
}

// MarshalJSON flattens the mode variant into a "mode" discriminator.
func (c SessionConfig) MarshalJSON() ([]byte, error) {
	out := sessionConfigJSON{
		ShowGlobalTimer:  c.ShowGlobalTimer,
		CheckTiming:      c.CheckTiming,
		ShowOrdinal:      c.ShowOrdinal,
		ShuffleQuestions: c.ShuffleQuestions,
		ShuffleOptions:   c.ShuffleOptions,
		GlobalSeconds:    c.GlobalSeconds,
	}
	if c.Mode != nil {
		out.Mode = c.Mode.Name()
	}
	if secs, ok := c.QuestionSeconds(); ok {
		out.PerQuestionSeconds = secs
	}
	return json.Marshal(out)
}

// UnmarshalJSON rebuilds the mode variant from the "mode" discriminator.
func (c *SessionConfig) UnmarshalJSON(data []byte) error {
	var in sessionConfigJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	mode, err := buildMode(in.Mode, in.PerQuestionSeconds)
	if err != nil {
		return err
	}
	*c = SessionConfig{
		Mode:             mode,
		ShowGlobalTimer:  in.ShowGlobalTimer,
		CheckTiming:      in.CheckTiming,
		ShowOrdinal:      in.ShowOrdinal,
		ShuffleQuestions: in.ShuffleQuestions,
		ShuffleOptions:   in.ShuffleOptions,
		GlobalSeconds:    in.GlobalSeconds,
	}
	return nil
}

func buildMode(name ModeName, perQuestionSeconds int) (Mode, error) {
	switch name {
	case ModeFlexible:
		return Flexible{}, nil
	case ModePerQuestionTimer:
		return PerQuestionTimer{PerQuestionSeconds: perQuestionSeconds}, nil
	default:
		return nil, fmt.Errorf("%w: unknown mode %q", ErrInvalidConfig, name)
	}
}

// DefaultSessionConfig derives a flexible config from test metadata.
func DefaultSessionConfig(meta *TestMeta) SessionConfig {
	cfg := SessionConfig{
		Mode:        Flexible{},
		CheckTiming: CheckAfterSubmit,
		ShowOrdinal: true,
	}
	if meta != nil && meta.TimeLimitMinutes > 0 {
		cfg.ShowGlobalTimer = true
		cfg.GlobalSeconds = meta.TimeLimitMinutes * 60
	}
	return cfg
}

// SessionConfigRequest is the payload for saving a config or starting a session with one.
type SessionConfigRequest struct {
	Mode               string `json:"mode" binding:"required,oneof=flexible per_question_timer"`
	ShowGlobalTimer    bool   `json:"show_global_timer"`
	CheckTiming        string `json:"check_timing" binding:"required,oneof=after_each after_submit"`
	ShowOrdinal        bool   `json:"show_ordinal"`
	ShuffleQuestions   bool   `json:"shuffle_questions"`
	ShuffleOptions     bool   `json:"shuffle_options"`
	PerQuestionSeconds int    `json:"per_question_seconds" binding:"min=0,max=3600"`
	GlobalSeconds      int    `json:"global_seconds" binding:"min=0,max=86400"`
}

// ToConfig converts a validated request into a SessionConfig.
func (r *SessionConfigRequest) ToConfig() (SessionConfig, error) {
	mode, err := buildMode(ModeName(r.Mode), r.PerQuestionSeconds)
	if err != nil {
		return SessionConfig{}, err
	}
	cfg := SessionConfig{
		Mode:             mode,
		ShowGlobalTimer:  r.ShowGlobalTimer,
		CheckTiming:      CheckTiming(r.CheckTiming),
		ShowOrdinal:      r.ShowOrdinal,
		ShuffleQuestions: r.ShuffleQuestions,
		ShuffleOptions:   r.ShuffleOptions,
		GlobalSeconds:    r.GlobalSeconds,
	}
	return cfg, cfg.Validate()
}

// StartSessionRequest is the optional payload for starting a session.
type StartSessionRequest struct {
	Config *SessionConfigRequest `json:"config" binding:"omitempty"`
}

// SessionActionRequest carries a learner intent.
type SessionActionRequest struct {
	Action string `json:"action" binding:"required,oneof=select check continue advance retreat submit"`
	Label  string `json:"label" binding:"required_if=Action select,max=16"`
}
