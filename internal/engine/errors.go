package engine

import (
	"errors"
	"fmt"
)

// Engine errors.
var (
	// ErrEmptyQuestionSet means the bank yielded no usable question; the session cannot start.
	ErrEmptyQuestionSet = errors.New("question set is empty")
	// ErrInvalidTransition marks an intent the current state does not allow.
	// The session is left untouched; hosts absorb it.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrSessionClosed is returned once the runner has stopped.
	ErrSessionClosed = errors.New("session closed")
)

func reject(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidTransition, fmt.Sprintf(format, args...))
}
