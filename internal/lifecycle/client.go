// Package lifecycle persists a submitted session's result as a draft and
// promotes it to active on explicit confirmation.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/vocab-quiz/internal/model"
)

var (
	// ErrDraftPersistence means the draft could not be stored. The review
	// proceeds from memory and the draft is never retried.
	ErrDraftPersistence = errors.New("draft result was not persisted")
	// ErrPromotion is a retryable failure to activate the draft.
	ErrPromotion = errors.New("failed to promote result")
	// ErrNoDraft is returned when promoting before or without a draft.
	ErrNoDraft = errors.New("no draft result to promote")
)

// ResultStore is the external result persistence.
type ResultStore interface {
	CreateDraft(ctx context.Context, payload model.ResultPayload) (uuid.UUID, error)
	SetStatus(ctx context.Context, id uuid.UUID, status model.ResultStatus) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.ResultRecord, error)
}

// DraftState tracks the background draft creation.
type DraftState string

const (
	DraftNone      DraftState = "none"
	DraftPending   DraftState = "pending"
	DraftPersisted DraftState = "persisted"
	DraftFailed    DraftState = "failed"
)

// Status is the lifecycle state exposed to the review screen.
type Status struct {
	Draft          DraftState `json:"draft_state"`
	DraftPersisted bool       `json:"draft_persisted"`
	ResultID       *uuid.UUID `json:"result_id,omitempty"`
	Promoted       bool       `json:"promoted"`
	Error          string     `json:"error,omitempty"`
}

// Client drives the draft then active protocol for one session.
type Client struct {
	store   ResultStore
	log     zerolog.Logger
	timeout time.Duration

	once sync.Once
	done chan struct{}

	mu       sync.Mutex
	state    DraftState
	resultID uuid.UUID
	draftErr error
	promoted bool

	// promoteMu serialises promotions so a double click issues one write.
	promoteMu sync.Mutex
}

// NewClient creates a client. timeout bounds each store call made in the
// background.
func NewClient(store ResultStore, log zerolog.Logger, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		store:   store,
		log:     log.With().Str("component", "result_lifecycle").Logger(),
		timeout: timeout,
		done:    make(chan struct{}),
		state:   DraftNone,
	}
}

// CreateDraft stores payload as a draft in the background. Only the first
// call has any effect; it reports whether this call started the draft.
func (c *Client) CreateDraft(payload model.ResultPayload) bool {
	started := false
	c.once.Do(func() {
		started = true
		c.mu.Lock()
		c.state = DraftPending
		c.mu.Unlock()
		go c.persistDraft(payload)
	})
	return started
}

func (c *Client) persistDraft(payload model.ResultPayload) {
	defer close(c.done)

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	payload.Status = model.ResultStatusDraft
	id, err := c.store.CreateDraft(ctx, payload)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.state = DraftFailed
		c.draftErr = fmt.Errorf("%w: %w", ErrDraftPersistence, err)
		c.log.Warn().Err(err).Str("test_id", payload.TestID.String()).Msg("Draft result not persisted, review continues from memory")
		return
	}
	c.state = DraftPersisted
	c.resultID = id
	c.log.Info().Str("result_id", id.String()).Msg("Draft result persisted")
}

// Wait blocks until the background draft finished, or ctx ends.
func (c *Client) Wait(ctx context.Context) error {
	c.mu.Lock()
	state := c.state
	c.mu.Unlock()
	if state == DraftNone {
		return ErrNoDraft
	}
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status returns a copy of the lifecycle state.
func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := Status{
		Draft:          c.state,
		DraftPersisted: c.state == DraftPersisted,
		Promoted:       c.promoted,
	}
	if c.state == DraftPersisted {
		id := c.resultID
		st.ResultID = &id
	}
	if c.draftErr != nil {
		st.Error = c.draftErr.Error()
	}
	return st
}

// Promote sets the draft to active. It waits for a pending draft, and calling
// it again after success is a no-op.
func (c *Client) Promote(ctx context.Context) (uuid.UUID, error) {
	c.promoteMu.Lock()
	defer c.promoteMu.Unlock()

	if err := c.Wait(ctx); err != nil {
		return uuid.Nil, err
	}

	c.mu.Lock()
	state, id, promoted, draftErr := c.state, c.resultID, c.promoted, c.draftErr
	c.mu.Unlock()

	if promoted {
		return id, nil
	}
	if state != DraftPersisted {
		return uuid.Nil, fmt.Errorf("%w: %w", ErrNoDraft, draftErr)
	}

	if err := PromoteDraft(ctx, c.store, id); err != nil {
		c.log.Error().Err(err).Str("result_id", id.String()).Msg("Failed to promote result")
		return id, err
	}

	c.mu.Lock()
	c.promoted = true
	c.mu.Unlock()
	c.log.Info().Str("result_id", id.String()).Msg("Result promoted")
	return id, nil
}

// PromoteDraft activates a stored draft by id. An already active result is
// left untouched.
func PromoteDraft(ctx context.Context, store ResultStore, id uuid.UUID) error {
	rec, err := store.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPromotion, err)
	}
	if rec.Status == model.ResultStatusActive {
		return nil
	}
	if err := store.SetStatus(ctx, id, model.ResultStatusActive); err != nil {
		return fmt.Errorf("%w: %w", ErrPromotion, err)
	}
	return nil
}
