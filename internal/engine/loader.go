package engine

import (
	"fmt"
	"math/rand/v2"

	"github.com/jinzhu/copier"
	"github.com/stemsi/vocab-quiz/internal/model"
)

// Load prepares the ordered question list of a session from a raw bank.
//
// Unusable questions (no options, no correct labels, or a correct label that
// names no option) are dropped. The returned questions are deep copies; the
// caller's bank is never reordered. Shuffling moves whole options, so every
// label keeps denoting the same text.
func Load(bank []model.Question, cfg model.SessionConfig, rng *rand.Rand) ([]model.Question, *Ledger, error) {
	usable := make([]model.Question, 0, len(bank))
	for i := range bank {
		if !Usable(&bank[i]) {
			continue
		}
		var q model.Question
		if err := copier.CopyWithOption(&q, &bank[i], copier.Option{DeepCopy: true}); err != nil {
			return nil, nil, fmt.Errorf("failed to copy question %s: %w", bank[i].ID, err)
		}
		usable = append(usable, q)
	}
	if len(usable) == 0 {
		return nil, nil, ErrEmptyQuestionSet
	}

	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if cfg.ShuffleQuestions {
		rng.Shuffle(len(usable), func(i, j int) {
			usable[i], usable[j] = usable[j], usable[i]
		})
	}
	if cfg.ShuffleOptions {
		for i := range usable {
			opts := usable[i].Options
			rng.Shuffle(len(opts), func(a, b int) {
				opts[a], opts[b] = opts[b], opts[a]
			})
		}
	}

	return usable, NewLedger(usable), nil
}

// Usable reports whether q can be asked: it needs options with unique,
// non-empty labels and at least one correct label naming one of them.
func Usable(q *model.Question) bool {
	if len(q.Options) == 0 || len(q.CorrectLabels) == 0 {
		return false
	}
	seen := make(map[string]struct{}, len(q.Options))
	for _, o := range q.Options {
		if o.Label == "" {
			return false
		}
		if _, dup := seen[o.Label]; dup {
			return false
		}
		seen[o.Label] = struct{}{}
	}
	for _, l := range q.CorrectLabels {
		if _, ok := seen[l]; !ok {
			return false
		}
	}
	return true
}
