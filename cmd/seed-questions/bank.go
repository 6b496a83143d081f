package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/stemsi/vocab-quiz/internal/engine"
	"github.com/stemsi/vocab-quiz/internal/model"
	"gopkg.in/yaml.v3"
)

// bankFile is the on-disk layout of a question bank.
type bankFile struct {
	Test      testEntry       `yaml:"test"`
	Questions []questionEntry `yaml:"questions"`
}

type testEntry struct {
	ID               string `yaml:"id"`
	Title            string `yaml:"title"`
	TimeLimitMinutes int    `yaml:"time_limit_minutes"`
	Difficulty       string `yaml:"difficulty"`
	Topic            string `yaml:"topic"`
	Subtopic         string `yaml:"subtopic"`
}

type questionEntry struct {
	Prompt      string            `yaml:"prompt"`
	Options     []model.Option    `yaml:"options"`
	Correct     []string          `yaml:"correct"`
	Explanation model.Explanation `yaml:"explanation"`
	Difficulty  string            `yaml:"difficulty"`
	Points      int               `yaml:"points"`
}

// parseBank decodes a bank and converts it to models. Questions the engine
// would drop are reported as errors so a broken file never seeds silently.
func parseBank(r io.Reader) (*model.TestMeta, []model.Question, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f bankFile
	if err := dec.Decode(&f); err != nil {
		return nil, nil, fmt.Errorf("decode bank: %w", err)
	}

	if strings.TrimSpace(f.Test.Title) == "" {
		return nil, nil, fmt.Errorf("test.title is required")
	}
	if f.Test.TimeLimitMinutes < 0 {
		return nil, nil, fmt.Errorf("test.time_limit_minutes must not be negative")
	}

	meta := &model.TestMeta{
		Title:            f.Test.Title,
		TimeLimitMinutes: f.Test.TimeLimitMinutes,
		Difficulty:       model.Difficulty(f.Test.Difficulty),
		Topic:            f.Test.Topic,
		Subtopic:         f.Test.Subtopic,
	}
	if f.Test.ID != "" {
		id, err := uuid.Parse(f.Test.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("test.id: %w", err)
		}
		meta.ID = id
	}

	if len(f.Questions) == 0 {
		return nil, nil, fmt.Errorf("bank has no questions")
	}

	questions := make([]model.Question, 0, len(f.Questions))
	for i, e := range f.Questions {
		q := model.Question{
			Prompt:        strings.TrimSpace(e.Prompt),
			Options:       e.Options,
			CorrectLabels: e.Correct,
			Explanation:   e.Explanation,
			Difficulty:    model.Difficulty(e.Difficulty),
			Points:        e.Points,
			OrderNum:      i + 1,
		}
		if q.Difficulty == "" {
			q.Difficulty = meta.Difficulty
		}
		if q.Prompt == "" {
			return nil, nil, fmt.Errorf("question %d: prompt is required", i+1)
		}
		if !engine.Usable(&q) {
			return nil, nil, fmt.Errorf("question %d: options and correct labels do not match", i+1)
		}
		questions = append(questions, q)
	}

	return meta, questions, nil
}
