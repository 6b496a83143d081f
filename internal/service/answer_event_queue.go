package service

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/vocab-quiz/internal/config"
	"github.com/stemsi/vocab-quiz/internal/model"
)

// AnswerEventQueue pushes answer events for AnswerEventWorker.
type AnswerEventQueue struct {
	rdb *redis.Client
}

// NewAnswerEventQueue creates a new AnswerEventQueue.
func NewAnswerEventQueue(rdb *redis.Client) *AnswerEventQueue {
	return &AnswerEventQueue{rdb: rdb}
}

// Publish enqueues events in one round trip.
func (q *AnswerEventQueue) Publish(ctx context.Context, events []model.AnswerEvent) error {
	if len(events) == 0 {
		return nil
	}
	pipe := q.rdb.Pipeline()
	for i := range events {
		raw, err := json.Marshal(&events[i])
		if err != nil {
			return err
		}
		pipe.RPush(ctx, config.WorkerKey.PersistAnswerEventsQueue, raw)
	}
	_, err := pipe.Exec(ctx)
	return err
}
