package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/briangreenhill/petmatch/pkg/petfinder"
)

const (
	TaskWarmAnimals = "warm:animals"

	// QueueWarm is the queue warm tasks run on
	QueueWarm = "warm"
)

type WarmPayload struct {
	Query petfinder.Query `json:"query"`
}

// NewWarmTask builds a task that fetches q so the result cache holds it
func NewWarmTask(q petfinder.Query) (*asynq.Task, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(WarmPayload{Query: q})
	if err != nil {
		return nil, fmt.Errorf("marshal warm payload: %w", err)
	}
	return asynq.NewTask(TaskWarmAnimals, payload,
		asynq.Queue(QueueWarm),
		asynq.MaxRetry(3),
		asynq.Timeout(2*time.Minute),
	), nil
}

// CronSpec turns an interval into an asynq scheduler spec
func CronSpec(every time.Duration) string {
	return "@every " + every.String()
}
