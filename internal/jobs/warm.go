package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/briangreenhill/petmatch/pkg/petfinder"
)

// Refresher is the part of petfinder.Client the warm handler needs
type Refresher interface {
	Refresh(ctx context.Context, q petfinder.Query) ([]petfinder.Record, error)
}

// WarmHandler processes warm:animals tasks
type WarmHandler struct {
	Animals Refresher
	Log     zerolog.Logger
}

var _ asynq.Handler = (*WarmHandler)(nil)

// ProcessTask fetches the task's query from Petfinder, replacing any
// cached result even if it is still fresh. Rate limits and transport failures
// are returned for asynq to retry; anything that would fail again the same
// way is wrapped with asynq.SkipRetry.
func (h *WarmHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p WarmPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		h.Log.Error().Err(err).Msg("bad warm payload")
		return fmt.Errorf("decode warm payload: %v: %w", err, asynq.SkipRetry)
	}

	log := h.Log.With().Str("type", p.Query.Type).Str("location", p.Query.Location).Int("page", p.Query.Page).Logger()
	log.Info().Msg("warm start")
	start := time.Now()

	records, err := h.Animals.Refresh(ctx, p.Query)
	duration := time.Since(start)
	if err != nil {
		var rl *petfinder.RateLimitError
		if errors.As(err, &rl) {
			log.Warn().Dur("retry_after", rl.RetryAfter).Msg("warm rate limited")
			return err
		}
		if petfinder.IsRetryable(err) {
			log.Warn().Err(err).Dur("duration", duration).Msg("warm retryable error")
			return err
		}
		log.Error().Err(err).Dur("duration", duration).Msg("warm permanent error (dropping task)")
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}

	log.Info().Int("records", len(records)).Dur("duration", duration).Msg("warm done")
	return nil
}

// RetryDelay honours Retry-After from a rate-limited warm task and falls
// back to asynq's exponential backoff otherwise.
func RetryDelay(n int, err error, t *asynq.Task) time.Duration {
	var rl *petfinder.RateLimitError
	if errors.As(err, &rl) && rl.RetryAfter > 0 {
		return rl.RetryAfter
	}
	return asynq.DefaultRetryDelayFunc(n, err, t)
}
