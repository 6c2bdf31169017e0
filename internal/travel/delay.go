package travel

import (
	"context"
	"time"
)

// wait sleeps for d in PollInterval ticks. Paused ticks do not count, so a
// paused journey holds here until resumed. Returns true when the journey
// was cancelled.
func (o *Orchestrator) wait(ctx context.Context, j *journey, d time.Duration) bool {
	poll := o.cfg.PollInterval
	if poll <= 0 {
		poll = defaultPoll
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	remaining := d
	for remaining > 0 || o.isPaused() {
		select {
		case <-ctx.Done():
			return true
		case <-j.wake:
			return true
		case <-ticker.C:
		}
		if o.isPaused() {
			continue
		}
		remaining -= poll
	}
	return j.cancelled.Load() || ctx.Err() != nil
}
