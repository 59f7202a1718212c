package tasks

import (
	"context"

	"github.com/Purpleaki2024/location-genius-bot/internal/config"
)

// newRateLimitSweepTask drops limiter entries for users idle longer than
// limits.rate_limit_idle so the limiter does not grow without bound.
func newRateLimitSweepTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "ratelimit_sweep")

	return func(ctx context.Context) error {
		idle := config.DefaultRateLimitIdle
		if deps.Config != nil && deps.Config.Limits.RateLimitIdle > 0 {
			idle = deps.Config.Limits.RateLimitIdle
		}

		removed := deps.Limiter.Sweep(idle)
		log.DebugContext(ctx, "Swept idle rate limit entries", "removed", removed, "remaining", deps.Limiter.Len())
		return nil
	}
}
