// internal/stats/runner.go
package stats

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Run starts the ticker loop and samples every Interval.
// One goroutine. No overlap. No retries.
func (c *Collector) Run(ctx context.Context) {
	if c.cfg.Interval <= 0 {
		c.log.Warn("stats interval not set, sampler not started")
		return
	}
	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Sample(ctx); err != nil {
				c.log.Error("stats sample failed", zap.Error(err))
			}
		}
	}
}
