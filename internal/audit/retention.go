package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type RetentionConfig struct {
	// Schedule is a five-field cron expression.
	Schedule string
	// Keep is how long entries survive. Zero disables retention.
	Keep     time.Duration
	Location *time.Location
}

// PruneOnce removes entries older than keep, measured from now.
func PruneOnce(ctx context.Context, p Pruner, keep time.Duration, now time.Time) (int64, error) {
	return p.Prune(ctx, now.Add(-keep))
}

// StartRetention prunes the audit log on the configured schedule until ctx is
// done. It returns without starting anything when retention is disabled.
func StartRetention(ctx context.Context, cfg RetentionConfig, p Pruner, log *zap.Logger) error {
	schedule := strings.TrimSpace(cfg.Schedule)
	if schedule == "" || cfg.Keep <= 0 {
		log.Info("audit retention disabled")
		return nil
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(schedule)
	if err != nil {
		return fmt.Errorf("invalid audit_retention_schedule %q: %w", schedule, err)
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	log.Info("audit retention scheduled", zap.String("cron", schedule), zap.Duration("keep", cfg.Keep))

	go func() {
		for {
			now := time.Now().In(loc)
			next := sched.Next(now)
			timer := time.NewTimer(next.Sub(now))
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}

			n, err := PruneOnce(ctx, p, cfg.Keep, time.Now())
			if err != nil {
				log.Warn("audit retention failed", zap.Error(err))
				continue
			}
			log.Info("audit retention pruned entries", zap.Int64("removed", n), zap.Time("next", sched.Next(time.Now().In(loc))))
		}
	}()
	return nil
}
