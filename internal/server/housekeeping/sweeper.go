// Package housekeeping runs periodic cleanup of expired single-use tokens.
// Consumption already ignores expired tokens; the sweep only keeps rows tidy.
package housekeeping

import (
	"context"
	"time"

	"github.com/dmitrijs2005/taskcamp/internal/logging"
	"github.com/dmitrijs2005/taskcamp/internal/server/clock"
	"github.com/robfig/cron/v3"
)

// Purger clears expired single-use token fields and reports how many rows changed.
type Purger interface {
	PurgeExpiredSingleUseTokens(ctx context.Context, now time.Time) (int64, error)
}

type Sweeper struct {
	purger  Purger
	clock   clock.Clock
	logger  logging.Logger
	timeout time.Duration
}

func NewSweeper(p Purger, c clock.Clock, l logging.Logger, timeout time.Duration) *Sweeper {
	return &Sweeper{purger: p, clock: c, logger: l.With("module", "housekeeping"), timeout: timeout}
}

// Sweep runs one purge pass.
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	n, err := s.purger.PurgeExpiredSingleUseTokens(ctx, s.clock.Now())
	if err != nil {
		s.logger.Error(ctx, "purge of expired tokens failed", "error", err)
		return 0, err
	}
	if n == 0 {
		s.logger.Debug(ctx, "no expired tokens to purge")
		return 0, nil
	}
	s.logger.Info(ctx, "purged expired tokens", "rows", n)
	return n, nil
}

// Run schedules Sweep on a cron schedule such as "@every 1h" and blocks until
// ctx is done, then waits for a running sweep to finish.
func (s *Sweeper) Run(ctx context.Context, schedule string) error {
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() { _, _ = s.Sweep(ctx) }); err != nil {
		return err
	}

	s.logger.Info(ctx, "starting token sweeper", "schedule", schedule)
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	s.logger.Info(ctx, "token sweeper stopped")
	return nil
}
