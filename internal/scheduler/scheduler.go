package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/codex-app/codex/pkg/ctxutil"
	"github.com/codex-app/codex/pkg/logger"
)

// PurgeRunner is one purge pass. Satisfied by *service.PurgeService.
type PurgeRunner interface {
	Run(ctx context.Context) (int, error)
}

// Scheduler triggers the account purge on a fixed interval. One pass
// runs immediately on start so a restart never extends retention.
type Scheduler struct {
	purge    PurgeRunner
	interval time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(purge PurgeRunner, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &Scheduler{purge: purge, interval: interval}
}

// Start launches the scheduling loop in its own goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop(ctx)
	}()
}

// Stop cancels the loop and waits for any in-flight pass to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context) {
	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	ctx = ctxutil.NewContext(ctx, "scheduler", "runOnce")

	deleted, err := s.purge.Run(ctx)
	if err != nil {
		logger.ErrorWithContext(ctx, "Scheduled purge failed").
			Err(err).
			Log()
		return
	}
	if deleted > 0 {
		logger.InfoWithContext(ctx, "Scheduled purge removed expired accounts").
			Int("deleted", deleted).
			Log()
	}
}
