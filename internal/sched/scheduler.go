// Package sched owns the timers that drive the market core: quote polls,
// news refresh, store health checks, and the cosmetic latency gauge.
// Each tick runs an independent short task; tasks for the same key are
// collapsed through singleflight so a slow cycle never stacks duplicate
// requests behind itself.
package sched

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Task is one unit of periodic work. It must honor ctx cancellation.
type Task func(ctx context.Context) error

// Scheduler drives registered periodic tasks until its context ends.
type Scheduler struct {
	logger zerolog.Logger
	group  singleflight.Group
	wg     sync.WaitGroup
}

// New creates a scheduler.
func New(logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		logger: logger.With().Str("component", "scheduler").Logger(),
	}
}

// Every runs the task immediately and then on every interval tick until
// ctx is cancelled. Concurrent ticks for the same name collapse into the
// in-flight call instead of issuing a duplicate. Task errors are
// cycle-local: logged and forgotten, the next tick retries.
func (s *Scheduler) Every(ctx context.Context, name string, interval time.Duration, task Task) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		s.run(ctx, name, task)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				// Fresh independent task per tick; singleflight
				// collapses overlap, the sequence fencing in the
				// consumer discards out-of-order completions.
				s.wg.Add(1)
				go func() {
					defer s.wg.Done()
					s.run(ctx, name, task)
				}()
			}
		}
	}()
}

func (s *Scheduler) run(ctx context.Context, name string, task Task) {
	_, err, shared := s.group.Do(name, func() (interface{}, error) {
		return nil, task(ctx)
	})
	if shared {
		return // collapsed into another tick's call
	}
	if err != nil && ctx.Err() == nil {
		s.logger.Debug().Err(err).Str("task", name).Msg("cycle failed, retrying on next tick")
	}
}

// Wait blocks until all timer loops and in-flight tick tasks have
// exited. Call after cancelling the context passed to Every; once it
// returns, no registered task is running.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}
