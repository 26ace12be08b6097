package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Every runs fn now and then once per interval until ctx is done. A panic in
// one iteration is logged and the schedule continues.
func Every(ctx context.Context, name string, interval time.Duration, fn func(context.Context)) {
	log.Info().Str("worker", name).Dur("interval", interval).Msg("Starting worker")

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("worker", name).Msg("Worker stopped")
			return
		case <-timer.C:
		}

		runOnce(ctx, name, fn)
		timer.Reset(interval)
	}
}

func runOnce(ctx context.Context, name string, fn func(context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("worker", name).Interface("panic", r).Msg("Recovered panic in worker iteration")
		}
	}()
	fn(ctx)
}

// Group tracks a set of periodic workers sharing one context.
type Group struct {
	wg sync.WaitGroup
}

func (g *Group) Go(ctx context.Context, name string, interval time.Duration, fn func(context.Context)) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		Every(ctx, name, interval, fn)
	}()
}

func (g *Group) Wait() {
	g.wg.Wait()
}
