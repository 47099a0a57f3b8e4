// Package sweeper drives the engine's expiry maintenance on a ticker.
package sweeper

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/likebank/likebank/internal/engine"
)

type Sweeper struct {
	engine   *engine.Engine
	interval time.Duration
	log      zerolog.Logger
}

func New(eng *engine.Engine, interval time.Duration, log zerolog.Logger) *Sweeper {
	return &Sweeper{engine: eng, interval: interval, log: log}
}

// Run sweeps once immediately, then on every tick until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		released, err := s.engine.SweepExpired(ctx)
		if err != nil {
			s.log.Error().Err(err).Msg("sweep failed")
		} else if len(released) > 0 {
			s.log.Info().Ints64("task_ids", released).Msg("released expired assignments")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
