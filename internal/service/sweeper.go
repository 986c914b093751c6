package service

import (
	"context"
	"time"

	"cstore/internal/core/ports"
	"cstore/internal/metrics"

	"github.com/rs/zerolog"
)

// Sweeper periodically drives the lifecycle engine's expiry pass: automatic
// escrows past their window are released, the rest are expired.
type Sweeper struct {
	escrows  ports.EscrowService
	interval time.Duration
	log      zerolog.Logger
	done     chan struct{}
}

// NewSweeper creates a sweeper. A non-positive interval defaults to one hour.
func NewSweeper(escrows ports.EscrowService, interval time.Duration, log zerolog.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Sweeper{
		escrows:  escrows,
		interval: interval,
		log:      log,
		done:     make(chan struct{}),
	}
}

// Start runs the sweep loop until the context is cancelled or Stop is called.
// It blocks; run it in its own goroutine.
func (s *Sweeper) Start(ctx context.Context) {
	s.log.Info().Dur("interval", s.interval).Msg("expiry sweeper started")
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("expiry sweeper stopped")
			return
		case <-s.done:
			s.log.Info().Msg("expiry sweeper stopped")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// Stop signals the loop to exit. Safe to call once.
func (s *Sweeper) Stop() {
	close(s.done)
}

// RunOnce performs a single sweep pass.
func (s *Sweeper) RunOnce(ctx context.Context) {
	released, expired, err := s.escrows.Sweep(ctx, time.Now().UTC())
	if err != nil {
		metrics.SweeperRunsTotal.WithLabelValues("error").Inc()
		s.log.Error().Err(err).Msg("sweep pass failed")
		return
	}
	metrics.SweeperRunsTotal.WithLabelValues("success").Inc()
	if released > 0 || expired > 0 {
		s.log.Info().Int("released", released).Int("expired", expired).Msg("sweep pass complete")
	} else {
		s.log.Debug().Msg("sweep pass complete, nothing to do")
	}
}
