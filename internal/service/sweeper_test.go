package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cstore/internal/core/ports"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

// sweepOnlyService stubs the one lifecycle method the sweeper drives. The
// embedded interface is nil; any other call would panic, which is exactly
// what we want from the sweeper.
type sweepOnlyService struct {
	ports.EscrowService
	mu       sync.Mutex
	calls    int
	released int
	expired  int
	err      error
}

func (s *sweepOnlyService) Sweep(context.Context, time.Time) (int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.released, s.expired, s.err
}

func (s *sweepOnlyService) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestSweeper_RunOnce(t *testing.T) {
	svc := &sweepOnlyService{released: 2, expired: 1}
	sw := NewSweeper(svc, time.Hour, zerolog.Nop())

	sw.RunOnce(context.Background())
	assert.Equal(t, 1, svc.callCount())
}

func TestSweeper_RunOnce_ErrorIsNotFatal(t *testing.T) {
	svc := &sweepOnlyService{err: errors.New("db unreachable")}
	sw := NewSweeper(svc, time.Hour, zerolog.Nop())

	sw.RunOnce(context.Background())
	sw.RunOnce(context.Background())
	assert.Equal(t, 2, svc.callCount(), "a failed pass does not stop future passes")
}

func TestSweeper_DefaultInterval(t *testing.T) {
	sw := NewSweeper(&sweepOnlyService{}, 0, zerolog.Nop())
	assert.Equal(t, time.Hour, sw.interval)
}

func TestSweeper_StopEndsLoop(t *testing.T) {
	svc := &sweepOnlyService{}
	sw := NewSweeper(svc, 5*time.Millisecond, zerolog.Nop())

	stopped := make(chan struct{})
	go func() {
		sw.Start(context.Background())
		close(stopped)
	}()

	// Let a few ticks land, then stop.
	time.Sleep(30 * time.Millisecond)
	sw.Stop()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
	assert.GreaterOrEqual(t, svc.callCount(), 1)
}

func TestSweeper_ContextCancelEndsLoop(t *testing.T) {
	svc := &sweepOnlyService{}
	sw := NewSweeper(svc, time.Hour, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		sw.Start(ctx)
		close(stopped)
	}()

	cancel()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not honor context cancellation")
	}
}
