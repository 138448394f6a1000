package supervisor

import (
	"context"
	"log/slog"
	"time"

	"github.com/beligro/smart-carwash-sub000/internal/pkg/config"
	"github.com/beligro/smart-carwash-sub000/internal/usecase"
)

// Supervisor drives the time-based transitions: assignment expiry, rental
// auto-complete, chemistry auto-off, cleaning auto-finish and idempotency-key
// purging. One pass per tick; a slow pass delays the next tick instead of
// overlapping it.
type Supervisor struct {
	commands *usecase.SessionCommands
	tick     time.Duration
	logger   *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

func New(commands *usecase.SessionCommands, cfg config.EngineConfig, logger *slog.Logger) *Supervisor {
	return &Supervisor{
		commands: commands,
		tick:     cfg.SupervisorTick,
		logger:   logger,
	}
}

func (s *Supervisor) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.run(ctx)
	s.logger.Info("timeout supervisor started", "tick", s.tick)
}

// Stop blocks until the in-flight pass finishes.
func (s *Supervisor) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.logger.Info("timeout supervisor stopped")
}

func (s *Supervisor) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Pass(ctx)
		}
	}
}

// Pass runs every scan once. Each scan logs and skips its own failures, so a
// broken coil or a bad row never stalls the other timers.
func (s *Supervisor) Pass(ctx context.Context) {
	s.commands.ExpireAssignments(ctx)
	s.commands.CompleteExpiredRentals(ctx)
	s.commands.DisableExpiredChemistry(ctx)
	s.commands.FinishExpiredCleanings(ctx)
	s.commands.PurgeIdempotencyKeys(ctx)

	// Catches boxes freed by a process that died before its own dispatch ran.
	s.commands.Dispatch(ctx)
}
