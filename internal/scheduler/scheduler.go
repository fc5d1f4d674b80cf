// Package scheduler runs the game server's background housekeeping: the
// session expiry sweep, limiter pruning and periodic registry statistics.
package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/codebreaker-project/codebreaker/internal/config"
	"github.com/codebreaker-project/codebreaker/internal/metrics"
	"github.com/codebreaker-project/codebreaker/internal/network"
	"github.com/codebreaker-project/codebreaker/internal/registry"
	"github.com/codebreaker-project/codebreaker/internal/util"
)

// Scheduler manages periodic background tasks.
type Scheduler struct {
	cfg      *config.Config
	registry *registry.Registry
	metrics  *metrics.Metrics
	limiter  *network.IPLimiter
	logger   zerolog.Logger
}

// NewScheduler creates a scheduler over reg. m and limiter may be nil.
func NewScheduler(cfg *config.Config, reg *registry.Registry, m *metrics.Metrics, limiter *network.IPLimiter) *Scheduler {
	return &Scheduler{
		cfg:      cfg,
		registry: reg,
		metrics:  m,
		limiter:  limiter,
		logger:   util.ComponentLogger("scheduler"),
	}
}

// WithLogger replaces the component logger.
func (s *Scheduler) WithLogger(l zerolog.Logger) *Scheduler {
	s.logger = l
	return s
}

// Start runs the scheduled tasks and blocks until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info().
		Dur("sweep_interval", s.cfg.Server.SweepInterval()).
		Dur("stats_interval", s.cfg.Server.StatsLogInterval()).
		Msg("scheduler started")

	go s.runLoop(ctx, s.cfg.Server.SweepInterval(), func() { s.Sweep() })
	if s.cfg.Server.StatsLogInterval() > 0 {
		go s.runLoop(ctx, s.cfg.Server.StatsLogInterval(), s.LogStats)
	}

	<-ctx.Done()
	s.logger.Info().Msg("scheduler stopped")
}

func (s *Scheduler) runLoop(ctx context.Context, every time.Duration, task func()) {
	if every <= 0 {
		every = time.Second
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			task()
		}
	}
}

// Sweep times out every session whose budget is spent, refreshes the
// active-session gauge and prunes idle limiter entries. It returns the
// number of sessions it closed.
func (s *Scheduler) Sweep() int {
	expired := s.registry.ExpireSessions()
	if len(expired) > 0 {
		s.logger.Info().Ints("plids", expired).Msg("sessions timed out")
	}

	if s.metrics != nil {
		s.metrics.SetActiveSessions(s.registry.Stats().Active)
	}

	if s.limiter != nil {
		if n := s.limiter.Prune(s.cfg.Network.LimiterIdle()); n > 0 {
			s.logger.Debug().Int("pruned", n).Msg("idle limiter entries dropped")
		}
	}
	return len(expired)
}

// LogStats writes one line of registry statistics.
func (s *Scheduler) LogStats() {
	st := s.registry.Stats()
	ev := s.logger.Info().
		Int("sessions", st.Sessions).
		Int("active", st.Active).
		Int("scoreboard", st.Scoreboard)
	if s.limiter != nil {
		ev = ev.Int("tracked_ips", s.limiter.Tracked())
	}
	ev.Msg("registry stats")
}
