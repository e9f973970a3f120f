package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/edvin/mariaback/internal/backup"
	"github.com/edvin/mariaback/internal/config"
	"github.com/edvin/mariaback/internal/metrics"
	"github.com/edvin/mariaback/internal/runner"
)

// key identifies one scheduling unit.
type key struct {
	host     string
	database string
}

// Scheduler owns the poll loop and the in-memory last-run state. State does
// not survive restarts: a fixed-time unit whose instant already passed today
// fires once more after a restart.
type Scheduler struct {
	logger   zerolog.Logger
	runner   runner.Runner
	dumper   backup.UnitRunner
	servers  []config.Server
	interval time.Duration
	now      func() time.Time

	// triggers[i] belongs to servers[i]. Entries may share a host with
	// different policies, so triggers are never keyed by host name. nil means
	// on demand only, or disabled by a parse failure.
	triggers []Trigger

	mu      sync.Mutex
	lastRun map[key]time.Time
}

// New builds the scheduler, parsing every server entry's trigger. A malformed
// trigger disables that entry's units for the process lifetime and is
// reported here, once.
func New(logger zerolog.Logger, r runner.Runner, dumper backup.UnitRunner, cfg *config.Config) *Scheduler {
	s := &Scheduler{
		logger:   logger.With().Str("component", "scheduler").Logger(),
		runner:   r,
		dumper:   dumper,
		servers:  cfg.Servers,
		interval: cfg.Daemon.PollInterval(),
		now:      time.Now,
		triggers: make([]Trigger, len(cfg.Servers)),
		lastRun:  make(map[key]time.Time),
	}

	for i, srv := range cfg.Servers {
		trig, err := TriggerFor(srv)
		if err != nil {
			s.logger.Error().Err(err).Str("host", srv.Host).Msg("trigger disabled")
			continue
		}
		s.triggers[i] = trig
	}

	return s
}

// Run polls until the context is canceled.
func (s *Scheduler) Run(ctx context.Context) {
	active := 0
	for _, trig := range s.triggers {
		if trig != nil {
			active++
		}
	}
	s.logger.Info().Dur("interval", s.interval).Int("servers", active).Msg("starting schedule loop")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("schedule loop stopped")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick evaluates every scheduled unit once, running due dumps sequentially.
// Wildcard database lists are re-expanded against the server each tick, so
// newly created databases join the schedule without a restart.
func (s *Scheduler) Tick(ctx context.Context) {
	metrics.SchedulerTicksTotal.Inc()
	now := s.now()

	for i, srv := range s.servers {
		trig := s.triggers[i]
		if trig == nil {
			continue
		}

		units, err := backup.ExpandUnits(ctx, s.runner, srv)
		if err != nil {
			s.logger.Warn().Err(err).Str("host", srv.Host).Msg("database discovery failed, skipping this tick")
			continue
		}

		for _, u := range units {
			k := key{host: u.Host, database: u.Database}
			last := s.getLastRun(k)

			// Cron units prime on first sight so they fire at the next cron
			// instant instead of immediately.
			if _, isCron := trig.(Cron); isCron && last.IsZero() {
				s.setLastRun(k, now)
				continue
			}

			if !trig.Due(now, last) {
				continue
			}

			s.logger.Info().Str("host", u.Host).Str("database", u.Database).Str("trigger", trig.Describe()).Msg("backup due")
			metrics.ScheduledRunsTotal.WithLabelValues(u.Host, u.Database).Inc()

			if _, err := s.dumper.Run(ctx, u); err != nil {
				s.logger.Error().Err(err).Str("host", u.Host).Str("database", u.Database).Msg("scheduled backup failed")
			}

			// Recorded for failures too: a failed run waits for its next
			// trigger instant instead of retrying every tick.
			s.setLastRun(k, now)

			if ctx.Err() != nil {
				return
			}
		}
	}
}

func (s *Scheduler) getLastRun(k key) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun[k]
}

func (s *Scheduler) setLastRun(k key, t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastRun[k] = t
}

// UnitStatus describes one scheduled unit for the status endpoint.
type UnitStatus struct {
	Host     string    `json:"host"`
	Database string    `json:"database"`
	Trigger  string    `json:"trigger"`
	LastRun  time.Time `json:"last_run"`
}

// Snapshot renders the scheduler's current view: every named unit plus any
// discovered wildcard unit that has run state, in stable order. Same-host
// entries report their own triggers; a database named twice shows the first
// entry's policy.
func (s *Scheduler) Snapshot() []UnitStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []UnitStatus
	seen := make(map[key]bool)

	for i, srv := range s.servers {
		trig := s.triggers[i]
		if trig == nil {
			continue
		}

		for _, spec := range srv.Databases {
			if spec.IsWildcard() {
				continue
			}
			k := key{host: srv.Host, database: spec.Name}
			if seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, UnitStatus{Host: k.host, Database: k.database, Trigger: trig.Describe(), LastRun: s.lastRun[k]})
		}
	}

	// Discovered wildcard units exist only as run state, attributed to the
	// entry whose wildcard produced them.
	for i, srv := range s.servers {
		trig := s.triggers[i]
		if trig == nil || !hasWildcard(srv) {
			continue
		}

		for k, last := range s.lastRun {
			if k.host != srv.Host || seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, UnitStatus{Host: k.host, Database: k.database, Trigger: trig.Describe(), LastRun: last})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Host != out[j].Host {
			return out[i].Host < out[j].Host
		}
		return out[i].Database < out[j].Database
	})
	return out
}

func hasWildcard(srv config.Server) bool {
	for _, spec := range srv.Databases {
		if spec.IsWildcard() {
			return true
		}
	}
	return false
}
