package backup

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/edvin/mariaback/internal/config"
	"github.com/edvin/mariaback/internal/mariadb"
	"github.com/edvin/mariaback/internal/runner"
)

// UnitRunner abstracts the dump pipeline for fan-out and scheduling.
type UnitRunner interface {
	Run(ctx context.Context, u mariadb.Unit) (string, error)
}

// ExpandUnits resolves a server's database list into concrete units,
// querying the server when the wildcard entry is present. Duplicates keep
// their first occurrence, so explicit entries win over discovered ones.
func ExpandUnits(ctx context.Context, r runner.Runner, srv config.Server) ([]mariadb.Unit, error) {
	var units []mariadb.Unit
	seen := make(map[string]bool)

	add := func(spec config.DatabaseSpec) {
		if seen[spec.Name] {
			return
		}
		seen[spec.Name] = true
		units = append(units, mariadb.UnitFor(srv, spec))
	}

	for _, spec := range srv.Databases {
		if !spec.IsWildcard() {
			add(spec)
			continue
		}

		names, err := mariadb.ListDatabases(ctx, r, srv)
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			add(config.DatabaseSpec{Name: name, TimeoutSecs: spec.TimeoutSecs})
		}
	}
	return units, nil
}

// Orchestrator fans one immediate backup pass out across every configured
// server, isolating failures per unit.
type Orchestrator struct {
	logger  zerolog.Logger
	runner  runner.Runner
	dumper  UnitRunner
	servers []config.Server
}

// NewOrchestrator creates the run-now fan-out.
func NewOrchestrator(logger zerolog.Logger, r runner.Runner, dumper UnitRunner, servers []config.Server) *Orchestrator {
	return &Orchestrator{
		logger:  logger.With().Str("component", "orchestrator").Logger(),
		runner:  r,
		dumper:  dumper,
		servers: servers,
	}
}

// Summary counts one fan-out pass. Ran counts units attempted, Failed the
// ones that errored, Skipped the servers dropped because discovery failed.
type Summary struct {
	Ran     int
	Failed  int
	Skipped int
}

// RunAll dumps every unit of every server sequentially, continuing past
// failures. onUnit, when non-nil, observes each unit's outcome as it
// completes.
func (o *Orchestrator) RunAll(ctx context.Context, onUnit func(u mariadb.Unit, err error)) Summary {
	var sum Summary
	for _, srv := range o.servers {
		units, err := ExpandUnits(ctx, o.runner, srv)
		if err != nil {
			o.logger.Error().Err(err).Str("host", srv.Host).Msg("database discovery failed, skipping server")
			sum.Skipped++
			continue
		}

		for _, u := range units {
			_, err := o.dumper.Run(ctx, u)
			sum.Ran++
			if err != nil {
				sum.Failed++
			}
			if onUnit != nil {
				onUnit(u, err)
			}
		}
	}
	return sum
}
