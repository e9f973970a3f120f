package scheduler

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/mariaback/internal/config"
	"github.com/edvin/mariaback/internal/mariadb"
	"github.com/edvin/mariaback/internal/runner"
)

type fakeDumper struct {
	runs []string
	err  error
}

func (f *fakeDumper) Run(_ context.Context, u mariadb.Unit) (string, error) {
	f.runs = append(f.runs, u.Host+"/"+u.Database)
	return "", f.err
}

type fakeRunner struct {
	listing string
	err     error
}

func (f *fakeRunner) RunPipeline(context.Context, runner.Spec, runner.Spec, io.Writer, time.Duration) error {
	return nil
}

func (f *fakeRunner) Output(context.Context, runner.Spec) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []byte(f.listing), nil
}

func testScheduler(servers []config.Server, d *fakeDumper, r runner.Runner) *Scheduler {
	cfg := &config.Config{
		Daemon:  config.Daemon{PollIntervalSecs: 60},
		Servers: servers,
	}
	return New(zerolog.Nop(), r, d, cfg)
}

func fixedServer(schedule string, dbs ...string) config.Server {
	srv := config.Server{
		Host: "db1.example.com", Port: 3306, User: "backup", TimeoutSecs: 3600,
		Schedule: schedule,
	}
	for _, db := range dbs {
		srv.Databases = append(srv.Databases, config.DatabaseSpec{Name: db})
	}
	return srv
}

func tickAt(s *Scheduler, now time.Time) {
	s.now = func() time.Time { return now }
	s.Tick(context.Background())
}

func TestScheduler_FixedTimeFiresOncePerDay(t *testing.T) {
	d := &fakeDumper{}
	s := testScheduler([]config.Server{fixedServer("02:00", "shop")}, d, &fakeRunner{})

	tickAt(s, at(18, 1, 59))
	assert.Empty(t, d.runs)

	tickAt(s, at(18, 2, 0))
	assert.Equal(t, []string{"db1.example.com/shop"}, d.runs)

	// Later ticks the same day do not fire again.
	tickAt(s, at(18, 2, 1))
	tickAt(s, at(18, 23, 59))
	assert.Len(t, d.runs, 1)

	tickAt(s, at(19, 2, 0))
	assert.Len(t, d.runs, 2)
}

func TestScheduler_FailedRunWaitsForNextTrigger(t *testing.T) {
	d := &fakeDumper{err: errors.New("dump failed")}
	s := testScheduler([]config.Server{fixedServer("02:00", "shop")}, d, &fakeRunner{})

	tickAt(s, at(18, 2, 0))
	tickAt(s, at(18, 2, 1))
	tickAt(s, at(18, 2, 2))

	// The failure consumed today's instant; no retry until tomorrow.
	assert.Len(t, d.runs, 1)

	tickAt(s, at(19, 2, 0))
	assert.Len(t, d.runs, 2)
}

func TestScheduler_IntervalTrigger(t *testing.T) {
	srv := fixedServer("", "shop")
	srv.IntervalHours = 6
	d := &fakeDumper{}
	s := testScheduler([]config.Server{srv}, d, &fakeRunner{})

	// Units that never ran are due immediately.
	tickAt(s, at(18, 10, 0))
	assert.Len(t, d.runs, 1)

	tickAt(s, at(18, 13, 0))
	assert.Len(t, d.runs, 1)

	tickAt(s, at(18, 16, 0))
	assert.Len(t, d.runs, 2)
}

func TestScheduler_MalformedScheduleDisablesServer(t *testing.T) {
	bad := fixedServer("26:00", "shop")
	good := fixedServer("02:00", "analytics")
	good.Host = "db2.example.com"

	d := &fakeDumper{}
	s := testScheduler([]config.Server{bad, good}, d, &fakeRunner{})

	tickAt(s, at(18, 2, 0))
	tickAt(s, at(19, 2, 0))

	assert.Equal(t, []string{"db2.example.com/analytics", "db2.example.com/analytics"}, d.runs)
}

func TestScheduler_SameHostEntriesKeepOwnTriggers(t *testing.T) {
	fixed := fixedServer("02:00", "alpha")
	interval := fixedServer("", "beta")
	interval.IntervalHours = 1

	d := &fakeDumper{}
	s := testScheduler([]config.Server{fixed, interval}, d, &fakeRunner{})

	// Only the interval entry is due before the sibling's instant.
	tickAt(s, at(18, 1, 0))
	assert.Equal(t, []string{"db1.example.com/beta"}, d.runs)

	tickAt(s, at(18, 2, 0))
	assert.Equal(t, []string{"db1.example.com/beta", "db1.example.com/alpha", "db1.example.com/beta"}, d.runs)

	units := s.Snapshot()
	require.Len(t, units, 2)
	assert.Equal(t, "alpha", units[0].Database)
	assert.Equal(t, "daily at 02:00", units[0].Trigger)
	assert.Equal(t, "beta", units[1].Database)
	assert.Equal(t, "every 1h0m0s", units[1].Trigger)
}

func TestScheduler_MalformedEntryLeavesSiblingActive(t *testing.T) {
	bad := fixedServer("not-a-time", "alpha")
	good := fixedServer("", "beta")
	good.IntervalHours = 1

	d := &fakeDumper{}
	s := testScheduler([]config.Server{bad, good}, d, &fakeRunner{})

	tickAt(s, at(18, 1, 0))
	tickAt(s, at(18, 2, 0))

	// The disabled entry never fires, not even under its sibling's trigger.
	assert.Equal(t, []string{"db1.example.com/beta", "db1.example.com/beta"}, d.runs)
	assert.NotContains(t, d.runs, "db1.example.com/alpha")
}

func TestScheduler_OnDemandOnlyServerNeverFires(t *testing.T) {
	d := &fakeDumper{}
	s := testScheduler([]config.Server{fixedServer("", "shop")}, d, &fakeRunner{})

	tickAt(s, at(18, 2, 0))
	assert.Empty(t, d.runs)
}

func TestScheduler_CronPrimesThenFiresAtNextInstant(t *testing.T) {
	srv := fixedServer("", "shop")
	srv.Cron = "0 3 * * *"
	d := &fakeDumper{}
	s := testScheduler([]config.Server{srv}, d, &fakeRunner{})

	// First sight primes the unit instead of running it.
	tickAt(s, at(18, 4, 0))
	assert.Empty(t, d.runs)

	tickAt(s, at(19, 2, 59))
	assert.Empty(t, d.runs)

	tickAt(s, at(19, 3, 30))
	assert.Equal(t, []string{"db1.example.com/shop"}, d.runs)

	tickAt(s, at(19, 3, 31))
	assert.Len(t, d.runs, 1)
}

func TestScheduler_WildcardUnitsTrackedIndependently(t *testing.T) {
	srv := fixedServer("", "*")
	srv.IntervalHours = 6
	d := &fakeDumper{}
	s := testScheduler([]config.Server{srv}, d, &fakeRunner{listing: "alpha\nbeta\n"})

	tickAt(s, at(18, 10, 0))
	assert.Equal(t, []string{"db1.example.com/alpha", "db1.example.com/beta"}, d.runs)

	tickAt(s, at(18, 10, 1))
	assert.Len(t, d.runs, 2)

	tickAt(s, at(18, 16, 0))
	assert.Len(t, d.runs, 4)
}

func TestScheduler_DiscoveryFailureSkipsTick(t *testing.T) {
	srv := fixedServer("", "*")
	srv.IntervalHours = 6
	r := &fakeRunner{err: errors.New("connection refused")}
	d := &fakeDumper{}
	s := testScheduler([]config.Server{srv}, d, r)

	tickAt(s, at(18, 10, 0))
	assert.Empty(t, d.runs)

	// Recovery on a later tick runs the discovered units.
	r.err = nil
	r.listing = "alpha\n"
	tickAt(s, at(18, 10, 1))
	assert.Equal(t, []string{"db1.example.com/alpha"}, d.runs)
}

func TestScheduler_Snapshot(t *testing.T) {
	d := &fakeDumper{}
	s := testScheduler([]config.Server{fixedServer("02:00", "shop")}, d, &fakeRunner{})

	tickAt(s, at(18, 2, 0))

	units := s.Snapshot()
	require.Len(t, units, 1)
	assert.Equal(t, "db1.example.com", units[0].Host)
	assert.Equal(t, "shop", units[0].Database)
	assert.Equal(t, "daily at 02:00", units[0].Trigger)
	assert.Equal(t, at(18, 2, 0), units[0].LastRun)
}

func TestScheduler_SnapshotIncludesDiscoveredUnits(t *testing.T) {
	srv := fixedServer("", "*")
	srv.IntervalHours = 6
	d := &fakeDumper{}
	s := testScheduler([]config.Server{srv}, d, &fakeRunner{listing: "alpha\nbeta\n"})

	tickAt(s, at(18, 10, 0))

	units := s.Snapshot()
	require.Len(t, units, 2)
	assert.Equal(t, "alpha", units[0].Database)
	assert.Equal(t, "beta", units[1].Database)
}
