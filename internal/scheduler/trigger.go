// Package scheduler decides when each (host, database) unit is due for a
// backup and drives the daemon's poll loop.
package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/edvin/mariaback/internal/config"
)

// Trigger decides whether a unit is due for a run.
type Trigger interface {
	// Due evaluates the trigger against wall-clock time and the unit's last
	// run. A zero lastRun means the unit never ran in this process lifetime.
	Due(now, lastRun time.Time) bool
	// Describe renders the trigger for logs and the status endpoint.
	Describe() string
}

// FixedTime fires once per calendar day at hh:mm local time.
type FixedTime struct {
	Hour   int
	Minute int
}

// ParseFixedTime parses the "HH:MM" daily trigger form.
func ParseFixedTime(s string) (FixedTime, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return FixedTime{}, fmt.Errorf("invalid schedule %q: want HH:MM", s)
	}
	return FixedTime{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// Due reports true from the day's trigger instant onward, until a run at or
// after that instant is recorded. The unit fires exactly once per day no
// matter how coarse the poll cadence is.
func (t FixedTime) Due(now, lastRun time.Time) bool {
	instant := time.Date(now.Year(), now.Month(), now.Day(), t.Hour, t.Minute, 0, 0, now.Location())
	if now.Before(instant) {
		return false
	}
	return lastRun.IsZero() || lastRun.Before(instant)
}

func (t FixedTime) Describe() string {
	return fmt.Sprintf("daily at %02d:%02d", t.Hour, t.Minute)
}

// Interval fires whenever at least the configured duration has passed since
// the last run, and immediately for units that never ran.
type Interval struct {
	Every time.Duration
}

func (t Interval) Due(now, lastRun time.Time) bool {
	return lastRun.IsZero() || now.Sub(lastRun) >= t.Every
}

func (t Interval) Describe() string {
	return fmt.Sprintf("every %s", t.Every)
}

// cronParser accepts the standard five-field form plus @-descriptors.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Cron fires per a five-field cron expression. Units start primed: the first
// fire happens at the first cron instant after the loop begins, not
// immediately.
type Cron struct {
	Expr     string
	Schedule cron.Schedule
}

// ParseCron parses a five-field cron trigger.
func ParseCron(expr string) (Cron, error) {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return Cron{}, fmt.Errorf("invalid cron %q: %w", expr, err)
	}
	return Cron{Expr: expr, Schedule: sched}, nil
}

func (t Cron) Due(now, lastRun time.Time) bool {
	if lastRun.IsZero() {
		return false
	}
	return !t.Schedule.Next(lastRun).After(now)
}

func (t Cron) Describe() string {
	return fmt.Sprintf("cron %s", t.Expr)
}

// TriggerFor builds a server's trigger. A nil trigger with nil error means
// the server runs on demand only.
func TriggerFor(srv config.Server) (Trigger, error) {
	switch {
	case srv.Schedule != "":
		t, err := ParseFixedTime(srv.Schedule)
		if err != nil {
			return nil, err
		}
		return t, nil
	case srv.IntervalHours > 0:
		return Interval{Every: time.Duration(srv.IntervalHours) * time.Hour}, nil
	case srv.Cron != "":
		t, err := ParseCron(srv.Cron)
		if err != nil {
			return nil, err
		}
		return t, nil
	}
	return nil, nil
}
