package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/mariaback/internal/config"
)

func at(day, hour, min int) time.Time {
	return time.Date(2026, time.January, day, hour, min, 0, 0, time.UTC)
}

func TestParseFixedTime(t *testing.T) {
	ft, err := ParseFixedTime("02:00")
	require.NoError(t, err)
	assert.Equal(t, FixedTime{Hour: 2}, ft)

	ft, err = ParseFixedTime("23:59")
	require.NoError(t, err)
	assert.Equal(t, FixedTime{Hour: 23, Minute: 59}, ft)

	for _, s := range []string{"", "26:00", "02:60", "2pm", "0200", "daily"} {
		t.Run("invalid_"+s, func(t *testing.T) {
			_, err := ParseFixedTime(s)
			assert.Error(t, err)
		})
	}
}

func TestFixedTime_Due(t *testing.T) {
	trig := FixedTime{Hour: 2}

	tests := []struct {
		name    string
		now     time.Time
		lastRun time.Time
		want    bool
	}{
		{"before the instant", at(18, 1, 59), time.Time{}, false},
		{"at the instant", at(18, 2, 0), time.Time{}, true},
		{"after the instant, never ran", at(18, 14, 0), time.Time{}, true},
		{"already ran today", at(18, 2, 30), at(18, 2, 5), false},
		{"ran yesterday", at(19, 2, 1), at(18, 2, 5), true},
		{"ran yesterday, before today's instant", at(19, 1, 30), at(18, 2, 5), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, trig.Due(tt.now, tt.lastRun))
		})
	}
}

func TestInterval_Due(t *testing.T) {
	trig := Interval{Every: 6 * time.Hour}

	assert.True(t, trig.Due(at(18, 10, 0), time.Time{}), "never ran")
	assert.True(t, trig.Due(at(18, 10, 0), at(18, 4, 0)), "exactly the interval")
	assert.False(t, trig.Due(at(18, 9, 59), at(18, 4, 0)), "one minute short")
	assert.True(t, trig.Due(at(19, 10, 0), at(18, 4, 0)), "long overdue")
}

func TestParseCron(t *testing.T) {
	_, err := ParseCron("0 3 * * *")
	require.NoError(t, err)

	_, err = ParseCron("not a cron")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid cron")
}

func TestCron_Due(t *testing.T) {
	trig, err := ParseCron("0 3 * * *")
	require.NoError(t, err)

	// Zero lastRun never fires; the scheduler primes it first.
	assert.False(t, trig.Due(at(18, 4, 0), time.Time{}))

	assert.False(t, trig.Due(at(19, 2, 59), at(18, 4, 0)), "before the next instant")
	assert.True(t, trig.Due(at(19, 3, 0), at(18, 4, 0)), "at the next instant")
	assert.True(t, trig.Due(at(19, 3, 30), at(18, 4, 0)), "past the next instant")
	assert.False(t, trig.Due(at(19, 3, 30), at(19, 3, 30)), "already ran at it")
}

func TestTriggerFor(t *testing.T) {
	trig, err := TriggerFor(config.Server{Schedule: "02:00"})
	require.NoError(t, err)
	assert.Equal(t, "daily at 02:00", trig.Describe())

	trig, err = TriggerFor(config.Server{IntervalHours: 6})
	require.NoError(t, err)
	assert.Equal(t, "every 6h0m0s", trig.Describe())

	trig, err = TriggerFor(config.Server{Cron: "*/15 * * * *"})
	require.NoError(t, err)
	assert.Equal(t, "cron */15 * * * *", trig.Describe())

	trig, err = TriggerFor(config.Server{})
	require.NoError(t, err)
	assert.Nil(t, trig)

	_, err = TriggerFor(config.Server{Schedule: "26:00"})
	require.Error(t, err)
}
