package schedule

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, 3, 10, 14, 30, 15, 0, time.UTC)

func TestPollIdleIsNoop(t *testing.T) {
	cfg := Config{Unit: Second, Magnitude: 5}
	s, d := Poll(cfg, State{}, base)

	assert.False(t, d.Due)
	assert.True(t, s.NextFire.IsZero())
	assert.False(t, s.Running)
}

func TestPollIntervalUnits(t *testing.T) {
	for _, unit := range []TimeUnit{Second, Minute, Hour} {
		for _, m := range []int{1, 2, 7} {
			cfg := Config{Unit: unit, Magnitude: m}
			interval := time.Duration(int64(m)*unit.Seconds()) * time.Second

			s := Start(State{})
			s, d := Poll(cfg, s, base)
			require.False(t, d.Due, "%s/%d: first poll only computes", unit, m)
			require.Equal(t, base.Add(interval), s.NextFire)

			// walk the clock one second at a time over three intervals
			fires := 0
			var firedAt []time.Time
			for now := base.Add(time.Second); !now.After(base.Add(3 * interval)); now = now.Add(time.Second) {
				s, d = Poll(cfg, s, now)
				if d.Due {
					fires++
					firedAt = append(firedAt, d.FiredAt)
					assert.False(t, now.Sub(base) < interval, "%s/%d fired early", unit, m)
				}
			}

			assert.Equal(t, 3, fires, "%s/%d", unit, m)
			for i, at := range firedAt {
				assert.Equal(t, base.Add(time.Duration(i+1)*interval), at)
			}
		}
	}
}

func TestPollAdvancesFromOldFireTime(t *testing.T) {
	cfg := Config{Unit: Minute, Magnitude: 1}
	s := Start(State{})
	s, _ = Poll(cfg, s, base)

	// a late poll must not shift the schedule
	late := base.Add(90 * time.Second)
	s, d := Poll(cfg, s, late)
	require.True(t, d.Due)
	assert.Equal(t, base.Add(2*time.Minute), s.NextFire)
	assert.True(t, s.NextFire.After(late))
}

func TestPollReportsRemaining(t *testing.T) {
	cfg := Config{Unit: Hour, Magnitude: 2}
	s := Start(State{})
	s, _ = Poll(cfg, s, base)

	_, d := Poll(cfg, s, base.Add(30*time.Minute))
	assert.False(t, d.Due)
	assert.Equal(t, 90*time.Minute, d.Remaining)
	assert.Equal(t, "1h 30m 0s", FormatRemaining(d.Remaining))
}

func TestZeroMagnitudeFiresEveryPoll(t *testing.T) {
	cfg := Config{Unit: Second, Magnitude: 0}
	s := Start(State{})
	s, d := Poll(cfg, s, base)
	require.False(t, d.Due)

	for i := 0; i < 3; i++ {
		s, d = Poll(cfg, s, base)
		assert.True(t, d.Due)
	}
}

func TestDailyFirstFire(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		hour int
		want time.Time
	}{
		{"before hour", time.Date(2024, 3, 10, 2, 59, 59, 0, time.UTC), 3, time.Date(2024, 3, 10, 3, 0, 0, 0, time.UTC)},
		{"at hour", time.Date(2024, 3, 10, 3, 0, 0, 0, time.UTC), 3, time.Date(2024, 3, 11, 3, 0, 0, 0, time.UTC)},
		{"after hour", time.Date(2024, 3, 10, 22, 10, 0, 0, time.UTC), 3, time.Date(2024, 3, 11, 3, 0, 0, 0, time.UTC)},
		{"midnight", time.Date(2024, 3, 10, 0, 0, 1, 0, time.UTC), 0, time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)},
		{"late hour", time.Date(2024, 12, 31, 22, 0, 0, 0, time.UTC), 23, time.Date(2024, 12, 31, 23, 0, 0, 0, time.UTC)},
		{"month rollover", time.Date(2024, 2, 29, 23, 30, 0, 0, time.UTC), 23, time.Date(2024, 3, 1, 23, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{Unit: Day, Magnitude: 1, DailyHour: tt.hour}
			s, d := Poll(cfg, Start(State{}), tt.now)
			assert.False(t, d.Due)
			assert.Equal(t, tt.want, s.NextFire)
		})
	}
}

func TestDailyFiresEveryDay(t *testing.T) {
	cfg := Config{Unit: Day, DailyHour: 6}
	start := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	s, _ := Poll(cfg, Start(State{}), start)
	var fired []time.Time
	for now := start; now.Before(start.Add(72 * time.Hour)); now = now.Add(time.Minute) {
		var d Decision
		s, d = Poll(cfg, s, now)
		if d.Due {
			fired = append(fired, d.FiredAt)
		}
	}

	require.Len(t, fired, 3)
	assert.Equal(t, time.Date(2024, 5, 2, 6, 0, 0, 0, time.UTC), fired[0])
	for i := 1; i < len(fired); i++ {
		assert.Equal(t, 24*time.Hour, fired[i].Sub(fired[i-1]))
	}
}

func TestRestartRecomputesFromNow(t *testing.T) {
	cfg := Config{Unit: Minute, Magnitude: 10}
	s, _ := Poll(cfg, Start(State{}), base)
	s, _ = Poll(cfg, s, base.Add(4*time.Minute))

	s = Stop(s)
	assert.True(t, s.NextFire.IsZero())

	restart := base.Add(5 * time.Minute)
	s, _ = Poll(cfg, Start(s), restart)
	assert.Equal(t, restart.Add(10*time.Minute), s.NextFire)
}

func TestHugeMagnitudeStaysInFuture(t *testing.T) {
	for _, cfg := range []Config{
		{Unit: Hour, Magnitude: 3000000},
		{Unit: Hour, Magnitude: math.MaxInt32},
		{Unit: Minute, Magnitude: math.MaxInt},
		{Unit: Second, Magnitude: math.MaxInt},
	} {
		t.Run(cfg.String(), func(t *testing.T) {
			require.NoError(t, cfg.Validate())
			assert.Positive(t, cfg.Interval())

			s, d := Poll(cfg, Start(State{}), base)
			assert.False(t, d.Due)
			assert.True(t, s.NextFire.After(base), "next fire %v not after %v", s.NextFire, base)

			s, d = Poll(cfg, s, base.Add(time.Second))
			assert.False(t, d.Due)
			assert.Positive(t, d.Remaining)

			// a fire that did happen steps forward, not back
			assert.True(t, Advance(cfg, s.NextFire).After(s.NextFire))
		})
	}

	assert.Equal(t, MaxInterval, Config{Unit: Hour, Magnitude: math.MaxInt32}.Interval())
	assert.Equal(t, 2000000*time.Hour, Config{Unit: Hour, Magnitude: 2000000}.Interval())
	assert.Equal(t, int64(math.MaxInt32), Config{Unit: Second, Magnitude: math.MaxInt32}.IntervalSeconds())
}

func TestFormatRemaining(t *testing.T) {
	assert.Equal(t, "0s", FormatRemaining(0))
	assert.Equal(t, "0s", FormatRemaining(-time.Second))
	assert.Equal(t, "59s", FormatRemaining(59*time.Second+900*time.Millisecond))
	assert.Equal(t, "1m 0s", FormatRemaining(time.Minute))
	assert.Equal(t, "25h 1m 1s", FormatRemaining(25*time.Hour+61*time.Second))
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, Config{Unit: Day, DailyHour: 23}.Validate())
	assert.NoError(t, Config{Unit: Second}.Validate())
	assert.ErrorIs(t, Config{Unit: Second, Magnitude: -1}.Validate(), ErrNegativeMagnitude)
	assert.ErrorIs(t, Config{Unit: Day, DailyHour: 24}.Validate(), ErrDailyHourRange)
	assert.ErrorIs(t, Config{Unit: TimeUnit(9)}.Validate(), ErrUnknownUnit)
}

func TestTimeUnitJSON(t *testing.T) {
	for _, u := range Units() {
		data, err := json.Marshal(u)
		require.NoError(t, err)
		assert.Equal(t, `"`+u.String()+`"`, string(data))

		var back TimeUnit
		require.NoError(t, json.Unmarshal(data, &back))
		assert.Equal(t, u, back)
	}

	var u TimeUnit
	assert.Error(t, json.Unmarshal([]byte(`"Week"`), &u))
	assert.Error(t, json.Unmarshal([]byte(`3`), &u))
}

func TestTimeUnitTable(t *testing.T) {
	assert.Equal(t, int64(3600), Hour.Seconds())
	assert.Equal(t, 60, Minute.MaxMagnitude())
	assert.Equal(t, 24, Hour.MaxMagnitude())
	assert.Equal(t, 30, Day.MaxMagnitude())
	assert.Equal(t, int64(3*86400), Config{Unit: Day, Magnitude: 3}.IntervalSeconds())
}
