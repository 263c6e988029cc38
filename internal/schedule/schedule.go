// Package schedule decides when the next backup fires.
//
// Everything here is a pure function of the config, the current state and the
// time passed in, so callers own the clock.
package schedule

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// MaxInterval is the longest gap a schedule can express. Larger intervals are
// clamped to it so the next fire never wraps into the past.
const MaxInterval = time.Duration(math.MaxInt64)

var (
	ErrNegativeMagnitude = errors.New("magnitude must not be negative")
	ErrDailyHourRange    = errors.New("daily hour must be between 0 and 23")
	ErrUnknownUnit       = errors.New("unknown time unit")
)

// Config is the user-selected schedule
type Config struct {
	Unit      TimeUnit
	Magnitude int
	DailyHour int
}

func (c Config) Validate() error {
	if !c.Unit.Valid() {
		return ErrUnknownUnit
	}
	if c.Magnitude < 0 {
		return ErrNegativeMagnitude
	}
	if c.DailyHour < 0 || c.DailyHour > 23 {
		return ErrDailyHourRange
	}
	return nil
}

// Daily reports whether the schedule is pinned to an hour of day
func (c Config) Daily() bool {
	return c.Unit == Day
}

// Interval is magnitude × unit length, at most MaxInterval. Day schedules
// ignore it.
func (c Config) Interval() time.Duration {
	secs := c.IntervalSeconds()
	if secs > int64(MaxInterval/time.Second) {
		return MaxInterval
	}
	return time.Duration(secs) * time.Second
}

// IntervalSeconds mirrors Interval for display, including Day. It saturates
// at math.MaxInt64.
func (c Config) IntervalSeconds() int64 {
	per := c.Unit.Seconds()
	if per > 0 && int64(c.Magnitude) > math.MaxInt64/per {
		return math.MaxInt64
	}
	return int64(c.Magnitude) * per
}

func (c Config) String() string {
	if c.Daily() {
		return fmt.Sprintf("daily at %02d:00", c.DailyHour)
	}
	return fmt.Sprintf("every %d %s(s)", c.Magnitude, c.Unit)
}

// State is the scheduler's mutable part. A zero NextFire means unset.
type State struct {
	Running  bool
	NextFire time.Time
}

// Decision is the outcome of one poll
type Decision struct {
	Due       bool
	FiredAt   time.Time     // the fire time that became due
	NextFire  time.Time     // zero when idle
	Remaining time.Duration // until NextFire, zero when due or idle
}

func Start(s State) State {
	s.Running = true
	s.NextFire = time.Time{}
	return s
}

func Stop(s State) State {
	s.Running = false
	s.NextFire = time.Time{}
	return s
}

// Poll advances the state for the instant now.
//
// The first poll after Start only computes the fire time. Once due, the next
// fire is derived from the old fire time, never from now, so fires do not drift.
func Poll(cfg Config, s State, now time.Time) (State, Decision) {
	if !s.Running {
		return s, Decision{}
	}

	if s.NextFire.IsZero() {
		s.NextFire = FirstFire(cfg, now)
		return s, Decision{NextFire: s.NextFire, Remaining: s.NextFire.Sub(now)}
	}

	if !now.Before(s.NextFire) {
		fired := s.NextFire
		s.NextFire = Advance(cfg, fired)
		return s, Decision{Due: true, FiredAt: fired, NextFire: s.NextFire}
	}

	return s, Decision{NextFire: s.NextFire, Remaining: s.NextFire.Sub(now)}
}

// FirstFire computes the fire time for a freshly started schedule
func FirstFire(cfg Config, now time.Time) time.Time {
	if cfg.Daily() {
		next := time.Date(now.Year(), now.Month(), now.Day(), cfg.DailyHour, 0, 0, 0, now.Location())
		if now.Hour() >= cfg.DailyHour {
			next = next.AddDate(0, 0, 1)
		}
		return next
	}
	return now.Add(cfg.Interval())
}

// Advance returns the fire following prev
func Advance(cfg Config, prev time.Time) time.Time {
	if cfg.Daily() {
		return prev.AddDate(0, 0, 1)
	}
	return prev.Add(cfg.Interval())
}

// FormatRemaining renders a countdown as "Xh Ym Zs", "Ym Zs" or "Zs"
func FormatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	hours := total / 3600
	minutes := (total % 3600) / 60
	secs := total % 60

	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, secs)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, secs)
	default:
		return fmt.Sprintf("%ds", secs)
	}
}
