// Package app holds the backup tool's state machine.
//
// Update is pure: it takes the current State and one Event and returns the
// next State plus the side effects the Runner has to carry out.
package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/tangthinker/autobackup/internal/backup"
	"github.com/tangthinker/autobackup/internal/config"
	"github.com/tangthinker/autobackup/internal/schedule"
)

var (
	ErrAlreadyRunning = errors.New("backup is already running")
	ErrNotRunning     = errors.New("backup is not running")
	ErrSettingsLocked = errors.New("settings cannot change while backup is running")
)

// State is everything the scheduler loop owns
type State struct {
	Settings config.Settings
	Schedule schedule.State
	Busy     bool // a copy is in progress
}

type Event interface{ isEvent() }

// Tick is one poll of the scheduler
type Tick struct{ Now time.Time }

// StartRequested begins a backup cycle. PathErr is the result of validating the
// configured paths, done by the caller since it touches the filesystem.
type StartRequested struct{ PathErr error }

type StopRequested struct{}

// SettingsChanged replaces the settings while idle. Persist asks for a save.
type SettingsChanged struct {
	Settings config.Settings
	Persist  bool
}

type BackupFinished struct {
	Result backup.Result
	Err    error
	Daily  bool
}

type ClearLog struct{}

// Diagnose dumps the current settings into the log
type Diagnose struct{}

func (Tick) isEvent()            {}
func (StartRequested) isEvent()  {}
func (StopRequested) isEvent()   {}
func (SettingsChanged) isEvent() {}
func (BackupFinished) isEvent()  {}
func (ClearLog) isEvent()        {}
func (Diagnose) isEvent()        {}

type Effect interface{ isEffect() }

// Log appends a line to the user-visible log
type Log struct {
	Message string
	Err     error
}

// Reject reports a refused request; it is logged and returned to the caller
type Reject struct{ Err error }

type RunBackup struct {
	Request backup.Request
	Daily   bool
	FiredAt time.Time
}

type SaveSettings struct{ Settings config.Settings }

type ResetLog struct{}

func (Log) isEffect()          {}
func (Reject) isEffect()       {}
func (RunBackup) isEffect()    {}
func (SaveSettings) isEffect() {}
func (ResetLog) isEffect()     {}

// Update applies ev to s
func Update(s State, ev Event) (State, []Effect) {
	switch ev := ev.(type) {
	case Tick:
		return onTick(s, ev)

	case StartRequested:
		if s.Schedule.Running {
			return s, []Effect{Reject{Err: ErrAlreadyRunning}}
		}
		if ev.PathErr != nil {
			return s, []Effect{Reject{Err: ev.PathErr}}
		}
		if err := s.Settings.Schedule().Validate(); err != nil {
			return s, []Effect{Reject{Err: err}}
		}
		s.Schedule = schedule.Start(s.Schedule)
		return s, []Effect{
			Log{Message: "Backup started (" + s.Settings.Schedule().String() + ")"},
			SaveSettings{Settings: s.Settings},
		}

	case StopRequested:
		if !s.Schedule.Running {
			return s, []Effect{Reject{Err: ErrNotRunning}}
		}
		s.Schedule = schedule.Stop(s.Schedule)
		return s, []Effect{
			Log{Message: "Backup stopped"},
			SaveSettings{Settings: s.Settings},
		}

	case SettingsChanged:
		if s.Schedule.Running {
			return s, []Effect{Reject{Err: ErrSettingsLocked}}
		}
		if err := ev.Settings.Schedule().Validate(); err != nil {
			return s, []Effect{Reject{Err: err}}
		}
		s.Settings = ev.Settings
		effects := []Effect{Log{Message: "Settings updated"}}
		if ev.Persist {
			effects = append(effects, SaveSettings{Settings: s.Settings})
		}
		return s, effects

	case BackupFinished:
		s.Busy = false
		return s, finishedLog(ev)

	case ClearLog:
		return s, []Effect{ResetLog{}}

	case Diagnose:
		cfg := s.Settings.Schedule()
		return s, []Effect{
			Log{Message: "Backup path: " + s.Settings.BackupPath},
			Log{Message: "Save path: " + s.Settings.SavePath},
			Log{Message: fmt.Sprintf("Time setting: %d %s", cfg.Magnitude, cfg.Unit)},
			Log{Message: fmt.Sprintf("Calculated time: %ds", cfg.IntervalSeconds())},
			Log{Message: fmt.Sprintf("Daily backup hour: %02d:00", cfg.DailyHour)},
		}
	}

	return s, nil
}

func onTick(s State, ev Tick) (State, []Effect) {
	cfg := s.Settings.Schedule()

	// a restart during a copy still gets its countdown; only firing waits
	if s.Busy {
		if s.Schedule.Running && s.Schedule.NextFire.IsZero() {
			s.Schedule, _ = schedule.Poll(cfg, s.Schedule, ev.Now)
		}
		return s, nil
	}

	next, decision := schedule.Poll(cfg, s.Schedule, ev.Now)
	s.Schedule = next
	if !decision.Due {
		return s, nil
	}

	s.Busy = true
	return s, []Effect{RunBackup{
		Request: s.Settings.Request(),
		Daily:   cfg.Daily(),
		FiredAt: decision.FiredAt,
	}}
}

func finishedLog(ev BackupFinished) []Effect {
	prefix := "Backup"
	if ev.Daily {
		prefix = "Daily backup"
	}

	if ev.Err != nil {
		var effects []Effect
		var ve *backup.ValidationError
		if errors.As(ev.Err, &ve) {
			effects = append(effects, Log{Message: "Error: " + ve.Error()})
		}
		return append(effects, Log{Message: prefix + " failed: " + describe(ev.Err), Err: ev.Err})
	}

	return []Effect{
		Log{Message: fmt.Sprintf("Backup completed successfully: %s (%d files)", ev.Result.Path, ev.Result.Files)},
		Log{Message: prefix + " completed"},
	}
}

// describe renders err as "<reason> - <detail>"
func describe(err error) string {
	var be *backup.Error
	if errors.As(err, &be) {
		return be.Error()
	}
	return backup.KindOf(err).String() + " - " + err.Error()
}
