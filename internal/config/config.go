package config

import (
	"github.com/tangthinker/autobackup/internal/backup"
	"github.com/tangthinker/autobackup/internal/schedule"
)

// FileName is the settings file kept next to the executable
const FileName = "autobackup.json"

// Settings is what the user picks and what survives restarts
type Settings struct {
	BackupPath       string            `json:"backup_path"`       // source directory
	SavePath         string            `json:"save_path"`         // destination root
	DailyBackupHour  int               `json:"daily_backup_hour"` // 0-23, Day unit only
	CurrentSelection schedule.TimeUnit `json:"current_selection"` // Second, Minute, Hour, Day
	Time             int               `json:"time"`              // magnitude
}

// Default is used when no settings file exists yet
func Default() Settings {
	return Settings{CurrentSelection: schedule.Second}
}

// Schedule extracts the scheduling part
func (s Settings) Schedule() schedule.Config {
	return schedule.Config{
		Unit:      s.CurrentSelection,
		Magnitude: s.Time,
		DailyHour: s.DailyBackupHour,
	}
}

// Request extracts the backup job
func (s Settings) Request() backup.Request {
	return backup.Request{SourcePath: s.BackupPath, DestinationRoot: s.SavePath}
}

// WithSchedule returns a copy carrying cfg
func (s Settings) WithSchedule(cfg schedule.Config) Settings {
	s.CurrentSelection = cfg.Unit
	s.Time = cfg.Magnitude
	s.DailyBackupHour = cfg.DailyHour
	return s
}
