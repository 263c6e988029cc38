package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/tangthinker/autobackup/internal/backup"
	"github.com/tangthinker/autobackup/internal/config"
	"github.com/tangthinker/autobackup/internal/schedule"
)

// TickSpec is how often the scheduler is polled
const TickSpec = "@every 1s"

// Status is a snapshot for displays
type Status struct {
	Settings   config.Settings `json:"settings"`
	Schedule   string          `json:"schedule"`
	Running    bool            `json:"running"`
	Busy       bool            `json:"busy"`
	Progress   float64         `json:"progress"`
	NextFire   time.Time       `json:"next_fire"`
	Remaining  string          `json:"remaining,omitempty"`
	CanStart   bool            `json:"can_start"`
	CanStop    bool            `json:"can_stop"`
	LastResult *backup.Result  `json:"last_result,omitempty"`
	Log        []string        `json:"log"`
}

type RunnerOptions struct {
	Now      func() time.Time
	LogLines int
	Copier   *backup.Copier
}

// Runner owns the State and carries out the effects Update asks for
type Runner struct {
	mu     sync.Mutex
	state  State
	book   *LogBook
	copier *backup.Copier
	store  *config.Store
	logger *slog.Logger
	now    func() time.Time
	cron   *cron.Cron

	ctx    context.Context
	cancel context.CancelFunc

	progress   float64
	lastResult *backup.Result
}

func NewRunner(store *config.Store, settings config.Settings, logger *slog.Logger, opts RunnerOptions) *Runner {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Copier == nil {
		opts.Copier = backup.NewCopier()
		opts.Copier.Now = opts.Now
	}

	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))
	ctx, cancel := context.WithCancel(context.Background())

	r := &Runner{
		state:  State{Settings: settings},
		book:   NewLogBook(opts.LogLines),
		copier: opts.Copier,
		store:  store,
		logger: logger,
		now:    opts.Now,
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		ctx:    ctx,
		cancel: cancel,
	}
	r.copier.Progress = r.setProgress
	return r
}

// Run polls the scheduler until ctx is done. A copy in progress is cancelled
// only when the runner itself shuts down.
func (r *Runner) Run(ctx context.Context) error {
	if _, err := r.cron.AddFunc(TickSpec, func() { r.Dispatch(Tick{Now: r.now()}) }); err != nil {
		return fmt.Errorf("failed to schedule poll loop: %w", err)
	}
	r.cron.Start()
	r.logger.Info("Scheduler loop started", "tick", TickSpec)

	<-ctx.Done()
	r.Shutdown()
	return nil
}

// Shutdown stops polling and aborts a running copy
func (r *Runner) Shutdown() {
	r.cancel()
	<-r.cron.Stop().Done()
}

// Dispatch applies one event and its effects
func (r *Runner) Dispatch(ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dispatchLocked(ev)
}

func (r *Runner) dispatchLocked(ev Event) error {
	var rejected error
	queue := []Event{ev}

	for len(queue) > 0 {
		next, effects := Update(r.state, queue[0])
		queue = queue[1:]
		r.state = next

		for _, effect := range effects {
			switch effect := effect.(type) {
			case Log:
				r.log(effect.Message, effect.Err)
			case Reject:
				r.log("Error: "+effect.Err.Error(), effect.Err)
				if rejected == nil {
					rejected = effect.Err
				}
			case SaveSettings:
				if err := r.store.Save(effect.Settings); err != nil {
					r.log("Failed to save settings: "+err.Error(), err)
				}
			case ResetLog:
				r.book.Clear()
			case RunBackup:
				queue = append(queue, r.runBackup(effect))
			}
		}
	}
	return rejected
}

// runBackup copies without holding the lock so status stays readable
func (r *Runner) runBackup(job RunBackup) Event {
	r.progress = 0
	r.logger.Info("Backup due", "fired_at", job.FiredAt, "source", job.Request.SourcePath, "destination", job.Request.DestinationRoot)

	r.mu.Unlock()
	res, err := r.copier.Backup(r.ctx, job.Request)
	r.mu.Lock()

	if err != nil {
		r.logger.Error("Backup failed", "run_id", res.RunID, "kind", backup.KindOf(err).String(), "error", err)
	} else {
		r.lastResult = &res
		r.logger.Info("Backup finished", "run_id", res.RunID, "path", res.Path, "files", res.Files, "bytes", res.Bytes, "duration", res.Duration)
	}
	return BackupFinished{Result: res, Err: err, Daily: job.Daily}
}

func (r *Runner) setProgress(percent float64) {
	r.mu.Lock()
	r.progress = percent
	r.mu.Unlock()
}

func (r *Runner) log(msg string, err error) {
	r.book.Add(r.now(), msg)
	if err != nil {
		r.logger.Warn(msg, "error", err)
		return
	}
	r.logger.Info(msg)
}

// Notice adds a line to the user-visible log from outside the state machine
func (r *Runner) Notice(msg string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log(msg, err)
}

// Start begins a backup cycle with the current settings
func (r *Runner) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	pathErr := r.state.Settings.Request().Validate()
	if err := r.dispatchLocked(StartRequested{PathErr: pathErr}); err != nil {
		return err
	}
	// compute the first fire right away so the countdown shows immediately
	return r.dispatchLocked(Tick{Now: r.now()})
}

// Stop prevents future fires; a copy already running completes
func (r *Runner) Stop() error {
	return r.Dispatch(StopRequested{})
}

// Configure replaces and saves the settings; refused while running
func (r *Runner) Configure(settings config.Settings) error {
	return r.Dispatch(SettingsChanged{Settings: settings, Persist: true})
}

// Reload applies settings that were changed on disk
func (r *Runner) Reload(settings config.Settings) error {
	return r.Dispatch(SettingsChanged{Settings: settings})
}

func (r *Runner) ClearLog() error {
	return r.Dispatch(ClearLog{})
}

func (r *Runner) Diagnose() error {
	return r.Dispatch(Diagnose{})
}

func (r *Runner) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	st := Status{
		Settings: r.state.Settings,
		Schedule: r.state.Settings.Schedule().String(),
		Running:  r.state.Schedule.Running,
		Busy:     r.state.Busy,
		Progress: r.progress,
		NextFire: r.state.Schedule.NextFire,
		CanStop:  r.state.Schedule.Running,
		Log:      r.book.Lines(),
	}
	if r.lastResult != nil {
		res := *r.lastResult
		st.LastResult = &res
	}
	if st.Running && !st.NextFire.IsZero() && st.NextFire.After(now) {
		st.Remaining = schedule.FormatRemaining(st.NextFire.Sub(now))
	}
	if !st.Running {
		st.CanStart = r.state.Settings.Request().Validate() == nil
	}
	return st
}
