package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/tangthinker/autobackup/internal/app"
	"github.com/tangthinker/autobackup/internal/client"
	"github.com/tangthinker/autobackup/internal/config"
	"github.com/tangthinker/autobackup/internal/daemon"
	"github.com/tangthinker/autobackup/internal/logging"
	"github.com/tangthinker/autobackup/internal/schedule"
	"github.com/tangthinker/autobackup/internal/tui"
)

var (
	defaults = config.DefaultOptions()

	settingsFile = flag.String("config", "", "settings file (default: autobackup.json next to the executable)")
	socketPath   = flag.String("socket", defaults.SocketPath, "daemon socket path")
	pidFile      = flag.String("pid", defaults.PIDFile, "daemon pid file")
	logFile      = flag.String("log-file", "", "also write daemon logs to this file, rotated")
	logLevel     = flag.String("log-level", defaults.Logging.Level, "debug, info, warn or error")
	logFormat    = flag.String("log-format", defaults.Logging.Format, "text or json")
	logLines     = flag.Int("log-lines", defaults.LogLines, "log lines kept for display")

	unit      = flag.String("unit", "", "time unit for set: Second, Minute, Hour or Day")
	magnitude = flag.Int("n", 0, "number of units between backups, for set")
	dailyHour = flag.Int("hour", 0, "hour of day (0-23) for daily backups, for set")
)

func main() {
	flag.Usage = usage
	flag.Parse()

	// 如果有命令行参数，作为客户端运行
	if len(flag.Args()) > 0 {
		handleClientCommand()
		return
	}

	runAsDaemon()
}

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintln(out, "Usage:")
	fmt.Fprintln(out, "  autobackup [flags]                                   - run the daemon")
	fmt.Fprintln(out, "  autobackup [-unit U] [-n N] [-hour H] set <source> <destination>")
	fmt.Fprintln(out, "  autobackup start | stop | status | log | clear-log | test | watch")
	fmt.Fprintln(out, "\nNote: flags must come before the command")
	fmt.Fprintln(out, "\nFlags:")
	flag.PrintDefaults()
}

func options() config.Options {
	opts := defaults
	opts.SettingsFile = *settingsFile
	opts.SocketPath = *socketPath
	opts.PIDFile = *pidFile
	opts.LogLines = *logLines
	opts.Logging.File = *logFile
	opts.Logging.Level = *logLevel
	opts.Logging.Format = *logFormat
	return opts
}

func handleClientCommand() {
	c, err := client.NewClient(*socketPath)
	if err != nil {
		log.Fatalf("Failed to connect to daemon: %v", err)
	}

	var st app.Status
	switch flag.Arg(0) {
	case "start":
		st, err = c.Start()
	case "stop":
		st, err = c.Stop()
	case "status":
		st, err = c.Status()
	case "log":
		if st, err = c.Status(); err == nil {
			printLog(st)
			return
		}
	case "clear-log":
		st, err = c.ClearLog()
	case "test":
		if st, err = c.Diagnose(); err == nil {
			printLog(st)
			return
		}
	case "set":
		st, err = setSettings(c)
	case "watch":
		err = tui.Run(c)
		if err == nil {
			return
		}
	default:
		flag.Usage()
		os.Exit(1)
	}

	if err != nil {
		log.Fatalf("Command failed: %v", err)
	}
	printStatus(st)
}

// setSettings applies only the flags and arguments the user gave
func setSettings(c *client.Client) (app.Status, error) {
	if n := len(flag.Args()); n != 1 && n != 3 {
		return app.Status{}, errors.New("usage: autobackup [-unit U] [-n N] [-hour H] set [<source> <destination>]")
	}

	current, err := c.Status()
	if err != nil {
		return current, err
	}
	settings := current.Settings

	if len(flag.Args()) == 3 {
		settings.BackupPath = flag.Arg(1)
		settings.SavePath = flag.Arg(2)
	}

	var parseErr error
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "unit":
			u, err := schedule.ParseTimeUnit(*unit)
			if err != nil {
				parseErr = err
				return
			}
			settings.CurrentSelection = u
		case "n":
			settings.Time = *magnitude
		case "hour":
			settings.DailyBackupHour = *dailyHour
		}
	})
	if parseErr != nil {
		return current, parseErr
	}

	if limit := settings.CurrentSelection.MaxMagnitude(); settings.Time > limit {
		log.Printf("Note: %d exceeds the usual range 0-%d for %s", settings.Time, limit, settings.CurrentSelection)
	}
	return c.Set(settings)
}

func printStatus(st app.Status) {
	state := "stopped"
	switch {
	case st.Busy:
		state = fmt.Sprintf("copying (%.1f%%)", st.Progress)
	case st.Running:
		state = "running"
	}

	format := "%-16s%s\n"
	fmt.Printf(format, "SOURCE", dash(st.Settings.BackupPath))
	fmt.Printf(format, "DESTINATION", dash(st.Settings.SavePath))
	fmt.Printf(format, "SCHEDULE", st.Schedule)
	fmt.Printf(format, "STATUS", state)
	if st.Remaining != "" {
		fmt.Printf(format, "NEXT BACKUP IN", st.Remaining)
	}
	if st.LastResult != nil {
		fmt.Printf(format, "LAST BACKUP", fmt.Sprintf("%s (%s)", st.LastResult.Path, st.LastResult.Started.Format("2006-01-02 15:04:05")))
	}
	fmt.Printf(format, "CAN START", yesNo(st.CanStart))
	fmt.Printf(format, "CAN STOP", yesNo(st.CanStop))
}

func printLog(st app.Status) {
	if len(st.Log) == 0 {
		fmt.Println("Log is empty")
		return
	}
	fmt.Println(strings.Join(st.Log, "\n"))
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func runAsDaemon() {
	opts := options()

	logger := logging.New(opts.Logging, os.Stderr)
	logger.Install()
	defer logger.Close()

	pid := daemon.NewPIDFile(opts.PIDFile)
	if err := pid.Acquire(); err != nil {
		logger.Error("Cannot start daemon", "error", err)
		os.Exit(1)
	}
	defer pid.Release()

	path := opts.SettingsFile
	if path == "" {
		var err error
		if path, err = config.DefaultPath(); err != nil {
			// keep running on defaults without persistence
			fmt.Fprintf(os.Stderr, "autobackup: %v; settings will not be saved\n", err)
		}
	}

	store := config.NewStore(path)
	settings, loadErr := store.Load()

	runner := app.NewRunner(store, settings, logger.Logger, app.RunnerOptions{LogLines: opts.LogLines})
	if loadErr != nil {
		runner.Notice("Failed to load settings, using defaults: "+loadErr.Error(), loadErr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if path != "" {
		watcher, err := config.NewWatcher(store, logger.Logger)
		if err != nil {
			logger.Warn("Settings file will not be watched", "error", err)
		} else {
			go watcher.Run(ctx, func(s config.Settings) {
				if err := runner.Reload(s); err == nil {
					logger.Info("Settings reloaded from disk", "path", path)
				}
			})
		}
	}

	server, err := daemon.NewServer(opts.SocketPath, runner, logger.Logger)
	if err != nil {
		logger.Error("Failed to create server", "error", err)
		return
	}
	defer server.Close()

	go func() {
		if err := server.Start(); err != nil {
			logger.Error("Server error", "error", err)
			stop()
		}
	}()

	logger.Info("Autobackup daemon started", "socket", opts.SocketPath, "settings", path)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := runner.Run(ctx); err != nil {
			logger.Error("Scheduler stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	<-done
	logger.Info("Shutting down autobackup...")
}
