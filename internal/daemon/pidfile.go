package daemon

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
)

var ErrAlreadyRunning = errors.New("autobackup daemon is already running")

// PIDFile guards against a second daemon on the same machine
type PIDFile struct {
	path string
}

func NewPIDFile(path string) *PIDFile {
	return &PIDFile{path: path}
}

// Acquire records our pid, failing if a live daemon already holds the file.
// Stale files left by a crashed daemon are replaced.
func (p *PIDFile) Acquire() error {
	if p.running() {
		return ErrAlreadyRunning
	}
	pid := strconv.Itoa(os.Getpid())
	if err := os.WriteFile(p.path, []byte(pid), 0644); err != nil {
		return fmt.Errorf("failed to create PID file: %w", err)
	}
	return nil
}

func (p *PIDFile) Release() {
	os.Remove(p.path)
}

func (p *PIDFile) running() bool {
	output, err := os.ReadFile(p.path)
	if err != nil {
		return false
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(output)))
	if err != nil || pid <= 0 {
		os.Remove(p.path)
		return false
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		os.Remove(p.path)
		return false
	}

	// 在Unix系统中，发送信号0用于检查进程是否存在
	if err := process.Signal(syscall.Signal(0)); err != nil {
		os.Remove(p.path)
		return false
	}
	return true
}
