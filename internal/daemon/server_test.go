package daemon

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tangthinker/autobackup/internal/app"
	"github.com/tangthinker/autobackup/internal/client"
	"github.com/tangthinker/autobackup/internal/config"
	"github.com/tangthinker/autobackup/internal/ipc"
	"github.com/tangthinker/autobackup/internal/schedule"
)

type fakeController struct {
	mu       sync.Mutex
	running  bool
	settings config.Settings
	calls    []string
	startErr error
}

func (f *fakeController) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
}

func (f *fakeController) Start() error {
	f.record("start")
	if f.startErr != nil {
		return f.startErr
	}
	f.mu.Lock()
	f.running = true
	f.mu.Unlock()
	return nil
}

func (f *fakeController) Stop() error {
	f.record("stop")
	f.mu.Lock()
	f.running = false
	f.mu.Unlock()
	return nil
}

func (f *fakeController) Configure(s config.Settings) error {
	f.record("set")
	f.mu.Lock()
	f.settings = s
	f.mu.Unlock()
	return nil
}

func (f *fakeController) ClearLog() error {
	f.record("clear")
	return nil
}

func (f *fakeController) Diagnose() error {
	f.record("diagnose")
	return nil
}

func (f *fakeController) Status() app.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return app.Status{Running: f.running, CanStop: f.running, Settings: f.settings, Log: []string{"[10:00:00] hello"}}
}

func startServer(t *testing.T, ctrl Controller) string {
	t.Helper()
	sock := filepath.Join(t.TempDir(), "ab.sock")
	srv, err := NewServer(sock, ctrl, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- srv.Start() }()
	t.Cleanup(func() {
		srv.Close()
		assert.NoError(t, <-done)
	})
	return sock
}

func TestServerRoundTrip(t *testing.T) {
	ctrl := &fakeController{}
	c, err := client.NewClient(startServer(t, ctrl))
	require.NoError(t, err)

	st, err := c.Start()
	require.NoError(t, err)
	assert.True(t, st.Running)
	assert.Equal(t, []string{"[10:00:00] hello"}, st.Log)

	want := config.Settings{BackupPath: "/a", SavePath: "/b", CurrentSelection: schedule.Day, DailyBackupHour: 23, Time: 2}
	st, err = c.Set(want)
	require.NoError(t, err)
	assert.Equal(t, want, st.Settings)

	_, err = c.ClearLog()
	require.NoError(t, err)
	_, err = c.Diagnose()
	require.NoError(t, err)

	st, err = c.Stop()
	require.NoError(t, err)
	assert.False(t, st.Running)

	st, err = c.Status()
	require.NoError(t, err)
	assert.False(t, st.CanStop)

	assert.Equal(t, []string{"start", "set", "clear", "diagnose", "stop"}, ctrl.calls)
}

func TestServerReportsErrors(t *testing.T) {
	ctrl := &fakeController{startErr: errors.New("paths cannot be empty")}
	c, err := client.NewClient(startServer(t, ctrl))
	require.NoError(t, err)

	_, err = c.Start()
	assert.EqualError(t, err, "paths cannot be empty")
}

func TestServerRejectsUnknownCommand(t *testing.T) {
	sock := startServer(t, &fakeController{})
	conn, err := net.Dial("unix", sock)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, json.NewEncoder(conn).Encode(ipc.Command{Type: "REBOOT"}))

	var resp ipc.Response
	require.NoError(t, json.NewDecoder(conn).Decode(&resp))
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "unknown command type")
}

func TestServerRejectsBadPayload(t *testing.T) {
	sock := startServer(t, &fakeController{})
	conn, err := net.Dial("unix", sock)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte(`{"type":"SET","payload":{"current_selection":"Week"}}` + "\n"))
	require.NoError(t, err)

	var resp ipc.Response
	require.NoError(t, json.NewDecoder(conn).Decode(&resp))
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "invalid SET payload")
}

func TestClientWithoutDaemon(t *testing.T) {
	_, err := client.NewClient(filepath.Join(t.TempDir(), "missing.sock"))
	assert.Error(t, err)
}

func TestPIDFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ab.pid")
	p := NewPIDFile(path)

	require.NoError(t, p.Acquire())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(data))

	// our own process is alive, so a second daemon is refused
	assert.ErrorIs(t, NewPIDFile(path).Acquire(), ErrAlreadyRunning)

	p.Release()
	assert.NoFileExists(t, path)
}

func TestPIDFileReplacesGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ab.pid")
	require.NoError(t, os.WriteFile(path, []byte("not-a-pid"), 0644))

	require.NoError(t, NewPIDFile(path).Acquire())
}
