package daemon

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/tangthinker/autobackup/internal/app"
	"github.com/tangthinker/autobackup/internal/config"
	"github.com/tangthinker/autobackup/internal/ipc"
)

const connTimeout = 10 * time.Second

// Controller is what the server drives; *app.Runner implements it
type Controller interface {
	Start() error
	Stop() error
	Configure(config.Settings) error
	ClearLog() error
	Diagnose() error
	Status() app.Status
}

type Server struct {
	listener net.Listener
	path     string
	ctrl     Controller
	logger   *slog.Logger
}

// NewServer creates a new Unix domain socket server
func NewServer(path string, ctrl Controller, logger *slog.Logger) (*Server, error) {
	// Remove existing socket file if it exists
	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("failed to remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("failed to create socket: %w", err)
	}

	// owner only; the daemon acts with the user's file permissions
	if err := os.Chmod(path, 0600); err != nil {
		listener.Close()
		return nil, fmt.Errorf("failed to set socket permissions: %w", err)
	}

	return &Server{
		listener: listener,
		path:     path,
		ctrl:     ctrl,
		logger:   logger,
	}, nil
}

// Start accepts connections until Close is called
func (s *Server) Start() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("failed to accept connection: %w", err)
		}
		go s.handleConnection(conn)
	}
}

// Close closes the server
func (s *Server) Close() error {
	if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("failed to close listener: %w", err)
	}
	return os.RemoveAll(s.path)
}

func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(connTimeout))

	var cmd ipc.Command
	if err := json.NewDecoder(conn).Decode(&cmd); err != nil {
		s.logger.Warn("Failed to read command", "error", err)
		s.send(conn, ipc.NewResponse(nil, fmt.Errorf("invalid command: %w", err)))
		return
	}

	s.logger.Debug("Received command", "type", cmd.Type)
	s.send(conn, s.handle(&cmd))
}

func (s *Server) handle(cmd *ipc.Command) *ipc.Response {
	switch cmd.Type {
	case ipc.CmdStart:
		return s.respond(s.ctrl.Start())
	case ipc.CmdStop:
		return s.respond(s.ctrl.Stop())
	case ipc.CmdStatus:
		return ipc.NewResponse(s.ctrl.Status(), nil)
	case ipc.CmdSet:
		var settings config.Settings
		if err := cmd.Decode(&settings); err != nil {
			return ipc.NewResponse(nil, err)
		}
		return s.respond(s.ctrl.Configure(settings))
	case ipc.CmdClearLog:
		return s.respond(s.ctrl.ClearLog())
	case ipc.CmdDiagnose:
		return s.respond(s.ctrl.Diagnose())
	default:
		return ipc.NewResponse(nil, fmt.Errorf("unknown command type: %s", cmd.Type))
	}
}

// respond answers with the fresh status so clients can redraw at once
func (s *Server) respond(err error) *ipc.Response {
	if err != nil {
		return ipc.NewResponse(nil, err)
	}
	return ipc.NewResponse(s.ctrl.Status(), nil)
}

func (s *Server) send(conn net.Conn, resp *ipc.Response) {
	if err := json.NewEncoder(conn).Encode(resp); err != nil {
		s.logger.Warn("Failed to send response", "error", err)
	}
}
