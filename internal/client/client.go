package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/tangthinker/autobackup/internal/app"
	"github.com/tangthinker/autobackup/internal/config"
	"github.com/tangthinker/autobackup/internal/ipc"
)

const dialTimeout = 3 * time.Second

// Client talks to the daemon; each command uses its own connection
type Client struct {
	path string
}

// NewClient checks the daemon is reachable on the socket at path
func NewClient(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to daemon: %w", err)
	}
	conn.Close()
	return &Client{path: path}, nil
}

// SendCommand sends a command to the daemon and returns the response
func (c *Client) SendCommand(cmd *ipc.Command) (*ipc.Response, error) {
	conn, err := net.DialTimeout("unix", c.path, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to daemon: %w", err)
	}
	defer conn.Close()

	if err := json.NewEncoder(conn).Encode(cmd); err != nil {
		return nil, fmt.Errorf("failed to send command: %w", err)
	}

	var resp ipc.Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return &resp, nil
}

// call sends cmdType with payload and decodes the returned status
func (c *Client) call(cmdType ipc.CommandType, payload any) (app.Status, error) {
	var st app.Status

	cmd, err := ipc.NewCommand(cmdType, payload)
	if err != nil {
		return st, err
	}

	resp, err := c.SendCommand(cmd)
	if err != nil {
		return st, err
	}
	if !resp.Success {
		return st, errors.New(resp.Error)
	}

	if err := resp.Decode(&st); err != nil {
		return st, err
	}
	return st, nil
}

// Start begins the backup cycle
func (c *Client) Start() (app.Status, error) {
	return c.call(ipc.CmdStart, nil)
}

// Stop ends the backup cycle
func (c *Client) Stop() (app.Status, error) {
	return c.call(ipc.CmdStop, nil)
}

func (c *Client) Status() (app.Status, error) {
	return c.call(ipc.CmdStatus, nil)
}

// Set replaces the daemon's settings
func (c *Client) Set(settings config.Settings) (app.Status, error) {
	return c.call(ipc.CmdSet, settings)
}

func (c *Client) ClearLog() (app.Status, error) {
	return c.call(ipc.CmdClearLog, nil)
}

func (c *Client) Diagnose() (app.Status, error) {
	return c.call(ipc.CmdDiagnose, nil)
}
