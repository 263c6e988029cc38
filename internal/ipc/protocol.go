package ipc

import (
	"encoding/json"
	"fmt"
)

// CommandType names a request from CLI to daemon
type CommandType string

const (
	CmdStart    CommandType = "START"
	CmdStop     CommandType = "STOP"
	CmdStatus   CommandType = "STATUS"
	CmdSet      CommandType = "SET"
	CmdClearLog CommandType = "CLEAR_LOG"
	CmdDiagnose CommandType = "DIAGNOSE"
)

// Command represents a command sent from CLI to daemon
type Command struct {
	Type    CommandType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response represents a response sent from daemon to CLI
type Response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// NewCommand creates a new command with the given type and payload
func NewCommand(cmdType CommandType, payload any) (*Command, error) {
	cmd := &Command{Type: cmdType}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal payload: %w", err)
		}
		cmd.Payload = data
	}
	return cmd, nil
}

// Decode unmarshals the payload into v
func (c *Command) Decode(v any) error {
	if len(c.Payload) == 0 {
		return fmt.Errorf("command %s has no payload", c.Type)
	}
	if err := json.Unmarshal(c.Payload, v); err != nil {
		return fmt.Errorf("invalid %s payload: %w", c.Type, err)
	}
	return nil
}

// NewResponse creates a new response
func NewResponse(data any, err error) *Response {
	resp := &Response{Success: err == nil}
	if err != nil {
		resp.Error = err.Error()
		return resp
	}
	if data != nil {
		raw, merr := json.Marshal(data)
		if merr != nil {
			return &Response{Error: fmt.Sprintf("failed to marshal response: %v", merr)}
		}
		resp.Data = raw
	}
	return resp
}

// Decode unmarshals the response data into v
func (r *Response) Decode(v any) error {
	if len(r.Data) == 0 {
		return fmt.Errorf("response carries no data")
	}
	if err := json.Unmarshal(r.Data, v); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}
