package protocol

import (
	"encoding/json"
	"fmt"
	"io"
)

// HookProtocol is the version of the process feedback hook protocol.
const HookProtocol = 1

// HookRequest is the envelope written to a process feedback's stdin, one per hook call.
type HookRequest struct {
	Protocol  int            `json:"protocol"`
	Feedback  string         `json:"feedback"`
	Hook      string         `json:"hook"` // init | play | pause | stop | quit | control | interaction
	Data      map[string]any `json:"data,omitempty"`
	Variables map[string]any `json:"variables"`
}

// HookResponse is read from a process feedback's stdout.
type HookResponse struct {
	Status    string         `json:"status"` // ok | error
	Error     string         `json:"error,omitempty"`
	Variables map[string]any `json:"variables,omitempty"`
	Logs      []LogEntry     `json:"logs,omitempty"`
}

// LogEntry represents a log message from a process feedback.
type LogEntry struct {
	Level   string `json:"level"` // info | warn | error | debug
	Message string `json:"message"`
}

// EncodeHookRequest serializes req to JSON and writes it to w.
func EncodeHookRequest(w io.Writer, req *HookRequest) error {
	if req.Protocol != HookProtocol {
		return fmt.Errorf("unsupported protocol version: %d", req.Protocol)
	}
	if err := json.NewEncoder(w).Encode(req); err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	return nil
}

// DecodeHookResponse reads and validates a HookResponse. The raw bytes are
// returned alongside for diagnostics when decoding fails.
func DecodeHookResponse(r io.Reader) (*HookResponse, []byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response: %w", err)
	}
	if len(data) == 0 {
		return nil, data, fmt.Errorf("feedback produced no output on stdout")
	}

	var resp HookResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, data, fmt.Errorf("feedback output is not valid JSON: %w", err)
	}

	if resp.Status == "" {
		return nil, data, fmt.Errorf("response missing required field: status")
	}
	if resp.Status != "ok" && resp.Status != "error" {
		return nil, data, fmt.Errorf("invalid status value: %q (must be 'ok' or 'error')", resp.Status)
	}
	if resp.Status == "error" && resp.Error == "" {
		return nil, data, fmt.Errorf("response has status=error but no error message")
	}

	return &resp, data, nil
}
