package plugin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// DefaultTimeout bounds a single plugin run.
const DefaultTimeout = 5 * time.Second

// maxOutput bounds how much plugin output is quoted in errors.
const maxOutput = 512

// ErrTimeout is returned when a plugin does not answer in time.
var ErrTimeout = errors.New("plugin execution timeout")

// Executor runs plugin executables, one process per request.
type Executor struct {
	timeout time.Duration
}

// NewExecutor creates a new Executor. Non-positive timeouts use DefaultTimeout.
func NewExecutor(timeout time.Duration) *Executor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Executor{timeout: timeout}
}

// Timeout returns the per-run timeout.
func (e *Executor) Timeout() time.Duration {
	return e.timeout
}

// Execute runs the plugin for one completed gesture. The request is written
// to stdin as JSON and stdout is parsed as a Response. The process runs in
// the plugin directory with NRITYA_ACTION, NRITYA_GESTURE and NRITYA_PLAYER
// set, and is killed when ctx or the executor timeout expires.
func (e *Executor) Execute(ctx context.Context, plugin *Plugin, req *Request) (*Response, error) {
	// Reject actions the manifest does not declare
	if !plugin.Manifest.HasAction(req.Action) {
		return nil, fmt.Errorf("plugin %s does not provide action %q", plugin.Manifest.Name, req.Action)
	}

	// Marshal request to JSON
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	// Bound the run by the caller's context and the executor timeout
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	// Run from the plugin directory with the completion in the environment
	cmd := exec.CommandContext(ctx, plugin.Executable)
	cmd.Dir = plugin.Path
	cmd.Env = append(os.Environ(),
		"NRITYA_ACTION="+req.Action,
		"NRITYA_GESTURE="+req.Gesture,
		"NRITYA_PLAYER="+strconv.Itoa(req.Player),
	)
	cmd.Stdin = bytes.NewReader(body)

	// Capture stdout and stderr
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()

	// Check for timeout
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w after %s", ErrTimeout, e.timeout)
	}

	// Check for execution error
	if err != nil {
		if msg := clip(stderr.String()); msg != "" {
			return nil, fmt.Errorf("plugin execution failed: %w, stderr: %s", err, msg)
		}
		return nil, fmt.Errorf("plugin execution failed: %w", err)
	}

	// Parse the response from stdout
	var resp Response
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return nil, fmt.Errorf("failed to parse plugin response: %w, stdout: %s", err, clip(stdout.String()))
	}
	return &resp, nil
}

// clip trims plugin output for error messages.
func clip(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxOutput {
		return s[:maxOutput] + "..."
	}
	return s
}
