package skeleton

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// ErrServiceNotFound is returned when no tracker service command can be located.
var ErrServiceNotFound = errors.New("skeleton tracker service not found")

// serviceIdleTimeout is how long the service process is kept alive without frames.
const serviceIdleTimeout = 30 * time.Second

// ServiceTracker implements Tracker by driving an external skeleton tracking
// process. Each frame is written to the process stdin as a 4-byte big-endian
// length followed by a JPEG image; the process answers with one JSON line.
type ServiceTracker struct {
	config    Config
	command   []string
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stdout    *bufio.Reader
	mu        sync.Mutex
	started   bool
	idleTimer *time.Timer
}

// NewServiceTracker creates a tracker backed by the given command line.
// When command is empty the default skeleton_service.py script is searched for.
// The process is started lazily on the first frame.
func NewServiceTracker(config Config, command ...string) (*ServiceTracker, error) {
	if len(command) == 0 {
		script := findServiceScript()
		if script == "" {
			return nil, ErrServiceNotFound
		}
		command = []string{"python3", script}
	}

	return &ServiceTracker{
		config:  config,
		command: command,
	}, nil
}

// Track sends a frame to the service and returns the tracked players.
func (t *ServiceTracker) Track(frame *gocv.Mat) (Frame, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.ensureStarted(); err != nil {
		return Frame{}, err
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return Frame{}, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	data := buf.GetBytes()

	header := make([]byte, 4)
	binary.BigEndian.PutUint32(header, uint32(len(data)))
	if _, err := t.stdin.Write(header); err != nil {
		return Frame{}, fmt.Errorf("write length: %w", err)
	}
	if _, err := t.stdin.Write(data); err != nil {
		return Frame{}, fmt.Errorf("write data: %w", err)
	}

	line, err := t.stdout.ReadBytes('\n')
	if err != nil {
		return Frame{}, fmt.Errorf("read response: %w", err)
	}

	result, err := parseServiceResponse(line, t.config)
	if err != nil {
		return Frame{}, err
	}

	t.resetIdleTimer()
	return result, nil
}

// Close shuts down the service process.
func (t *ServiceTracker) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.shutdown()
}

func (t *ServiceTracker) ensureStarted() error {
	if t.started {
		return nil
	}

	t.cmd = exec.Command(t.command[0], t.command[1:]...)

	stdin, err := t.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}
	stdout, err := t.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}
	t.cmd.Stderr = os.Stderr

	if err := t.cmd.Start(); err != nil {
		return fmt.Errorf("start tracker service: %w", err)
	}

	t.stdin = stdin
	t.stdout = bufio.NewReader(stdout)
	t.started = true
	return nil
}

func (t *ServiceTracker) shutdown() error {
	if !t.started {
		return nil
	}

	if t.idleTimer != nil {
		t.idleTimer.Stop()
		t.idleTimer = nil
	}
	if t.stdin != nil {
		t.stdin.Close()
	}

	err := t.cmd.Wait()
	t.started = false
	t.cmd = nil
	t.stdin = nil
	t.stdout = nil
	return err
}

func (t *ServiceTracker) resetIdleTimer() {
	if t.idleTimer != nil {
		t.idleTimer.Stop()
	}
	t.idleTimer = time.AfterFunc(serviceIdleTimeout, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		t.shutdown()
	})
}

func findServiceScript() string {
	execPath, err := os.Executable()
	var execDir string
	if err == nil {
		execDir = filepath.Dir(execPath)
	}

	candidates := []string{
		"scripts/skeleton_service.py",
		"../scripts/skeleton_service.py",
		filepath.Join(execDir, "scripts/skeleton_service.py"),
		filepath.Join(os.Getenv("HOME"), ".nritya/scripts/skeleton_service.py"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			if abs, err := filepath.Abs(path); err == nil {
				return abs
			}
			return path
		}
	}
	return ""
}

// serviceResponse is the JSON line emitted by the tracker service.
// Positions are in metres.
type serviceResponse struct {
	Timestamp int64           `json:"timestamp"`
	Players   []servicePlayer `json:"players"`
}

type servicePlayer struct {
	ID     int                    `json:"id"`
	Joints map[Joint]serviceJoint `json:"joints"`
}

type serviceJoint struct {
	X          float64  `json:"x"`
	Y          float64  `json:"y"`
	Z          float64  `json:"z"`
	Confidence *float64 `json:"confidence,omitempty"`
}

func parseServiceResponse(line []byte, config Config) (Frame, error) {
	var resp serviceResponse
	if err := json.Unmarshal(line, &resp); err != nil {
		return Frame{}, fmt.Errorf("parse response: %w", err)
	}

	ts := time.Now()
	if resp.Timestamp > 0 {
		ts = time.UnixMilli(resp.Timestamp)
	}
	frame := NewFrame(ts)

	// id 0 is an untracked slot
	players := make([]servicePlayer, 0, len(resp.Players))
	for _, p := range resp.Players {
		if p.ID != 0 {
			players = append(players, p)
		}
	}

	// Keep the lowest ids when the service reports more players than allowed.
	sort.Slice(players, func(i, j int) bool { return players[i].ID < players[j].ID })
	if config.MaxPlayers > 0 && len(players) > config.MaxPlayers {
		players = players[:config.MaxPlayers]
	}

	for _, p := range players {
		snap := make(Snapshot, len(p.Joints))
		for j, pos := range p.Joints {
			if pos.Confidence != nil && *pos.Confidence < config.MinConfidence {
				continue
			}
			snap[j] = FromMeters(Point3D{X: pos.X, Y: pos.Y, Z: pos.Z})
		}
		frame.Players[PlayerID(p.ID)] = snap
	}

	return frame, nil
}
