// Package plugin discovers and runs the action plugins that fire when a
// gesture completes. A plugin is a directory holding a plugin.json manifest
// and an executable that reads one Request as JSON on stdin and writes one
// Response as JSON on stdout.
package plugin

import (
	"encoding/json"
	"time"

	"github.com/ayusman/nritya/internal/skeleton"
)

// Manifest describes a plugin's metadata and capabilities.
type Manifest struct {
	Name         string          `json:"name"`
	Version      string          `json:"version"`
	Description  string          `json:"description"`
	Executable   string          `json:"executable"`
	Actions      []string        `json:"actions"`
	ConfigSchema json.RawMessage `json:"configSchema,omitempty"`
}

// HasAction reports whether the manifest declares the action. A manifest
// without declared actions accepts any action.
func (m Manifest) HasAction(action string) bool {
	if len(m.Actions) == 0 {
		return true
	}
	for _, a := range m.Actions {
		if a == action {
			return true
		}
	}
	return false
}

// Request is sent to a plugin when a gesture bound to it completes.
// Position is the player's body centre in millimetres, when known.
type Request struct {
	Action    string            `json:"action"`
	Gesture   string            `json:"gesture"`
	Player    int               `json:"player"`
	Position  *skeleton.Point3D `json:"position,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Config    json.RawMessage   `json:"config,omitempty"`
	Params    json.RawMessage   `json:"params,omitempty"`
}

// Response represents the response from a plugin execution.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Plugin represents a discovered plugin with its manifest and location.
type Plugin struct {
	Manifest   Manifest
	Path       string
	Executable string
}
