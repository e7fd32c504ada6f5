package skeleton

import "gocv.io/x/gocv"

// Tracker defines the interface for skeletal tracking implementations.
type Tracker interface {
	// Track analyzes a sensor frame and returns the tracked players.
	// Returns a frame with no players if nobody is tracked.
	Track(frame *gocv.Mat) (Frame, error)

	// Close releases any resources held by the tracker.
	Close() error
}

// Config holds configuration options for skeletal tracking.
type Config struct {
	// MaxPlayers is the maximum number of skeletons reported per frame (default: 2).
	MaxPlayers int

	// MinConfidence is the minimum joint confidence (0.0-1.0) below which a
	// joint is reported as untracked.
	MinConfidence float64
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		MaxPlayers:    2,
		MinConfidence: 0.5,
	}
}
