// Package capture reads frames from the depth sensor through GoCV (OpenCV).
package capture

import (
	"errors"
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// Default sensor settings. The Kinect class of sensors delivers 640x480
// at up to 30 frames per second.
const (
	DefaultFPS    = 5
	DefaultWidth  = 640
	DefaultHeight = 480
)

// Capture backends accepted by Config.Backend.
const (
	BackendAuto    = "auto"
	BackendOpenNI2 = "openni2"
	BackendAny     = "any"
)

var (
	// ErrCameraNotOpen is returned when trying to read from a sensor that is not open.
	ErrCameraNotOpen = errors.New("camera is not open")
	// ErrReadFailed is returned when the sensor delivers no usable frame.
	ErrReadFailed = errors.New("failed to read frame")
)

// Camera defines the interface for sensor capture implementations.
type Camera interface {
	Open() error
	Close() error
	ReadFrame() (*gocv.Mat, error)
	SetFPS(fps int)
	FPS() int
	IsOpen() bool
}

// Config holds configuration options for a sensor.
type Config struct {
	DeviceID int
	// Backend selects the OpenCV capture API. "auto" tries OpenNI2 first,
	// which depth sensors need, and falls back to any available backend.
	Backend string
	Width   int
	Height  int
}

// DefaultConfig returns a Config for the first sensor with automatic
// backend selection.
func DefaultConfig() Config {
	return Config{
		DeviceID: 0,
		Backend:  BackendAuto,
		Width:    DefaultWidth,
		Height:   DefaultHeight,
	}
}

// cameraImpl manages frame capture from a sensor using GoCV.
type cameraImpl struct {
	config  Config
	capture *gocv.VideoCapture
	mu      sync.Mutex
	running bool
	fps     int
}

// NewCamera creates a new Camera for the given configuration.
// The default FPS is 5 until a player is tracked.
func NewCamera(config Config) Camera {
	if config.Backend == "" {
		config.Backend = BackendAuto
	}
	if config.Width <= 0 || config.Height <= 0 {
		config.Width, config.Height = DefaultWidth, DefaultHeight
	}
	return &cameraImpl{
		config: config,
		fps:    DefaultFPS,
	}
}

// backends returns the capture APIs to try, in order.
func backends(name string) ([]gocv.VideoCaptureAPI, error) {
	switch name {
	case BackendAuto:
		return []gocv.VideoCaptureAPI{gocv.VideoCaptureOpenNI2, gocv.VideoCaptureAny}, nil
	case BackendOpenNI2:
		return []gocv.VideoCaptureAPI{gocv.VideoCaptureOpenNI2}, nil
	case BackendAny:
		return []gocv.VideoCaptureAPI{gocv.VideoCaptureAny}, nil
	}
	return nil, fmt.Errorf("unknown capture backend %q", name)
}

// Open opens the sensor for capturing frames.
func (c *cameraImpl) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}

	apis, err := backends(c.config.Backend)
	if err != nil {
		return err
	}

	var capture *gocv.VideoCapture
	for _, api := range apis {
		capture, err = gocv.OpenVideoCaptureWithAPI(c.config.DeviceID, api)
		if err == nil {
			break
		}
	}
	if err != nil {
		return fmt.Errorf("open sensor %d: %w", c.config.DeviceID, err)
	}

	capture.Set(gocv.VideoCaptureFrameWidth, float64(c.config.Width))
	capture.Set(gocv.VideoCaptureFrameHeight, float64(c.config.Height))
	capture.Set(gocv.VideoCaptureFPS, float64(c.fps))

	c.capture = capture
	c.running = true

	return nil
}

// Close closes the sensor and releases resources.
func (c *cameraImpl) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		c.running = false
		return nil
	}

	err := c.capture.Close()
	c.capture = nil
	c.running = false

	return err
}

// ReadFrame reads a single frame from the sensor.
// The caller is responsible for closing the returned Mat.
func (c *cameraImpl) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		return nil, ErrCameraNotOpen
	}

	mat := gocv.NewMat()
	if ok := c.capture.Read(&mat); !ok || mat.Empty() {
		mat.Close()
		return nil, ErrReadFailed
	}

	return &mat, nil
}

// SetFPS sets the frames per second for capture.
// Values less than or equal to 0 are ignored.
func (c *cameraImpl) SetFPS(fps int) {
	if fps <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.fps = fps

	if c.capture != nil {
		c.capture.Set(gocv.VideoCaptureFPS, float64(fps))
	}
}

// FPS returns the current frames per second setting.
func (c *cameraImpl) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.fps
}

// IsOpen returns true if the sensor is currently open.
func (c *cameraImpl) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.running
}
