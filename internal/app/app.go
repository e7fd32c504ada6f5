// Package app wires the nritya daemon together: the depth sensor, the
// skeleton tracker, the gesture engine, the gesture catalog and the action
// plugins.
package app

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/ayusman/nritya/internal/capture"
	"github.com/ayusman/nritya/internal/engine"
	"github.com/ayusman/nritya/internal/metrics"
	"github.com/ayusman/nritya/internal/plugin"
	"github.com/ayusman/nritya/internal/skeleton"
	"github.com/ayusman/nritya/internal/store"
)

// Pipeline timing constants.
const (
	// IdleFPS is the frame rate while nobody is tracked.
	IdleFPS = 5
	// ActiveFPS is the frame rate while at least one player is tracked.
	ActiveFPS = 15
	// IdleTimeout is how long the pipeline stays active after the last
	// tracked player disappeared.
	IdleTimeout = 2 * time.Second
	// DefaultQueueSize is the number of frames that may wait for the engine.
	DefaultQueueSize = 4
)

// Config holds configuration options for the application.
type Config struct {
	Store          *store.Store
	PluginDir      string
	PluginTimeout  time.Duration
	Camera         capture.Config
	Tracker        skeleton.Config
	TrackerCommand []string
	Engine         engine.Config
	QueueSize      int
	SceneThreshold float64
}

// Completion is a gesture completed by a player.
type Completion struct {
	Gesture  string            `json:"gesture"`
	Player   skeleton.PlayerID `json:"player"`
	Position *skeleton.Point3D `json:"position,omitempty"`
	At       time.Time         `json:"at"`
}

// App is the main application that turns sensor frames into gesture
// completions and runs the bound actions.
type App struct {
	config     Config
	camera     capture.Camera
	scene      *capture.SceneGate
	tracker    skeleton.Tracker
	engine     *engine.Engine
	queue      *engine.Queue
	metrics    *metrics.Metrics
	pluginMgr  *plugin.Manager
	pluginExec *plugin.Executor

	mu           sync.RWMutex
	enabled      bool
	stopCh       chan struct{}
	cancel       context.CancelFunc
	last         Completion
	hasLast      bool
	onCompletion []func(Completion)

	running sync.WaitGroup
	actions sync.WaitGroup
}

// New creates a new App instance with the given configuration.
func New(config Config) (*App, error) {
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultQueueSize
	}

	eng, err := engine.New(config.Engine)
	if err != nil {
		return nil, err
	}

	a := &App{
		config:     config,
		camera:     capture.NewCamera(config.Camera),
		scene:      capture.NewSceneGate(config.SceneThreshold),
		engine:     eng,
		queue:      engine.NewQueue(eng, config.QueueSize),
		metrics:    metrics.New(),
		pluginMgr:  plugin.NewManager(config.PluginDir),
		pluginExec: plugin.NewExecutor(config.PluginTimeout),
	}

	// Try the tracker service first, fall back to the mock tracker.
	if st, err := skeleton.NewServiceTracker(config.Tracker, config.TrackerCommand...); err == nil {
		a.tracker = st
		log.Println("Using skeleton tracker service")
	} else {
		log.Printf("Skeleton tracker not available (%v), using mock tracker", err)
		a.tracker = skeleton.NewMockTracker()
	}

	events := eng.Events()
	a.metrics.Subscribe(events)
	events.OnProcessing(func(ev engine.ProcessingEvent) {
		log.Println(ev.String())
	})
	events.OnPlayer(func(player skeleton.PlayerID, action engine.PlayerAction) {
		log.Printf("Player %d %s", player, action)
	})
	events.OnUpdate(a.handleCompletion)

	return a, nil
}

// SetEnabled starts or stops gesture recognition. Enabling fails when the
// loaded gestures cannot be frozen. The choice is persisted in the store.
func (a *App) SetEnabled(enabled bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if enabled == a.enabled {
		return nil
	}

	if enabled {
		if err := a.engine.RecognitionStart(); err != nil {
			return err
		}
	} else {
		if err := a.engine.RecognitionStop(); err != nil {
			return err
		}
		a.metrics.ResetPlayers()
		a.scene.Reset()
	}
	a.enabled = enabled

	if a.config.Store != nil {
		if err := a.config.Store.Settings().SetBool(store.SettingRecognition, enabled); err != nil {
			log.Printf("Failed to save recognition setting: %v", err)
		}
	}
	return nil
}

// IsEnabled returns whether gesture recognition is currently running.
func (a *App) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// RestoreRecognition enables recognition unless it was switched off when
// the daemon last ran.
func (a *App) RestoreRecognition() error {
	if a.config.Store == nil {
		return a.SetEnabled(true)
	}
	return a.SetEnabled(a.config.Store.Settings().Bool(store.SettingRecognition, true))
}

// SetTracker sets the skeleton tracker implementation to use.
func (a *App) SetTracker(t skeleton.Tracker) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tracker = t
}

// SetCamera replaces the sensor. It must be called before Start.
func (a *App) SetCamera(c capture.Camera) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.camera = c
}

// OnCompletion registers fn to be called for every completed gesture.
func (a *App) OnCompletion(fn func(Completion)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onCompletion = append(a.onCompletion, fn)
}

// LastCompletion returns the most recent completed gesture.
func (a *App) LastCompletion() (Completion, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.last, a.hasLast
}

// handleCompletion records a completed gesture, notifies listeners and runs
// the bound action in the background.
func (a *App) handleCompletion(player skeleton.PlayerID, name string) {
	c := Completion{Gesture: name, Player: player, At: time.Now()}
	if info, err := a.engine.PlayerInfo(player); err == nil && info.HasCenter {
		center := info.Center
		c.Position = &center
	}

	a.mu.Lock()
	a.last = c
	a.hasLast = true
	listeners := a.onCompletion
	a.mu.Unlock()

	log.Printf("Gesture completed: %s (player %d)", name, player)
	for _, fn := range listeners {
		fn(c)
	}

	a.actions.Add(1)
	go func() {
		defer a.actions.Done()
		a.executeAction(c)
	}()
}

// DiscoverPlugins scans the plugin directory and loads available plugins.
func (a *App) DiscoverPlugins() error {
	return a.pluginMgr.Discover()
}

// Start opens the sensor and begins the capture pipeline.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopCh != nil {
		return nil
	}

	if err := a.camera.Open(); err != nil {
		return err
	}
	a.camera.SetFPS(IdleFPS)

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.stopCh = make(chan struct{})

	a.running.Add(2)
	go a.runPipeline(a.stopCh)
	go func() {
		defer a.running.Done()
		if err := a.queue.Run(ctx); err != nil && ctx.Err() == nil {
			log.Printf("Frame queue stopped: %v", err)
		}
	}()

	log.Println("Recognition pipeline started")
	return nil
}

// Stop halts the pipeline, waits for running actions and releases the
// sensor and the tracker.
func (a *App) Stop() {
	a.mu.Lock()
	stopCh, cancel := a.stopCh, a.cancel
	a.stopCh, a.cancel = nil, nil
	a.mu.Unlock()

	if stopCh != nil {
		close(stopCh)
		cancel()
		a.running.Wait()
	}
	a.actions.Wait()

	if err := a.camera.Close(); err != nil {
		log.Printf("Error closing camera: %v", err)
	}
	a.scene.Close()

	if t := a.Tracker(); t != nil {
		if err := t.Close(); err != nil {
			log.Printf("Error closing tracker: %v", err)
		}
	}

	log.Println("Recognition pipeline stopped")
}

// Camera returns the sensor.
func (a *App) Camera() capture.Camera {
	return a.camera
}

// Engine returns the gesture engine.
func (a *App) Engine() *engine.Engine {
	return a.engine
}

// Queue returns the frame queue feeding the engine.
func (a *App) Queue() *engine.Queue {
	return a.queue
}

// Metrics returns the Prometheus collectors.
func (a *App) Metrics() *metrics.Metrics {
	return a.metrics
}

// PluginManager returns the plugin manager.
func (a *App) PluginManager() *plugin.Manager {
	return a.pluginMgr
}

// Tracker returns the skeleton tracker.
func (a *App) Tracker() skeleton.Tracker {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.tracker
}
