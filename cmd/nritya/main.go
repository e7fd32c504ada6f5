package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ayusman/nritya/internal/app"
	"github.com/ayusman/nritya/internal/capture"
	"github.com/ayusman/nritya/internal/config"
	"github.com/ayusman/nritya/internal/engine"
	"github.com/ayusman/nritya/internal/server"
	"github.com/ayusman/nritya/internal/skeleton"
	"github.com/ayusman/nritya/internal/store"
	"github.com/ayusman/nritya/internal/tray"
	"github.com/ayusman/nritya/internal/version"
)

func main() {
	fmt.Printf("nritya %s - Skeletal Gesture Recognition\n", version.String())

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	st, err := store.New(cfg.DatabasePath())
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer st.Close()

	camera := capture.DefaultConfig()
	camera.DeviceID = cfg.CameraID

	engineCfg := engine.DefaultConfig()
	engineCfg.Margin = cfg.MarginMM
	engineCfg.DropFrames = cfg.DropFrames

	a, err := app.New(app.Config{
		Store:          st,
		PluginDir:      cfg.PluginDir,
		PluginTimeout:  cfg.PluginTimeout,
		Camera:         camera,
		Tracker:        skeleton.DefaultConfig(),
		TrackerCommand: cfg.TrackerCmd,
		Engine:         engineCfg,
		QueueSize:      cfg.QueueSize,
	})
	if err != nil {
		log.Fatalf("Failed to initialize engine: %v", err)
	}

	if err := a.DiscoverPlugins(); err != nil {
		log.Printf("Failed to discover plugins: %v", err)
	}
	if err := a.LoadGestures(); err != nil {
		log.Printf("Failed to load gestures: %v", err)
	}
	if err := a.RestoreRecognition(); err != nil {
		log.Printf("Recognition not started: %v", err)
	}
	if err := a.Start(); err != nil {
		log.Printf("Sensor unavailable, serving the API only: %v", err)
	}

	webDir := findWebDir(cfg.DataDir)
	if webDir != "" {
		fmt.Printf("Serving static files from: %s\n", webDir)
	}

	srv := server.New(server.Config{
		StaticDir:  webDir,
		Store:      st,
		Engine:     a.Engine(),
		Recognizer: a,
		Plugins:    a.PluginManager(),
		Metrics:    a.Metrics().Handler(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		fmt.Printf("Starting server on %s\n", cfg.Addr)
		if err := srv.ListenAndServe(cfg.Addr); err != nil {
			log.Printf("Server failed: %v", err)
			stop()
		}
	}()

	if cfg.Tray {
		runTray(ctx, stop, a)
	} else {
		<-ctx.Done()
	}

	log.Println("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown: %v", err)
	}
	a.Stop()
}

// runTray shows the tray menu until it is quit or ctx is done. The tray
// must run on the main goroutine.
func runTray(ctx context.Context, stop context.CancelFunc, a *app.App) {
	t := tray.New(a.IsEnabled())
	t.OnToggle(a.SetEnabled)
	t.OnQuit(stop)
	a.OnCompletion(func(c app.Completion) {
		t.SetLastGesture(c.Gesture, int(c.Player))
	})

	go func() {
		<-ctx.Done()
		t.Quit()
	}()
	t.Run()
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and <dataDir>/web.
// Returns the first existing directory or empty string if none found.
func findWebDir(dataDir string) string {
	relativePaths := []string{"web", "../web", "../../web", filepath.Join(dataDir, "web")}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}
	return ""
}
