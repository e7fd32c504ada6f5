package app

import (
	"context"
	"log"
	"time"

	"github.com/ayusman/nritya/internal/plugin"
)

// modeSwitch tracks whether the pipeline runs at the idle or the active
// frame rate.
type modeSwitch struct {
	active   bool
	lastSeen time.Time
}

// observe records how many players the latest frame tracked and reports
// whether the mode changed.
func (m *modeSwitch) observe(players int, now time.Time) bool {
	if players > 0 {
		m.lastSeen = now
		if !m.active {
			m.active = true
			return true
		}
		return false
	}
	if m.active && now.Sub(m.lastSeen) > IdleTimeout {
		m.active = false
		return true
	}
	return false
}

// fps returns the frame rate for the current mode.
func (m *modeSwitch) fps() int {
	if m.active {
		return ActiveFPS
	}
	return IdleFPS
}

// runPipeline is the capture loop feeding the frame queue.
//
// Pipeline logic:
//  1. Start in idle mode (IdleFPS)
//  2. While idle, only frames that pass the scene gate reach the tracker
//  3. Once a player is tracked, switch to active mode (ActiveFPS) and track every frame
//  4. Push tracked frames to the queue; the oldest frame is dropped when it is full
//  5. After IdleTimeout with nobody tracked, switch back to idle mode
func (a *App) runPipeline(stopCh <-chan struct{}) {
	defer a.running.Done()

	var mode modeSwitch
	ticker := time.NewTicker(time.Second / time.Duration(mode.fps()))
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			if !a.IsEnabled() {
				continue
			}

			frame, err := a.camera.ReadFrame()
			if err != nil {
				log.Printf("Error reading frame: %v", err)
				continue
			}

			if !mode.active {
				if open, _ := a.scene.Open(frame); !open {
					frame.Close()
					continue
				}
			}

			skel, err := a.Tracker().Track(frame)
			frame.Close()
			if err != nil {
				log.Printf("Error tracking skeletons: %v", err)
				continue
			}

			if mode.observe(len(skel.Players), time.Now()) {
				a.camera.SetFPS(mode.fps())
				ticker.Reset(time.Second / time.Duration(mode.fps()))
				if mode.active {
					log.Println("Switched to active mode")
				} else {
					a.scene.Reset()
					log.Println("Switched to idle mode")
				}
			}

			if a.queue.Push(skel) {
				a.metrics.FrameDropped()
			}
		}
	}
}

// executeAction runs the plugin action bound to a completed gesture, if any.
func (a *App) executeAction(c Completion) {
	if a.config.Store == nil {
		return
	}

	action, err := a.config.Store.Actions().ForGesture(c.Gesture)
	if err != nil {
		log.Printf("Failed to look up action for gesture %s: %v", c.Gesture, err)
		return
	}
	if action == nil {
		return
	}

	req := &plugin.Request{
		Action:    action.ActionName,
		Gesture:   c.Gesture,
		Player:    int(c.Player),
		Position:  c.Position,
		Timestamp: c.At,
		Config:    action.Config,
	}

	if _, err := a.pluginMgr.Run(context.Background(), a.pluginExec, action.PluginName, req); err != nil {
		a.metrics.PluginError(action.PluginName)
		log.Printf("Action %s/%s for gesture %s failed: %v", action.PluginName, action.ActionName, c.Gesture, err)
		return
	}

	log.Printf("Action %s/%s executed for gesture %s (player %d)", action.PluginName, action.ActionName, c.Gesture, c.Player)
}
