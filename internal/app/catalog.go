package app

import (
	"fmt"
	"log"

	"github.com/ayusman/nritya/internal/engine"
	"github.com/ayusman/nritya/internal/gesture"
	"github.com/ayusman/nritya/internal/store"
)

// LoadGestures replaces the engine's gestures with the catalog in the
// store. Recognition is paused while the registry is rebuilt. Gestures
// without steps or with invalid conditions are skipped.
func (a *App) LoadGestures() error {
	if a.config.Store == nil {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.enabled {
		if err := a.engine.RecognitionStop(); err != nil {
			return err
		}
		a.metrics.ResetPlayers()
	}
	if err := a.engine.ClearGestures(); err != nil {
		return err
	}

	n, loadErr := loadCatalog(a.config.Store, a.engine.Registry())
	if loadErr == nil {
		log.Printf("Loaded %d gestures from database", n)
	}

	if a.enabled {
		if err := a.engine.RecognitionStart(); err != nil {
			a.enabled = false
			return fmt.Errorf("restart recognition: %w", err)
		}
	}
	return loadErr
}

// loadCatalog registers the stored reference points and gestures in r and
// returns the number of gestures registered. Each gesture is first built in
// a scratch registry so a broken definition never leaves a partial gesture
// behind.
func loadCatalog(s *store.Store, r *gesture.Registry) (int, error) {
	refs, err := s.References().List()
	if err != nil {
		return 0, fmt.Errorf("list reference points: %w", err)
	}
	gestures, err := s.Gestures().List()
	if err != nil {
		return 0, fmt.Errorf("list gestures: %w", err)
	}

	addRefs := func(b *engine.Builder) {
		for _, p := range refs {
			if err := b.AddGestureStaticReferencePoint(p.Name, p.X, p.Y, p.Z); err != nil {
				log.Printf("Skipping reference point %s: %v", p.Name, err)
			}
		}
	}
	addRefs(engine.NewBuilder(r))

	loaded := 0
	for _, g := range gestures {
		steps, err := s.Gestures().GetSteps(g.ID)
		if err != nil {
			return loaded, fmt.Errorf("load steps of %s: %w", g.Name, err)
		}
		if len(steps) == 0 {
			log.Printf("Skipping gesture %s: no steps", g.Name)
			continue
		}

		scratch := engine.NewBuilder(gesture.NewRegistry())
		addRefs(scratch)
		if err := buildGesture(scratch, g, steps); err != nil {
			log.Printf("Skipping gesture %s: %v", g.Name, err)
			continue
		}
		if err := buildGesture(engine.NewBuilder(r), g, steps); err != nil {
			return loaded, fmt.Errorf("register %s: %w", g.Name, err)
		}
		loaded++
	}
	return loaded, nil
}

// buildGesture adds one stored gesture through b.
func buildGesture(b *engine.Builder, g *store.Gesture, steps []store.Step) error {
	if err := b.AddGesture(g.Name); err != nil {
		return err
	}
	if g.TimeoutMS > 0 {
		if err := b.SetGestureTimeout(g.TimeoutMS); err != nil {
			return err
		}
	}

	for i, step := range steps {
		if _, err := b.AddGestureStep(); err != nil {
			return err
		}
		for _, c := range step.Success {
			joint, kind, err := gesture.ParseCondition(c.Joint, c.Relationship)
			if err != nil {
				return fmt.Errorf("step %d: %w", i, err)
			}
			if _, err := b.AddGestureStepSuccessRelationship(joint, kind, c.Reference, c.Parameter); err != nil {
				return fmt.Errorf("step %d: %w", i, err)
			}
		}
		for _, c := range step.Failure {
			joint, kind, err := gesture.ParseCondition(c.Joint, c.Relationship)
			if err != nil {
				return fmt.Errorf("step %d: %w", i, err)
			}
			if _, err := b.AddGestureStepFailureRelationship(joint, kind, c.Reference, c.Parameter); err != nil {
				return fmt.Errorf("step %d: %w", i, err)
			}
		}
	}
	return nil
}
