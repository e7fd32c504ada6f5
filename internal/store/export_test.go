package store

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func clapSteps() []Step {
	return []Step{
		{
			Success: []Condition{{Joint: "HandLeft", Relationship: "Distance", Reference: "HandRight", Parameter: 400}},
			Failure: []Condition{{Joint: "HandLeft", Relationship: "Above", Reference: "Head"}},
		},
		{
			Success: []Condition{{Joint: "HandLeft", Relationship: "Distance", Reference: "HandRight", Parameter: -100}},
		},
	}
}

func TestStore_ExportImport(t *testing.T) {
	src := newTestStore(t)
	if err := src.References().Create(&ReferencePoint{Name: "Desk", X: 0, Y: -200, Z: 1500}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	clap := &Gesture{Name: "Clap", TimeoutMS: 1500}
	if err := src.Gestures().Create(clap); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := src.Gestures().SetSteps(clap.ID, clapSteps()); err != nil {
		t.Fatalf("SetSteps() error = %v", err)
	}

	exported, err := src.Export()
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if exported.Version != CatalogVersion || len(exported.Gestures) != 1 || len(exported.References) != 1 {
		t.Fatalf("Export() = %+v", exported)
	}

	dst := newTestStore(t)
	if err := dst.Import(exported); err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	reimported, err := dst.Export()
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	ignore := cmpopts.IgnoreFields(ReferencePoint{}, "CreatedAt")
	if diff := cmp.Diff(exported, reimported, ignore); diff != "" {
		t.Errorf("catalog mismatch after import (-want +got):\n%s", diff)
	}
}

func TestStore_Import_Merges(t *testing.T) {
	s := newTestStore(t)
	clap := &Gesture{Name: "Clap"}
	if err := s.Gestures().Create(clap); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := s.Actions().Create(&Action{GestureID: clap.ID, PluginName: "webhook", ActionName: "post", Enabled: true}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := s.References().Create(&ReferencePoint{Name: "Desk", X: 1}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	err := s.Import(&Catalog{
		Version:    CatalogVersion,
		References: []ReferencePoint{{Name: "Desk", X: 5, Y: 6, Z: 7}},
		Gestures: []CatalogGesture{
			{Name: "Clap", TimeoutMS: 900, Steps: clapSteps()},
			{Name: "Wave", Steps: clapSteps()[:1]},
		},
	})
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}

	updated, err := s.Gestures().GetByName("Clap")
	if err != nil {
		t.Fatalf("GetByName() error = %v", err)
	}
	if updated.ID != clap.ID || updated.TimeoutMS != 900 {
		t.Errorf("Clap = %+v, want same id with timeout 900", updated)
	}
	if action, err := s.Actions().ForGesture("Clap"); err != nil || action == nil {
		t.Errorf("binding should survive an import, got %v, %v", action, err)
	}

	wave, err := s.Gestures().GetByName("Wave")
	if err != nil {
		t.Fatalf("GetByName(Wave) error = %v", err)
	}
	if wave.TimeoutMS != DefaultTimeoutMS {
		t.Errorf("Wave timeout = %d, want %d", wave.TimeoutMS, DefaultTimeoutMS)
	}

	desk, err := s.References().Get("Desk")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if desk.X != 5 || desk.Y != 6 || desk.Z != 7 {
		t.Errorf("Desk = %+v, want overwritten position", desk)
	}
}

func TestStore_Import_Rejects(t *testing.T) {
	s := newTestStore(t)

	if err := s.Import(&Catalog{Version: 99}); !errors.Is(err, ErrCatalogVersion) {
		t.Errorf("Import(version 99) error = %v, want ErrCatalogVersion", err)
	}

	list, err := s.Gestures().List()
	if err != nil || len(list) != 0 {
		t.Errorf("List() = %v, %v; a rejected catalog must not be applied", list, err)
	}
}
