package capture

import (
	"errors"
	"testing"
)

func TestNewCamera(t *testing.T) {
	tests := []struct {
		name   string
		config Config
	}{
		{name: "default config", config: DefaultConfig()},
		{name: "second sensor", config: Config{DeviceID: 1, Backend: BackendOpenNI2}},
		{name: "zero config", config: Config{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cam := NewCamera(tt.config)

			if cam == nil {
				t.Fatal("NewCamera returned nil")
			}
			if got := cam.FPS(); got != DefaultFPS {
				t.Errorf("FPS() = %d, want %d (default)", got, DefaultFPS)
			}
			if cam.IsOpen() {
				t.Error("sensor should not be open initially")
			}
		})
	}
}

func TestBackends(t *testing.T) {
	tests := []struct {
		name    string
		backend string
		want    int
		wantErr bool
	}{
		{name: "auto tries openni2 then any", backend: BackendAuto, want: 2},
		{name: "openni2 only", backend: BackendOpenNI2, want: 1},
		{name: "any only", backend: BackendAny, want: 1},
		{name: "unknown", backend: "dshow", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			apis, err := backends(tt.backend)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("backends(%q) error = %v", tt.backend, err)
			}
			if len(apis) != tt.want {
				t.Errorf("got %d backends, want %d", len(apis), tt.want)
			}
		})
	}
}

func TestCamera_SetFPS(t *testing.T) {
	cam := NewCamera(DefaultConfig())

	tests := []struct {
		name    string
		fps     int
		wantFPS int
	}{
		{name: "set to 15", fps: 15, wantFPS: 15},
		{name: "set to 30", fps: 30, wantFPS: 30},
		{name: "set to 0 should keep previous", fps: 0, wantFPS: 30},
		{name: "set to negative should keep previous", fps: -5, wantFPS: 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cam.SetFPS(tt.fps)
			if got := cam.FPS(); got != tt.wantFPS {
				t.Errorf("FPS() = %d, want %d", got, tt.wantFPS)
			}
		})
	}
}

func TestCamera_OpenClose_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	cam := NewCamera(DefaultConfig())

	if err := cam.Open(); err != nil {
		t.Skipf("skipping test - sensor not available: %v", err)
	}
	if !cam.IsOpen() {
		t.Error("IsOpen() should return true after Open()")
	}

	mat, err := cam.ReadFrame()
	if err != nil {
		t.Errorf("ReadFrame() failed: %v", err)
	} else {
		if mat.Empty() {
			t.Error("ReadFrame() returned empty mat")
		}
		mat.Close()
	}

	if err := cam.Close(); err != nil {
		t.Errorf("Close() failed: %v", err)
	}
	if cam.IsOpen() {
		t.Error("IsOpen() should return false after Close()")
	}
}

func TestCamera_NotOpened(t *testing.T) {
	cam := NewCamera(DefaultConfig())

	if _, err := cam.ReadFrame(); !errors.Is(err, ErrCameraNotOpen) {
		t.Errorf("ReadFrame() error = %v, want ErrCameraNotOpen", err)
	}
	if err := cam.Close(); err != nil {
		t.Errorf("Close() on not opened sensor should return nil, got: %v", err)
	}
}

func TestCamera_UnknownBackend(t *testing.T) {
	cam := NewCamera(Config{Backend: "dshow"})
	if err := cam.Open(); err == nil {
		t.Fatal("expected error for unknown backend")
	}
	if cam.IsOpen() {
		t.Error("sensor should stay closed")
	}
}
