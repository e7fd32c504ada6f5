package plugin

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// writePlugin creates a plugin directory under root with a manifest and,
// when script is non-empty, an executable shell script.
func writePlugin(t *testing.T, root string, manifest Manifest, script string) *Plugin {
	t.Helper()

	dir := filepath.Join(root, manifest.Name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("failed to create plugin dir: %v", err)
	}

	data, err := json.Marshal(manifest)
	if err != nil {
		t.Fatalf("failed to marshal manifest: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "plugin.json"), data, 0644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}

	exe := filepath.Join(dir, manifest.Executable)
	if script != "" {
		if err := os.WriteFile(exe, []byte(script), 0755); err != nil {
			t.Fatalf("failed to write script: %v", err)
		}
	}

	return &Plugin{Manifest: manifest, Path: dir, Executable: exe}
}

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows")
	}
}
