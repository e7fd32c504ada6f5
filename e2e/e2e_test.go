package e2e

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/ayusman/nritya/internal/app"
	"github.com/ayusman/nritya/internal/capture"
	"github.com/ayusman/nritya/internal/engine"
	"github.com/ayusman/nritya/internal/plugin"
	"github.com/ayusman/nritya/internal/server"
	"github.com/ayusman/nritya/internal/skeleton"
	"github.com/ayusman/nritya/internal/store"
)

const clapGesture = `{
	"name": "Clap",
	"timeout_ms": 2000,
	"steps": [
		{
			"success": [{"joint": "HandLeft", "relationship": "Distance", "reference": "HandRight", "parameter": 400}],
			"failure": [{"joint": "HandLeft", "relationship": "Above", "reference": "Head"}]
		},
		{
			"success": [{"joint": "HandLeft", "relationship": "Distance", "reference": "HandRight", "parameter": -100}]
		}
	]
}`

type harness struct {
	store  *store.Store
	app    *app.App
	server *httptest.Server
}

func newHarness(t *testing.T, pluginDir string) *harness {
	t.Helper()

	s, err := store.New(filepath.Join(t.TempDir(), "data.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })

	a, err := app.New(app.Config{
		Store:         s,
		PluginDir:     pluginDir,
		PluginTimeout: 5 * time.Second,
		Engine:        engine.DefaultConfig(),
	})
	if err != nil {
		t.Fatalf("app.New() error = %v", err)
	}
	if err := a.DiscoverPlugins(); err != nil {
		t.Fatalf("DiscoverPlugins() error = %v", err)
	}

	srv := server.New(server.Config{
		Store:      s,
		Engine:     a.Engine(),
		Recognizer: a,
		Plugins:    a.PluginManager(),
		Metrics:    a.Metrics().Handler(),
	})
	ts := httptest.NewServer(srv)
	t.Cleanup(func() {
		ts.Close()
		srv.Events().Close()
		a.Stop()
	})

	return &harness{store: s, app: a, server: ts}
}

// send issues a request and decodes a JSON response into out when it is
// not nil.
func (h *harness) send(t *testing.T, method, path, body string, want int, out any) {
	t.Helper()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, h.server.URL+path, r)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.server.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s error = %v", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		data, _ := io.ReadAll(resp.Body)
		t.Fatalf("%s %s status = %d, want %d: %s", method, path, resp.StatusCode, want, data)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
}

func TestE2E_CompleteWorkflow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}
	if runtime.GOOS == "windows" {
		t.Skip("shell script plugins are not supported on windows")
	}

	pluginDir := t.TempDir()
	writeRecorder(t, pluginDir)

	h := newHarness(t, pluginDir)

	var created struct {
		ID string `json:"id"`
	}
	h.send(t, http.MethodPost, "/api/gestures", clapGesture, http.StatusCreated, &created)
	if created.ID == "" {
		t.Fatal("created gesture has no id")
	}
	if _, ok := h.app.Engine().Registry().Lookup("Clap"); !ok {
		t.Fatal("Clap was not loaded into the engine")
	}

	h.send(t, http.MethodPost, "/api/actions",
		`{"gesture_id":"`+created.ID+`","plugin_name":"recorder","action_name":"post","config":{"url":"http://localhost/clap"}}`,
		http.StatusCreated, nil)

	completed := make(chan app.Completion, 1)
	h.app.OnCompletion(func(c app.Completion) {
		select {
		case completed <- c:
		default:
		}
	})

	tracker := skeleton.NewMockTracker()
	tracker.SetSequence(
		skeleton.NewFrame(time.Time{}).Add(1, skeleton.HandsApartPose()),
		skeleton.NewFrame(time.Time{}).Add(1, skeleton.HandsApartPose()),
		skeleton.NewFrame(time.Time{}).Add(1, skeleton.HandsTogetherPose()),
	)
	h.app.SetTracker(tracker)
	h.app.SetCamera(capture.NewMockCamera(nil, true))

	h.send(t, http.MethodPut, "/api/recognition", `{"enabled":true}`, http.StatusOK, nil)
	if err := h.app.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	select {
	case c := <-completed:
		if c.Gesture != "Clap" || c.Player != 1 {
			t.Errorf("completion = %+v, want Clap by player 1", c)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Clap was not completed")
	}

	requestPath := filepath.Join(pluginDir, "recorder", "request.json")
	var req plugin.Request
	deadline := time.Now().Add(5 * time.Second)
	for {
		data, err := os.ReadFile(requestPath)
		if err == nil && json.Unmarshal(data, &req) == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("plugin was not run: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}
	if req.Action != "post" || req.Gesture != "Clap" || req.Player != 1 {
		t.Errorf("plugin request = %+v", req)
	}

	var status struct {
		Running  bool     `json:"running"`
		Enabled  bool     `json:"enabled"`
		Gestures []string `json:"gestures"`
	}
	h.send(t, http.MethodGet, "/api/status", "", http.StatusOK, &status)
	if !status.Running || !status.Enabled || len(status.Gestures) != 1 {
		t.Errorf("status = %+v", status)
	}

	h.send(t, http.MethodPut, "/api/recognition", `{"enabled":false}`, http.StatusOK, nil)
	if h.app.Engine().Running() {
		t.Error("engine still running after recognition was switched off")
	}
	if h.store.Settings().Bool(store.SettingRecognition, true) {
		t.Error("recognition setting was not persisted")
	}
}

func TestE2E_ReferencePoints(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	h := newHarness(t, t.TempDir())

	h.send(t, http.MethodPost, "/api/references", `{"name":"Desk","x":-400,"y":300,"z":1700}`, http.StatusCreated, nil)
	h.send(t, http.MethodPost, "/api/gestures", `{
		"name": "TouchDesk",
		"steps": [{"success": [{"joint": "HandLeft", "relationship": "Distance", "reference": "Desk", "parameter": -100}]}]
	}`, http.StatusCreated, nil)

	if _, ok := h.app.Engine().Registry().ReferencePoint("Desk"); !ok {
		t.Fatal("Desk was not loaded into the engine")
	}

	h.send(t, http.MethodPut, "/api/recognition", `{"enabled":true}`, http.StatusOK, nil)

	frame := skeleton.NewFrame(time.Now()).Add(5, skeleton.HandsApartPose())
	if err := h.app.Engine().ProcessFrame(frame); err != nil {
		t.Fatalf("ProcessFrame() error = %v", err)
	}

	last, ok := h.app.LastCompletion()
	if !ok || last.Gesture != "TouchDesk" || last.Player != 5 {
		t.Errorf("LastCompletion() = %+v, %v", last, ok)
	}

	var info engine.RelationshipInfo
	h.send(t, http.MethodGet, "/api/players/5/relationship?joint=HandLeft&relationship=Distance&reference=Desk", "", http.StatusOK, &info)
	if info.Distance > 1 {
		t.Errorf("distance to Desk = %v, want 0", info.Distance)
	}

	h.send(t, http.MethodPost, "/api/references", `{"name":"HandLeft","x":0,"y":0,"z":0}`, http.StatusBadRequest, nil)
	h.send(t, http.MethodPost, "/api/references", `{"name":"Desk","x":0,"y":0,"z":0}`, http.StatusConflict, nil)
}

func TestE2E_ActionValidation(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}
	if runtime.GOOS == "windows" {
		t.Skip("shell script plugins are not supported on windows")
	}

	pluginDir := t.TempDir()
	writeRecorder(t, pluginDir)
	h := newHarness(t, pluginDir)

	var plugins struct {
		Plugins []plugin.Manifest `json:"plugins"`
	}
	h.send(t, http.MethodGet, "/api/plugins", "", http.StatusOK, &plugins)
	if len(plugins.Plugins) != 1 || plugins.Plugins[0].Name != "recorder" {
		t.Fatalf("plugins = %+v", plugins.Plugins)
	}

	var created struct {
		ID string `json:"id"`
	}
	h.send(t, http.MethodPost, "/api/gestures", clapGesture, http.StatusCreated, &created)

	h.send(t, http.MethodPost, "/api/actions",
		`{"gesture_id":"`+created.ID+`","plugin_name":"missing","action_name":"post"}`,
		http.StatusBadRequest, nil)
	h.send(t, http.MethodPost, "/api/actions",
		`{"gesture_id":"`+created.ID+`","plugin_name":"recorder","action_name":"launch"}`,
		http.StatusBadRequest, nil)
	h.send(t, http.MethodPost, "/api/actions",
		`{"gesture_id":"`+created.ID+`","plugin_name":"recorder","action_name":"post"}`,
		http.StatusCreated, nil)
	h.send(t, http.MethodPost, "/api/actions",
		`{"gesture_id":"`+created.ID+`","plugin_name":"recorder","action_name":"post"}`,
		http.StatusConflict, nil)
}

// writeRecorder installs a plugin that saves the request it receives.
func writeRecorder(t *testing.T, root string) {
	t.Helper()
	dir := filepath.Join(root, "recorder")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	manifest := `{"name":"recorder","version":"1.0.0","executable":"run.sh","actions":["post"]}`
	if err := os.WriteFile(filepath.Join(dir, "plugin.json"), []byte(manifest), 0644); err != nil {
		t.Fatal(err)
	}
	script := "#!/bin/sh\ncat > request.json.tmp\nmv request.json.tmp request.json\necho '{\"success\":true}'\n"
	if err := os.WriteFile(filepath.Join(dir, "run.sh"), []byte(script), 0755); err != nil {
		t.Fatal(err)
	}
}
