package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/nritya/internal/app"
	"github.com/ayusman/nritya/internal/engine"
	"github.com/ayusman/nritya/internal/skeleton"
	"github.com/ayusman/nritya/internal/store"
)

func newTestApp(t *testing.T) (*app.App, *store.Store) {
	t.Helper()

	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })

	a, err := app.New(app.Config{Store: s, Engine: engine.DefaultConfig()})
	if err != nil {
		t.Fatalf("app.New() error = %v", err)
	}
	a.SetTracker(skeleton.NewMockTracker())
	return a, s
}

func dialEvents(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestAPI_GestureWorkflow(t *testing.T) {
	a, s := newTestApp(t)

	srv := New(Config{Store: s, Engine: a.Engine(), Recognizer: a})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	client := ts.Client()

	// 1. Create a gesture with one step
	createBody := `{"name": "LeftOf", "timeout_ms": 1000, "steps": [
		{"success": [{"joint": "HandLeft", "relationship": "LeftOf", "reference": "ShoulderLeft"}]}
	]}`
	resp, err := client.Post(ts.URL+"/api/gestures", "application/json", bytes.NewBufferString(createBody))
	if err != nil {
		t.Fatalf("POST /api/gestures error = %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("POST status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}

	var created struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	json.NewDecoder(resp.Body).Decode(&created)
	resp.Body.Close()

	if created.Name != "LeftOf" {
		t.Errorf("created name = %s, want LeftOf", created.Name)
	}

	// 2. The catalog change reached the engine
	if _, ok := a.Engine().Registry().Lookup("LeftOf"); !ok {
		t.Fatal("gesture was not loaded into the engine")
	}

	// 3. Enable recognition
	req, _ := http.NewRequest(http.MethodPut, ts.URL+"/api/recognition", strings.NewReader(`{"enabled": true}`))
	resp, err = client.Do(req)
	if err != nil {
		t.Fatalf("PUT /api/recognition error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !a.Engine().Running() {
		t.Fatalf("PUT /api/recognition status = %d, running = %v", resp.StatusCode, a.Engine().Running())
	}

	// 4. Watch the event feed while a player performs the gesture
	conn := dialEvents(t, ts)
	deadline := time.Now().Add(2 * time.Second)
	for srv.Events().Clients() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	frame := skeleton.NewFrame(time.Now()).Add(4, skeleton.LeftHandOutPose())
	if err := a.Engine().ProcessFrame(frame); err != nil {
		t.Fatalf("ProcessFrame() error = %v", err)
	}

	seen := map[string]bool{}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for !seen[EventUpdate] {
		var ev struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("read event: %v (seen %v)", err, seen)
		}
		seen[ev.Type] = true

		if ev.Type == EventUpdate {
			var data struct {
				Player  int    `json:"player"`
				Gesture string `json:"gesture"`
			}
			json.Unmarshal(ev.Data, &data)
			if data.Player != 4 || data.Gesture != "LeftOf" {
				t.Errorf("update data = %s", ev.Data)
			}
		}
	}
	if !seen[EventPlayer] || !seen[EventProcessing] {
		t.Errorf("expected player and processing events before the update, saw %v", seen)
	}

	// 5. Status shows the tracked player
	resp, _ = client.Get(ts.URL + "/api/status")
	var status struct {
		Enabled bool `json:"enabled"`
		Players []struct {
			Player int `json:"player"`
		} `json:"players"`
	}
	json.NewDecoder(resp.Body).Decode(&status)
	resp.Body.Close()
	if !status.Enabled || len(status.Players) != 1 || status.Players[0].Player != 4 {
		t.Errorf("unexpected status: %+v", status)
	}

	// 6. Delete the gesture; the engine keeps running with an empty catalog
	req, _ = http.NewRequest(http.MethodDelete, ts.URL+"/api/gestures/"+created.ID, nil)
	resp, _ = client.Do(req)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("DELETE status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}
	resp.Body.Close()

	if a.Engine().Registry().Len() != 0 || !a.Engine().Running() {
		t.Errorf("after delete: gestures = %d, running = %v", a.Engine().Registry().Len(), a.Engine().Running())
	}
}

func TestAPI_EventsShutdown(t *testing.T) {
	e, err := engine.New(engine.DefaultConfig())
	if err != nil {
		t.Fatalf("engine.New() error = %v", err)
	}
	srv := New(Config{Engine: e})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	conn := dialEvents(t, ts)
	deadline := time.Now().Add(2 * time.Second)
	for srv.Events().Clients() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if srv.Events().Clients() != 1 {
		t.Fatalf("clients = %d, want 1", srv.Events().Clients())
	}

	srv.Events().Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("expected the connection to be closed")
	}

	deadline = time.Now().Add(2 * time.Second)
	for srv.Events().Clients() != 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if srv.Events().Clients() != 0 {
		t.Errorf("clients = %d after close, want 0", srv.Events().Clients())
	}
}

func TestAPI_HealthCheck(t *testing.T) {
	srv := New(Config{})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET /api/health error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var health struct {
		Status  string `json:"status"`
		Uptime  string `json:"uptime"`
		Version string `json:"version"`
	}
	json.NewDecoder(resp.Body).Decode(&health)

	if health.Status != "ok" {
		t.Errorf("status = %s, want ok", health.Status)
	}
	if health.Version == "" {
		t.Error("expected a version")
	}
}
