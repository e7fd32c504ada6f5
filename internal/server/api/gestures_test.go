package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ayusman/nritya/internal/store"
)

// newTestStore creates a new Store with a temporary database for testing.
func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})

	return s
}

// do sends a request with an optional JSON body to h.
func do(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to marshal request: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func clapSteps() []store.Step {
	return []store.Step{
		{Success: []store.Condition{{Joint: "HandLeft", Relationship: "Distance", Reference: "HandRight", Parameter: 400}}},
		{
			Success: []store.Condition{{Joint: "HandLeft", Relationship: "Distance", Reference: "HandRight", Parameter: -100}},
			Failure: []store.Condition{{Joint: "HandLeft", Relationship: "Above", Reference: "Head"}},
		},
	}
}

func createGesture(t *testing.T, s *store.Store, name string, steps []store.Step) *store.Gesture {
	t.Helper()
	g := &store.Gesture{Name: name}
	if err := s.Gestures().Create(g); err != nil {
		t.Fatalf("failed to create gesture: %v", err)
	}
	if steps != nil {
		if err := s.Gestures().SetSteps(g.ID, steps); err != nil {
			t.Fatalf("failed to set steps: %v", err)
		}
	}
	return g
}

func TestGestureHandler_List(t *testing.T) {
	s := newTestStore(t)
	handler := NewGestureHandler(s, nil)
	createGesture(t, s, "Clap", clapSteps())
	createGesture(t, s, "Draft", nil)

	rec := do(t, handler, http.MethodGet, "/api/gestures", nil)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if contentType := rec.Header().Get("Content-Type"); contentType != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", contentType)
	}

	var response listGesturesResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if len(response.Gestures) != 2 {
		t.Fatalf("expected 2 gestures, got %d", len(response.Gestures))
	}
	if response.Gestures[0].Name != "Clap" || len(response.Gestures[0].Steps) != 2 {
		t.Errorf("unexpected first gesture: %+v", response.Gestures[0])
	}
	if response.Gestures[1].Steps == nil || len(response.Gestures[1].Steps) != 0 {
		t.Errorf("expected empty steps for draft, got %v", response.Gestures[1].Steps)
	}
}

func TestGestureHandler_Create(t *testing.T) {
	s := newTestStore(t)
	changes := 0
	handler := NewGestureHandler(s, func() { changes++ })

	rec := do(t, handler, http.MethodPost, "/api/gestures", gestureRequest{
		Name:      "Clap",
		TimeoutMS: 1500,
		Steps:     clapSteps(),
	})

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}

	var response gestureResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.ID == "" {
		t.Error("expected non-empty ID in response")
	}
	if response.Name != "Clap" || response.TimeoutMS != 1500 {
		t.Errorf("unexpected response: %+v", response)
	}
	if changes != 1 {
		t.Errorf("expected 1 catalog change, got %d", changes)
	}

	steps, err := s.Gestures().GetSteps(response.ID)
	if err != nil {
		t.Fatalf("failed to get stored steps: %v", err)
	}
	if diff := cmp.Diff(clapSteps(), steps); diff != "" {
		t.Errorf("stored steps mismatch (-want +got):\n%s", diff)
	}
}

func TestGestureHandler_Create_DefaultTimeout(t *testing.T) {
	s := newTestStore(t)
	handler := NewGestureHandler(s, nil)

	rec := do(t, handler, http.MethodPost, "/api/gestures", gestureRequest{Name: "Wave"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d", http.StatusCreated, rec.Code)
	}

	var response gestureResponse
	json.NewDecoder(rec.Body).Decode(&response)
	if response.TimeoutMS != store.DefaultTimeoutMS {
		t.Errorf("expected default timeout %d, got %d", store.DefaultTimeoutMS, response.TimeoutMS)
	}
}

func TestGestureHandler_Create_Invalid(t *testing.T) {
	s := newTestStore(t)
	createGesture(t, s, "Clap", nil)
	changes := 0
	handler := NewGestureHandler(s, func() { changes++ })

	tests := []struct {
		name string
		body interface{}
		want int
	}{
		{name: "invalid json", body: "invalid json", want: http.StatusBadRequest},
		{name: "missing name", body: gestureRequest{TimeoutMS: 100}, want: http.StatusBadRequest},
		{name: "negative timeout", body: gestureRequest{Name: "Wave", TimeoutMS: -1}, want: http.StatusBadRequest},
		{name: "duplicate name", body: gestureRequest{Name: "Clap"}, want: http.StatusConflict},
		{
			name: "unknown joint",
			body: gestureRequest{Name: "Wave", Steps: []store.Step{{Success: []store.Condition{{Joint: "Tail", Relationship: "Above", Reference: "Head"}}}}},
			want: http.StatusBadRequest,
		},
		{
			name: "unknown relationship",
			body: gestureRequest{Name: "Wave", Steps: []store.Step{{Success: []store.Condition{{Joint: "HandLeft", Relationship: "Near", Reference: "Head"}}}}},
			want: http.StatusBadRequest,
		},
		{
			name: "distance without parameter",
			body: gestureRequest{Name: "Wave", Steps: []store.Step{{Success: []store.Condition{{Joint: "HandLeft", Relationship: "Distance", Reference: "Head"}}}}},
			want: http.StatusBadRequest,
		},
		{
			name: "directional without reference",
			body: gestureRequest{Name: "Wave", Steps: []store.Step{{Success: []store.Condition{{Joint: "HandLeft", Relationship: "Above"}}}}},
			want: http.StatusBadRequest,
		},
		{
			name: "step without success conditions",
			body: gestureRequest{Name: "Wave", Steps: []store.Step{{}}},
			want: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, handler, http.MethodPost, "/api/gestures", tt.body)
			if rec.Code != tt.want {
				t.Errorf("expected status %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}

	if changes != 0 {
		t.Errorf("rejected requests should not change the catalog, got %d changes", changes)
	}
}

func TestGestureHandler_Get(t *testing.T) {
	s := newTestStore(t)
	handler := NewGestureHandler(s, nil)
	g := createGesture(t, s, "Clap", clapSteps())

	rec := do(t, handler, http.MethodGet, "/api/gestures/"+g.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var response gestureResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.ID != g.ID || response.Name != "Clap" {
		t.Errorf("unexpected response: %+v", response)
	}
	if diff := cmp.Diff(clapSteps(), response.Steps); diff != "" {
		t.Errorf("steps mismatch (-want +got):\n%s", diff)
	}

	rec = do(t, handler, http.MethodGet, "/api/gestures/non-existent-id", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestGestureHandler_Update(t *testing.T) {
	s := newTestStore(t)
	changes := 0
	handler := NewGestureHandler(s, func() { changes++ })
	g := createGesture(t, s, "Clap", clapSteps())
	createGesture(t, s, "Wave", nil)

	rec := do(t, handler, http.MethodPut, "/api/gestures/"+g.ID, gestureRequest{Name: "BigClap", TimeoutMS: 2500})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	updated, err := s.Gestures().GetByID(g.ID)
	if err != nil {
		t.Fatalf("failed to get gesture: %v", err)
	}
	if updated.Name != "BigClap" || updated.TimeoutMS != 2500 {
		t.Errorf("unexpected stored gesture: %+v", updated)
	}
	if changes != 1 {
		t.Errorf("expected 1 catalog change, got %d", changes)
	}

	rec = do(t, handler, http.MethodPut, "/api/gestures/"+g.ID, gestureRequest{Name: "Wave"})
	if rec.Code != http.StatusConflict {
		t.Errorf("rename to existing name: expected status %d, got %d", http.StatusConflict, rec.Code)
	}

	rec = do(t, handler, http.MethodPut, "/api/gestures/non-existent-id", gestureRequest{Name: "X"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestGestureHandler_Delete(t *testing.T) {
	s := newTestStore(t)
	changes := 0
	handler := NewGestureHandler(s, func() { changes++ })
	g := createGesture(t, s, "Clap", clapSteps())

	rec := do(t, handler, http.MethodDelete, "/api/gestures/"+g.ID, nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected status %d, got %d", http.StatusNoContent, rec.Code)
	}
	if _, err := s.Gestures().GetByID(g.ID); err != store.ErrNotFound {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if changes != 1 {
		t.Errorf("expected 1 catalog change, got %d", changes)
	}

	rec = do(t, handler, http.MethodDelete, "/api/gestures/"+g.ID, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestGestureHandler_Steps(t *testing.T) {
	s := newTestStore(t)
	changes := 0
	handler := NewGestureHandler(s, func() { changes++ })
	g := createGesture(t, s, "Clap", nil)
	path := "/api/gestures/" + g.ID + "/steps"

	rec := do(t, handler, http.MethodGet, path, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	var got stepsResponse
	json.NewDecoder(rec.Body).Decode(&got)
	if len(got.Steps) != 0 {
		t.Errorf("expected no steps, got %v", got.Steps)
	}

	rec = do(t, handler, http.MethodPut, path, stepsResponse{Steps: clapSteps()})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
	if changes != 1 {
		t.Errorf("expected 1 catalog change, got %d", changes)
	}

	rec = do(t, handler, http.MethodGet, path, nil)
	got = stepsResponse{}
	json.NewDecoder(rec.Body).Decode(&got)
	if diff := cmp.Diff(clapSteps(), got.Steps); diff != "" {
		t.Errorf("steps mismatch (-want +got):\n%s", diff)
	}

	bad := []store.Step{{Success: []store.Condition{{Joint: "HandLeft", Relationship: "XChange"}}}}
	if rec := do(t, handler, http.MethodPut, path, stepsResponse{Steps: bad}); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid steps: expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}

	missing := "/api/gestures/non-existent-id/steps"
	if rec := do(t, handler, http.MethodGet, missing, nil); rec.Code != http.StatusNotFound {
		t.Errorf("GET unknown gesture: expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
	if rec := do(t, handler, http.MethodPut, missing, stepsResponse{Steps: clapSteps()}); rec.Code != http.StatusNotFound {
		t.Errorf("PUT unknown gesture: expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
	if rec := do(t, handler, http.MethodPost, path, nil); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST steps: expected status %d, got %d", http.StatusMethodNotAllowed, rec.Code)
	}
}

func TestGestureHandler_MethodNotAllowed(t *testing.T) {
	s := newTestStore(t)
	handler := NewGestureHandler(s, nil)

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodPut, "/api/gestures"},
		{http.MethodDelete, "/api/gestures"},
		{http.MethodPatch, "/api/gestures"},
		{http.MethodPost, "/api/gestures/some-id"},
		{http.MethodPatch, "/api/gestures/some-id"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := do(t, handler, tt.method, tt.path, nil)
			if rec.Code != http.StatusMethodNotAllowed {
				t.Errorf("expected status %d, got %d", http.StatusMethodNotAllowed, rec.Code)
			}
		})
	}
}
