// Package api provides the HTTP API handlers for the nritya gesture catalog.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/ayusman/nritya/internal/gesture"
	"github.com/ayusman/nritya/internal/store"
)

// GestureHandler handles HTTP requests for gesture resources.
type GestureHandler struct {
	store    *store.Store
	onChange func()
}

// NewGestureHandler creates a new GestureHandler with the given store.
// onChange, if not nil, is called after every change to the catalog.
func NewGestureHandler(s *store.Store, onChange func()) *GestureHandler {
	return &GestureHandler{store: s, onChange: onChange}
}

// ServeHTTP implements the http.Handler interface and routes requests to appropriate methods.
func (h *GestureHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Expected paths: /api/gestures, /api/gestures/{id} or /api/gestures/{id}/steps
	path := strings.TrimPrefix(r.URL.Path, "/api/gestures")
	path = strings.Trim(path, "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.create(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	id, sub, _ := strings.Cut(path, "/")
	switch sub {
	case "":
	case "steps":
		switch r.Method {
		case http.MethodGet:
			h.getSteps(w, r, id)
		case http.MethodPut:
			h.setSteps(w, r, id)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	default:
		writeError(w, http.StatusNotFound, "Not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.get(w, r, id)
	case http.MethodPut:
		h.update(w, r, id)
	case http.MethodDelete:
		h.delete(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// Request and response types

type gestureRequest struct {
	Name      string       `json:"name"`
	TimeoutMS int          `json:"timeout_ms"`
	Steps     []store.Step `json:"steps,omitempty"`
}

type gestureResponse struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	TimeoutMS int          `json:"timeout_ms"`
	Steps     []store.Step `json:"steps"`
	CreatedAt string       `json:"created_at"`
	UpdatedAt string       `json:"updated_at"`
}

type listGesturesResponse struct {
	Gestures []gestureResponse `json:"gestures"`
}

type stepsResponse struct {
	Steps []store.Step `json:"steps"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// toResponse converts a store.Gesture and its steps to a gestureResponse.
func toResponse(g *store.Gesture, steps []store.Step) gestureResponse {
	if steps == nil {
		steps = []store.Step{}
	}
	return gestureResponse{
		ID:        g.ID,
		Name:      g.Name,
		TimeoutMS: g.TimeoutMS,
		Steps:     steps,
		CreatedAt: g.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt: g.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func (h *GestureHandler) changed() {
	if h.onChange != nil {
		h.onChange()
	}
}

// validateSteps checks that every condition names a known joint and
// relationship, and that distance and change conditions carry a parameter.
func validateSteps(steps []store.Step) error {
	for i, step := range steps {
		if len(step.Success) == 0 {
			return fmt.Errorf("step %d has no success conditions", i)
		}
		for _, c := range append(append([]store.Condition{}, step.Success...), step.Failure...) {
			_, kind, err := gesture.ParseCondition(c.Joint, c.Relationship)
			if err != nil {
				return fmt.Errorf("step %d: %v", i, err)
			}
			if kind.NeedsParameter() && c.Parameter == 0 {
				return fmt.Errorf("step %d: %s needs a non-zero parameter", i, kind)
			}
			if !kind.Change() && c.Reference == "" {
				return fmt.Errorf("step %d: %s needs a reference", i, kind)
			}
		}
	}
	return nil
}

// list handles GET /api/gestures and returns all gestures.
func (h *GestureHandler) list(w http.ResponseWriter, r *http.Request) {
	gestures, err := h.store.Gestures().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list gestures")
		return
	}

	response := listGesturesResponse{
		Gestures: make([]gestureResponse, 0, len(gestures)),
	}

	for _, g := range gestures {
		steps, err := h.store.Gestures().GetSteps(g.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to load steps")
			return
		}
		response.Gestures = append(response.Gestures, toResponse(g, steps))
	}

	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/gestures/{id} and returns a single gesture.
func (h *GestureHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	gesture, err := h.store.Gestures().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Gesture not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get gesture")
		return
	}

	steps, err := h.store.Gestures().GetSteps(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load steps")
		return
	}

	writeJSON(w, http.StatusOK, toResponse(gesture, steps))
}

// create handles POST /api/gestures and creates a new gesture, optionally
// with its steps.
func (h *GestureHandler) create(w http.ResponseWriter, r *http.Request) {
	var req gestureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Name is required")
		return
	}
	if req.TimeoutMS < 0 {
		writeError(w, http.StatusBadRequest, "timeout_ms must not be negative")
		return
	}
	if err := validateSteps(req.Steps); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := h.store.Gestures().GetByName(req.Name); err == nil {
		writeError(w, http.StatusConflict, "Gesture name already exists")
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, "Failed to check gesture name")
		return
	}

	gesture := &store.Gesture{
		ID:        uuid.New().String(),
		Name:      req.Name,
		TimeoutMS: req.TimeoutMS,
	}

	if err := h.store.Gestures().Create(gesture); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create gesture")
		return
	}
	if len(req.Steps) > 0 {
		if err := h.store.Gestures().SetSteps(gesture.ID, req.Steps); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to save steps")
			return
		}
	}

	h.changed()
	writeJSON(w, http.StatusCreated, toResponse(gesture, req.Steps))
}

// update handles PUT /api/gestures/{id} and renames the gesture or changes
// its timeout.
func (h *GestureHandler) update(w http.ResponseWriter, r *http.Request, id string) {
	gesture, err := h.store.Gestures().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Gesture not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get gesture")
		return
	}

	var req gestureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Name != "" && req.Name != gesture.Name {
		if _, err := h.store.Gestures().GetByName(req.Name); err == nil {
			writeError(w, http.StatusConflict, "Gesture name already exists")
			return
		}
		gesture.Name = req.Name
	}
	if req.TimeoutMS < 0 {
		writeError(w, http.StatusBadRequest, "timeout_ms must not be negative")
		return
	}
	if req.TimeoutMS > 0 {
		gesture.TimeoutMS = req.TimeoutMS
	}

	if err := h.store.Gestures().Update(gesture); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update gesture")
		return
	}

	steps, err := h.store.Gestures().GetSteps(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load steps")
		return
	}

	h.changed()
	writeJSON(w, http.StatusOK, toResponse(gesture, steps))
}

// delete handles DELETE /api/gestures/{id} and removes a gesture together
// with its steps and action binding.
func (h *GestureHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	err := h.store.Gestures().Delete(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Gesture not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete gesture")
		return
	}

	h.changed()
	w.WriteHeader(http.StatusNoContent)
}

// getSteps handles GET /api/gestures/{id}/steps.
func (h *GestureHandler) getSteps(w http.ResponseWriter, r *http.Request, id string) {
	steps, err := h.store.Gestures().GetSteps(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Gesture not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to load steps")
		return
	}

	writeJSON(w, http.StatusOK, stepsResponse{Steps: steps})
}

// setSteps handles PUT /api/gestures/{id}/steps and replaces every step.
func (h *GestureHandler) setSteps(w http.ResponseWriter, r *http.Request, id string) {
	var req stepsResponse
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if err := validateSteps(req.Steps); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.Gestures().SetSteps(id, req.Steps); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Gesture not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to save steps")
		return
	}

	if req.Steps == nil {
		req.Steps = []store.Step{}
	}
	h.changed()
	writeJSON(w, http.StatusOK, req)
}
