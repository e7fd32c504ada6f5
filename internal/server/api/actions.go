package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ayusman/nritya/internal/plugin"
	"github.com/ayusman/nritya/internal/store"
)

// ActionHandler serves the bindings between completed gestures and plugin
// actions under /api/actions.
type ActionHandler struct {
	store   *store.Store
	plugins *plugin.Manager
}

// NewActionHandler creates a new ActionHandler. When plugins is not nil,
// bindings must name a discovered plugin and one of its actions.
func NewActionHandler(s *store.Store, plugins *plugin.Manager) *ActionHandler {
	return &ActionHandler{store: s, plugins: plugins}
}

// bindingRequest is the body of POST and PUT. A gesture may be named by id
// or by name; fields left empty on PUT keep their value.
type bindingRequest struct {
	GestureID  string          `json:"gesture_id"`
	Gesture    string          `json:"gesture"`
	PluginName string          `json:"plugin_name"`
	ActionName string          `json:"action_name"`
	Config     json.RawMessage `json:"config"`
	Enabled    *bool           `json:"enabled"`
}

type actionResponse struct {
	ID         string          `json:"id"`
	GestureID  string          `json:"gesture_id"`
	Gesture    string          `json:"gesture"`
	PluginName string          `json:"plugin_name"`
	ActionName string          `json:"action_name"`
	Config     json.RawMessage `json:"config"`
	Enabled    bool            `json:"enabled"`
	CreatedAt  string          `json:"created_at"`
}

type listActionsResponse struct {
	Actions []actionResponse `json:"actions"`
}

// httpError carries the status and message of a rejected request.
type httpError struct {
	status  int
	message string
}

func (e *httpError) Error() string { return e.message }

func badRequest(msg string) error { return &httpError{http.StatusBadRequest, msg} }

func (h *ActionHandler) fail(w http.ResponseWriter, err error, internal string) {
	var he *httpError
	if errors.As(err, &he) {
		writeError(w, he.status, he.message)
		return
	}
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Action not found")
		return
	}
	writeError(w, http.StatusInternalServerError, internal)
}

// ServeHTTP routes /api/actions and /api/actions/{id}.
func (h *ActionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/actions"), "/")

	switch {
	case id == "" && r.Method == http.MethodGet:
		h.list(w, r)
	case id == "" && r.Method == http.MethodPost:
		h.create(w, r)
	case id != "" && r.Method == http.MethodGet:
		h.get(w, id)
	case id != "" && r.Method == http.MethodPut:
		h.update(w, r, id)
	case id != "" && r.Method == http.MethodDelete:
		h.delete(w, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// gesture resolves the gesture a request refers to.
func (h *ActionHandler) gesture(req bindingRequest) (*store.Gesture, error) {
	var (
		g   *store.Gesture
		err error
	)
	switch {
	case req.GestureID != "":
		g, err = h.store.Gestures().GetByID(req.GestureID)
	case req.Gesture != "":
		g, err = h.store.Gestures().GetByName(req.Gesture)
	default:
		return nil, badRequest("gesture_id is required")
	}
	if errors.Is(err, store.ErrNotFound) {
		return nil, badRequest("Gesture not found")
	}
	return g, err
}

// checkPlugin rejects bindings the plugin manager could not run.
func (h *ActionHandler) checkPlugin(pluginName, actionName string) error {
	if h.plugins == nil {
		return nil
	}
	p, err := h.plugins.Get(pluginName)
	if err != nil {
		return badRequest("Plugin not found")
	}
	if !p.Manifest.HasAction(actionName) {
		return badRequest("Plugin does not provide action " + actionName)
	}
	return nil
}

// checkUnbound rejects a second binding for the same gesture.
func (h *ActionHandler) checkUnbound(gestureID, self string) error {
	existing, err := h.store.Actions().GetByGestureID(gestureID)
	if err != nil {
		return err
	}
	if existing != nil && existing.ID != self {
		return &httpError{http.StatusConflict, "Action already bound to this gesture"}
	}
	return nil
}

func toActionResponse(a *store.Action, gesture string) actionResponse {
	config := a.Config
	if len(config) == 0 {
		config = json.RawMessage("{}")
	}
	return actionResponse{
		ID:         a.ID,
		GestureID:  a.GestureID,
		Gesture:    gesture,
		PluginName: a.PluginName,
		ActionName: a.ActionName,
		Config:     config,
		Enabled:    a.Enabled,
		CreatedAt:  a.CreatedAt.Format(time.RFC3339),
	}
}

func (h *ActionHandler) respond(w http.ResponseWriter, status int, a *store.Action) {
	name := ""
	if g, err := h.store.Gestures().GetByID(a.GestureID); err == nil {
		name = g.Name
	}
	writeJSON(w, status, toActionResponse(a, name))
}

// list handles GET /api/actions, optionally filtered with ?plugin=.
func (h *ActionHandler) list(w http.ResponseWriter, r *http.Request) {
	var (
		actions []*store.Action
		err     error
	)
	if p := r.URL.Query().Get("plugin"); p != "" {
		actions, err = h.store.Actions().ListByPlugin(p)
	} else {
		actions, err = h.store.Actions().List()
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list actions")
		return
	}

	names := make(map[string]string)
	if gestures, err := h.store.Gestures().List(); err == nil {
		for _, g := range gestures {
			names[g.ID] = g.Name
		}
	}

	resp := listActionsResponse{Actions: make([]actionResponse, 0, len(actions))}
	for _, a := range actions {
		resp.Actions = append(resp.Actions, toActionResponse(a, names[a.GestureID]))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *ActionHandler) get(w http.ResponseWriter, id string) {
	action, err := h.store.Actions().GetByID(id)
	if err != nil {
		h.fail(w, err, "Failed to get action")
		return
	}
	h.respond(w, http.StatusOK, action)
}

// create handles POST /api/actions. New bindings are enabled.
func (h *ActionHandler) create(w http.ResponseWriter, r *http.Request) {
	var req bindingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	g, err := h.gesture(req)
	if err == nil && req.PluginName == "" {
		err = badRequest("plugin_name is required")
	}
	if err == nil && req.ActionName == "" {
		err = badRequest("action_name is required")
	}
	if err == nil {
		err = h.checkPlugin(req.PluginName, req.ActionName)
	}
	if err == nil {
		err = h.checkUnbound(g.ID, "")
	}
	if err != nil {
		h.fail(w, err, "Failed to create action")
		return
	}

	action := &store.Action{
		GestureID:  g.ID,
		PluginName: req.PluginName,
		ActionName: req.ActionName,
		Config:     req.Config,
		Enabled:    req.Enabled == nil || *req.Enabled,
	}
	if err := h.store.Actions().Create(action); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create action")
		return
	}
	h.respond(w, http.StatusCreated, action)
}

// update handles PUT /api/actions/{id}.
func (h *ActionHandler) update(w http.ResponseWriter, r *http.Request, id string) {
	action, err := h.store.Actions().GetByID(id)
	if err != nil {
		h.fail(w, err, "Failed to get action")
		return
	}

	var req bindingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.GestureID != "" || req.Gesture != "" {
		g, err := h.gesture(req)
		if err == nil {
			err = h.checkUnbound(g.ID, action.ID)
		}
		if err != nil {
			h.fail(w, err, "Failed to verify gesture")
			return
		}
		action.GestureID = g.ID
	}
	if req.PluginName != "" || req.ActionName != "" {
		if req.PluginName != "" {
			action.PluginName = req.PluginName
		}
		if req.ActionName != "" {
			action.ActionName = req.ActionName
		}
		if err := h.checkPlugin(action.PluginName, action.ActionName); err != nil {
			h.fail(w, err, "Failed to verify plugin")
			return
		}
	}
	if req.Config != nil {
		action.Config = req.Config
	}
	if req.Enabled != nil {
		action.Enabled = *req.Enabled
	}

	if err := h.store.Actions().Update(action); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update action")
		return
	}
	h.respond(w, http.StatusOK, action)
}

func (h *ActionHandler) delete(w http.ResponseWriter, id string) {
	if err := h.store.Actions().Delete(id); err != nil {
		h.fail(w, err, "Failed to delete action")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
