package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/ayusman/nritya/internal/skeleton"
	"github.com/ayusman/nritya/internal/store"
)

// ReferenceHandler handles HTTP requests for static reference points.
type ReferenceHandler struct {
	store    *store.Store
	onChange func()
}

// NewReferenceHandler creates a new ReferenceHandler with the given store.
// onChange, if not nil, is called after a reference point is added or removed.
func NewReferenceHandler(s *store.Store, onChange func()) *ReferenceHandler {
	return &ReferenceHandler{store: s, onChange: onChange}
}

// ServeHTTP routes /api/references and /api/references/{name}.
func (h *ReferenceHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/references")
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

	name, err := url.PathUnescape(path)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid name")
		return
	}
	switch r.Method {
	case http.MethodGet:
		h.get(w, r, name)
	case http.MethodDelete:
		h.delete(w, r, name)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type listReferencesResponse struct {
	References []*store.ReferencePoint `json:"references"`
}

// list handles GET /api/references.
func (h *ReferenceHandler) list(w http.ResponseWriter, r *http.Request) {
	points, err := h.store.References().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list reference points")
		return
	}
	if points == nil {
		points = []*store.ReferencePoint{}
	}
	writeJSON(w, http.StatusOK, listReferencesResponse{References: points})
}

// get handles GET /api/references/{name}.
func (h *ReferenceHandler) get(w http.ResponseWriter, r *http.Request, name string) {
	p, err := h.store.References().Get(name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Reference point not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get reference point")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// create handles POST /api/references. Names may not shadow a joint.
func (h *ReferenceHandler) create(w http.ResponseWriter, r *http.Request) {
	var p store.ReferencePoint
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if p.Name == "" {
		writeError(w, http.StatusBadRequest, "Name is required")
		return
	}
	if _, ok := skeleton.ParseJoint(p.Name); ok {
		writeError(w, http.StatusBadRequest, "Name is a joint name")
		return
	}

	if _, err := h.store.References().Get(p.Name); err == nil {
		writeError(w, http.StatusConflict, "Reference point already exists")
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, "Failed to check reference point")
		return
	}

	if err := h.store.References().Create(&p); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create reference point")
		return
	}

	if h.onChange != nil {
		h.onChange()
	}
	writeJSON(w, http.StatusCreated, p)
}

// delete handles DELETE /api/references/{name}.
func (h *ReferenceHandler) delete(w http.ResponseWriter, r *http.Request, name string) {
	if err := h.store.References().Delete(name); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Reference point not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete reference point")
		return
	}

	if h.onChange != nil {
		h.onChange()
	}
	w.WriteHeader(http.StatusNoContent)
}
