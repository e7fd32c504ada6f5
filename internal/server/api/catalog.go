package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/ayusman/nritya/internal/skeleton"
	"github.com/ayusman/nritya/internal/store"
)

// CatalogHandler exports and imports the whole gesture catalog at
// /api/catalog.
type CatalogHandler struct {
	store    *store.Store
	onChange func()
}

// NewCatalogHandler creates a new CatalogHandler. onChange, if not nil, is
// called after a successful import.
func NewCatalogHandler(s *store.Store, onChange func()) *CatalogHandler {
	return &CatalogHandler{store: s, onChange: onChange}
}

func (h *CatalogHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		c, err := h.store.Export()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to export catalog")
			return
		}
		w.Header().Set("Content-Disposition", `attachment; filename="nritya-catalog.json"`)
		writeJSON(w, http.StatusOK, c)
	case http.MethodPut:
		h.put(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// put merges the uploaded catalog. Nothing is written unless every gesture
// and reference point in it is valid.
func (h *CatalogHandler) put(w http.ResponseWriter, r *http.Request) {
	var c store.Catalog
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if err := validateCatalog(&c); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.Import(&c); err != nil {
		if errors.Is(err, store.ErrCatalogVersion) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to import catalog")
		return
	}
	if h.onChange != nil {
		h.onChange()
	}
	w.WriteHeader(http.StatusNoContent)
}

func validateCatalog(c *store.Catalog) error {
	refs := make(map[string]bool)
	for _, p := range c.References {
		if p.Name == "" {
			return errors.New("reference point without a name")
		}
		if _, ok := skeleton.ParseJoint(p.Name); ok {
			return fmt.Errorf("reference point %s is a joint name", p.Name)
		}
		if refs[p.Name] {
			return fmt.Errorf("reference point %s appears twice", p.Name)
		}
		refs[p.Name] = true
	}

	names := make(map[string]bool)
	for _, g := range c.Gestures {
		if g.Name == "" {
			return errors.New("gesture without a name")
		}
		if names[g.Name] {
			return fmt.Errorf("gesture %s appears twice", g.Name)
		}
		names[g.Name] = true
		if g.TimeoutMS < 0 {
			return fmt.Errorf("gesture %s: timeout_ms must not be negative", g.Name)
		}
		if err := validateSteps(g.Steps); err != nil {
			return fmt.Errorf("gesture %s: %w", g.Name, err)
		}
	}
	return nil
}
