package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ayusman/nritya/internal/engine"
	"github.com/ayusman/nritya/internal/gesture"
	"github.com/ayusman/nritya/internal/skeleton"
)

// PlayerHandler exposes the engine's player queries.
//
//	GET /api/players                                   tracked players
//	GET /api/players/{id}                              one player
//	GET /api/players/{id}/joints/{joint}               joint position
//	GET /api/players/{id}/relationship?joint=&relationship=&reference=
type PlayerHandler struct {
	engine *engine.Engine
}

// NewPlayerHandler creates a new PlayerHandler.
func NewPlayerHandler(e *engine.Engine) *PlayerHandler {
	return &PlayerHandler{engine: e}
}

type listPlayersResponse struct {
	Players []engine.PlayerInfo `json:"players"`
}

// ServeHTTP routes the player queries.
func (h *PlayerHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/players")
	path = strings.Trim(path, "/")
	if path == "" {
		writeJSON(w, http.StatusOK, listPlayersResponse{Players: h.engine.Players()})
		return
	}

	parts := strings.Split(path, "/")
	n, err := strconv.Atoi(parts[0])
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid player id")
		return
	}
	player := skeleton.PlayerID(n)

	switch {
	case len(parts) == 1:
		info, err := h.engine.PlayerInfo(player)
		if err != nil {
			writeQueryError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, info)

	case len(parts) == 3 && parts[1] == "joints":
		joint, ok := skeleton.ParseJoint(parts[2])
		if !ok {
			writeError(w, http.StatusBadRequest, "Unknown joint")
			return
		}
		info, err := h.engine.PlayerJointInfo(player, joint)
		if err != nil {
			writeQueryError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, info)

	case len(parts) == 2 && parts[1] == "relationship":
		q := r.URL.Query()
		joint, ok := skeleton.ParseJoint(q.Get("joint"))
		if !ok {
			writeError(w, http.StatusBadRequest, "Unknown joint")
			return
		}
		kind, ok := gesture.ParseRelationship(q.Get("relationship"))
		if !ok {
			writeError(w, http.StatusBadRequest, "Unknown relationship")
			return
		}
		info, err := h.engine.PlayerRelationshipInfo(player, joint, kind, q.Get("reference"))
		if err != nil {
			writeQueryError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, info)

	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

// writeQueryError maps engine query errors to HTTP statuses.
func writeQueryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrNoPlayer), errors.Is(err, gesture.ErrJointMissing):
		writeError(w, http.StatusNotFound, err.Error())
	case gesture.IsConfigurationError(err):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
