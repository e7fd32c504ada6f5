package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Action binds a completed gesture to a plugin action.
type Action struct {
	ID         string          `json:"id"`
	GestureID  string          `json:"gesture_id"`
	PluginName string          `json:"plugin_name"`
	ActionName string          `json:"action_name"`
	Config     json.RawMessage `json:"config,omitempty"`
	Enabled    bool            `json:"enabled"`
	CreatedAt  time.Time       `json:"created_at"`
}

const actionColumns = `a.id, a.gesture_id, a.plugin_name, a.action_name, a.config, a.enabled, a.created_at`

// ActionRepository persists gesture to plugin bindings.
type ActionRepository struct {
	db *sql.DB
}

// Actions returns the action repository for this store.
func (s *Store) Actions() *ActionRepository {
	return &ActionRepository{db: s.db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAction(row rowScanner) (*Action, error) {
	a := &Action{}
	var config string
	if err := row.Scan(&a.ID, &a.GestureID, &a.PluginName, &a.ActionName, &config, &a.Enabled, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.Config = json.RawMessage(config)
	return a, nil
}

func configText(c json.RawMessage) string {
	if len(c) == 0 {
		return "{}"
	}
	return string(c)
}

// Create binds an action. An empty ID is replaced by a fresh UUID.
func (r *ActionRepository) Create(a *Action) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.CreatedAt = time.Now()

	_, err := r.db.Exec(
		`INSERT INTO actions (id, gesture_id, plugin_name, action_name, config, enabled, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.GestureID, a.PluginName, a.ActionName, configText(a.Config), a.Enabled, a.CreatedAt,
	)
	return err
}

// GetByID retrieves an action by its ID.
func (r *ActionRepository) GetByID(id string) (*Action, error) {
	a, err := scanAction(r.db.QueryRow(
		`SELECT `+actionColumns+` FROM actions a WHERE a.id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

// GetByGestureID retrieves the action bound to a gesture.
// Returns nil, nil if the gesture has no action.
func (r *ActionRepository) GetByGestureID(gestureID string) (*Action, error) {
	return r.one(
		`SELECT `+actionColumns+` FROM actions a
		 WHERE a.gesture_id = ? ORDER BY a.rowid DESC LIMIT 1`, gestureID,
	)
}

// ForGesture retrieves the enabled action bound to the gesture with the
// given name, as reported by the engine on completion.
// Returns nil, nil if there is none.
func (r *ActionRepository) ForGesture(name string) (*Action, error) {
	return r.one(
		`SELECT `+actionColumns+` FROM actions a
		 JOIN gestures g ON g.id = a.gesture_id
		 WHERE g.name = ? AND a.enabled = 1
		 ORDER BY a.rowid DESC LIMIT 1`, name,
	)
}

func (r *ActionRepository) one(query string, args ...any) (*Action, error) {
	a, err := scanAction(r.db.QueryRow(query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

// List retrieves all actions in creation order.
func (r *ActionRepository) List() ([]*Action, error) {
	return r.list(`SELECT ` + actionColumns + ` FROM actions a ORDER BY a.rowid`)
}

// ListByPlugin retrieves the actions handled by one plugin.
func (r *ActionRepository) ListByPlugin(plugin string) ([]*Action, error) {
	return r.list(`SELECT `+actionColumns+` FROM actions a WHERE a.plugin_name = ? ORDER BY a.rowid`, plugin)
}

func (r *ActionRepository) list(query string, args ...any) ([]*Action, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var actions []*Action
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, err
		}
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

// Update rewrites an existing binding.
func (r *ActionRepository) Update(a *Action) error {
	result, err := r.db.Exec(
		`UPDATE actions SET gesture_id = ?, plugin_name = ?, action_name = ?, config = ?, enabled = ?
		 WHERE id = ?`,
		a.GestureID, a.PluginName, a.ActionName, configText(a.Config), a.Enabled, a.ID,
	)
	if err != nil {
		return err
	}
	return expectRow(result)
}

// Delete removes an action by its ID.
func (r *ActionRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM actions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectRow(result)
}
