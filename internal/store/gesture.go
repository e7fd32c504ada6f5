package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// DefaultTimeoutMS is the step timeout given to gestures created without one.
const DefaultTimeoutMS = 5000

// Condition roles.
const (
	RoleSuccess = "success"
	RoleFailure = "failure"
)

// Gesture represents a gesture definition stored in the database.
type Gesture struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	TimeoutMS int       `json:"timeout_ms"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Condition is a stored relationship. Joint, Relationship and Reference are
// kept by name so the catalog survives changes to the engine's enums.
type Condition struct {
	Joint        string  `json:"joint"`
	Relationship string  `json:"relationship"`
	Reference    string  `json:"reference,omitempty"`
	Parameter    float64 `json:"parameter,omitempty"`
}

// Step is one stored step of a gesture.
type Step struct {
	Success []Condition `json:"success"`
	Failure []Condition `json:"failure,omitempty"`
}

// GestureRepository provides CRUD operations for gestures.
type GestureRepository struct {
	db *sql.DB
}

// Gestures returns the gesture repository for this store.
func (s *Store) Gestures() *GestureRepository {
	return &GestureRepository{db: s.db}
}

// Create inserts a new gesture into the database. An empty ID is replaced by
// a fresh UUID and a non-positive timeout by DefaultTimeoutMS.
func (r *GestureRepository) Create(g *Gesture) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	if g.TimeoutMS <= 0 {
		g.TimeoutMS = DefaultTimeoutMS
	}
	now := time.Now()
	g.CreatedAt = now
	g.UpdatedAt = now

	_, err := r.db.Exec(
		`INSERT INTO gestures (id, name, timeout_ms, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		g.ID, g.Name, g.TimeoutMS, g.CreatedAt, g.UpdatedAt,
	)
	return err
}

// GetByID retrieves a gesture by its ID.
func (r *GestureRepository) GetByID(id string) (*Gesture, error) {
	return r.get(`SELECT id, name, timeout_ms, created_at, updated_at FROM gestures WHERE id = ?`, id)
}

// GetByName retrieves a gesture by its name.
func (r *GestureRepository) GetByName(name string) (*Gesture, error) {
	return r.get(`SELECT id, name, timeout_ms, created_at, updated_at FROM gestures WHERE name = ?`, name)
}

func (r *GestureRepository) get(query string, arg string) (*Gesture, error) {
	g := &Gesture{}
	err := r.db.QueryRow(query, arg).Scan(&g.ID, &g.Name, &g.TimeoutMS, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return g, nil
}

// List retrieves all gestures in creation order, which is the order they
// are registered with the engine.
func (r *GestureRepository) List() ([]*Gesture, error) {
	rows, err := r.db.Query(
		`SELECT id, name, timeout_ms, created_at, updated_at
		 FROM gestures ORDER BY rowid`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var gestures []*Gesture
	for rows.Next() {
		g := &Gesture{}
		if err := rows.Scan(&g.ID, &g.Name, &g.TimeoutMS, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, err
		}
		gestures = append(gestures, g)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return gestures, nil
}

// Update updates an existing gesture in the database.
func (r *GestureRepository) Update(g *Gesture) error {
	if g.TimeoutMS <= 0 {
		g.TimeoutMS = DefaultTimeoutMS
	}
	g.UpdatedAt = time.Now()

	result, err := r.db.Exec(
		`UPDATE gestures SET name = ?, timeout_ms = ?, updated_at = ? WHERE id = ?`,
		g.Name, g.TimeoutMS, g.UpdatedAt, g.ID,
	)
	if err != nil {
		return err
	}
	return expectRow(result)
}

// Delete removes a gesture and everything bound to it.
func (r *GestureRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM gestures WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectRow(result)
}

// SetSteps replaces the steps of a gesture in a single transaction.
func (r *GestureRepository) SetSteps(gestureID string, steps []Step) error {
	return withTx(r.db, func(tx *sql.Tx) error {
		return setSteps(tx, gestureID, steps)
	})
}

func setSteps(tx *sql.Tx, gestureID string, steps []Step) error {
	result, err := tx.Exec(`UPDATE gestures SET updated_at = ? WHERE id = ?`, time.Now(), gestureID)
	if err != nil {
		return err
	}
	if err := expectRow(result); err != nil {
		return err
	}

	if _, err := tx.Exec(
		`DELETE FROM step_conditions WHERE step_id IN (SELECT id FROM gesture_steps WHERE gesture_id = ?)`,
		gestureID,
	); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM gesture_steps WHERE gesture_id = ?`, gestureID); err != nil {
		return err
	}

	cond, err := tx.Prepare(
		`INSERT INTO step_conditions (step_id, role, position, joint, relationship, reference, parameter)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer cond.Close()

	for i, step := range steps {
		res, err := tx.Exec(`INSERT INTO gesture_steps (gesture_id, position) VALUES (?, ?)`, gestureID, i)
		if err != nil {
			return err
		}
		stepID, err := res.LastInsertId()
		if err != nil {
			return err
		}

		for role, conditions := range map[string][]Condition{RoleSuccess: step.Success, RoleFailure: step.Failure} {
			for j, c := range conditions {
				if _, err := cond.Exec(stepID, role, j, c.Joint, c.Relationship, c.Reference, c.Parameter); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// GetSteps retrieves the ordered steps of a gesture. A gesture without
// steps yields an empty slice; an unknown gesture yields ErrNotFound.
func (r *GestureRepository) GetSteps(gestureID string) ([]Step, error) {
	var exists int
	if err := r.db.QueryRow(`SELECT 1 FROM gestures WHERE id = ?`, gestureID).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	rows, err := r.db.Query(
		`SELECT s.position, c.role, c.joint, c.relationship, c.reference, c.parameter
		 FROM gesture_steps s
		 LEFT JOIN step_conditions c ON c.step_id = s.id
		 WHERE s.gesture_id = ?
		 ORDER BY s.position, c.role DESC, c.position`,
		gestureID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	steps := []Step{}
	for rows.Next() {
		var (
			position int
			role     sql.NullString
			c        Condition
			joint    sql.NullString
			rel      sql.NullString
			ref      sql.NullString
			param    sql.NullFloat64
		)
		if err := rows.Scan(&position, &role, &joint, &rel, &ref, &param); err != nil {
			return nil, err
		}
		for len(steps) <= position {
			steps = append(steps, Step{})
		}
		if !role.Valid {
			continue
		}
		c.Joint, c.Relationship, c.Reference, c.Parameter = joint.String, rel.String, ref.String, param.Float64
		if role.String == RoleFailure {
			steps[position].Failure = append(steps[position].Failure, c)
		} else {
			steps[position].Success = append(steps[position].Success, c)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return steps, nil
}

func expectRow(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
