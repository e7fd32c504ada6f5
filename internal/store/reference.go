package store

import (
	"database/sql"
	"errors"
	"time"
)

// ReferencePoint is a named static position, in millimetres in sensor space.
type ReferencePoint struct {
	Name      string    `json:"name"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Z         float64   `json:"z"`
	CreatedAt time.Time `json:"created_at"`
}

// ReferenceRepository stores static reference points.
type ReferenceRepository struct {
	db *sql.DB
}

// References returns the reference point repository for this store.
func (s *Store) References() *ReferenceRepository {
	return &ReferenceRepository{db: s.db}
}

// Create inserts a reference point. Names are unique.
func (r *ReferenceRepository) Create(p *ReferencePoint) error {
	p.CreatedAt = time.Now()
	_, err := r.db.Exec(
		`INSERT INTO reference_points (name, x, y, z, created_at) VALUES (?, ?, ?, ?, ?)`,
		p.Name, p.X, p.Y, p.Z, p.CreatedAt,
	)
	return err
}

// Get retrieves a reference point by name.
func (r *ReferenceRepository) Get(name string) (*ReferencePoint, error) {
	p := &ReferencePoint{}
	err := r.db.QueryRow(
		`SELECT name, x, y, z, created_at FROM reference_points WHERE name = ?`, name,
	).Scan(&p.Name, &p.X, &p.Y, &p.Z, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

// List retrieves all reference points in creation order.
func (r *ReferenceRepository) List() ([]*ReferencePoint, error) {
	rows, err := r.db.Query(`SELECT name, x, y, z, created_at FROM reference_points ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []*ReferencePoint
	for rows.Next() {
		p := &ReferencePoint{}
		if err := rows.Scan(&p.Name, &p.X, &p.Y, &p.Z, &p.CreatedAt); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return points, nil
}

// Delete removes a reference point by name.
func (r *ReferenceRepository) Delete(name string) error {
	result, err := r.db.Exec(`DELETE FROM reference_points WHERE name = ?`, name)
	if err != nil {
		return err
	}
	return expectRow(result)
}
