package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CatalogVersion is the format version written by Export.
const CatalogVersion = 1

// ErrCatalogVersion is returned when importing a catalog of an unknown format.
var ErrCatalogVersion = errors.New("unsupported catalog version")

// Catalog is a portable copy of the gesture definitions and reference
// points, keyed by name. Action bindings are not part of it.
type Catalog struct {
	Version    int              `json:"version"`
	References []ReferencePoint `json:"references"`
	Gestures   []CatalogGesture `json:"gestures"`
}

// CatalogGesture is one gesture of a Catalog.
type CatalogGesture struct {
	Name      string `json:"name"`
	TimeoutMS int    `json:"timeout_ms"`
	Steps     []Step `json:"steps"`
}

// Export copies the whole catalog in creation order.
func (s *Store) Export() (*Catalog, error) {
	c := &Catalog{Version: CatalogVersion, References: []ReferencePoint{}, Gestures: []CatalogGesture{}}

	refs, err := s.References().List()
	if err != nil {
		return nil, err
	}
	for _, p := range refs {
		c.References = append(c.References, *p)
	}

	gestures, err := s.Gestures().List()
	if err != nil {
		return nil, err
	}
	for _, g := range gestures {
		steps, err := s.Gestures().GetSteps(g.ID)
		if err != nil {
			return nil, fmt.Errorf("gesture %s: %w", g.Name, err)
		}
		c.Gestures = append(c.Gestures, CatalogGesture{Name: g.Name, TimeoutMS: g.TimeoutMS, Steps: steps})
	}
	return c, nil
}

// Import merges c into the store in one transaction. Reference points and
// gestures whose name already exists are overwritten; gesture ids, and so
// their action bindings, are kept.
func (s *Store) Import(c *Catalog) error {
	if c.Version != CatalogVersion {
		return fmt.Errorf("%w: %d", ErrCatalogVersion, c.Version)
	}

	return withTx(s.db, func(tx *sql.Tx) error {
		now := time.Now()
		for _, p := range c.References {
			if _, err := tx.Exec(
				`INSERT INTO reference_points (name, x, y, z, created_at) VALUES (?, ?, ?, ?, ?)
				 ON CONFLICT(name) DO UPDATE SET x = excluded.x, y = excluded.y, z = excluded.z`,
				p.Name, p.X, p.Y, p.Z, now,
			); err != nil {
				return fmt.Errorf("reference %s: %w", p.Name, err)
			}
		}

		for _, g := range c.Gestures {
			timeout := g.TimeoutMS
			if timeout <= 0 {
				timeout = DefaultTimeoutMS
			}

			var id string
			err := tx.QueryRow(`SELECT id FROM gestures WHERE name = ?`, g.Name).Scan(&id)
			switch {
			case errors.Is(err, sql.ErrNoRows):
				id = uuid.NewString()
				_, err = tx.Exec(
					`INSERT INTO gestures (id, name, timeout_ms, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
					id, g.Name, timeout, now, now,
				)
			case err == nil:
				_, err = tx.Exec(`UPDATE gestures SET timeout_ms = ?, updated_at = ? WHERE id = ?`, timeout, now, id)
			}
			if err != nil {
				return fmt.Errorf("gesture %s: %w", g.Name, err)
			}

			if err := setSteps(tx, id, g.Steps); err != nil {
				return fmt.Errorf("gesture %s: %w", g.Name, err)
			}
		}
		return nil
	})
}
