package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Gestures table - one row per gesture definition
		`CREATE TABLE IF NOT EXISTS gestures (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			timeout_ms INTEGER NOT NULL DEFAULT 5000 CHECK(timeout_ms > 0),
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Gesture steps table - ordered steps of a gesture
		`CREATE TABLE IF NOT EXISTS gesture_steps (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			gesture_id TEXT NOT NULL REFERENCES gestures(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			UNIQUE(gesture_id, position)
		)`,

		// Step conditions table - success and failure relationships of a step
		`CREATE TABLE IF NOT EXISTS step_conditions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			step_id INTEGER NOT NULL REFERENCES gesture_steps(id) ON DELETE CASCADE,
			role TEXT NOT NULL CHECK(role IN ('success', 'failure')),
			position INTEGER NOT NULL,
			joint TEXT NOT NULL,
			relationship TEXT NOT NULL,
			reference TEXT NOT NULL DEFAULT '',
			parameter REAL NOT NULL DEFAULT 0
		)`,

		// Reference points table - named static positions in millimetres
		`CREATE TABLE IF NOT EXISTS reference_points (
			name TEXT PRIMARY KEY,
			x REAL NOT NULL,
			y REAL NOT NULL,
			z REAL NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Actions table - stores actions to execute when gestures complete
		`CREATE TABLE IF NOT EXISTS actions (
			id TEXT PRIMARY KEY,
			gesture_id TEXT NOT NULL REFERENCES gestures(id) ON DELETE CASCADE,
			plugin_name TEXT NOT NULL,
			action_name TEXT NOT NULL,
			config TEXT NOT NULL DEFAULT '{}',
			enabled INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Settings table - stores application settings as key-value pairs
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_gesture_steps_gesture_id ON gesture_steps(gesture_id)`,
		`CREATE INDEX IF NOT EXISTS idx_step_conditions_step_id ON step_conditions(step_id)`,
		`CREATE INDEX IF NOT EXISTS idx_actions_gesture_id ON actions(gesture_id)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
