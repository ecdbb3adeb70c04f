package model

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Registry catalogs trained-model metadata in a local SQLite database. It
// never stores vectors or index state — those stay process-memory-only per
// the engine's no-on-disk-index design; Registry only answers "what models
// exist and what are they called", the bookkeeping a CLI or long-running
// service needs across restarts.
type Registry struct {
	db *sql.DB
}

// OpenRegistry opens (creating if absent) the SQLite catalog at path.
func OpenRegistry(ctx context.Context, path string) (*Registry, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	const schema = `
CREATE TABLE IF NOT EXISTS models (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	training_iterations INTEGER NOT NULL,
	initialization_iterations INTEGER NOT NULL,
	hidden_layer_units INTEGER NOT NULL,
	learning_rate REAL NOT NULL,
	dropout REAL NOT NULL,
	created_at TEXT NOT NULL
);`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, err
	}
	return &Registry{db: db}, nil
}

func (r *Registry) Close() error { return r.db.Close() }

// Entry is one catalog row.
type Entry struct {
	ID        string
	Name      string
	CreatedAt time.Time
	Hyperparameters
}

// Register inserts the catalog row for a trained model, or updates the
// existing row of the same name in place; the returned entry carries the
// id stored in the catalog, which an update leaves unchanged.
func (r *Registry) Register(ctx context.Context, name string, hp Hyperparameters) (Entry, error) {
	e := Entry{
		ID:              uuid.NewString(),
		Name:            name,
		CreatedAt:       time.Now().UTC(),
		Hyperparameters: hp,
	}
	const stmt = `
INSERT INTO models (id, name, training_iterations, initialization_iterations, hidden_layer_units, learning_rate, dropout, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(name) DO UPDATE SET
	training_iterations = excluded.training_iterations,
	initialization_iterations = excluded.initialization_iterations,
	hidden_layer_units = excluded.hidden_layer_units,
	learning_rate = excluded.learning_rate,
	dropout = excluded.dropout,
	created_at = excluded.created_at;`
	_, err := r.db.ExecContext(ctx, stmt, e.ID, e.Name, e.TrainingIterations, e.InitializationIterations,
		e.HiddenLayerUnits, e.LearningRate, e.Dropout, e.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return e, err
	}
	err = r.db.QueryRowContext(ctx, `SELECT id FROM models WHERE name = ?;`, e.Name).Scan(&e.ID)
	return e, err
}

// Get looks up a catalog entry by name.
func (r *Registry) Get(ctx context.Context, name string) (Entry, error) {
	const q = `SELECT id, name, training_iterations, initialization_iterations, hidden_layer_units, learning_rate, dropout, created_at
FROM models WHERE name = ?;`
	row := r.db.QueryRowContext(ctx, q, name)
	var e Entry
	var createdAt string
	if err := row.Scan(&e.ID, &e.Name, &e.TrainingIterations, &e.InitializationIterations,
		&e.HiddenLayerUnits, &e.LearningRate, &e.Dropout, &createdAt); err != nil {
		return Entry{}, err
	}
	e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return e, nil
}

// List returns every catalog entry, most recently created first.
func (r *Registry) List(ctx context.Context) ([]Entry, error) {
	const q = `SELECT id, name, training_iterations, initialization_iterations, hidden_layer_units, learning_rate, dropout, created_at
FROM models ORDER BY created_at DESC;`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var createdAt string
		if err := rows.Scan(&e.ID, &e.Name, &e.TrainingIterations, &e.InitializationIterations,
			&e.HiddenLayerUnits, &e.LearningRate, &e.Dropout, &createdAt); err != nil {
			return nil, err
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Delete removes a catalog row by name.
func (r *Registry) Delete(ctx context.Context, name string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM models WHERE name = ?;`, name)
	return err
}
