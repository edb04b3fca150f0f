package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
)

//go:embed schema.sql
var schemaSQL string

// PostgresMedium stores snapshots as rows of the snapshots table.
type PostgresMedium struct {
	db *sql.DB
}

func NewPostgresMedium(databaseURL string) (*PostgresMedium, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresMedium{db: db}, nil
}

// NewPostgresMediumFromDB wraps an already opened handle.
func NewPostgresMediumFromDB(db *sql.DB) *PostgresMedium {
	return &PostgresMedium{db: db}
}

// RunMigrations creates the snapshots table if it doesn't exist.
func (s *PostgresMedium) RunMigrations(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

func (s *PostgresMedium) Load(ctx context.Context, name string) ([]byte, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM snapshots WHERE name = $1`,
		name,
	).Scan(&payload)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return payload, nil
}

func (s *PostgresMedium) Save(ctx context.Context, name string, payload []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO snapshots (name, version, payload, updated_at)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (name) DO UPDATE
		 SET version = EXCLUDED.version, payload = EXCLUDED.payload, updated_at = NOW()`,
		name, peekVersion(payload), string(payload),
	)
	return err
}

func (s *PostgresMedium) Close() error {
	return s.db.Close()
}
