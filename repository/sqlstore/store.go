// Package sqlstore implements the relational backend of spec §4.2's
// repository contract over a pure-Go SQLite driver (modernc.org/sqlite),
// filling in the SQL half of the store split the teacher's db package
// leaves to tapdb.NewSqliteStore, with schema migrations run through
// golang-migrate instead of tapdb's sqlc-generated migration runner.
package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/arkade-os/go-swap-engine/repository"
	"github.com/arkade-os/go-swap-engine/types"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Store is the modernc.org/sqlite-backed Repository implementation.
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) a SQLite database at dbPath and runs
// pending migrations.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open: %w", err)
	}
	// The pure-Go sqlite driver does not support concurrent writers;
	// serialize at the database/sql pool level.
	db.SetMaxOpenConns(1)

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	source, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("sqlstore: migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("sqlstore: migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("sqlstore: migrate init: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("sqlstore: migrate up: %w", err)
	}
	return nil
}

// Save implements repository.Repository as an INSERT ... ON CONFLICT upsert.
func (s *Store) Save(ctx context.Context, record *types.SwapRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("sqlstore: marshal record %s: %w", record.ID, err)
	}

	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO swaps (id, type, status, created_at, data)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			type = excluded.type,
			status = excluded.status,
			data = excluded.data
	`, string(record.ID), string(record.Kind), string(record.Status), createdAt, data)
	if err != nil {
		return fmt.Errorf("sqlstore: save %s: %w", record.ID, err)
	}
	return nil
}

// Delete implements repository.Repository.
func (s *Store) Delete(ctx context.Context, id types.SwapId) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM swaps WHERE id = ?`, string(id))
	if err != nil {
		return fmt.Errorf("sqlstore: delete %s: %w", id, err)
	}
	return nil
}

// Get implements repository.Repository.
func (s *Store) Get(ctx context.Context, id types.SwapId) (*types.SwapRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT data FROM swaps WHERE id = ?`, string(id))

	var data []byte
	if err := row.Scan(&data); err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("sqlstore: get %s: %w", id, err)
	}

	var record types.SwapRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("sqlstore: unmarshal %s: %w", id, err)
	}
	return &record, nil
}

// GetAll implements repository.Repository.
func (s *Store) GetAll(ctx context.Context, filter *repository.Filter) ([]*types.SwapRecord, error) {
	query, args := buildGetAllQuery(filter)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: get all: %w", err)
	}
	defer rows.Close()

	var out []*types.SwapRecord
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("sqlstore: scan: %w", err)
		}
		var record types.SwapRecord
		if err := json.Unmarshal(data, &record); err != nil {
			return nil, fmt.Errorf("sqlstore: unmarshal: %w", err)
		}
		out = append(out, &record)
	}
	return out, rows.Err()
}

// buildGetAllQuery renders filter into a parameterized SELECT, matching
// spec §4.2's "empty set within any filter field yields the empty result"
// rule by short-circuiting to a query that can never match.
func buildGetAllQuery(filter *repository.Filter) (string, []interface{}) {
	if filter == nil {
		return `SELECT data FROM swaps ORDER BY created_at ASC`, nil
	}

	if emptySet(filter.IDs) || emptySet(filter.Statuses) || emptySet(filter.Kinds) {
		return `SELECT data FROM swaps WHERE 0`, nil
	}

	query := `SELECT data FROM swaps WHERE 1=1`
	var args []interface{}

	if len(filter.IDs) > 0 {
		query += " AND id IN (" + placeholders(len(filter.IDs)) + ")"
		for _, id := range filter.IDs {
			args = append(args, string(id))
		}
	}
	if len(filter.Statuses) > 0 {
		query += " AND status IN (" + placeholders(len(filter.Statuses)) + ")"
		for _, status := range filter.Statuses {
			args = append(args, string(status))
		}
	}
	if len(filter.Kinds) > 0 {
		query += " AND type IN (" + placeholders(len(filter.Kinds)) + ")"
		for _, kind := range filter.Kinds {
			args = append(args, string(kind))
		}
	}

	order := "created_at ASC"
	if filter.OrderDirection == repository.OrderDesc {
		order = "created_at DESC"
	}
	query += " ORDER BY " + order

	return query, args
}

func emptySet[T any](s []T) bool {
	return s != nil && len(s) == 0
}

func placeholders(n int) string {
	out := ""
	for i := 0; i < n; i++ {
		if i > 0 {
			out += ", "
		}
		out += "?"
	}
	return out
}

// Clear implements repository.Repository.
func (s *Store) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM swaps`)
	if err != nil {
		return fmt.Errorf("sqlstore: clear: %w", err)
	}
	return nil
}

// Close implements repository.Repository.
func (s *Store) Close() error {
	return s.db.Close()
}
