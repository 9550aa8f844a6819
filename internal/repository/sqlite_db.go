package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// InitSQLite opens the embedded database file and creates the reservation schema.
// Times are stored as unix microseconds so range predicates compare numerically.
func InitSQLite(ctx context.Context, dbPath string) (*sql.DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// a single writer avoids SQLITE_BUSY under concurrent admissions
	conn.SetMaxOpenConns(1)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}
	if err := createSQLiteSchema(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create schemas: %w", err)
	}
	return conn, nil
}

func createSQLiteSchema(ctx context.Context, conn *sql.DB) error {
	schemas := []string{
		`CREATE TABLE IF NOT EXISTS parking_reservations (
			id TEXT PRIMARY KEY,
			space_id INTEGER NOT NULL,
			start_time INTEGER NOT NULL,
			end_time INTEGER NOT NULL,
			license_plate TEXT NOT NULL,
			contact_email TEXT,
			contact_phone TEXT,
			language TEXT,
			created_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_window ON parking_reservations(start_time, end_time);`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_plate ON parking_reservations(license_plate, start_time);`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_space ON parking_reservations(space_id, start_time);`,
	}
	for _, schema := range schemas {
		if _, err := conn.ExecContext(ctx, schema); err != nil {
			return err
		}
	}
	return nil
}

func NewSQLiteReservationRepository(conn *sql.DB) *SQLReservationRepository {
	return &SQLReservationRepository{
		DB: conn,
		dialect: dialect{
			name: "sqlite",
			encodeTime: func(t time.Time) interface{} {
				return t.UnixMicro()
			},
			isDuplicate: func(err error) bool {
				var sqliteErr *sqlite.Error
				if !errors.As(err, &sqliteErr) {
					return false
				}
				code := sqliteErr.Code()
				return code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY || code == sqlite3.SQLITE_CONSTRAINT_UNIQUE
			},
		},
	}
}
