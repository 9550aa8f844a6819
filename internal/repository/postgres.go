package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// NewPostgresDB opens the connection pool and verifies it is reachable.
func NewPostgresDB(ctx context.Context, dbURL string) (*sql.DB, error) {
	conn, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open DB: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to connect to DB: %w", err)
	}
	return conn, nil
}

func EnsurePostgresSchema(ctx context.Context, conn *sql.DB) error {
	schemas := []string{
		`CREATE TABLE IF NOT EXISTS parking_reservations (
			id TEXT PRIMARY KEY,
			space_id INTEGER NOT NULL,
			start_time TIMESTAMPTZ NOT NULL,
			end_time TIMESTAMPTZ NOT NULL,
			license_plate VARCHAR(10) NOT NULL,
			contact_email TEXT,
			contact_phone TEXT,
			language VARCHAR(8),
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_window ON parking_reservations (start_time, end_time)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_plate ON parking_reservations (license_plate, start_time)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_space ON parking_reservations (space_id, start_time)`,
	}
	for _, schema := range schemas {
		if _, err := conn.ExecContext(ctx, schema); err != nil {
			return fmt.Errorf("failed to create postgres schema: %w", err)
		}
	}
	return nil
}

func NewPostgresReservationRepository(conn *sql.DB) *SQLReservationRepository {
	return &SQLReservationRepository{
		DB: conn,
		dialect: dialect{
			name:     "postgres",
			numbered: true,
			encodeTime: func(t time.Time) interface{} {
				return t.UTC()
			},
			isDuplicate: func(err error) bool {
				var pqErr *pq.Error
				return errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation"
			},
		},
	}
}
