package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"parkingreserve/internal/db"
)

const reservationColumns = `id, space_id, start_time, end_time, license_plate, contact_email, contact_phone, language, created_at`

// dialect captures the few places where PostgreSQL and SQLite differ.
type dialect struct {
	name        string
	numbered    bool // $1, $2 placeholders instead of ?
	encodeTime  func(time.Time) interface{}
	isDuplicate func(error) bool
}

// SQLReservationRepository implements ReservationRepository over database/sql.
type SQLReservationRepository struct {
	DB      *sql.DB
	dialect dialect
}

func (r *SQLReservationRepository) rebind(query string) string {
	if !r.dialect.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, c := range query {
		if c == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

func (r *SQLReservationRepository) Save(ctx context.Context, res *db.Reservation) (*db.Reservation, error) {
	query := r.rebind(`
		INSERT INTO parking_reservations (` + reservationColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := r.DB.ExecContext(ctx, query,
		res.ID,
		res.SpaceID,
		r.dialect.encodeTime(res.StartTime),
		r.dialect.encodeTime(res.EndTime),
		res.LicensePlate,
		nullString(res.ContactEmail),
		nullString(res.ContactPhone),
		nullString(res.Language),
		r.dialect.encodeTime(res.CreatedAt),
	)
	if err != nil {
		if r.dialect.isDuplicate(err) {
			return nil, fmt.Errorf("%w: reservation %s", ErrDuplicateEntry, res.ID)
		}
		return nil, fmt.Errorf("ReservationRepository.Save (%s): %w", r.dialect.name, err)
	}
	saved := *res
	return &saved, nil
}

func (r *SQLReservationRepository) FindByID(ctx context.Context, id string) (*db.Reservation, error) {
	query := r.rebind(`SELECT ` + reservationColumns + ` FROM parking_reservations WHERE id = ?`)
	res, err := scanReservation(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ReservationRepository.FindByID (%s): %w", r.dialect.name, err)
	}
	return res, nil
}

func (r *SQLReservationRepository) Delete(ctx context.Context, res *db.Reservation) error {
	result, err := r.DB.ExecContext(ctx, r.rebind(`DELETE FROM parking_reservations WHERE id = ?`), res.ID)
	if err != nil {
		return fmt.Errorf("ReservationRepository.Delete (%s): %w", r.dialect.name, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("ReservationRepository.Delete (checking rows affected): %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLReservationRepository) FindAll(ctx context.Context) ([]db.Reservation, error) {
	return r.getMany(ctx, "FindAll", `SELECT `+reservationColumns+` FROM parking_reservations ORDER BY created_at ASC, id ASC`)
}

func (r *SQLReservationRepository) FindAllByTimeRange(ctx context.Context, start, end time.Time) ([]db.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM parking_reservations
		WHERE start_time < ? AND end_time > ?
		ORDER BY created_at ASC, id ASC`
	return r.getMany(ctx, "FindAllByTimeRange", query, r.dialect.encodeTime(end), r.dialect.encodeTime(start))
}

func (r *SQLReservationRepository) FindAllBySpaceAndTimeRange(ctx context.Context, spaceID int, start, end time.Time) ([]db.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM parking_reservations
		WHERE space_id = ? AND start_time < ? AND end_time > ?
		ORDER BY created_at ASC, id ASC`
	return r.getMany(ctx, "FindAllBySpaceAndTimeRange", query, spaceID, r.dialect.encodeTime(end), r.dialect.encodeTime(start))
}

func (r *SQLReservationRepository) CountByTimeRange(ctx context.Context, start, end time.Time) (int, error) {
	query := r.rebind(`SELECT COUNT(*) FROM parking_reservations WHERE start_time < ? AND end_time > ?`)
	var count int
	err := r.DB.QueryRowContext(ctx, query, r.dialect.encodeTime(end), r.dialect.encodeTime(start)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ReservationRepository.CountByTimeRange (%s): %w", r.dialect.name, err)
	}
	return count, nil
}

func (r *SQLReservationRepository) FindByLicensePlateAndExactStart(ctx context.Context, plate string, start time.Time) ([]db.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM parking_reservations
		WHERE license_plate = ? AND start_time = ?`
	return r.getMany(ctx, "FindByLicensePlateAndExactStart", query, plate, r.dialect.encodeTime(start))
}

func (r *SQLReservationRepository) FindOverlappingByLicensePlate(ctx context.Context, plate string, start, end time.Time) ([]db.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM parking_reservations
		WHERE license_plate = ? AND start_time < ? AND end_time > ?`
	return r.getMany(ctx, "FindOverlappingByLicensePlate", query, plate, r.dialect.encodeTime(end), r.dialect.encodeTime(start))
}

func (r *SQLReservationRepository) getMany(ctx context.Context, op, query string, args ...interface{}) ([]db.Reservation, error) {
	rows, err := r.DB.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("ReservationRepository.%s (%s): %w", op, r.dialect.name, err)
	}
	defer rows.Close()

	var reservations []db.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("ReservationRepository.%s (scanning row): %w", op, err)
		}
		reservations = append(reservations, *res)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("ReservationRepository.%s (rows error): %w", op, err)
	}
	return reservations, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanReservation(row rowScanner) (*db.Reservation, error) {
	var res db.Reservation
	var start, end, created timeValue
	var email, phone, language sql.NullString
	err := row.Scan(&res.ID, &res.SpaceID, &start, &end, &res.LicensePlate, &email, &phone, &language, &created)
	if err != nil {
		return nil, err
	}
	res.StartTime = start.t
	res.EndTime = end.t
	res.CreatedAt = created.t
	res.ContactEmail = email.String
	res.ContactPhone = phone.String
	res.Language = language.String
	return &res, nil
}

// timeValue scans either a native timestamp (PostgreSQL) or unix microseconds (SQLite).
type timeValue struct {
	t time.Time
}

func (v *timeValue) Scan(src interface{}) error {
	switch s := src.(type) {
	case time.Time:
		v.t = s.UTC()
	case int64:
		v.t = time.UnixMicro(s).UTC()
	case nil:
		v.t = time.Time{}
	default:
		return fmt.Errorf("unsupported time column type %T", src)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
