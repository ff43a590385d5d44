package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"vocalroom/internal/calendar"
	"vocalroom/internal/model"
)

// SQLite is the local persistent backend: bookings survive restarts without
// any remote database. Same contract as Postgres.
type SQLite struct {
	db     *sql.DB
	logger *zerolog.Logger
}

// NewSQLite opens the database at path and runs migrations.
func NewSQLite(path string, logger *zerolog.Logger) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect database: %w", err)
	}

	s := &SQLite{db: db, logger: logger}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info().Str("path", path).Msg("sqlite backend initialized")
	return s, nil
}

func (s *SQLite) createTables() error {
	q := `CREATE TABLE IF NOT EXISTS reservations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		date TEXT NOT NULL,
		hour INTEGER NOT NULL CHECK (hour BETWEEN 9 AND 22),
		user TEXT NOT NULL CHECK (user <> ''),
		UNIQUE (date, hour)
	)`
	if _, err := s.db.Exec(q); err != nil {
		return fmt.Errorf("create reservations table: %w", err)
	}
	if _, err := s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_reservations_date ON reservations(date)`); err != nil {
		return fmt.Errorf("create date index: %w", err)
	}
	return nil
}

func (s *SQLite) List(ctx context.Context, from, to calendar.Date) ([]model.Reservation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, date, hour, user FROM reservations
		 WHERE date >= ? AND date <= ?
		 ORDER BY date, hour`,
		from.ISO(), to.ISO())
	if err != nil {
		s.logger.Error().Err(err).Msg("list reservations failed")
		return nil, ErrBackendUnavailable
	}
	defer rows.Close()

	out := make([]model.Reservation, 0)
	for rows.Next() {
		var r model.Reservation
		if err := rows.Scan(&r.ID, &r.Date, &r.Hour, &r.User); err != nil {
			return nil, ErrBackendUnavailable
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, ErrBackendUnavailable
	}
	return out, nil
}

func (s *SQLite) Create(ctx context.Context, date string, hour int, user string) (model.Reservation, error) {
	r := model.Reservation{Date: date, Hour: hour, User: user}
	if err := r.Validate(); err != nil {
		return model.Reservation{}, ErrInvalidInput
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO reservations (date, hour, user) VALUES (?, ?, ?)`,
		date, hour, user)
	if err != nil {
		if isConstraintErr(err) {
			return model.Reservation{}, ErrPersistence
		}
		s.logger.Error().Err(err).Str("date", date).Int("hour", hour).Msg("insert failed")
		return model.Reservation{}, ErrBackendUnavailable
	}

	id, err := res.LastInsertId()
	if err != nil {
		return model.Reservation{}, ErrBackendUnavailable
	}
	r.ID = id
	return r, nil
}

func (s *SQLite) UpdateUser(ctx context.Context, id int64, newUser string) error {
	if newUser == "" {
		return ErrInvalidInput
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE reservations SET user = ? WHERE id = ?`, newUser, id)
	if err != nil {
		if isConstraintErr(err) {
			return ErrPersistence
		}
		s.logger.Error().Err(err).Int64("id", id).Msg("update failed")
		return ErrBackendUnavailable
	}
	n, err := res.RowsAffected()
	if err != nil {
		return ErrBackendUnavailable
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLite) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM reservations WHERE id = ?`, id)
	if err != nil {
		s.logger.Error().Err(err).Int64("id", id).Msg("delete failed")
		return ErrBackendUnavailable
	}
	n, err := res.RowsAffected()
	if err != nil {
		return ErrBackendUnavailable
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

// Ping reports backend reachability for the readiness probe.
func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// isConstraintErr reports a unique-constraint violation. Other constraint
// classes (the CHECK clauses) are not slot collisions and fall through to
// the generic error mapping.
func isConstraintErr(err error) bool {
	var serr sqlite3.Error
	return errors.As(err, &serr) && serr.ExtendedCode == sqlite3.ErrConstraintUnique
}
