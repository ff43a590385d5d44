package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"vocalroom/internal/calendar"
	"vocalroom/internal/model"
)

// uniqueViolation is the Postgres error code for a unique constraint failure.
const uniqueViolation = "23505"

// Postgres is the remote backend over a hosted Postgres database.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *zerolog.Logger
}

// NewPostgres connects to url and ensures the reservations table exists. The
// table carries a UNIQUE (date, hour) constraint so two clients racing for
// the same slot cannot both win, regardless of client-side pre-checks.
func NewPostgres(ctx context.Context, url string, logger *zerolog.Logger) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	p := &Postgres{pool: pool, logger: logger}
	if err := p.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	logger.Info().Msg("postgres backend initialized")
	return p, nil
}

func (p *Postgres) migrate(ctx context.Context) error {
	q := `CREATE TABLE IF NOT EXISTS reservations (
		id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		date TEXT NOT NULL,
		hour INTEGER NOT NULL CHECK (hour BETWEEN 9 AND 22),
		"user" TEXT NOT NULL CHECK ("user" <> ''),
		UNIQUE (date, hour)
	)`
	if _, err := p.pool.Exec(ctx, q); err != nil {
		return fmt.Errorf("create reservations table: %w", err)
	}
	return nil
}

func (p *Postgres) List(ctx context.Context, from, to calendar.Date) ([]model.Reservation, error) {
	q := `SELECT id, date, hour, "user" FROM reservations
	      WHERE date >= $1 AND date <= $2
	      ORDER BY date, hour`
	rows, err := p.pool.Query(ctx, q, from.ISO(), to.ISO())
	if err != nil {
		p.logger.Error().Err(err).Msg("list reservations failed")
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

func (p *Postgres) Create(ctx context.Context, date string, hour int, user string) (model.Reservation, error) {
	r := model.Reservation{Date: date, Hour: hour, User: user}
	if err := r.Validate(); err != nil {
		return model.Reservation{}, ErrInvalidInput
	}

	q := `INSERT INTO reservations (date, hour, "user") VALUES ($1, $2, $3) RETURNING id`
	if err := p.pool.QueryRow(ctx, q, date, hour, user).Scan(&r.ID); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == uniqueViolation {
				return model.Reservation{}, ErrPersistence
			}
			p.logger.Error().Err(err).Str("date", date).Int("hour", hour).Msg("insert rejected")
			return model.Reservation{}, ErrPersistence
		}
		p.logger.Error().Err(err).Msg("insert failed")
		return model.Reservation{}, ErrBackendUnavailable
	}
	return r, nil
}

func (p *Postgres) UpdateUser(ctx context.Context, id int64, newUser string) error {
	if newUser == "" {
		return ErrInvalidInput
	}

	tag, err := p.pool.Exec(ctx, `UPDATE reservations SET "user" = $1 WHERE id = $2`, newUser, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			return ErrPersistence
		}
		p.logger.Error().Err(err).Int64("id", id).Msg("update failed")
		return ErrBackendUnavailable
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) Delete(ctx context.Context, id int64) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM reservations WHERE id = $1`, id)
	if err != nil {
		p.logger.Error().Err(err).Int64("id", id).Msg("delete failed")
		return ErrBackendUnavailable
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}
