// Package store owns the canonical reservation records. A Backend is either
// the remote relational database, a local SQLite file, or the in-memory
// fallback; all three honor the same contract so the rest of the system never
// branches on the storage mode.
package store

import (
	"context"
	"errors"

	"vocalroom/internal/calendar"
	"vocalroom/internal/model"
)

var (
	// ErrNotFound means the id does not exist in the backend.
	ErrNotFound = errors.New("reservation not found")
	// ErrInvalidInput means the backend rejected the field values.
	ErrInvalidInput = errors.New("invalid input")
	// ErrBackendUnavailable means the backend could not be reached; reads
	// must not be treated as partial results.
	ErrBackendUnavailable = errors.New("backend unavailable")
	// ErrPersistence means the backend refused the mutation, e.g. the
	// unique (date, hour) constraint fired. State is unchanged.
	ErrPersistence = errors.New("persistence error")
)

// Backend performs create/read/update/delete on reservation records.
//
// Create does not pre-check the one-reservation-per-slot invariant; that is
// the controller's job against its snapshot. The relational backends still
// enforce it with a unique constraint, surfacing a duplicate as
// ErrPersistence so a race between two clients never silently succeeds.
type Backend interface {
	// List returns reservations with date in the inclusive range, ordered
	// by (date, hour) ascending.
	List(ctx context.Context, from, to calendar.Date) ([]model.Reservation, error)
	// Create persists a new reservation and returns it with the assigned id.
	Create(ctx context.Context, date string, hour int, user string) (model.Reservation, error)
	// UpdateUser replaces the display name on an existing reservation.
	UpdateUser(ctx context.Context, id int64, newUser string) error
	// Delete removes a reservation permanently.
	Delete(ctx context.Context, id int64) error
	// Close releases backend resources.
	Close() error
}
