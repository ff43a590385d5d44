// Package session implements the interaction controller: one instance per
// client session, owning the role, the active user name, the month snapshot
// and the modal state, and translating user intents into store mutations
// after validating them against the snapshot.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"vocalroom/internal/calendar"
	"vocalroom/internal/model"
	"vocalroom/internal/store"
)

// Role of the session. A client-side toggle, not a security boundary.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Validation reasons, surfaced verbatim to the rendering layer.
const (
	ReasonEmptyName = "empty name"
	ReasonSlotTaken = "slot taken"
	ReasonPastDate  = "date in the past"
	ReasonBadSlot   = "invalid slot"
	ReasonAdminOnly = "admin only"
)

// ValidationError is bad user input: fully recoverable, never touches the store.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func validationErr(reason string) error { return &ValidationError{Reason: reason} }

// ErrPending means a mutating call for the same target entity is still
// outstanding; the retry (typically a double-click) is rejected.
var ErrPending = errors.New("operation already in flight")

// DayCell is one square of the rendered month grid.
type DayCell struct {
	Date           string `json:"date"`
	InCurrentMonth bool   `json:"in_current_month"`
	Past           bool   `json:"past"`
	Count          int    `json:"count"`
}

// Controller holds all session-scoped mutable state. Construct a fresh one
// per test or per client session; there are no ambient globals.
type Controller struct {
	backend store.Backend
	logger  *zerolog.Logger
	today   func() calendar.Date

	adminLabel  string
	defaultUser string

	mu           sync.Mutex
	role         Role
	activeUser   string
	savedUser    string
	year         int
	month        time.Month
	selectedDate string
	editing      *model.Reservation
	snapshot     []model.Reservation
	pending      map[string]struct{}
}

// Option configures a Controller.
type Option func(*Controller)

// WithToday overrides the reference-date source, for tests.
func WithToday(today func() calendar.Date) Option {
	return func(c *Controller) { c.today = today }
}

// WithDefaultUser sets the name a fresh user session starts with.
func WithDefaultUser(name string) Option {
	return func(c *Controller) { c.defaultUser = name }
}

// NewController creates a session positioned on the current month.
func NewController(backend store.Backend, adminLabel string, logger *zerolog.Logger, opts ...Option) *Controller {
	c := &Controller{
		backend:    backend,
		logger:     logger,
		today:      calendar.Today,
		adminLabel: adminLabel,
		role:       RoleUser,
		pending:    make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.activeUser = c.defaultUser

	now := c.today()
	c.year, c.month = now.Year, now.Month
	return c
}

// Role returns the current role.
func (c *Controller) Role() Role {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.role
}

// ActiveUser returns the current display name.
func (c *Controller) ActiveUser() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeUser
}

// SetRole switches between user and admin. Admin pins the active name to the
// administrator label; switching back restores the personal name.
func (c *Controller) SetRole(role Role) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if role == c.role {
		return
	}
	switch role {
	case RoleAdmin:
		c.savedUser = c.activeUser
		c.activeUser = c.adminLabel
	default:
		role = RoleUser
		if c.savedUser != "" {
			c.activeUser = c.savedUser
		} else {
			c.activeUser = c.defaultUser
		}
	}
	c.role = role
	c.editing = nil
}

// SetActiveUser changes the personal name. Ignored in admin mode, where the
// name is not editable.
func (c *Controller) SetActiveUser(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.role == RoleAdmin {
		return
	}
	c.activeUser = name
}

// Month returns the currently displayed month.
func (c *Controller) Month() (int, time.Month) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.year, c.month
}

// LoadMonth fetches the displayed month's reservations and replaces the
// snapshot. On failure the snapshot stays as it was.
func (c *Controller) LoadMonth(ctx context.Context) error {
	c.mu.Lock()
	year, month := c.year, c.month
	c.mu.Unlock()

	from, to := calendar.MonthRange(year, month)
	snap, err := c.backend.List(ctx, from, to)
	if err != nil {
		c.logger.Error().Err(err).Int("year", year).Int("month", int(month)).Msg("load month failed")
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.year != year || c.month != month {
		// the view moved on while the fetch was in flight
		c.logger.Debug().Int("year", year).Int("month", int(month)).Msg("discarding stale month snapshot")
		return nil
	}
	c.snapshot = snap
	return nil
}

// NextMonth advances the view one month and reloads.
func (c *Controller) NextMonth(ctx context.Context) error {
	c.shiftMonth(1)
	return c.LoadMonth(ctx)
}

// PrevMonth moves the view one month back and reloads.
func (c *Controller) PrevMonth(ctx context.Context) error {
	c.shiftMonth(-1)
	return c.LoadMonth(ctx)
}

// SetMonth jumps the view to a specific month and reloads.
func (c *Controller) SetMonth(ctx context.Context, year int, month time.Month) error {
	c.mu.Lock()
	c.year, c.month = year, month
	c.selectedDate = ""
	c.editing = nil
	c.mu.Unlock()
	return c.LoadMonth(ctx)
}

func (c *Controller) shiftMonth(delta int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := time.Date(c.year, c.month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, delta, 0)
	c.year, c.month = t.Year(), t.Month()
	c.selectedDate = ""
	c.editing = nil
}

// Cells renders the 42-cell grid with per-day counts and past flags.
func (c *Controller) Cells() []DayCell {
	c.mu.Lock()
	defer c.mu.Unlock()

	today := c.today().ISO()
	cells := calendar.MonthCells(c.year, c.month)
	out := make([]DayCell, 0, len(cells))
	for _, cell := range cells {
		iso := cell.Date.ISO()
		out = append(out, DayCell{
			Date:           iso,
			InCurrentMonth: cell.InCurrentMonth,
			Past:           calendar.IsPast(iso, today),
			Count:          calendar.CountForDate(iso, c.snapshot),
		})
	}
	return out
}

// SelectDate opens the slot view for a date. Past dates cannot be opened.
func (c *Controller) SelectDate(date string) error {
	if _, err := calendar.ParseDate(date); err != nil {
		return validationErr(ReasonBadSlot)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if calendar.IsPast(date, c.today().ISO()) {
		return validationErr(ReasonPastDate)
	}
	c.selectedDate = date
	return nil
}

// SelectedDate returns the open date, or "" when no day view is active.
func (c *Controller) SelectedDate() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selectedDate
}

// CloseDate closes the slot view.
func (c *Controller) CloseDate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selectedDate = ""
	c.editing = nil
}

// Slots returns the fourteen hourly slots of a date. The slots point into a
// copy of the snapshot, so later mutations on this controller never show
// through a slice a caller already holds.
func (c *Controller) Slots(date string) []calendar.Slot {
	c.mu.Lock()
	snap := make([]model.Reservation, len(c.snapshot))
	copy(snap, c.snapshot)
	c.mu.Unlock()
	return calendar.SlotsForDate(date, snap)
}

// CountForDate counts reservations on a date in the current snapshot.
func (c *Controller) CountForDate(date string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return calendar.CountForDate(date, c.snapshot)
}

// MyReservations lists the active user's bookings in snapshot order.
func (c *Controller) MyReservations() []model.Reservation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return calendar.ReservationsForUser(c.activeUser, c.snapshot)
}

// Snapshot returns a copy of the current snapshot.
func (c *Controller) Snapshot() []model.Reservation {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.Reservation, len(c.snapshot))
	copy(out, c.snapshot)
	return out
}

func (c *Controller) acquire(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.pending[key]; busy {
		return ErrPending
	}
	c.pending[key] = struct{}{}
	return nil
}

func (c *Controller) release(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, key)
}

// Reserve books a slot for the active user. Validation failures never reach
// the store; on success the created record is appended to the snapshot
// unless the day view moved elsewhere while the call was in flight.
func (c *Controller) Reserve(ctx context.Context, date string, hour int) (model.Reservation, error) {
	c.mu.Lock()
	user := c.activeUser
	if user == "" {
		c.mu.Unlock()
		return model.Reservation{}, validationErr(ReasonEmptyName)
	}
	if hour < model.OpenHour || hour > model.LastHour || !model.ValidISODate(date) {
		c.mu.Unlock()
		return model.Reservation{}, validationErr(ReasonBadSlot)
	}
	if calendar.IsPast(date, c.today().ISO()) {
		c.mu.Unlock()
		return model.Reservation{}, validationErr(ReasonPastDate)
	}
	for i := range c.snapshot {
		if c.snapshot[i].Date == date && c.snapshot[i].Hour == hour {
			c.mu.Unlock()
			return model.Reservation{}, validationErr(ReasonSlotTaken)
		}
	}
	c.mu.Unlock()

	key := fmt.Sprintf("slot:%s:%d", date, hour)
	if err := c.acquire(key); err != nil {
		return model.Reservation{}, err
	}
	defer c.release(key)

	created, err := c.backend.Create(ctx, date, hour, user)
	if err != nil {
		c.logger.Warn().Err(err).Str("date", date).Int("hour", hour).Msg("reserve failed")
		return model.Reservation{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	day, _ := calendar.ParseDate(date)
	if (c.selectedDate != "" && c.selectedDate != date) || day.Year != c.year || day.Month != c.month {
		// late response for a day view or month that was swapped away;
		// the record exists in the backend, the next load picks it up
		c.logger.Debug().Int64("id", created.ID).Msg("discarding stale reserve response")
		return created, nil
	}
	c.snapshot = append(c.snapshot, created)
	c.logger.Info().Int64("id", created.ID).Str("date", date).Int("hour", hour).Str("user", user).Msg("slot reserved")
	return created, nil
}

// Cancel deletes the reservation and removes it from the snapshot. A stale
// id surfaces store.ErrNotFound; the snapshot is left unchanged.
func (c *Controller) Cancel(ctx context.Context, id int64) error {
	key := fmt.Sprintf("id:%d", id)
	if err := c.acquire(key); err != nil {
		return err
	}
	defer c.release(key)

	if err := c.backend.Delete(ctx, id); err != nil {
		c.logger.Warn().Err(err).Int64("id", id).Msg("cancel failed")
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(id)
	c.logger.Info().Int64("id", id).Msg("reservation cancelled")
	return nil
}

// StartEdit opens the admin edit dialog for a reservation in the snapshot.
func (c *Controller) StartEdit(id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.role != RoleAdmin {
		return validationErr(ReasonAdminOnly)
	}
	for i := range c.snapshot {
		if c.snapshot[i].ID == id {
			r := c.snapshot[i]
			c.editing = &r
			return nil
		}
	}
	return store.ErrNotFound
}

// Editing returns the reservation under admin edit, if any.
func (c *Controller) Editing() *model.Reservation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.editing
}

// CancelEdit closes the admin edit dialog.
func (c *Controller) CancelEdit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.editing = nil
}

// AdminRename replaces the display name on any reservation.
func (c *Controller) AdminRename(ctx context.Context, id int64, newName string) error {
	c.mu.Lock()
	if c.role != RoleAdmin {
		c.mu.Unlock()
		return validationErr(ReasonAdminOnly)
	}
	c.mu.Unlock()

	if newName == "" {
		return validationErr(ReasonEmptyName)
	}

	key := fmt.Sprintf("id:%d", id)
	if err := c.acquire(key); err != nil {
		return err
	}
	defer c.release(key)

	if err := c.backend.UpdateUser(ctx, id, newName); err != nil {
		c.logger.Warn().Err(err).Int64("id", id).Msg("rename failed")
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.snapshot {
		if c.snapshot[i].ID == id {
			c.snapshot[i].User = newName
			break
		}
	}
	c.editing = nil
	c.logger.Info().Int64("id", id).Str("user", newName).Msg("reservation renamed")
	return nil
}

// AdminDelete removes any reservation regardless of ownership.
func (c *Controller) AdminDelete(ctx context.Context, id int64) error {
	c.mu.Lock()
	if c.role != RoleAdmin {
		c.mu.Unlock()
		return validationErr(ReasonAdminOnly)
	}
	c.mu.Unlock()

	key := fmt.Sprintf("id:%d", id)
	if err := c.acquire(key); err != nil {
		return err
	}
	defer c.release(key)

	if err := c.backend.Delete(ctx, id); err != nil {
		c.logger.Warn().Err(err).Int64("id", id).Msg("admin delete failed")
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(id)
	c.editing = nil
	c.logger.Info().Int64("id", id).Msg("reservation deleted by admin")
	return nil
}

func (c *Controller) removeLocked(id int64) {
	for i := range c.snapshot {
		if c.snapshot[i].ID == id {
			c.snapshot = append(c.snapshot[:i], c.snapshot[i+1:]...)
			return
		}
	}
}
