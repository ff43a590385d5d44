package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vocalroom/internal/calendar"
	"vocalroom/internal/model"
	"vocalroom/internal/store"
)

const adminLabel = "Administrator"

func june1() calendar.Date {
	return calendar.Date{Year: 2024, Month: time.June, Day: 1}
}

func newController(t *testing.T) (*Controller, *store.Memory) {
	t.Helper()
	backend := store.NewMemory()
	logger := zerolog.Nop()
	c := NewController(backend, adminLabel, &logger,
		WithToday(june1),
		WithDefaultUser("Alice"),
	)
	require.NoError(t, c.LoadMonth(context.Background()))
	return c, backend
}

func TestReserveAndSlotOccupancy(t *testing.T) {
	ctx := context.Background()
	c, _ := newController(t)

	created, err := c.Reserve(ctx, "2024-06-01", 9)
	require.NoError(t, err)
	assert.NotZero(t, created.ID)

	slots := c.Slots("2024-06-01")
	require.Len(t, slots, model.SlotsPerDay)
	require.True(t, slots[0].Reserved())
	assert.Equal(t, "Alice", slots[0].Reservation.User)

	// same slot, different user
	c.SetActiveUser("Bob")
	_, err = c.Reserve(ctx, "2024-06-01", 9)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, ReasonSlotTaken, verr.Reason)
}

func TestReserveValidation(t *testing.T) {
	ctx := context.Background()
	c, backend := newController(t)

	var verr *ValidationError

	c.SetActiveUser("")
	_, err := c.Reserve(ctx, "2024-06-01", 9)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, ReasonEmptyName, verr.Reason)

	c.SetActiveUser("Alice")
	_, err = c.Reserve(ctx, "2024-06-01", 8)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, ReasonBadSlot, verr.Reason)

	_, err = c.Reserve(ctx, "2024-05-31", 9)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, ReasonPastDate, verr.Reason)

	// none of the rejected attempts reached the store
	from, to := calendar.MonthRange(2024, time.May)
	got, _ := backend.List(ctx, from, to)
	assert.Empty(t, got)
	from, to = calendar.MonthRange(2024, time.June)
	got, _ = backend.List(ctx, from, to)
	assert.Empty(t, got)
}

func TestEndToEndScenario(t *testing.T) {
	ctx := context.Background()
	c, _ := newController(t)

	created, err := c.Reserve(ctx, "2024-06-01", 9)
	require.NoError(t, err)

	c.SetActiveUser("Bob")
	_, err = c.Reserve(ctx, "2024-06-01", 9)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, ReasonSlotTaken, verr.Reason)

	assert.Equal(t, 1, c.CountForDate("2024-06-01"))

	c.SetRole(RoleAdmin)
	require.NoError(t, c.AdminDelete(ctx, created.ID))
	assert.Equal(t, 0, c.CountForDate("2024-06-01"))
}

func TestCancel(t *testing.T) {
	ctx := context.Background()
	c, _ := newController(t)

	created, err := c.Reserve(ctx, "2024-06-01", 9)
	require.NoError(t, err)

	require.NoError(t, c.Cancel(ctx, created.ID))
	assert.Empty(t, c.MyReservations())

	// second cancel on the same id
	assert.ErrorIs(t, c.Cancel(ctx, created.ID), store.ErrNotFound)
}

func TestAdminRename(t *testing.T) {
	ctx := context.Background()
	c, _ := newController(t)

	created, err := c.Reserve(ctx, "2024-06-01", 9)
	require.NoError(t, err)

	// not admin yet
	err = c.AdminRename(ctx, created.ID, "Carol")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, ReasonAdminOnly, verr.Reason)

	c.SetRole(RoleAdmin)

	// empty name is rejected and the stored name is untouched
	err = c.AdminRename(ctx, created.ID, "")
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, ReasonEmptyName, verr.Reason)
	require.NoError(t, c.LoadMonth(ctx))
	slots := c.Slots("2024-06-01")
	require.True(t, slots[0].Reserved())
	assert.Equal(t, "Alice", slots[0].Reservation.User)

	require.NoError(t, c.AdminRename(ctx, created.ID, "Carol"))
	slots = c.Slots("2024-06-01")
	assert.Equal(t, "Carol", slots[0].Reservation.User)

	// stale id
	assert.ErrorIs(t, c.AdminRename(ctx, created.ID+99, "Dave"), store.ErrNotFound)
}

func TestRoleSwitchPinsAdminLabel(t *testing.T) {
	c, _ := newController(t)

	c.SetActiveUser("Bob")
	c.SetRole(RoleAdmin)
	assert.Equal(t, adminLabel, c.ActiveUser())

	// name editing is disabled in admin mode
	c.SetActiveUser("Mallory")
	assert.Equal(t, adminLabel, c.ActiveUser())

	c.SetRole(RoleUser)
	assert.Equal(t, "Bob", c.ActiveUser())
}

func TestCells(t *testing.T) {
	ctx := context.Background()
	c, _ := newController(t)

	_, err := c.Reserve(ctx, "2024-06-01", 9)
	require.NoError(t, err)
	_, err = c.Reserve(ctx, "2024-06-01", 10)
	require.NoError(t, err)

	cells := c.Cells()
	require.Len(t, cells, calendar.GridCells)

	byDate := make(map[string]DayCell, len(cells))
	for _, cell := range cells {
		byDate[cell.Date] = cell
	}

	assert.Equal(t, 2, byDate["2024-06-01"].Count)
	assert.True(t, byDate["2024-06-01"].InCurrentMonth)
	assert.False(t, byDate["2024-06-01"].Past)
	assert.True(t, byDate["2024-05-31"].Past)
	assert.False(t, byDate["2024-05-31"].InCurrentMonth)
}

func TestSelectDate(t *testing.T) {
	c, _ := newController(t)

	var verr *ValidationError
	err := c.SelectDate("2024-05-31")
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, ReasonPastDate, verr.Reason)

	err = c.SelectDate("not-a-date")
	require.ErrorAs(t, err, &verr)

	require.NoError(t, c.SelectDate("2024-06-02"))
	assert.Equal(t, "2024-06-02", c.SelectedDate())

	c.CloseDate()
	assert.Empty(t, c.SelectedDate())
}

func TestMonthNavigationResetsSelection(t *testing.T) {
	ctx := context.Background()
	c, _ := newController(t)

	require.NoError(t, c.SelectDate("2024-06-02"))
	require.NoError(t, c.NextMonth(ctx))

	year, month := c.Month()
	assert.Equal(t, 2024, year)
	assert.Equal(t, time.July, month)
	assert.Empty(t, c.SelectedDate())

	require.NoError(t, c.PrevMonth(ctx))
	year, month = c.Month()
	assert.Equal(t, time.June, month)
	assert.Equal(t, 2024, year)

	// year rollover
	require.NoError(t, c.SetMonth(ctx, 2024, time.December))
	require.NoError(t, c.NextMonth(ctx))
	year, month = c.Month()
	assert.Equal(t, 2025, year)
	assert.Equal(t, time.January, month)
}

func TestStartEdit(t *testing.T) {
	ctx := context.Background()
	c, _ := newController(t)

	created, err := c.Reserve(ctx, "2024-06-01", 9)
	require.NoError(t, err)

	var verr *ValidationError
	err = c.StartEdit(created.ID)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, ReasonAdminOnly, verr.Reason)

	c.SetRole(RoleAdmin)
	require.NoError(t, c.StartEdit(created.ID))
	require.NotNil(t, c.Editing())
	assert.Equal(t, created.ID, c.Editing().ID)

	c.CancelEdit()
	assert.Nil(t, c.Editing())

	assert.ErrorIs(t, c.StartEdit(created.ID+99), store.ErrNotFound)
}

// blockingBackend parks Create calls until released, to exercise the
// in-flight guard.
type blockingBackend struct {
	*store.Memory
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingBackend) Create(ctx context.Context, date string, hour int, user string) (model.Reservation, error) {
	b.once.Do(func() { close(b.entered) })
	<-b.release
	return b.Memory.Create(ctx, date, hour, user)
}

func TestReserveInFlightGuard(t *testing.T) {
	ctx := context.Background()
	backend := &blockingBackend{
		Memory:  store.NewMemory(),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	logger := zerolog.Nop()
	c := NewController(backend, adminLabel, &logger,
		WithToday(june1),
		WithDefaultUser("Alice"),
	)

	done := make(chan error, 1)
	go func() {
		_, err := c.Reserve(ctx, "2024-06-01", 9)
		done <- err
	}()

	<-backend.entered

	// the double-click arrives while the first create is outstanding
	_, err := c.Reserve(ctx, "2024-06-01", 9)
	assert.ErrorIs(t, err, ErrPending)

	close(backend.release)
	require.NoError(t, <-done)

	slots := c.Slots("2024-06-01")
	require.True(t, slots[0].Reserved())
	assert.Equal(t, "Alice", slots[0].Reservation.User)
}

// failingBackend refuses every mutation.
type failingBackend struct {
	*store.Memory
}

func (f *failingBackend) Create(context.Context, string, int, string) (model.Reservation, error) {
	return model.Reservation{}, store.ErrBackendUnavailable
}

func (f *failingBackend) List(context.Context, calendar.Date, calendar.Date) ([]model.Reservation, error) {
	return nil, store.ErrBackendUnavailable
}

func TestStoreFailureLeavesSnapshotUnchanged(t *testing.T) {
	ctx := context.Background()
	logger := zerolog.Nop()
	c := NewController(&failingBackend{Memory: store.NewMemory()}, adminLabel, &logger,
		WithToday(june1),
		WithDefaultUser("Alice"),
	)

	_, err := c.Reserve(ctx, "2024-06-01", 9)
	assert.ErrorIs(t, err, store.ErrBackendUnavailable)
	assert.Empty(t, c.Snapshot())

	err = c.LoadMonth(ctx)
	assert.ErrorIs(t, err, store.ErrBackendUnavailable)
	assert.Empty(t, c.Snapshot())
}

func TestStaleReserveResponseDiscarded(t *testing.T) {
	ctx := context.Background()
	backend := &blockingBackend{
		Memory:  store.NewMemory(),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	logger := zerolog.Nop()
	c := NewController(backend, adminLabel, &logger,
		WithToday(june1),
		WithDefaultUser("Alice"),
	)

	require.NoError(t, c.SelectDate("2024-06-01"))

	done := make(chan error, 1)
	go func() {
		_, err := c.Reserve(ctx, "2024-06-01", 9)
		done <- err
	}()

	<-backend.entered
	// the user swaps to another day before the response lands
	require.NoError(t, c.SelectDate("2024-06-02"))
	close(backend.release)
	require.NoError(t, <-done)

	// the record exists in the backend but was not merged locally
	for _, r := range c.Snapshot() {
		if r.Date == "2024-06-01" && r.Hour == 9 {
			t.Fatal("stale response was merged into the snapshot")
		}
	}
	require.NoError(t, c.LoadMonth(ctx))
	slots := c.Slots("2024-06-01")
	assert.True(t, slots[0].Reserved())
}

func TestSlotsDetachedFromSnapshot(t *testing.T) {
	ctx := context.Background()
	c, _ := newController(t)

	created, err := c.Reserve(ctx, "2024-06-01", 9)
	require.NoError(t, err)

	slots := c.Slots("2024-06-01")
	require.True(t, slots[0].Reserved())

	c.SetRole(RoleAdmin)
	require.NoError(t, c.AdminRename(ctx, created.ID, "Carol"))

	// the slice handed out before the rename still shows the old name
	assert.Equal(t, "Alice", slots[0].Reservation.User)
	assert.Equal(t, "Carol", c.Slots("2024-06-01")[0].Reservation.User)
}

func TestMonthChangeDuringReserveDiscardsMerge(t *testing.T) {
	ctx := context.Background()
	backend := &blockingBackend{
		Memory:  store.NewMemory(),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	logger := zerolog.Nop()
	c := NewController(backend, adminLabel, &logger,
		WithToday(june1),
		WithDefaultUser("Alice"),
	)

	done := make(chan error, 1)
	go func() {
		_, err := c.Reserve(ctx, "2024-06-01", 9)
		done <- err
	}()

	<-backend.entered
	// the user flips to July before the create response lands
	require.NoError(t, c.NextMonth(ctx))
	close(backend.release)
	require.NoError(t, <-done)

	// July's snapshot must not carry the June record
	assert.Equal(t, 0, c.CountForDate("2024-06-01"))
	for _, r := range c.Snapshot() {
		if r.Date == "2024-06-01" {
			t.Fatal("June record merged into July snapshot")
		}
	}

	// the record is in the backend and shows up back in June
	require.NoError(t, c.PrevMonth(ctx))
	assert.Equal(t, 1, c.CountForDate("2024-06-01"))
}

func TestCancelErrorIsNotValidation(t *testing.T) {
	ctx := context.Background()
	c, _ := newController(t)

	err := c.Cancel(ctx, 12345)
	require.Error(t, err)
	var verr *ValidationError
	assert.False(t, errors.As(err, &verr))
}
