// Package calendar derives the month grid and per-day availability from a
// snapshot of reservations. Everything here is pure computation over the
// snapshot and a reference date; nothing does I/O.
package calendar

import (
	"time"

	"vocalroom/internal/model"
)

// GridCells is the fixed size of the month grid: six Sunday-first weeks.
const GridCells = 42

// Cell is one square of the month grid.
type Cell struct {
	Date           Date
	InCurrentMonth bool
}

// MonthCells builds the 42-cell grid for a month. Cell 0 is the Sunday of the
// week containing the 1st; leading and trailing cells spill into the adjacent
// months by date arithmetic, so December's grid ends in January of the next
// year.
func MonthCells(year int, month time.Month) []Cell {
	first := Date{Year: year, Month: month, Day: 1}
	lead := int(first.Weekday()) // Sunday = 0, already the grid offset

	cells := make([]Cell, 0, GridCells)
	for i := 0; i < GridCells; i++ {
		d := first.AddDays(i - lead)
		cells = append(cells, Cell{
			Date:           d,
			InCurrentMonth: d.Year == year && d.Month == month,
		})
	}
	return cells
}

// Slot pairs an hour with the reservation occupying it, if any.
type Slot struct {
	Hour        int
	Reservation *model.Reservation
}

// Label returns the slot's display label, like "09:00 ~ 10:00".
func (s Slot) Label() string {
	return model.HourLabel(s.Hour)
}

// Reserved reports whether the slot is taken.
func (s Slot) Reserved() bool {
	return s.Reservation != nil
}

// CountForDate counts reservations on the given ISO date.
func CountForDate(date string, snapshot []model.Reservation) int {
	n := 0
	for i := range snapshot {
		if snapshot[i].Date == date {
			n++
		}
	}
	return n
}

// SlotsForDate expands the snapshot into the day's fourteen hourly slots,
// hours ascending. Unreserved hours carry a nil Reservation.
func SlotsForDate(date string, snapshot []model.Reservation) []Slot {
	byHour := make(map[int]*model.Reservation, model.SlotsPerDay)
	for i := range snapshot {
		if snapshot[i].Date == date {
			byHour[snapshot[i].Hour] = &snapshot[i]
		}
	}

	slots := make([]Slot, 0, model.SlotsPerDay)
	for hour := model.OpenHour; hour <= model.LastHour; hour++ {
		slots = append(slots, Slot{Hour: hour, Reservation: byHour[hour]})
	}
	return slots
}

// ReservationsForUser returns the user's reservations in snapshot order.
func ReservationsForUser(user string, snapshot []model.Reservation) []model.Reservation {
	var out []model.Reservation
	for i := range snapshot {
		if snapshot[i].User == user {
			out = append(out, snapshot[i])
		}
	}
	return out
}
