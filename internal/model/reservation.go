package model

import (
	"errors"
	"fmt"
)

const (
	// OpenHour is the first bookable slot of a day (slot 09:00 ~ 10:00).
	OpenHour = 9
	// LastHour is the start of the final bookable slot (slot 22:00 ~ 23:00).
	LastHour = 22
	// SlotsPerDay is the number of hourly slots between OpenHour and LastHour inclusive.
	SlotsPerDay = LastHour - OpenHour + 1
)

var (
	ErrEmptyUser      = errors.New("user name is empty")
	ErrHourOutOfRange = errors.New("hour out of bookable range")
	ErrBadDate        = errors.New("date is not YYYY-MM-DD")
)

// Reservation is the single persistent entity: one user holding one hourly
// slot on one calendar day. ID is assigned by the store, never by the caller.
type Reservation struct {
	ID   int64  `json:"id"`
	Date string `json:"date"` // YYYY-MM-DD, no time zone component
	Hour int    `json:"hour"` // start of the slot, OpenHour..LastHour
	User string `json:"user"`
}

// HourLabel renders a slot label like "09:00 ~ 10:00".
func HourLabel(hour int) string {
	return fmt.Sprintf("%02d:00 ~ %02d:00", hour, hour+1)
}

// HourLabel renders the reservation's slot label.
func (r *Reservation) HourLabel() string {
	return HourLabel(r.Hour)
}

// Validate checks the field invariants that must hold for every stored record.
func (r *Reservation) Validate() error {
	if !ValidISODate(r.Date) {
		return fmt.Errorf("%w: %q", ErrBadDate, r.Date)
	}
	if r.Hour < OpenHour || r.Hour > LastHour {
		return fmt.Errorf("%w: %d", ErrHourOutOfRange, r.Hour)
	}
	if r.User == "" {
		return ErrEmptyUser
	}
	return nil
}

// ValidISODate reports whether s is a fixed-width YYYY-MM-DD string.
// Calendar plausibility (month 1-12, day 1-31) is checked; actual month
// lengths are the calendar package's concern.
func ValidISODate(s string) bool {
	if len(s) != 10 || s[4] != '-' || s[7] != '-' {
		return false
	}
	for i, c := range s {
		if i == 4 || i == 7 {
			continue
		}
		if c < '0' || c > '9' {
			return false
		}
	}
	month := int(s[5]-'0')*10 + int(s[6]-'0')
	day := int(s[8]-'0')*10 + int(s[9]-'0')
	return month >= 1 && month <= 12 && day >= 1 && day <= 31
}
