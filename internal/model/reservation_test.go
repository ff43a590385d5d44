package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHourLabel(t *testing.T) {
	assert.Equal(t, "09:00 ~ 10:00", HourLabel(9))
	assert.Equal(t, "12:00 ~ 13:00", HourLabel(12))
	assert.Equal(t, "22:00 ~ 23:00", HourLabel(22))
}

func TestReservation_Validate(t *testing.T) {
	valid := Reservation{ID: 1, Date: "2024-06-01", Hour: 9, User: "Alice"}
	assert.NoError(t, valid.Validate())

	early := valid
	early.Hour = 8
	assert.ErrorIs(t, early.Validate(), ErrHourOutOfRange)

	late := valid
	late.Hour = 23
	assert.ErrorIs(t, late.Validate(), ErrHourOutOfRange)

	anon := valid
	anon.User = ""
	assert.ErrorIs(t, anon.Validate(), ErrEmptyUser)

	badDate := valid
	badDate.Date = "2024/06/01"
	assert.ErrorIs(t, badDate.Validate(), ErrBadDate)
}

func TestValidISODate(t *testing.T) {
	tests := []struct {
		in string
		ok bool
	}{
		{"2024-06-01", true},
		{"1999-12-31", true},
		{"2024-13-01", false},
		{"2024-00-10", false},
		{"2024-01-32", false},
		{"2024-6-1", false},
		{"20240601", false},
		{"", false},
		{"2024-06-0a", false},
	}
	for _, tt := range tests {
		if got := ValidISODate(tt.in); got != tt.ok {
			t.Errorf("ValidISODate(%q) = %v, want %v", tt.in, got, tt.ok)
		}
	}
}

func TestSlotsPerDay(t *testing.T) {
	assert.Equal(t, 14, SlotsPerDay)
}
