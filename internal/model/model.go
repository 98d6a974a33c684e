package model

import (
	"errors"
	"fmt"
)

const (
	// TimeLayout is the wire and storage format for times of day.
	TimeLayout = "15:04:05"
	// DateLayout is the storage format for partition dates.
	DateLayout = "2006-01-02"
)

var errBadTime = errors.New("model: time must be HH:MM:SS")

// TimeOfDay is a wall-clock HH:MM:SS value with no date component.
// The zero value is midnight.
type TimeOfDay struct {
	secs int
}

// ParseTimeOfDay parses an HH:MM:SS string.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	if len(s) != 8 || s[2] != ':' || s[5] != ':' {
		return TimeOfDay{}, errBadTime
	}
	var h, m, sec int
	if _, err := fmt.Sscanf(s, "%2d:%2d:%2d", &h, &m, &sec); err != nil {
		return TimeOfDay{}, errBadTime
	}
	if h < 0 || h > 23 || m < 0 || m > 59 || sec < 0 || sec > 59 {
		return TimeOfDay{}, errBadTime
	}
	return TimeOfDay{secs: h*3600 + m*60 + sec}, nil
}

// String formats the value as HH:MM:SS.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.secs/3600, t.secs/60%60, t.secs%60)
}

// AddMinutes returns the value shifted forward, wrapping at midnight.
func (t TimeOfDay) AddMinutes(n int) TimeOfDay {
	const day = 24 * 3600
	s := (t.secs + n*60) % day
	if s < 0 {
		s += day
	}
	return TimeOfDay{secs: s}
}

// Before reports whether t is earlier in the day than other.
func (t TimeOfDay) Before(other TimeOfDay) bool { return t.secs < other.secs }

// Origin is a reporting device identified by its phone number.
type Origin struct {
	ID          int64  `json:"id"`
	PhoneNumber string `json:"phone_number"`
}

// Point is one decoded or retrieved coordinate with its time of day.
type Point struct {
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	RecordedAt TimeOfDay `json:"-"`
}

// Reading is one persisted coordinate row.
type Reading struct {
	OriginID   int64
	Latitude   float64
	Longitude  float64
	RecordedAt TimeOfDay
	RecordedOn string
}

// Message is a decoded SMS: the sender and its coordinates, each already
// carrying a synthetic time derived from the nominal start time.
type Message struct {
	Phone  string
	Points []Point
}

// Empty reports whether the message carries nothing usable.
func (m Message) Empty() bool { return m.Phone == "" || len(m.Points) == 0 }
