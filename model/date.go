package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

const dayLayout = "2006-01-02"

// Date is a point in time decoded from either a calendar day ("2024-03-01")
// or an RFC 3339 timestamp. The API sends both forms for due dates.
type Date struct {
	time.Time
	// DayOnly is set when the value was decoded from a bare calendar day.
	DayOnly bool
}

// NewDate wraps t.
func NewDate(t time.Time) Date { return Date{Time: t} }

// ParseDate accepts a calendar day or an RFC 3339 timestamp.
func ParseDate(s string) (Date, error) {
	if t, err := time.Parse(dayLayout, s); err == nil {
		return Date{Time: t, DayOnly: true}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date{Time: t}, nil
}

// MustDate parses s and panics on error. Intended for fixtures.
func MustDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// UnmarshalJSON implements json.Unmarshaler. null and "" decode to the zero
// Date.
func (d *Date) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MarshalJSON implements json.Marshaler. Day-only values keep their short
// form.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	if d.DayOnly {
		return json.Marshal(d.Format(dayLayout))
	}
	return json.Marshal(d.Format(time.RFC3339Nano))
}

// String renders the date the way it is sent on the wire.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	if d.DayOnly {
		return d.Format(dayLayout)
	}
	return d.Format(time.RFC3339Nano)
}

// StartOfDay returns 00:00:00.000 of t's calendar day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, day := t.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, loc)
}

// EndOfDay returns 23:59:59.999 of t's calendar day in loc.
func EndOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, day := t.Date()
	return time.Date(y, m, day, 23, 59, 59, int(999*time.Millisecond), loc)
}
