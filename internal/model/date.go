// Package model defines the records shared by the offline store, the
// availability resolver, the room cache and the sync manager.
package model

import (
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Date is a calendar date without time of day or zone. The zero value means
// "no date" and marshals to an empty string.
type Date struct {
	t time.Time // always midnight UTC
}

// NewDate returns the calendar date y-m-d.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, m, d)
}

// ParseDate accepts "2006-01-02" as well as full timestamps, of which only
// the date part is kept. An empty string yields the zero Date.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, nil
	}
	if len(s) > len(dateLayout) && (s[len(dateLayout)] == 'T' || s[len(dateLayout)] == ' ') {
		s = s[:len(dateLayout)]
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("parsing date %q: %w", s, err)
	}
	return Date{t: t}, nil
}

// MustParseDate is like ParseDate but panics on malformed input. Intended for
// tests and literals.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool { return d.t.IsZero() }

// Before reports whether d is strictly earlier than o.
func (d Date) Before(o Date) bool { return d.t.Before(o.t) }

// After reports whether d is strictly later than o.
func (d Date) After(o Date) bool { return d.t.After(o.t) }

// Equal reports whether d and o are the same calendar date.
func (d Date) Equal(o Date) bool { return d.t.Equal(o.t) }

// AddDays returns d shifted by n days.
func (d Date) AddDays(n int) Date { return Date{t: d.t.AddDate(0, 0, n)} }

// Time returns midnight UTC of d.
func (d Date) Time() time.Time { return d.t }

// String formats d as YYYY-MM-DD, or "" for the zero Date.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format(dateLayout)
}

// MarshalText implements [encoding.TextMarshaler].
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Stay is a half-open date range [CheckIn, CheckOut). A stay ending on the
// day another begins does not overlap it.
type Stay struct {
	CheckIn  Date
	CheckOut Date
}

// NewStay returns the stay [in, out) or a *ValidationError if out is not
// after in.
func NewStay(in, out Date) (Stay, error) {
	s := Stay{CheckIn: in, CheckOut: out}
	if err := s.Validate(); err != nil {
		return Stay{}, err
	}
	return s, nil
}

// Validate checks that both ends are set and CheckOut is after CheckIn.
func (s Stay) Validate() error {
	if s.CheckIn.IsZero() {
		return &ValidationError{Field: "checkInDate", Reason: "is required"}
	}
	if s.CheckOut.IsZero() {
		return &ValidationError{Field: "checkOutDate", Reason: "is required"}
	}
	if !s.CheckOut.After(s.CheckIn) {
		return &ValidationError{Field: "checkOutDate", Reason: "must be after checkInDate"}
	}
	return nil
}

// Overlaps reports whether s and o share at least one night.
func (s Stay) Overlaps(o Stay) bool {
	return s.CheckIn.Before(o.CheckOut) && o.CheckIn.Before(s.CheckOut)
}

// Nights returns the number of nights in s.
func (s Stay) Nights() int {
	return int(s.CheckOut.t.Sub(s.CheckIn.t).Hours() / 24)
}

func (s Stay) String() string {
	return s.CheckIn.String() + ".." + s.CheckOut.String()
}
