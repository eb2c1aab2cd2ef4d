package model

import (
	"bytes"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Number is a decimal decoded leniently from the data service. Numbers,
// numeric strings and null all decode; any other value decodes as invalid
// instead of failing the surrounding payload.
type Number struct {
	Value decimal.Decimal
	Valid bool
}

// NewNumber wraps a float as a valid Number.
func NewNumber(f float64) Number {
	return Number{Value: decimal.NewFromFloat(f), Valid: true}
}

// ParseNumber parses s, returning an invalid Number when s is not numeric.
func ParseNumber(s string) Number {
	s = strings.TrimSpace(s)
	if s == "" {
		return Number{}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Number{}
	}
	return Number{Value: d, Valid: true}
}

func (n *Number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*n = Number{}
		return nil
	}
	if b[0] == '"' {
		s, err := strconv.Unquote(string(b))
		if err != nil {
			*n = Number{}
			return nil
		}
		*n = ParseNumber(s)
		return nil
	}
	*n = ParseNumber(string(b))
	return nil
}

func (n Number) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return []byte(n.Value.String()), nil
}

// String returns the plain decimal representation, or "" when invalid.
func (n Number) String() string {
	if !n.Valid {
		return ""
	}
	return n.Value.String()
}

// Date is a calendar date or timestamp that may be missing.
type Date struct {
	Time  time.Time
	Valid bool
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05-07",
	"2006-01-02T15:04:05.999999",
}

// ParseDate accepts ISO dates and the timestamp shapes PostgREST emits.
func ParseDate(s string) Date {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Date{Time: t, Valid: true}
		}
	}
	return Date{}
}

// NewDate builds a valid Date at midnight UTC.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC), Valid: true}
}

func (d *Date) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*d = Date{}
		return nil
	}
	s, err := strconv.Unquote(string(b))
	if err != nil {
		*d = Date{}
		return nil
	}
	*d = ParseDate(s)
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	if !d.Valid {
		return []byte("null"), nil
	}
	if d.Time.Hour() == 0 && d.Time.Minute() == 0 && d.Time.Second() == 0 && d.Time.Nanosecond() == 0 {
		return []byte(strconv.Quote(d.Time.Format("2006-01-02"))), nil
	}
	return []byte(strconv.Quote(d.Time.Format(time.RFC3339))), nil
}

// After reports whether d is strictly later than o. Missing dates are never after anything.
func (d Date) After(o Date) bool {
	if !d.Valid {
		return false
	}
	if !o.Valid {
		return true
	}
	return d.Time.After(o.Time)
}

// ID is a row identifier. The data service uses integer or uuid keys
// depending on the table, so both decode into the same string form.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		s, err := strconv.Unquote(string(b))
		if err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	*id = ID(string(b))
	return nil
}
