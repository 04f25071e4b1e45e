package engine

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tartampluch/go-contactcal/internal/config"
)

// ErrMalformedRecord marks a raw contact payload that cannot be normalized.
// The sync cycle skips such records and continues with the rest of the batch.
var ErrMalformedRecord = errors.New(config.ErrRecordID)

// PartialDate is a calendar date whose year may be unknown.
type PartialDate struct {
	Month time.Month
	Day   int

	// Year is zero when the source did not carry one.
	Year int
}

// YearKnown reports whether the date carries a year.
func (d PartialDate) YearKnown() bool {
	return d.Year > 0
}

// Valid reports whether (Month, Day) denotes a calendar day independent of
// year. Feb 29 is valid; its projection into non-leap years is handled by the
// date projector.
func (d PartialDate) Valid() bool {
	if d.Month < time.January || d.Month > time.December || d.Day < 1 {
		return false
	}
	// Check against a leap reference year so Feb 29 passes.
	probe := time.Date(config.ReferenceLeapYear, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
	return probe.Month() == d.Month && probe.Day() == d.Day
}

func (d PartialDate) String() string {
	if d.YearKnown() {
		return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
	}
	return fmt.Sprintf("--%02d-%02d", d.Month, d.Day)
}

// Contact is one normalized remote address-book entry.
type Contact struct {
	// ID is the opaque stable identifier from the source. It is the join key
	// across refresh cycles; instability here would manifest as event churn.
	ID string

	// Names maps name-field identifiers (config.NameField*) to values.
	// Unknown identifiers from the source are preserved verbatim.
	Names map[string]string

	// Groups is the set of group identifiers the contact belongs to.
	Groups []string

	// Dates maps date-kind identifiers (config.DateKind*) to partial dates.
	// Unknown kinds from the source are preserved verbatim.
	Dates map[string]PartialDate
}

// InGroup reports whether the contact belongs to the given group identifier.
// Matching is case-insensitive so user-facing group names work as filters.
func (c Contact) InGroup(group string) bool {
	for _, g := range c.Groups {
		if strings.EqualFold(g, group) {
			return true
		}
	}
	return false
}

// RawContact is the opaque structured payload produced by a ContactSource.
// All "maybe this field exists" logic lives in Normalize; downstream code
// only ever sees the strongly-typed Contact.
type RawContact map[string]any

// Normalize converts a raw payload into a Contact.
//
// A missing or empty id is the only fatal condition (ErrMalformedRecord);
// every other field degrades to empty/absent. Dates without a valid
// (month, day) pair are dropped from the contact, not rejected.
func Normalize(raw RawContact) (Contact, error) {
	id, _ := raw[config.RawKeyID].(string)
	if id == "" {
		return Contact{}, ErrMalformedRecord
	}

	c := Contact{
		ID:    id,
		Names: make(map[string]string),
		Dates: make(map[string]PartialDate),
	}

	switch names := raw[config.RawKeyNames].(type) {
	case map[string]string:
		for field, value := range names {
			if value != "" {
				c.Names[field] = value
			}
		}
	case map[string]any:
		for field, value := range names {
			if s, ok := value.(string); ok && s != "" {
				c.Names[field] = s
			}
		}
	}

	switch groups := raw[config.RawKeyGroups].(type) {
	case []string:
		c.Groups = append(c.Groups, groups...)
	case []any:
		for _, g := range groups {
			if s, ok := g.(string); ok && s != "" {
				c.Groups = append(c.Groups, s)
			}
		}
	}

	for _, entry := range anySlice(raw[config.RawKeyDates]) {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		kind, _ := m[config.RawKeyKind].(string)
		if kind == "" {
			continue
		}
		d := PartialDate{
			Year:  asInt(m[config.RawKeyYear]),
			Month: time.Month(asInt(m[config.RawKeyMonth])),
			Day:   asInt(m[config.RawKeyDay]),
		}
		if !d.Valid() {
			continue
		}
		// First occurrence of a kind wins; sources list the primary entry first.
		if _, exists := c.Dates[kind]; !exists {
			c.Dates[kind] = d
		}
	}

	return c, nil
}

// anySlice widens both []any (decoded JSON) and []map[string]any
// (Go-constructed payloads) into a uniform []any.
func anySlice(v any) []any {
	switch s := v.(type) {
	case []any:
		return s
	case []map[string]any:
		out := make([]any, len(s))
		for i, m := range s {
			out[i] = m
		}
		return out
	default:
		return nil
	}
}

// asInt accepts the numeric shapes a raw payload may carry: native ints from
// Go sources and float64 from decoded JSON.
func asInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}
