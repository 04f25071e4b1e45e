package engine

import (
	"fmt"
	"sort"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tartampluch/go-contactcal/internal/config"
)

// EventKey identifies one materialized event across refresh cycles. It is
// derived from the contact ID, never the display name, so event identity
// survives name collisions and name edits.
type EventKey struct {
	ContactID string
	DateKind  string
}

func (k EventKey) String() string {
	return k.ContactID + "/" + k.DateKind
}

// Less orders keys for deterministic output.
func (k EventKey) Less(other EventKey) bool {
	if k.ContactID != other.ContactID {
		return k.ContactID < other.ContactID
	}
	return k.DateKind < other.DateKind
}

// CalendarEvent is one materialized whole-day event occurrence.
type CalendarEvent struct {
	Key   EventKey
	Title string

	// Date is the concrete occurrence date for the queried year/window,
	// at midnight in the reference location.
	Date time.Time

	// AllDay is always true; date-derived events have no time of day.
	AllDay bool
}

var kindTitler = cases.Title(language.English)

// Materialize turns the group-filtered contact set into the current event
// mapping, keyed for diffing. Each event's date is the next occurrence
// relative to ref.
//
// It is a pure function of its inputs: identical inputs produce an identical
// mapping, and repeated refreshes yield identity-stable, diffable output.
func Materialize(contacts []Contact, sub config.Subentry, ref time.Time) map[EventKey]CalendarEvent {
	events := make(map[EventKey]CalendarEvent)
	for _, c := range FilterByGroup(contacts, sub.Group) {
		name := ResolveDisplayName(c, sub.DisplayNamePreference)
		for kind, d := range c.Dates {
			if !kindSelected(sub.DateKinds, kind) {
				continue
			}
			occ := d.NextOccurrence(ref)
			key := EventKey{ContactID: c.ID, DateKind: kind}
			events[key] = CalendarEvent{
				Key:    key,
				Title:  composeTitle(name, kind, d, occ, sub.ShowYear),
				Date:   occ,
				AllDay: true,
			}
		}
	}
	return events
}

// MaterializeWindow emits every occurrence intersecting [start, end), at most
// one per contact date kind per year, ordered by date then key.
func MaterializeWindow(contacts []Contact, sub config.Subentry, start, end time.Time) []CalendarEvent {
	var out []CalendarEvent
	for _, c := range FilterByGroup(contacts, sub.Group) {
		name := ResolveDisplayName(c, sub.DisplayNamePreference)
		for kind, d := range c.Dates {
			if !kindSelected(sub.DateKinds, kind) {
				continue
			}
			key := EventKey{ContactID: c.ID, DateKind: kind}
			for _, occ := range d.OccurrencesBetween(start, end) {
				out = append(out, CalendarEvent{
					Key:    key,
					Title:  composeTitle(name, kind, d, occ, sub.ShowYear),
					Date:   occ,
					AllDay: true,
				})
			}
		}
	}
	SortEvents(out)
	return out
}

// SortEvents orders events by date, then by key, for stable output.
func SortEvents(events []CalendarEvent) {
	sort.Slice(events, func(i, j int) bool {
		if !events[i].Date.Equal(events[j].Date) {
			return events[i].Date.Before(events[j].Date)
		}
		return events[i].Key.Less(events[j].Key)
	})
}

// composeTitle renders "{name}'s {ordinal} {Kind}" when the source date
// carries a year and the subentry opts in, otherwise "{name}'s {Kind}".
// Occurrences on or before the origin year carry no count.
func composeTitle(name, kind string, d PartialDate, occurrence time.Time, showYear bool) string {
	label := kindTitler.String(kind)
	if showYear && d.YearKnown() {
		if count := d.AnniversaryCount(occurrence); count >= 1 {
			return fmt.Sprintf("%s's %s %s", name, Ordinal(count), label)
		}
	}
	return fmt.Sprintf("%s's %s", name, label)
}

func kindSelected(kinds []string, kind string) bool {
	if len(kinds) == 0 {
		return true
	}
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}
