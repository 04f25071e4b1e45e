package engine

import "sort"

// Delta is the minimal change set between two materialized mappings.
// Key slices are sorted for deterministic reporting.
type Delta struct {
	Added   []EventKey
	Removed []EventKey
	Updated []EventKey
}

// Empty reports whether the delta carries no changes. An empty delta means
// the host must not be notified for this cycle.
func (d Delta) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Updated) == 0
}

// Diff compares two materialized mappings by key. A key present in both with
// an unchanged event value is not reported, which prevents host-side churn on
// every poll even though the engine recomputes everything each cycle.
func Diff(old, current map[EventKey]CalendarEvent) Delta {
	var d Delta
	for key, ev := range current {
		prev, ok := old[key]
		switch {
		case !ok:
			d.Added = append(d.Added, key)
		case !eventEqual(prev, ev):
			d.Updated = append(d.Updated, key)
		}
	}
	for key := range old {
		if _, ok := current[key]; !ok {
			d.Removed = append(d.Removed, key)
		}
	}
	sortKeys(d.Added)
	sortKeys(d.Removed)
	sortKeys(d.Updated)
	return d
}

func eventEqual(a, b CalendarEvent) bool {
	return a.Key == b.Key && a.Title == b.Title && a.Date.Equal(b.Date) && a.AllDay == b.AllDay
}

func sortKeys(keys []EventKey) {
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
}
