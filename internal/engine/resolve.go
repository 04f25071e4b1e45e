package engine

import "github.com/tartampluch/go-contactcal/internal/config"

// FilterByGroup returns the contacts belonging to the given group.
//
// An empty group is the identity filter. An unmatched group identifier yields
// an empty subset; that is a valid (if unhelpful) configuration, not an error.
func FilterByGroup(contacts []Contact, group string) []Contact {
	if group == "" {
		return contacts
	}
	var out []Contact
	for _, c := range contacts {
		if c.InGroup(group) {
			out = append(out, c)
		}
	}
	return out
}

// ResolveDisplayName resolves a single display string for the contact.
//
// It walks the preference list in order and returns the first present,
// non-empty field. If none match it falls back to the displayName field, and
// finally to the contact ID. A contact is never dropped from the calendar for
// missing name data.
func ResolveDisplayName(c Contact, preference []string) string {
	for _, field := range preference {
		if v := c.Names[field]; v != "" {
			return v
		}
	}
	if v := c.Names[config.NameFieldDisplay]; v != "" {
		return v
	}
	return c.ID
}
