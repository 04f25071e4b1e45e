package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	people "google.golang.org/api/people/v1"

	"github.com/tartampluch/go-contactcal/internal/config"
	"github.com/tartampluch/go-contactcal/internal/engine"
)

// personFields lists the People API person fields the engine consumes.
const personFields = "metadata,names,nicknames,birthdays,events,memberships"

// connectionsResource is the People API resource holding the user's contacts.
const connectionsResource = "people/me"

// GoogleSource fetches contacts from the Google People API.
type GoogleSource struct {
	svc *people.Service
}

// NewGoogleSource creates a source backed by an authenticated People service.
// Pass option.WithTokenSource (or WithHTTPClient) for credentials.
func NewGoogleSource(ctx context.Context, opts ...option.ClientOption) (*GoogleSource, error) {
	svc, err := people.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrPeopleService, err)
	}
	return &GoogleSource{svc: svc}, nil
}

// FetchContacts lists all connections of the authenticated account, following
// pagination, and maps each person onto the raw payload shape. Group
// memberships are annotated with both the group resource name and its display
// name so either works as a filter.
func (s *GoogleSource) FetchContacts(ctx context.Context) ([]engine.RawContact, error) {
	groups, err := s.fetchGroupNames(ctx)
	if err != nil {
		return nil, err
	}

	var raws []engine.RawContact
	call := s.svc.People.Connections.List(connectionsResource).
		PersonFields(personFields).
		PageSize(config.PeoplePageSize)

	err = call.Pages(ctx, func(resp *people.ListConnectionsResponse) error {
		for _, p := range resp.Connections {
			if raw, ok := rawFromPerson(p, groups); ok {
				raws = append(raws, raw)
			}
		}
		slog.Debug(config.MsgContactsPage,
			config.LogKeyComponent, config.CompSource,
			config.LogKeyCount, len(resp.Connections))
		return nil
	})
	if err != nil {
		return nil, classifyGoogleError("list connections", err)
	}

	return raws, nil
}

// fetchGroupNames maps contact group resource names to display names.
func (s *GoogleSource) fetchGroupNames(ctx context.Context) (map[string]string, error) {
	names := make(map[string]string)

	call := s.svc.ContactGroups.List().PageSize(config.GroupsPageSize)
	err := call.Pages(ctx, func(resp *people.ListContactGroupsResponse) error {
		for _, g := range resp.ContactGroups {
			if g.Metadata != nil && g.Metadata.Deleted {
				continue
			}
			name := g.Name
			if name == "" {
				name = g.FormattedName
			}
			if name != "" {
				names[g.ResourceName] = name
			}
		}
		return nil
	})
	if err != nil {
		return nil, classifyGoogleError("list contact groups", err)
	}

	slog.Debug(config.MsgGroupsFetched,
		config.LogKeyComponent, config.CompSource,
		config.LogKeyCount, len(names))
	return names, nil
}

// rawFromPerson maps a People API person onto the raw payload shape.
// Deleted contacts and contacts without any dated field are skipped.
func rawFromPerson(p *people.Person, groupNames map[string]string) (engine.RawContact, bool) {
	if p == nil || (p.Metadata != nil && p.Metadata.Deleted) {
		return nil, false
	}

	var dates []map[string]any
	for _, b := range p.Birthdays {
		if d, ok := rawGoogleDate(config.DateKindBirthday, b.Date); ok {
			dates = append(dates, d)
		}
	}
	for _, e := range p.Events {
		kind := strings.ToLower(strings.TrimSpace(e.FormattedType))
		if kind == "" {
			kind = config.DateKindOther
		}
		if d, ok := rawGoogleDate(kind, e.Date); ok {
			dates = append(dates, d)
		}
	}
	if len(dates) == 0 {
		return nil, false
	}

	names := make(map[string]string)
	if len(p.Names) > 0 {
		n := p.Names[0]
		if n.DisplayName != "" {
			names[config.NameFieldDisplay] = n.DisplayName
		}
		if n.DisplayNameLastFirst != "" {
			names[config.NameFieldDisplayLastFirst] = n.DisplayNameLastFirst
		}
		if n.GivenName != "" {
			names[config.NameFieldGiven] = n.GivenName
		}
	}
	if len(p.Nicknames) > 0 && p.Nicknames[0].Value != "" {
		names[config.NameFieldNickname] = p.Nicknames[0].Value
	}

	var groups []string
	for _, m := range p.Memberships {
		if m.ContactGroupMembership == nil {
			continue
		}
		rn := m.ContactGroupMembership.ContactGroupResourceName
		if rn == "" {
			continue
		}
		groups = append(groups, rn)
		if display := groupNames[rn]; display != "" {
			groups = append(groups, display)
		}
	}

	return engine.RawContact{
		config.RawKeyID:     p.ResourceName,
		config.RawKeyNames:  names,
		config.RawKeyGroups: groups,
		config.RawKeyDates:  dates,
	}, true
}

func rawGoogleDate(kind string, d *people.Date) (map[string]any, bool) {
	if d == nil || d.Month == 0 || d.Day == 0 {
		return nil, false
	}
	return map[string]any{
		config.RawKeyKind:  kind,
		config.RawKeyYear:  int(d.Year),
		config.RawKeyMonth: int(d.Month),
		config.RawKeyDay:   int(d.Day),
	}, true
}

// classifyGoogleError maps People API failures onto the coordinator's retry
// policies: credential problems are persistent, everything else waits for the
// next tick.
func classifyGoogleError(op string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return &AuthError{Reason: op, Err: err}
		}
	}
	return &TransientFetchError{Reason: op, Err: err}
}
