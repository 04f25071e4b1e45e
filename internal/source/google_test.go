package source

import (
	"errors"
	"net"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	people "google.golang.org/api/people/v1"

	"github.com/tartampluch/go-contactcal/internal/config"
)

func testPerson() *people.Person {
	return &people.Person{
		ResourceName: "people/c123",
		Names: []*people.Name{{
			DisplayName:          "Matt Johnson",
			DisplayNameLastFirst: "Johnson, Matt",
			GivenName:            "Matt",
		}},
		Nicknames: []*people.Nickname{{Value: "Matt"}},
		Birthdays: []*people.Birthday{{
			Date: &people.Date{Year: 1998, Month: 3, Day: 15},
		}},
		Events: []*people.Event{{
			FormattedType: "Anniversary",
			Date:          &people.Date{Month: 6, Day: 1},
		}},
		Memberships: []*people.Membership{{
			ContactGroupMembership: &people.ContactGroupMembership{
				ContactGroupResourceName: "contactGroups/abc",
			},
		}},
	}
}

func TestRawFromPerson(t *testing.T) {
	groups := map[string]string{"contactGroups/abc": "Friends"}

	raw, ok := rawFromPerson(testPerson(), groups)
	require.True(t, ok)

	assert.Equal(t, "people/c123", raw[config.RawKeyID])
	assert.Equal(t, map[string]string{
		config.NameFieldDisplay:          "Matt Johnson",
		config.NameFieldDisplayLastFirst: "Johnson, Matt",
		config.NameFieldGiven:            "Matt",
		config.NameFieldNickname:         "Matt",
	}, raw[config.RawKeyNames])

	// Memberships expose both the resource name and the display name so a
	// subentry can filter by either.
	assert.Equal(t, []string{"contactGroups/abc", "Friends"}, raw[config.RawKeyGroups])

	dates := raw[config.RawKeyDates].([]map[string]any)
	require.Len(t, dates, 2)
	assert.Equal(t, config.DateKindBirthday, dates[0][config.RawKeyKind])
	assert.Equal(t, 1998, dates[0][config.RawKeyYear])
	assert.Equal(t, config.DateKindAnniversary, dates[1][config.RawKeyKind])
	assert.Equal(t, 0, dates[1][config.RawKeyYear])
}

func TestRawFromPerson_SkipsDeleted(t *testing.T) {
	p := testPerson()
	p.Metadata = &people.PersonMetadata{Deleted: true}

	_, ok := rawFromPerson(p, nil)
	assert.False(t, ok)
}

func TestRawFromPerson_SkipsDateless(t *testing.T) {
	p := testPerson()
	p.Birthdays = nil
	p.Events = nil

	_, ok := rawFromPerson(p, nil)
	assert.False(t, ok)
}

func TestRawFromPerson_EventWithoutTypeFallsBackToOther(t *testing.T) {
	p := testPerson()
	p.Events[0].FormattedType = ""

	raw, ok := rawFromPerson(p, nil)
	require.True(t, ok)

	dates := raw[config.RawKeyDates].([]map[string]any)
	require.Len(t, dates, 2)
	assert.Equal(t, config.DateKindOther, dates[1][config.RawKeyKind])
}

func TestRawFromPerson_DropsPartialGoogleDate(t *testing.T) {
	p := testPerson()
	p.Birthdays[0].Date = &people.Date{Year: 1998}

	raw, ok := rawFromPerson(p, nil)
	require.True(t, ok)

	dates := raw[config.RawKeyDates].([]map[string]any)
	require.Len(t, dates, 1)
	assert.Equal(t, config.DateKindAnniversary, dates[0][config.RawKeyKind])
}

func TestClassifyGoogleError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantAuth bool
	}{
		{"unauthorized", &googleapi.Error{Code: http.StatusUnauthorized}, true},
		{"forbidden", &googleapi.Error{Code: http.StatusForbidden}, true},
		{"rate limited", &googleapi.Error{Code: http.StatusTooManyRequests}, false},
		{"server error", &googleapi.Error{Code: http.StatusInternalServerError}, false},
		{"network failure", &net.OpError{Op: "dial", Err: errors.New("refused")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classified := classifyGoogleError("list connections", tt.err)

			var authErr *AuthError
			var fetchErr *TransientFetchError
			if tt.wantAuth {
				assert.ErrorAs(t, classified, &authErr)
			} else {
				assert.ErrorAs(t, classified, &fetchErr)
			}
			assert.ErrorIs(t, classified, tt.err)
		})
	}
}
