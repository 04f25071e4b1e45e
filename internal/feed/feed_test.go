package feed

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tartampluch/go-contactcal/internal/config"
	"github.com/tartampluch/go-contactcal/internal/engine"
)

func TestBuild_EmptyEventsYieldsValidStub(t *testing.T) {
	data, err := Build("Family", nil, time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, config.StubVCalendar, string(data))
}

func TestBuild_EncodesEvents(t *testing.T) {
	events := []engine.CalendarEvent{
		{
			Key:    engine.EventKey{ContactID: "c1", DateKind: config.DateKindBirthday},
			Title:  "Matt's 27th Birthday",
			Date:   time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
			AllDay: true,
		},
		{
			Key:    engine.EventKey{ContactID: "c2", DateKind: config.DateKindAnniversary},
			Title:  "Anna's Anniversary",
			Date:   time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
			AllDay: true,
		},
	}

	data, err := Build("Family", events, time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	body := string(data)
	assert.Contains(t, body, "BEGIN:VCALENDAR")
	assert.Contains(t, body, "X-WR-CALNAME:Family")
	assert.Contains(t, body, "SUMMARY:Matt's 27th Birthday")
	assert.Contains(t, body, "SUMMARY:Anna's Anniversary")
	assert.Contains(t, body, "UID:c1/birthday-2026@"+config.ICalDomain)
	assert.Contains(t, body, "UID:c2/anniversary-2026@"+config.ICalDomain)
	assert.Contains(t, body, "DTSTART;VALUE=DATE:20260315")
	assert.Contains(t, body, "DTSTART;VALUE=DATE:20260601")
	assert.Equal(t, 2, strings.Count(body, "BEGIN:VEVENT"))
}

func TestBuild_EventUIDsDifferPerYear(t *testing.T) {
	key := engine.EventKey{ContactID: "c1", DateKind: config.DateKindBirthday}
	events := []engine.CalendarEvent{
		{Key: key, Title: "Matt's 27th Birthday", Date: time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), AllDay: true},
		{Key: key, Title: "Matt's 28th Birthday", Date: time.Date(2027, 3, 15, 0, 0, 0, 0, time.UTC), AllDay: true},
	}

	data, err := Build("Family", events, time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	body := string(data)
	assert.Contains(t, body, "UID:c1/birthday-2026@"+config.ICalDomain)
	assert.Contains(t, body, "UID:c1/birthday-2027@"+config.ICalDomain)
}
