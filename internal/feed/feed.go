// Package feed renders materialized events into an iCalendar feed body.
package feed

import (
	"bytes"
	"fmt"
	"time"

	"github.com/emersion/go-ical"

	"github.com/tartampluch/go-contactcal/internal/config"
	"github.com/tartampluch/go-contactcal/internal/engine"
)

// Build encodes the given occurrences as a VCALENDAR byte stream. The name
// becomes the feed's display name (X-WR-CALNAME). Events are expected in the
// order produced by engine.MaterializeWindow; Build preserves it.
//
// An empty event list yields the minimal valid stub calendar so feed clients
// never see an invalid body.
func Build(name string, events []engine.CalendarEvent, now time.Time) ([]byte, error) {
	if len(events) == 0 {
		return []byte(config.StubVCalendar), nil
	}

	cal := ical.NewCalendar()
	cal.Props.SetText(config.PropVersion, config.ICalVersion)
	cal.Props.SetText(config.PropProdid, config.ICalProdid)
	cal.Props.SetText(config.PropXWRCalName, name)
	cal.Props.SetText(config.PropCalScale, config.ICalScale)
	cal.Props.SetText(config.PropMethod, config.ICalMethod)

	refreshProp := ical.NewProp(config.PropRefresh)
	refreshProp.SetDuration(config.DefaultICalRefresh)
	cal.Props.Set(refreshProp)

	// Occurrence dates are local calendar dates; only the stamp is in UTC.
	dtStampProp := ical.NewProp(config.PropDTStamp)
	dtStampProp.SetDateTime(now.UTC())

	for _, e := range events {
		event := ical.NewEvent()
		event.Props.SetText(config.PropUID,
			fmt.Sprintf(config.FormatUID, e.Key.String(), e.Date.Year(), config.ICalDomain))
		event.Props.SetText(config.PropSummary, e.Title)

		dtStartProp := ical.NewProp(config.PropDTStart)
		dtStartProp.SetDate(e.Date)
		event.Props.Set(dtStartProp)
		event.Props.Set(dtStampProp)

		cal.Children = append(cal.Children, event.Component)
	}

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrICalEncode, err)
	}
	return buf.Bytes(), nil
}
