package source

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-vcard"

	"github.com/tartampluch/go-contactcal/internal/config"
	"github.com/tartampluch/go-contactcal/internal/engine"
)

// uidHashLength truncates the synthesized identifier to a manageable size
// while staying collision-safe for address-book scale data.
const uidHashLength = 16

// rawFromCard maps a vCard onto the raw contact payload shape.
//
// Field mapping: FN → displayName, N → displayNameLastFirst + givenName,
// NICKNAME → nickname, CATEGORIES → groups, BDAY → birthday,
// ANNIVERSARY → anniversary. Cards without any parsable date are skipped;
// they can never produce an event.
func rawFromCard(card vcard.Card) (engine.RawContact, bool) {
	var dates []map[string]any
	if bday := card.Get(config.VCardBDAY); bday != nil && bday.Value != "" {
		if d, err := parseVCardDate(bday.Value); err == nil {
			dates = append(dates, rawDate(config.DateKindBirthday, d))
		}
	}
	if ann := card.Get(config.VCardAnniversary); ann != nil && ann.Value != "" {
		if d, err := parseVCardDate(ann.Value); err == nil {
			dates = append(dates, rawDate(config.DateKindAnniversary, d))
		}
	}
	if len(dates) == 0 {
		return nil, false
	}

	names := make(map[string]string)
	if fn := card.Get(config.VCardFN); fn != nil && fn.Value != "" {
		names[config.NameFieldDisplay] = fn.Value
	}
	if n := card.Name(); n != nil {
		if n.GivenName != "" {
			names[config.NameFieldGiven] = n.GivenName
		}
		if n.FamilyName != "" && n.GivenName != "" {
			names[config.NameFieldDisplayLastFirst] = n.FamilyName + ", " + n.GivenName
		}
	}
	if nick := card.Get(config.VCardNickname); nick != nil && nick.Value != "" {
		names[config.NameFieldNickname] = nick.Value
	}

	var groups []string
	if cat := card.Get(config.VCardCategories); cat != nil {
		for _, g := range strings.Split(cat.Value, ",") {
			if g = strings.TrimSpace(g); g != "" {
				groups = append(groups, g)
			}
		}
	}

	id := card.Value(config.VCardUID)
	if id == "" {
		// vCards are not guaranteed to carry a UID. Synthesize a stable one
		// from the card's identity-bearing fields so refreshes keep joining
		// on the same key.
		id = syntheticUID(names[config.NameFieldDisplay], dates)
	}

	return engine.RawContact{
		config.RawKeyID:     id,
		config.RawKeyNames:  names,
		config.RawKeyGroups: groups,
		config.RawKeyDates:  dates,
	}, true
}

func rawDate(kind string, d engine.PartialDate) map[string]any {
	return map[string]any{
		config.RawKeyKind:  kind,
		config.RawKeyYear:  d.Year,
		config.RawKeyMonth: int(d.Month),
		config.RawKeyDay:   d.Day,
	}
}

// syntheticUID derives a deterministic identifier for UID-less cards.
func syntheticUID(name string, dates []map[string]any) string {
	var sb strings.Builder
	sb.WriteString(name)
	for _, d := range dates {
		fmt.Fprintf(&sb, "|%v-%v-%v-%v",
			d[config.RawKeyKind], d[config.RawKeyYear], d[config.RawKeyMonth], d[config.RawKeyDay])
	}
	hash := sha256.Sum256([]byte(sb.String()))
	return fmt.Sprintf("%x", hash[:uidHashLength])
}

// parseVCardDate handles the date shapes encountered in the wild, including
// the vCard-specific truncated forms without a year.
func parseVCardDate(value string) (engine.PartialDate, error) {
	formatsWithYear := []string{
		config.DateFormatFullDash,
		config.DateFormatFullBasic,
		config.DateFormatRFC3339,
		config.DateFormatFullT,
	}
	for _, f := range formatsWithYear {
		if t, err := time.Parse(f, value); err == nil {
			return engine.PartialDate{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
		}
	}

	formatsWithoutYear := []string{config.DateFormatNoYearD, config.DateFormatNoYearB}
	for _, f := range formatsWithoutYear {
		if t, err := time.Parse(f, value); err == nil {
			return engine.PartialDate{Month: t.Month(), Day: t.Day()}, nil
		}
	}

	return engine.PartialDate{}, errors.New(config.ErrDateParse)
}
