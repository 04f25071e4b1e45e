package source

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"

	"github.com/emersion/go-vcard"

	"github.com/tartampluch/go-contactcal/internal/config"
	"github.com/tartampluch/go-contactcal/internal/engine"
)

// LocalSource reads contacts from a vCard file on disk. Useful for exported
// address books and for running without any network dependency.
type LocalSource struct {
	Path string
}

// NewLocalSource creates a source for the given .vcf path.
func NewLocalSource(path string) *LocalSource {
	return &LocalSource{Path: path}
}

// FetchContacts decodes every card in the file. Unreadable cards are skipped
// so one corrupt entry cannot abort the batch.
func (s *LocalSource) FetchContacts(ctx context.Context) ([]engine.RawContact, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, &TransientFetchError{Reason: "open vCard file", Err: err}
	}
	defer func() { _ = f.Close() }()

	return decodeCards(ctx, f)
}

// decodeCards drains a vCard stream into raw payloads. Shared with the
// CardDAV source for multi-card response bodies.
func decodeCards(ctx context.Context, r io.Reader) ([]engine.RawContact, error) {
	decoder := vcard.NewDecoder(r)
	var raws []engine.RawContact

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		card, err := decoder.Decode()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			slog.Warn(config.MsgSkippedRecord,
				config.LogKeyComponent, config.CompSource,
				config.LogKeyError, err)
			continue
		}

		if raw, ok := rawFromCard(card); ok {
			raws = append(raws, raw)
		}
	}

	return raws, nil
}
