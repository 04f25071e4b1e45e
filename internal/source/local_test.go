package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tartampluch/go-contactcal/internal/config"
)

func TestLocalSource_FetchContacts(t *testing.T) {
	content := `BEGIN:VCARD
VERSION:4.0
UID:urn:uuid:1234
FN:Matt Johnson
BDAY:1998-03-15
END:VCARD
BEGIN:VCARD
VERSION:4.0
UID:urn:uuid:5678
FN:Anna Schmidt
ANNIVERSARY:2020-06-01
END:VCARD`

	path := filepath.Join(t.TempDir(), "contacts.vcf")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	src := NewLocalSource(path)
	raws, err := src.FetchContacts(context.Background())
	require.NoError(t, err)
	require.Len(t, raws, 2)
	assert.Equal(t, "urn:uuid:1234", raws[0][config.RawKeyID])
	assert.Equal(t, "urn:uuid:5678", raws[1][config.RawKeyID])
}

func TestLocalSource_MissingFile(t *testing.T) {
	src := NewLocalSource(filepath.Join(t.TempDir(), "nope.vcf"))

	_, err := src.FetchContacts(context.Background())
	require.Error(t, err)

	var fetchErr *TransientFetchError
	assert.ErrorAs(t, err, &fetchErr)
}

func TestLocalSource_CancelledContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contacts.vcf")
	require.NoError(t, os.WriteFile(path, []byte("BEGIN:VCARD\nVERSION:4.0\nUID:a\nFN:A\nBDAY:1990-01-01\nEND:VCARD\n"), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewLocalSource(path).FetchContacts(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
