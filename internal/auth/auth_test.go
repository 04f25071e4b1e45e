package auth

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
	"golang.org/x/oauth2"

	"github.com/tartampluch/go-contactcal/internal/config"
)

func testToken() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  "access-123",
		RefreshToken: "refresh-456",
		TokenType:    "Bearer",
		Expiry:       time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestTokenStore_KeyringRoundTrip(t *testing.T) {
	keyring.MockInit()
	store := &TokenStore{Dir: t.TempDir()}

	require.NoError(t, store.Save(testToken()))

	tok, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "access-123", tok.AccessToken)
	assert.Equal(t, "refresh-456", tok.RefreshToken)
}

func TestTokenStore_FileFallback(t *testing.T) {
	keyring.MockInitWithError(errors.New("no secret service"))
	dir := t.TempDir()
	store := &TokenStore{Dir: dir}

	require.NoError(t, store.Save(testToken()))

	path := filepath.Join(dir, config.TokenFileName)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, config.FilePermUserRW, info.Mode().Perm())

	tok, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "refresh-456", tok.RefreshToken)
}

func TestTokenStore_MissingToken(t *testing.T) {
	keyring.MockInitWithError(errors.New("no secret service"))
	store := &TokenStore{Dir: t.TempDir()}

	_, err := store.Load()
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestNewAuthenticator_MissingCredentials(t *testing.T) {
	_, err := NewAuthenticator(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), config.ErrCredsMissing)
}

func TestNewAuthenticator_LoadsCredentials(t *testing.T) {
	dir := t.TempDir()
	creds := `{"installed":{"client_id":"id-123","client_secret":"secret-456",` +
		`"auth_uri":"https://accounts.google.com/o/oauth2/auth",` +
		`"token_uri":"https://oauth2.googleapis.com/token",` +
		`"redirect_uris":["http://localhost"]}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.CredsFileName), []byte(creds), 0o600))

	a, err := NewAuthenticator(dir)
	require.NoError(t, err)
	assert.Equal(t, "id-123", a.cfg.ClientID)
	assert.Equal(t,
		"http://localhost:"+config.AuthRedirectPort+config.AuthCallbackRoute,
		a.cfg.RedirectURL)
}

func TestLocalRedirectURL(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		expected   string
	}{
		{"empty", "", "http://localhost:" + config.AuthRedirectPort + config.AuthCallbackRoute},
		{"oob", "urn:ietf:wg:oauth:2.0:oob", "http://localhost:" + config.AuthRedirectPort + config.AuthCallbackRoute},
		{"loopback ip kept", "http://127.0.0.1", "http://127.0.0.1:" + config.AuthRedirectPort + config.AuthCallbackRoute},
		{"port replaced", "http://localhost:9999/cb", "http://localhost:" + config.AuthRedirectPort + config.AuthCallbackRoute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, localRedirectURL(tt.configured))
		})
	}
}

func TestSavingTokenSource_PersistsRefreshedToken(t *testing.T) {
	keyring.MockInit()
	store := &TokenStore{Dir: t.TempDir()}

	refreshed := testToken()
	src := &savingTokenSource{
		src:   oauth2.StaticTokenSource(refreshed),
		store: store,
		last:  &oauth2.Token{AccessToken: "stale"},
	}

	tok, err := src.Token()
	require.NoError(t, err)
	assert.Equal(t, "access-123", tok.AccessToken)

	saved, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "access-123", saved.AccessToken)
}
