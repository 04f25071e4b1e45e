package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/zalando/go-keyring"
	"golang.org/x/oauth2"

	"github.com/tartampluch/go-contactcal/internal/config"
)

// ErrNoToken is returned when no stored token exists in either backend.
var ErrNoToken = errors.New(config.ErrTokenMissing)

// TokenStore persists the OAuth token in the system keyring, falling back to
// an owner-only file under the user config directory on headless systems
// without a secret service.
type TokenStore struct {
	// Dir overrides the fallback file location. Empty means the default
	// application config directory.
	Dir string
}

// Save stores the token, preferring the keyring.
func (s *TokenStore) Save(tok *oauth2.Token) error {
	data, err := json.Marshal(tok)
	if err != nil {
		return err
	}

	if err := keyring.Set(config.KeyringService, config.KeyringToken, string(data)); err == nil {
		slog.Debug(config.MsgTokenKeyring, config.LogKeyComponent, config.CompAuth)
		return nil
	} else {
		slog.Debug(config.MsgTokenFile,
			config.LogKeyComponent, config.CompAuth,
			config.LogKeyError, err)
	}

	path, err := s.tokenPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), config.DirPermUserRWX); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, config.FilePermUserRW); err != nil {
		return err
	}

	slog.Info(config.MsgTokenSaved,
		config.LogKeyComponent, config.CompAuth,
		config.LogKeyFile, path)
	return nil
}

// Load retrieves the stored token. Returns ErrNoToken when neither backend
// holds one.
func (s *TokenStore) Load() (*oauth2.Token, error) {
	if data, err := keyring.Get(config.KeyringService, config.KeyringToken); err == nil {
		return decodeToken([]byte(data))
	}

	path, err := s.tokenPath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoToken
		}
		return nil, err
	}
	return decodeToken(data)
}

func (s *TokenStore) tokenPath() (string, error) {
	dir := s.Dir
	if dir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(base, config.AppID)
	}
	return filepath.Join(dir, config.TokenFileName), nil
}

func decodeToken(data []byte) (*oauth2.Token, error) {
	tok := &oauth2.Token{}
	if err := json.Unmarshal(data, tok); err != nil {
		return nil, err
	}
	return tok, nil
}
