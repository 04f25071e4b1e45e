// Package auth handles the Google OAuth2 authorization flow and token
// persistence for the People API source.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	people "google.golang.org/api/people/v1"

	"github.com/tartampluch/go-contactcal/internal/config"
)

// Scopes requested from Google. Read-only contact access is all the engine
// ever needs.
var Scopes = []string{people.ContactsReadonlyScope}

// Authenticator owns the OAuth2 client configuration and token persistence.
type Authenticator struct {
	cfg   *oauth2.Config
	store *TokenStore
}

// NewAuthenticator loads the client configuration from credentials.json in
// the given directory (empty means the default application config directory)
// and pins the redirect to the local callback listener.
func NewAuthenticator(dir string) (*Authenticator, error) {
	if dir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(base, config.AppID)
	}

	credsPath := filepath.Join(dir, config.CredsFileName)
	data, err := os.ReadFile(credsPath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrCredsMissing, err)
	}

	cfg, err := google.ConfigFromJSON(data, Scopes...)
	if err != nil {
		return nil, err
	}
	cfg.RedirectURL = localRedirectURL(cfg.RedirectURL)

	return &Authenticator{
		cfg:   cfg,
		store: &TokenStore{Dir: dir},
	}, nil
}

// localRedirectURL forces the redirect onto the callback listener's address.
// The host must stay a loopback name registered with the OAuth client, so
// only the port and path are normalized.
func localRedirectURL(configured string) string {
	host := "localhost"
	if u, err := url.Parse(configured); err == nil && u.Hostname() != "" && u.Scheme == config.SchemeHTTP {
		host = u.Hostname()
	}
	return fmt.Sprintf("%s://%s%s", config.SchemeHTTP,
		net.JoinHostPort(host, config.AuthRedirectPort), config.AuthCallbackRoute)
}

// TokenSource returns a source backed by the stored token. Refreshed tokens
// are persisted so the refresh token survives restarts. Returns ErrNoToken
// when the user has never authorized.
func (a *Authenticator) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	tok, err := a.store.Load()
	if err != nil {
		return nil, err
	}
	return &savingTokenSource{
		src:   a.cfg.TokenSource(ctx, tok),
		store: a.store,
		last:  tok,
	}, nil
}

// Authorize runs the browser-based authorization code flow: it starts a
// loopback listener, prints the consent URL, waits for the redirect, and
// exchanges the code for a token which is then persisted.
func (a *Authenticator) Authorize(ctx context.Context) error {
	listener, err := net.Listen("tcp", net.JoinHostPort("", config.AuthRedirectPort))
	if err != nil {
		return err
	}
	defer func() { _ = listener.Close() }()

	state := uuid.NewString()
	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)

	mux := http.NewServeMux()
	mux.HandleFunc(config.AuthCallbackRoute, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			errCh <- errors.New("state parameter mismatch")
			return
		}
		code := r.URL.Query().Get("code")
		if code == "" {
			http.Error(w, config.ErrAuthCodeMissing, http.StatusBadRequest)
			errCh <- errors.New(config.ErrAuthCodeMissing)
			return
		}
		fmt.Fprint(w, config.MsgAuthDone)
		codeCh <- code
	})

	server := &http.Server{
		Handler:      mux,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerWriteTimeout,
	}
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	authURL := a.cfg.AuthCodeURL(state, oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"))
	slog.Info(config.MsgAuthOpenURL,
		config.LogKeyComponent, config.CompAuth,
		config.LogKeyURL, authURL)
	fmt.Printf("%s:\n\n  %s\n\n", config.MsgAuthOpenURL, authURL)

	select {
	case code := <-codeCh:
		exchangeCtx, cancel := context.WithTimeout(ctx, config.HTTPTimeout)
		defer cancel()
		tok, err := a.cfg.Exchange(exchangeCtx, code)
		if err != nil {
			return err
		}
		return a.store.Save(tok)
	case err := <-errCh:
		return err
	case <-time.After(config.AuthFlowTimeout):
		return errors.New(config.ErrAuthTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// savingTokenSource persists tokens after refresh so a rotated refresh token
// is never lost.
type savingTokenSource struct {
	src   oauth2.TokenSource
	store *TokenStore

	mu   sync.Mutex
	last *oauth2.Token
}

func (s *savingTokenSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tok, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	if s.last == nil || tok.AccessToken != s.last.AccessToken {
		s.last = tok
		if err := s.store.Save(tok); err != nil {
			slog.Warn(config.MsgTokenSaved,
				config.LogKeyComponent, config.CompAuth,
				config.LogKeyError, err)
		}
	}
	return tok, nil
}
