package source

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/emersion/go-webdav/carddav"

	"github.com/tartampluch/go-contactcal/internal/config"
	"github.com/tartampluch/go-contactcal/internal/engine"
)

// basicAuthTransport adds Basic Auth and the application User-Agent to every
// request sent to the CardDAV server.
type basicAuthTransport struct {
	Username  string
	Password  string
	Transport http.RoundTripper
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Username != "" || t.Password != "" {
		req.SetBasicAuth(t.Username, t.Password)
	}
	req.Header.Set(config.HeaderUserAgent, config.UserAgent)
	return t.Transport.RoundTrip(req)
}

// CardDAVSource fetches contacts from a CardDAV server.
type CardDAVSource struct {
	client *carddav.Client

	// addressBookPath is resolved on first fetch and cached afterwards.
	addressBookPath string
}

// NewCardDAVSource creates a source for the given endpoint. Credentials may
// be empty for servers that do not require authentication.
func NewCardDAVSource(endpoint, username, password string) (*CardDAVSource, error) {
	httpClient := &http.Client{
		Timeout: config.HTTPTimeout,
		Transport: &basicAuthTransport{
			Username:  username,
			Password:  password,
			Transport: http.DefaultTransport,
		},
	}

	client, err := carddav.NewClient(httpClient, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create carddav client: %w", err)
	}

	return &CardDAVSource{client: client}, nil
}

// FetchContacts queries the server's first address book and maps every card
// onto the raw payload shape.
func (s *CardDAVSource) FetchContacts(ctx context.Context) ([]engine.RawContact, error) {
	if s.addressBookPath == "" {
		path, err := s.discoverAddressBook(ctx)
		if err != nil {
			return nil, err
		}
		s.addressBookPath = path
	}

	query := &carddav.AddressBookQuery{
		DataRequest: carddav.AddressDataRequest{AllProp: true},
	}
	objects, err := s.client.QueryAddressBook(ctx, s.addressBookPath, query)
	if err != nil {
		return nil, classifyDAVError("query address book", err)
	}

	var raws []engine.RawContact
	for _, obj := range objects {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if raw, ok := rawFromCard(obj.Card); ok {
			raws = append(raws, raw)
		}
	}

	slog.Debug(config.MsgContactsPage,
		config.LogKeyComponent, config.CompSource,
		config.LogKeyCount, len(raws))
	return raws, nil
}

// discoverAddressBook walks principal → home set → first address book.
func (s *CardDAVSource) discoverAddressBook(ctx context.Context) (string, error) {
	principal, err := s.client.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return "", classifyDAVError("find principal", err)
	}

	homeSet, err := s.client.FindAddressBookHomeSet(ctx, principal)
	if err != nil {
		return "", classifyDAVError("find address book home set", err)
	}

	books, err := s.client.FindAddressBooks(ctx, homeSet)
	if err != nil {
		return "", classifyDAVError("list address books", err)
	}
	if len(books) == 0 {
		return "", &TransientFetchError{Reason: config.ErrAddressBookNone}
	}

	return books[0].Path, nil
}

// classifyDAVError maps HTTP failures onto the coordinator's retry policies.
// go-webdav surfaces status failures as plain errors, so auth detection falls
// back to the status text; everything that is not an auth failure is
// retryable on the next tick.
func classifyDAVError(op string, err error) error {
	msg := err.Error()
	if strings.Contains(msg, "401") || strings.Contains(msg, "403") ||
		strings.Contains(msg, http.StatusText(http.StatusUnauthorized)) ||
		strings.Contains(msg, http.StatusText(http.StatusForbidden)) {
		return &AuthError{Reason: op, Err: err}
	}
	return &TransientFetchError{Reason: op, Err: err}
}
