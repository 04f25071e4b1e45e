// Package server exposes the rendered feeds over HTTP for calendar clients
// that subscribe by URL.
package server

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/tartampluch/go-contactcal/internal/config"
)

// cacheItem stores one rendered feed body and its HTTP caching metadata.
type cacheItem struct {
	data         []byte
	etag         string
	lastModified string // RFC1123 format required by HTTP headers
}

// feedCache holds the served bytes for one subentry. atomic.Pointer gives
// lock-free reads on the hot path; feeds are read often and updated only
// after a sync cycle.
type feedCache struct {
	cache atomic.Pointer[cacheItem]
}

// FeedServer serves one iCalendar feed per subentry at /<name>.ics.
type FeedServer struct {
	Addr string

	// feeds is fixed at construction; subentries cannot appear at runtime.
	feeds map[string]*feedCache
}

// NewFeedServer creates a server for the given subentry names.
func NewFeedServer(addr string, names []string) *FeedServer {
	feeds := make(map[string]*feedCache, len(names))
	for _, name := range names {
		feeds[name] = &feedCache{}
	}
	return &FeedServer{Addr: addr, feeds: feeds}
}

// Start runs the HTTP server and blocks until the context is cancelled.
func (s *FeedServer) Start(ctx context.Context) error {
	if s.Addr == "" {
		return errors.New(config.ErrListenRequired)
	}

	mux := http.NewServeMux()
	mux.HandleFunc(config.RouteRoot, s.handleRequest)

	srv := &http.Server{
		Addr:         s.Addr,
		Handler:      mux,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerWriteTimeout,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	serverError := make(chan error, 1)

	go func() {
		slog.Info(config.MsgServerListen,
			config.LogKeyComponent, config.CompServer,
			config.LogKeyListen, s.Addr,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverError <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info(config.MsgServerStop, config.LogKeyComponent, config.CompServer)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("%s: %w", config.ErrServerShutdown, err)
		}
		return nil

	case err := <-serverError:
		return fmt.Errorf("%s: %w", config.ErrServerStartup, err)
	}
}

// Update atomically replaces the served content for one feed. Unknown feed
// names are ignored; the feed set is fixed at construction.
func (s *FeedServer) Update(name string, data []byte) {
	feed, ok := s.feeds[name]
	if !ok {
		return
	}

	hash := sha256.Sum256(data)
	item := &cacheItem{
		data:         data,
		etag:         fmt.Sprintf(config.FormatETag, hex.EncodeToString(hash[:])),
		lastModified: time.Now().UTC().Format(http.TimeFormat),
	}

	// Readers see either the old or the new complete item, never a partial one.
	feed.cache.Store(item)

	slog.Debug(config.MsgFeedUpdated,
		config.LogKeyComponent, config.CompServer,
		config.LogKeySubentry, name,
		config.LogKeySizeBytes, len(data),
		config.LogKeyETag, item.etag,
	)
}

// handleRequest routes /<name>.ics to its feed. The root path lists the
// available feed paths as plain text so a subscribing user can discover them.
func (s *FeedServer) handleRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set(config.HeaderAllow, config.AllowedMethods)
		http.Error(w, config.HTTPMsgMethodNotAllowed, http.StatusMethodNotAllowed)
		return
	}

	if r.URL.Path == config.RouteRoot {
		s.handleIndex(w, r)
		return
	}

	name := strings.TrimPrefix(r.URL.Path, config.RouteRoot)
	name = strings.TrimSuffix(name, config.RouteFeedSuffix)
	feed, ok := s.feeds[name]
	if !ok {
		http.Error(w, config.HTTPMsgNoFeed, http.StatusNotFound)
		return
	}

	item := feed.cache.Load()
	if item == nil {
		w.Header().Set(config.HeaderRetryAfter, config.RetryAfterSeconds)
		http.Error(w, config.HTTPMsgInitializing, http.StatusServiceUnavailable)
		return
	}

	w.Header().Set(config.HeaderContentType, config.MimeTextCalendar)
	w.Header().Set(config.HeaderXContentType, config.MimeNoSniff)
	w.Header().Set(config.HeaderCacheControl, config.CacheControlPrivate)
	w.Header().Set(config.HeaderETag, item.etag)
	w.Header().Set(config.HeaderLastModified, item.lastModified)

	if match := r.Header.Get(config.HeaderIfNoneMatch); match == item.etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	if since := r.Header.Get(config.HeaderIfModifiedSince); since != "" {
		if clientTime, err := time.Parse(http.TimeFormat, since); err == nil {
			if serverTime, err := time.Parse(http.TimeFormat, item.lastModified); err == nil {
				if !serverTime.After(clientTime) {
					w.WriteHeader(http.StatusNotModified)
					return
				}
			}
		}
	}

	if r.Method == http.MethodGet {
		if _, err := io.Copy(w, bytes.NewReader(item.data)); err != nil {
			slog.Error(config.ErrWriteResp,
				config.LogKeyComponent, config.CompServer,
				config.LogKeyError, err,
			)
		}
	}
}

func (s *FeedServer) handleIndex(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(s.feeds))
	for name := range s.feeds {
		names = append(names, name)
	}
	sort.Strings(names)

	w.Header().Set(config.HeaderContentType, "text/plain; charset=utf-8")
	if r.Method == http.MethodHead {
		return
	}
	for _, name := range names {
		fmt.Fprintf(w, "%s%s%s\n", config.RouteRoot, name, config.RouteFeedSuffix)
	}
}
