// Package sync runs the poll-driven refresh cycles that keep the materialized
// event state in step with the remote address book.
//
// One Coordinator owns one subentry. Coordinators share nothing with each
// other; every cycle is strictly sequential (fetch, normalize, filter,
// materialize, diff) and only the network fetch can block. Readers access the
// state through an immutable snapshot pointer, so queries never contend with
// a cycle in flight.
package sync

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/tartampluch/go-contactcal/internal/config"
	"github.com/tartampluch/go-contactcal/internal/engine"
	"github.com/tartampluch/go-contactcal/internal/source"
)

// forceQueueSize bounds concurrently waiting ForceRefresh callers.
const forceQueueSize = 16

// snapshot is the immutable result of one successful cycle. Queries operate
// on the snapshot current at call time; a cycle publishing a new snapshot
// never mutates a published one.
type snapshot struct {
	contacts  []engine.Contact
	events    map[engine.EventKey]engine.CalendarEvent
	fetchedAt time.Time
}

// Coordinator drives the periodic sync of one subentry. It owns the snapshot
// exclusively; the host reads through EventsBetween and subscribes to deltas
// through OnChange.
type Coordinator struct {
	sub      config.Subentry
	src      source.ContactSource
	clock    engine.Clock
	schedule cron.Schedule

	snap    atomic.Pointer[snapshot]
	running atomic.Bool

	// force carries pending ForceRefresh waiters into the run loop. Requests
	// arriving while a cycle is in flight are answered with that cycle's
	// outcome instead of starting a second one.
	force chan chan error

	mu       sync.Mutex
	lastErr  error
	onChange []func(engine.Delta)
	onSync   []func()
}

// New validates nothing: the subentry is assumed to have passed
// config.Validate before the coordinator is constructed. Only the refresh
// schedule is parsed here because the run loop needs its compiled form.
func New(sub config.Subentry, src source.ContactSource, clock engine.Clock) (*Coordinator, error) {
	schedule, err := cron.ParseStandard(sub.Refresh)
	if err != nil {
		return nil, err
	}
	return &Coordinator{
		sub:      sub,
		src:      src,
		clock:    clock,
		schedule: schedule,
		force:    make(chan chan error, forceQueueSize),
	}, nil
}

// Name returns the subentry name the coordinator serves.
func (c *Coordinator) Name() string {
	return c.sub.Name
}

// OnChange registers a callback invoked after every cycle that produced a
// non-empty delta. Callbacks run synchronously on the coordinator goroutine;
// keep them short. Unchanged cycles never invoke callbacks.
func (c *Coordinator) OnChange(fn func(engine.Delta)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = append(c.onChange, fn)
}

// OnSync registers a callback invoked after every successful cycle, changed
// or not. Hosts that re-render derived state (such as a served feed) from the
// snapshot subscribe here; OnChange stays reserved for delta consumers.
func (c *Coordinator) OnSync(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onSync = append(c.onSync, fn)
}

// SyncOnce runs a single cycle outside the scheduling loop. Used by one-shot
// invocations; Run must not be active on the same coordinator.
func (c *Coordinator) SyncOnce(ctx context.Context) error {
	return c.runCycle(ctx)
}

// Run executes the sync loop until ctx is cancelled. An initial cycle runs
// immediately; afterwards cycles follow the subentry's refresh schedule. A
// schedule tick can never overlap a cycle because the loop is a single
// goroutine, which gives the one-in-flight guarantee for free.
func (c *Coordinator) Run(ctx context.Context) error {
	c.running.Store(true)
	defer c.running.Store(false)

	slog.Info(config.MsgCoordStart,
		config.LogKeyComponent, config.CompSync,
		config.LogKeySubentry, c.sub.Name,
		config.LogKeyRefresh, c.sub.Refresh)

	c.runCycle(ctx)

	for {
		now := c.clock.Now()
		timer := time.NewTimer(c.schedule.Next(now).Sub(now))

		select {
		case <-ctx.Done():
			timer.Stop()
			slog.Info(config.MsgCoordStop,
				config.LogKeyComponent, config.CompSync,
				config.LogKeySubentry, c.sub.Name)
			return ctx.Err()

		case <-timer.C:
			c.runCycle(ctx)

		case waiter := <-c.force:
			timer.Stop()
			slog.Debug(config.MsgForceRefresh,
				config.LogKeyComponent, config.CompSync,
				config.LogKeySubentry, c.sub.Name)
			waiter <- c.runCycle(ctx)
		}
	}
}

// ForceRefresh requests an out-of-cycle sync and blocks until that cycle's
// outcome is known. A request arriving while a cycle is already in flight is
// answered with the in-flight cycle's outcome.
func (c *Coordinator) ForceRefresh(ctx context.Context) error {
	if !c.running.Load() {
		return errors.New(config.ErrNotRunning)
	}

	reply := make(chan error, 1)
	select {
	case c.force <- reply:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// EventsBetween returns every event occurrence intersecting [start, end),
// ordered by date then key. Before the first successful sync it returns an
// empty sequence. It is read-only and side-effect free.
func (c *Coordinator) EventsBetween(start, end time.Time) []engine.CalendarEvent {
	snap := c.snap.Load()
	if snap == nil {
		return nil
	}
	return engine.MaterializeWindow(snap.contacts, c.sub, start, end)
}

// Events returns the current materialized mapping, keyed by event identity.
// The returned map is the snapshot's own; callers must not mutate it.
func (c *Coordinator) Events() map[engine.EventKey]engine.CalendarEvent {
	snap := c.snap.Load()
	if snap == nil {
		return nil
	}
	return snap.events
}

// LastError reports the failure recorded by the most recent cycle, nil after
// a successful one. A non-nil value with a non-zero LastSync means the
// queryable data is stale but intact.
func (c *Coordinator) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// LastSync reports when the current snapshot was fetched. ok is false before
// the first successful sync.
func (c *Coordinator) LastSync() (time.Time, bool) {
	snap := c.snap.Load()
	if snap == nil {
		return time.Time{}, false
	}
	return snap.fetchedAt, true
}

// runCycle executes one full fetch-to-diff pass. Failures leave the previous
// snapshot untouched; a partial snapshot is never published. Force waiters
// that queued up while the cycle ran are answered with its outcome.
func (c *Coordinator) runCycle(ctx context.Context) error {
	err := c.cycle(ctx)

	for {
		select {
		case waiter := <-c.force:
			waiter <- err
		default:
			return err
		}
	}
}

func (c *Coordinator) cycle(ctx context.Context) error {
	cycleID := uuid.NewString()
	ref := c.clock.Now()
	started := time.Now()

	slog.Info(config.MsgSyncStarted,
		config.LogKeyComponent, config.CompSync,
		config.LogKeySubentry, c.sub.Name,
		config.LogKeyCycle, cycleID)

	fetchCtx, cancel := context.WithTimeout(ctx, config.FetchTimeout)
	defer cancel()

	raws, err := c.src.FetchContacts(fetchCtx)
	if err != nil {
		c.recordError(err)
		_, stale := c.LastSync()
		slog.Error(config.MsgSyncFailed,
			config.LogKeyComponent, config.CompSync,
			config.LogKeySubentry, c.sub.Name,
			config.LogKeyCycle, cycleID,
			config.LogKeyStale, stale,
			config.LogKeyError, err)
		return err
	}

	contacts := make([]engine.Contact, 0, len(raws))
	skipped := 0
	for _, raw := range raws {
		contact, err := engine.Normalize(raw)
		if err != nil {
			skipped++
			slog.Warn(config.MsgSkippedRecord,
				config.LogKeyComponent, config.CompSync,
				config.LogKeySubentry, c.sub.Name,
				config.LogKeyCycle, cycleID,
				config.LogKeyError, err)
			continue
		}
		contacts = append(contacts, contact)
	}

	events := engine.Materialize(contacts, c.sub, ref)

	var previous map[engine.EventKey]engine.CalendarEvent
	if snap := c.snap.Load(); snap != nil {
		previous = snap.events
	}
	delta := engine.Diff(previous, events)

	c.snap.Store(&snapshot{
		contacts:  contacts,
		events:    events,
		fetchedAt: ref,
	})
	c.recordError(nil)

	if delta.Empty() {
		slog.Debug(config.MsgSyncUnchanged,
			config.LogKeyComponent, config.CompSync,
			config.LogKeySubentry, c.sub.Name,
			config.LogKeyCycle, cycleID)
	} else {
		c.notify(delta)
		slog.Info(config.MsgDeltaNotified,
			config.LogKeyComponent, config.CompSync,
			config.LogKeySubentry, c.sub.Name,
			config.LogKeyCycle, cycleID,
			config.LogKeyAdded, len(delta.Added),
			config.LogKeyRemoved, len(delta.Removed),
			config.LogKeyUpdated, len(delta.Updated))
	}

	c.mu.Lock()
	synced := make([]func(), len(c.onSync))
	copy(synced, c.onSync)
	c.mu.Unlock()
	for _, fn := range synced {
		fn()
	}

	slog.Info(config.MsgSyncSuccess,
		config.LogKeyComponent, config.CompSync,
		config.LogKeySubentry, c.sub.Name,
		config.LogKeyCycle, cycleID,
		config.LogKeyTotal, len(raws),
		config.LogKeySkipped, skipped,
		config.LogKeyEvents, len(events),
		config.LogKeyDuration, time.Since(started).Milliseconds())

	return nil
}

func (c *Coordinator) recordError(err error) {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
}

func (c *Coordinator) notify(delta engine.Delta) {
	c.mu.Lock()
	callbacks := make([]func(engine.Delta), len(c.onChange))
	copy(callbacks, c.onChange)
	c.mu.Unlock()

	for _, fn := range callbacks {
		fn(delta)
	}
}
