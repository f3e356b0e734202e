// Package coordinator owns the set of live edit sessions: it creates them on
// demand, flushes and cancels them in bulk, restores drafts and reacts to
// connectivity changes.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/iudanet/fieldsync/internal/client/conflict"
	"github.com/iudanet/fieldsync/internal/client/connectivity"
	"github.com/iudanet/fieldsync/internal/client/retry"
	"github.com/iudanet/fieldsync/internal/client/session"
	"github.com/iudanet/fieldsync/internal/metrics"
	"github.com/iudanet/fieldsync/internal/models"
	"github.com/iudanet/fieldsync/internal/validation"
)

// ErrClosed is returned after Close.
var ErrClosed = errors.New("coordinator is closed")

// DraftStore is the draft persistence the coordinator needs.
type DraftStore interface {
	session.DraftStore
	LoadAll(ctx context.Context, entityID string) []models.DraftRecord
	Entities(ctx context.Context) []string
}

// Options configures a Coordinator. Remote and Policy are required.
type Options struct {
	Remote      session.RemoteSaver
	Drafts      DraftStore
	Gates       *validation.Registry
	Policy      *retry.Policy
	Signal      connectivity.Signal
	Metrics     *metrics.Engine
	Logger      *slog.Logger
	Window      time.Duration
	SaveTimeout time.Duration
}

// FlushSummary is the result of FlushAll.
type FlushSummary struct {
	// Err combines the errors of every failed session.
	Err     error
	Saved   []models.FieldKey
	Failed  []models.FieldKey
	Pending []models.FieldKey
}

type entry struct {
	session     *session.Session
	unsubscribe func()
}

// Coordinator is the registry of edit sessions.
type Coordinator struct {
	ctx         context.Context
	cancel      context.CancelFunc
	opts        Options
	logger      *slog.Logger
	resolver    *conflict.Resolver
	sessions    *xsync.MapOf[models.FieldKey, *entry]
	entities    *xsync.MapOf[string, struct{}]
	unsubscribe func()
	wg          sync.WaitGroup
	closed      atomic.Bool
}

// New creates a coordinator and subscribes it to the connectivity signal.
func New(opts Options) (*Coordinator, error) {
	if opts.Remote == nil {
		return nil, errors.New("coordinator requires a remote saver")
	}
	if opts.Policy == nil {
		return nil, errors.New("coordinator requires a retry policy")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		ctx:      ctx,
		cancel:   cancel,
		opts:     opts,
		logger:   opts.Logger,
		resolver: conflict.NewResolver(),
		sessions: xsync.NewMapOf[models.FieldKey, *entry](),
		entities: xsync.NewMapOf[string, struct{}](),
	}

	if opts.Signal != nil {
		c.unsubscribe = opts.Signal.Subscribe(c.onConnectivity)
	}

	return c, nil
}

// Open returns the session for field, creating it if needed. An existing
// session keeps its state; field is only used on creation.
func (c *Coordinator) Open(field models.EditableField) (*session.Session, error) {
	return c.open(field, false)
}

// OpenUnconfirmed is Open for a field whose remote state is not known, for
// example while the store is unreachable. Its value is never treated as
// already saved.
func (c *Coordinator) OpenUnconfirmed(field models.EditableField) (*session.Session, error) {
	return c.open(field, true)
}

// Lookup returns the session for key if one is open.
func (c *Coordinator) Lookup(key models.FieldKey) (*session.Session, bool) {
	e, ok := c.sessions.Load(key)
	if !ok {
		return nil, false
	}
	return e.session, true
}

// Sessions returns the open sessions of an entity ordered by field ID.
func (c *Coordinator) Sessions(entityID string) []*session.Session {
	var out []*session.Session
	c.sessions.Range(func(key models.FieldKey, e *entry) bool {
		if key.EntityID == entityID {
			out = append(out, e.session)
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		return out[i].Key().FieldID < out[j].Key().FieldID
	})
	return out
}

// Release closes and drops a settled session. Sessions with pending work
// are kept and Release reports false.
func (c *Coordinator) Release(key models.FieldKey) bool {
	var released *entry
	c.sessions.Compute(key, func(old *entry, loaded bool) (*entry, bool) {
		if !loaded {
			return old, true
		}
		if !old.session.State().Settled() {
			return old, false
		}
		released = old
		return old, true
	})

	if released == nil {
		return false
	}

	released.unsubscribe()
	released.session.Close()
	c.opts.Metrics.SessionReleased()
	return true
}

// FlushAll submits every pending save of an entity and waits for the
// sessions to settle or ctx to end.
func (c *Coordinator) FlushAll(ctx context.Context, entityID string) FlushSummary {
	start := time.Now()
	defer func() { c.opts.Metrics.ObserveFlush(time.Since(start)) }()

	var (
		summary FlushSummary
		mu      sync.Mutex
		g       errgroup.Group
	)

	online := c.online()
	for _, s := range c.Sessions(entityID) {
		g.Go(func() error {
			if online && s.State() == models.StateOffline {
				s.Resume()
			}
			s.FlushNow()
			waitErr := s.Wait(ctx)
			snap := s.Snapshot()

			mu.Lock()
			defer mu.Unlock()

			switch {
			case waitErr != nil:
				summary.Pending = append(summary.Pending, snap.Key)
			case snap.State == models.StateSaved:
				summary.Saved = append(summary.Saved, snap.Key)
			case snap.State == models.StateIdle:
				// Нечего сохранять
			default:
				summary.Failed = append(summary.Failed, snap.Key)
				summary.Err = multierr.Append(summary.Err, fmt.Errorf("%s: %w", snap.Key, snap.Err))
			}
			return nil
		})
	}
	_ = g.Wait()

	sortKeys(summary.Saved)
	sortKeys(summary.Failed)
	sortKeys(summary.Pending)

	c.logger.Info("Flushed entity",
		"entity_id", entityID,
		"saved", len(summary.Saved),
		"failed", len(summary.Failed),
		"pending", len(summary.Pending))

	return summary
}

// CancelAll abandons unsaved work in every session of an entity.
func (c *Coordinator) CancelAll(entityID string) {
	for _, s := range c.Sessions(entityID) {
		s.Cancel()
	}
}

// RestoreDrafts loads the persisted drafts of an entity into sessions.
// Saves are armed only while online. It returns the number of drafts applied.
func (c *Coordinator) RestoreDrafts(ctx context.Context, entityID string) (int, error) {
	if c.closed.Load() {
		return 0, ErrClosed
	}
	if c.opts.Drafts == nil {
		return 0, nil
	}

	arm := c.online()
	restored := 0
	for _, d := range c.opts.Drafts.LoadAll(ctx, entityID) {
		s, err := c.open(models.EditableField{
			EntityID: d.EntityID,
			FieldID:  d.FieldID,
			Version:  d.Version,
		}, true)
		if err != nil {
			return restored, err
		}

		applied := s.Restore(d, arm)
		c.opts.Metrics.ObserveRestore(applied)
		if applied {
			restored++
		}
	}

	if restored > 0 {
		c.logger.Info("Drafts restored", "entity_id", entityID, "count", restored, "armed", arm)
	}
	return restored, nil
}

// Close persists unsent edits as drafts and waits for in-flight saves until
// ctx ends; remaining calls are then cancelled.
func (c *Coordinator) Close(ctx context.Context) error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	if c.unsubscribe != nil {
		c.unsubscribe()
	}

	c.sessions.Range(func(_ models.FieldKey, e *entry) bool {
		e.unsubscribe()
		e.session.Close()
		return true
	})

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.cancel()
		return nil
	case <-ctx.Done():
		c.cancel()
		<-done
		return fmt.Errorf("failed to wait for in-flight saves: %w", ctx.Err())
	}
}

func (c *Coordinator) open(field models.EditableField, unconfirmed bool) (*session.Session, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	if err := validation.ValidateKey(field.EntityID, field.FieldID); err != nil {
		return nil, fmt.Errorf("invalid field key %s: %w", field.Key(), err)
	}

	e, loaded := c.sessions.LoadOrCompute(field.Key(), func() *entry {
		return c.newEntry(field, unconfirmed)
	})
	if !loaded {
		c.entities.Store(field.EntityID, struct{}{})
		c.opts.Metrics.SessionOpened()
		c.logger.Debug("Session opened", "entity_id", field.EntityID, "field_id", field.FieldID)
	}
	return e.session, nil
}

func (c *Coordinator) newEntry(field models.EditableField, unconfirmed bool) *entry {
	opts := session.Options{
		Context:     c.ctx,
		Remote:      c.opts.Remote,
		Gate:        c.opts.Gates.For(field.FieldID),
		Policy:      c.opts.Policy,
		Resolver:    c.resolver,
		Logger:      c.logger,
		Tracker:     &c.wg,
		Window:      c.opts.Window,
		SaveTimeout: c.opts.SaveTimeout,
		Unconfirmed: unconfirmed,
	}
	// Интерфейс с nil внутри не равен nil
	if c.opts.Drafts != nil {
		opts.Drafts = c.opts.Drafts
	}
	if c.opts.Signal != nil {
		opts.Online = c.opts.Signal.Online
	}

	s := session.New(field, opts)
	m := c.opts.Metrics
	unsubscribe := s.Subscribe(func(snap session.Snapshot) {
		m.ObserveState(snap.State)
		if snap.Retry != nil && snap.State == models.StateScheduled {
			m.ObserveRetry()
		}
	})

	return &entry{session: s, unsubscribe: unsubscribe}
}

func (c *Coordinator) online() bool {
	return c.opts.Signal == nil || c.opts.Signal.Online()
}

func (c *Coordinator) onConnectivity(online bool) {
	if c.closed.Load() {
		return
	}
	if !online {
		c.logger.Warn("Store unreachable, saves will be kept as drafts")
		return
	}

	c.logger.Info("Store reachable again, resuming sessions")

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.reconnect()
	}()
}

func (c *Coordinator) reconnect() {
	c.sessions.Range(func(_ models.FieldKey, e *entry) bool {
		e.session.Resume()
		return true
	})

	entities := map[string]struct{}{}
	c.entities.Range(func(id string, _ struct{}) bool {
		entities[id] = struct{}{}
		return true
	})
	if c.opts.Drafts != nil {
		for _, id := range c.opts.Drafts.Entities(c.ctx) {
			entities[id] = struct{}{}
		}
	}

	for id := range entities {
		if _, err := c.RestoreDrafts(c.ctx, id); err != nil {
			c.logger.Warn("Failed to restore drafts", "entity_id", id, "error", err)
			return
		}
	}
}

func sortKeys(keys []models.FieldKey) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].EntityID != keys[j].EntityID {
			return keys[i].EntityID < keys[j].EntityID
		}
		return keys[i].FieldID < keys[j].FieldID
	})
}
