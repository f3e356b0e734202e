// Package session implements the per-field edit session: the state machine
// that turns a stream of local edits into debounced, validated, versioned
// saves against the remote store.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/iudanet/fieldsync/internal/client/conflict"
	"github.com/iudanet/fieldsync/internal/client/retry"
	"github.com/iudanet/fieldsync/internal/client/scheduler"
	"github.com/iudanet/fieldsync/internal/models"
	"github.com/iudanet/fieldsync/internal/syncerr"
	"github.com/iudanet/fieldsync/internal/validation"
)

//go:generate moq -out remote_saver_mock.go . RemoteSaver
//go:generate moq -out draft_store_mock.go . DraftStore

// DefaultSaveTimeout bounds a single remote call.
const DefaultSaveTimeout = 10 * time.Second

var (
	// ErrNoConflict is returned by conflict resolution calls outside the conflict state.
	ErrNoConflict = errors.New("session is not in conflict")
	// ErrClosed is returned by operations on a closed session.
	ErrClosed = errors.New("session is closed")
	// ErrOffline is recorded when a save is attempted while disconnected.
	ErrOffline = errors.New("store is unreachable")
)

// RemoteSaver performs conditional writes against the remote store.
type RemoteSaver interface {
	Save(ctx context.Context, req models.SaveRequest) (models.SaveResult, error)
}

// DraftStore persists unsent edits.
type DraftStore interface {
	Save(ctx context.Context, draft models.DraftRecord) error
	Delete(ctx context.Context, entityID, fieldID string) error
}

// Options wires a session to its collaborators. Remote and Policy are required.
type Options struct {
	Context  context.Context // Context ограничивает время жизни фоновых сохранений
	Remote   RemoteSaver
	Drafts   DraftStore
	Gate     *validation.Gate
	Policy   *retry.Policy
	Resolver *conflict.Resolver
	Logger   *slog.Logger
	// Online reports current connectivity. Nil means always online.
	Online func() bool
	// Tracker counts in-flight saves so an owner can wait for them on shutdown.
	Tracker     *sync.WaitGroup
	Now         func() time.Time
	Window      time.Duration
	SaveTimeout time.Duration
	// Unconfirmed marks the initial value as not known to match the store,
	// as with sessions rebuilt from drafts.
	Unconfirmed bool
}

// Snapshot is a consistent copy of the session state.
type Snapshot struct {
	Err             error
	Conflict        *models.ConflictToken
	Retry           *models.RetryState
	DraftErr        error
	Key             models.FieldKey
	Value           string
	RemoteValue     string
	ConflictValue   string
	OperationID     string
	Version         int64
	ConflictVersion int64
	State           models.State
	DraftSaved      bool
}

// Session tracks one field being edited. Operations are safe for concurrent
// use; listeners run outside the session lock.
type Session struct {
	ctx         context.Context
	remote      RemoteSaver
	drafts      DraftStore
	gate        *validation.Gate
	policy      *retry.Policy
	resolver    *conflict.Resolver
	logger      *slog.Logger
	online      func() bool
	now         func() time.Time
	tracker     *sync.WaitGroup
	sched       *scheduler.Scheduler
	saveTimeout time.Duration

	mu    sync.Mutex
	field models.EditableField
	state models.State
	seq   uint64 // seq растёт с каждой правкой; ответ на операцию с меньшим seq устарел

	remoteValue string
	remoteKnown bool

	err             error
	conflict        *models.ConflictToken
	conflictValue   string
	conflictVersion int64
	retry           *models.RetryState
	current         *models.SaveOperation

	inFlight bool
	resubmit bool
	closed   bool

	draftSaved bool
	draftMaybe bool // на диске может лежать черновик от прошлого запуска
	draftErr   error

	settled   chan struct{}
	listeners map[int]func(Snapshot)
	nextID    int
	events    []Snapshot
}

// New creates an idle session for field. The field's value and version are
// taken as the last confirmed remote state.
func New(field models.EditableField, opts Options) *Session {
	s := &Session{
		ctx:         opts.Context,
		remote:      opts.Remote,
		drafts:      opts.Drafts,
		gate:        opts.Gate,
		policy:      opts.Policy,
		resolver:    opts.Resolver,
		logger:      opts.Logger,
		online:      opts.Online,
		now:         opts.Now,
		tracker:     opts.Tracker,
		saveTimeout: opts.SaveTimeout,
		field:       field,
		state:       models.StateIdle,
		remoteKnown: !opts.Unconfirmed,
		draftMaybe:  true,
		listeners:   make(map[int]func(Snapshot)),
	}

	if s.remoteKnown {
		s.remoteValue = field.Value
	}
	if s.ctx == nil {
		s.ctx = context.Background()
	}
	if s.resolver == nil {
		s.resolver = conflict.NewResolver()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.tracker == nil {
		s.tracker = &sync.WaitGroup{}
	}
	if s.saveTimeout <= 0 {
		s.saveTimeout = DefaultSaveTimeout
	}
	s.logger = s.logger.With("entity_id", field.EntityID, "field_id", field.FieldID)
	s.sched = scheduler.New(opts.Window, s.commit)

	return s
}

// Key returns the field key.
func (s *Session) Key() models.FieldKey {
	return s.field.Key()
}

// State returns the current state.
func (s *Session) State() models.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Snapshot returns a copy of the session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe registers fn to receive a snapshot after every state change.
// fn must not block. The returned function removes the subscription.
func (s *Session) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Edit records a new local value, validates it and restarts the settle window.
// An invalid value is held locally and never sent.
func (s *Session) Edit(value string) error {
	s.mu.Lock()
	defer s.unlock()

	if s.closed {
		return ErrClosed
	}

	s.seq++
	s.field.Value = value
	s.clearFailureLocked()
	s.sched.Cancel()
	s.setState(models.StateEditing)
	s.validateLocked()

	return nil
}

// Validate runs the gate against the current value. While editing it drives
// the same transition as an edit; in other states it only reports the result.
func (s *Session) Validate() error {
	s.mu.Lock()
	defer s.unlock()

	if s.state == models.StateEditing {
		s.validateLocked()
	}
	return s.gate.Err(s.field.FieldID, s.gate.Check(s.field.Value))
}

// FlushNow skips the remaining settle window and submits immediately.
// It reports whether a save was pending.
func (s *Session) FlushNow() bool {
	// Без s.mu: FlushNow планировщика вызывает commit, который берёт lock сам
	return s.sched.FlushNow()
}

// Flush submits any pending save and waits for the session to settle.
// It returns the error the session settled with.
func (s *Session) Flush(ctx context.Context) error {
	s.FlushNow()
	if err := s.Wait(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == models.StateSaved || s.state == models.StateIdle {
		return nil
	}
	return s.err
}

// Wait blocks until the session reaches a settled state or ctx is done.
func (s *Session) Wait(ctx context.Context) error {
	for {
		s.mu.Lock()
		if s.state.Settled() {
			s.mu.Unlock()
			return nil
		}
		ch := s.settled
		s.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// KeepLocal resolves a conflict by resubmitting the local value on top of
// the version the store reported.
func (s *Session) KeepLocal() error {
	s.mu.Lock()
	defer s.unlock()

	if s.closed {
		return ErrClosed
	}
	if s.state != models.StateConflict {
		return ErrNoConflict
	}

	s.logger.Info("Keeping local value over remote",
		"remote_version", s.conflictVersion)

	s.field.Version = s.conflictVersion
	s.clearFailureLocked()
	s.sched.Cancel()
	s.setState(models.StateScheduled)
	s.commitLocked()

	return nil
}

// DiscardLocal resolves a conflict by adopting the remote value.
func (s *Session) DiscardLocal() error {
	s.mu.Lock()
	defer s.unlock()

	if s.state != models.StateConflict {
		return ErrNoConflict
	}

	s.logger.Info("Discarding local value in favour of remote",
		"remote_version", s.conflictVersion)

	s.field.Value = s.conflictValue
	s.field.Version = s.conflictVersion
	s.remoteValue = s.conflictValue
	s.remoteKnown = true
	s.clearFailureLocked()
	s.clearDraftLocked()
	s.setState(models.StateIdle)

	return nil
}

// Cancel abandons unsaved work: the pending timer is stopped, any in-flight
// response is ignored and the value reverts to the last known remote value.
// When the remote value was never confirmed the current value is kept.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.unlock()

	if s.state.Terminal() {
		return
	}

	s.seq++
	s.sched.Cancel()
	switch {
	case s.state == models.StateConflict:
		// Последнее известное состояние сервера пришло вместе с конфликтом
		s.field.Value = s.conflictValue
		s.field.Version = s.conflictVersion
		s.remoteValue = s.conflictValue
		s.remoteKnown = true
	case s.remoteKnown:
		s.field.Value = s.remoteValue
	}
	s.resubmit = false
	s.clearFailureLocked()
	s.clearDraftLocked()
	s.setState(models.StateIdle)
}

// Restore loads a persisted draft into the session. With arm set the save is
// submitted right away, otherwise it waits for Resume or FlushNow. Sessions
// with newer in-memory work ignore the draft and report false.
func (s *Session) Restore(draft models.DraftRecord, arm bool) bool {
	s.mu.Lock()
	defer s.unlock()

	if s.closed || s.inFlight {
		return false
	}
	switch s.state {
	case models.StateIdle, models.StateSaved, models.StateOffline:
	default:
		return false
	}

	s.seq++
	s.field.Value = draft.Value
	// Черновик с уже подтвержденным значением не откатывает версию назад,
	// иначе следующая правка конфликтует с нашей же записью
	if !s.remoteKnown || draft.Value != s.remoteValue || draft.Version > s.field.Version {
		s.field.Version = draft.Version
	}
	s.draftSaved = true
	s.draftMaybe = true
	s.clearFailureLocked()
	s.setState(models.StateScheduled)

	if arm {
		s.sched.ScheduleAfter(0)
	} else {
		s.sched.Hold()
	}

	s.logger.Info("Draft restored", "version", draft.Version, "armed", arm)
	return true
}

// Resume restarts saving after connectivity returns.
func (s *Session) Resume() {
	s.mu.Lock()
	defer s.unlock()

	if s.closed {
		return
	}

	switch s.state {
	case models.StateOffline:
		s.retry = nil
		s.err = nil
		s.setState(models.StateScheduled)
		s.sched.ScheduleAfter(0)
	case models.StateScheduled:
		// Ожидающий backoff больше не нужен: связь вернулась
		if !s.inFlight {
			s.sched.ScheduleAfter(0)
		}
	}
}

// Close stops the session. Edits that were never confirmed are persisted as
// a draft so they survive a restart.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.unlock()

	if s.closed {
		return
	}
	s.closed = true
	s.sched.Cancel()
	s.listeners = map[int]func(Snapshot){}

	switch s.state {
	case models.StateEditing, models.StateValidating, models.StateScheduled, models.StateSaving:
		if s.remoteKnown && s.field.Value == s.remoteValue {
			return
		}
		s.persistDraftLocked()
	}
}

func (s *Session) validateLocked() bool {
	s.setState(models.StateValidating)

	res := s.gate.Check(s.field.Value)
	if !res.Accepted() {
		s.err = s.gate.Err(s.field.FieldID, res)
		s.logger.Debug("Value rejected by validation", "reasons", len(res.Reasons))
		s.setState(models.StateError)
		return false
	}

	s.setState(models.StateScheduled)
	s.sched.Schedule()
	return true
}

// commit is the scheduler callback.
func (s *Session) commit() {
	s.mu.Lock()
	defer s.unlock()

	if s.closed || s.state != models.StateScheduled {
		return
	}
	if s.inFlight {
		// Один запрос на поле: отправим после ответа
		s.resubmit = true
		return
	}
	s.commitLocked()
}

func (s *Session) commitLocked() {
	if s.remoteKnown && s.field.Value == s.remoteValue {
		s.logger.Debug("Value matches confirmed remote value, nothing to save")
		s.clearDraftLocked()
		s.setState(models.StateSaved)
		return
	}

	if s.online != nil && !s.online() {
		s.goOfflineLocked(&syncerr.NetworkError{Op: "save", Err: ErrOffline})
		return
	}

	attempt := 1
	if s.retry != nil {
		attempt = s.retry.Attempt + 1
	}

	op := models.NewSaveOperation(s.field, attempt, s.seq, s.now())
	s.current = &op
	s.inFlight = true
	s.setState(models.StateSaving)

	s.logger.Debug("Submitting save",
		"operation_id", op.ID,
		"version", op.Version,
		"attempt", op.Attempt)

	s.tracker.Add(1)
	go s.run(op)
}

func (s *Session) run(op models.SaveOperation) {
	defer s.tracker.Done()

	ctx, cancel := context.WithTimeout(s.ctx, s.saveTimeout)
	res, err := s.remote.Save(ctx, models.RequestFor(op))
	cancel()

	s.apply(op, res, err)
}

func (s *Session) apply(op models.SaveOperation, res models.SaveResult, err error) {
	s.mu.Lock()
	defer s.unlock()

	s.inFlight = false

	if op.Seq != s.seq {
		s.applyStaleLocked(op, res, err)
		return
	}
	s.resubmit = false

	if s.closed {
		if err == nil && !s.resolver.Resolve(op.Version, res.ObservedVersion).IsConflict() {
			s.clearDraftLocked()
		}
		return
	}

	if err != nil {
		s.handleFailureLocked(op, err)
		return
	}
	s.handleSuccessLocked(op, res)
}

// applyStaleLocked handles a response to a superseded operation. The current
// value and state are left alone; a clean write still advances the known
// remote version so the next save does not conflict with itself.
func (s *Session) applyStaleLocked(op models.SaveOperation, res models.SaveResult, err error) {
	s.logger.Debug("Ignoring response to superseded save", "operation_id", op.ID)

	if err == nil && !s.resolver.Resolve(op.Version, res.ObservedVersion).IsConflict() {
		s.remoteValue = op.Value
		s.remoteKnown = true
		if res.Version > s.field.Version {
			s.field.Version = res.Version
		}
		if s.state == models.StateIdle && !s.closed {
			// После Cancel последнее известное значение сервера уже новое
			s.field.Value = op.Value
		}
	}

	if s.resubmit && !s.closed && s.state == models.StateScheduled {
		s.resubmit = false
		s.commitLocked()
	}
}

func (s *Session) handleSuccessLocked(op models.SaveOperation, res models.SaveResult) {
	outcome := s.resolver.Resolve(op.Version, res.ObservedVersion)
	if outcome.IsConflict() {
		s.enterConflictLocked(&syncerr.ConflictError{
			LocalValue:    op.Value,
			RemoteValue:   res.Value,
			Token:         *outcome.Token,
			RemoteVersion: res.Version,
		})
		return
	}

	s.field.Version = res.Version
	s.remoteValue = op.Value
	s.remoteKnown = true
	s.clearFailureLocked()
	s.clearDraftLocked()
	s.setState(models.StateSaved)

	s.logger.Info("Field saved", "version", res.Version, "attempt", op.Attempt)
}

func (s *Session) handleFailureLocked(op models.SaveOperation, err error) {
	switch syncerr.Classify(err) {
	case syncerr.KindConflict:
		var conflictErr *syncerr.ConflictError
		errors.As(err, &conflictErr)
		ce := *conflictErr
		if ce.LocalValue == "" {
			ce.LocalValue = op.Value
		}
		s.enterConflictLocked(&ce)
	case syncerr.KindValidation:
		var validationErr *syncerr.ValidationError
		errors.As(err, &validationErr)
		s.err = s.gate.Err(s.field.FieldID, s.gate.Interpret(validationErr.Reasons))
		s.logger.Warn("Store rejected value", "error", s.err)
		s.setState(models.StateError)
	case syncerr.KindPermission, syncerr.KindStorage:
		s.err = err
		s.logger.Warn("Save refused", "error", err)
		s.setState(models.StateError)
	default:
		if s.ctx.Err() != nil {
			// Владелец завершает работу: правку сохраняем локально
			s.goOfflineLocked(err)
			return
		}

		d := s.policy.Decide(op.Attempt, err)
		if !d.Retry {
			s.logger.Warn("Giving up on save", "attempt", op.Attempt, "error", err)
			s.goOfflineLocked(err)
			return
		}

		s.retry = &models.RetryState{
			Attempt:        op.Attempt,
			NextEligibleAt: s.now().Add(d.After),
			LastError:      err,
		}
		s.err = err
		s.logger.Warn("Save failed, retrying",
			"attempt", op.Attempt,
			"delay", d.After,
			"error", err)
		s.setState(models.StateScheduled)
		s.sched.ScheduleAfter(d.After)
	}
}

func (s *Session) enterConflictLocked(ce *syncerr.ConflictError) {
	s.retry = nil
	s.err = ce
	token := ce.Token
	s.conflict = &token
	s.conflictValue = ce.RemoteValue
	s.conflictVersion = ce.RemoteVersion
	s.logger.Warn("Save conflicted with remote change",
		"expected", ce.Token.Expected,
		"remote_version", ce.RemoteVersion)
	s.setState(models.StateConflict)
}

func (s *Session) goOfflineLocked(err error) {
	s.retry = nil
	s.err = err
	s.persistDraftLocked()
	s.setState(models.StateOffline)
}

func (s *Session) persistDraftLocked() {
	if s.drafts == nil {
		return
	}

	draft := models.DraftRecord{
		EntityID: s.field.EntityID,
		FieldID:  s.field.FieldID,
		Value:    s.field.Value,
		Version:  s.field.Version,
	}
	if err := s.drafts.Save(context.WithoutCancel(s.ctx), draft); err != nil {
		// Сессия продолжает работать в памяти
		s.draftErr = err
		s.draftSaved = false
		s.logger.Error("Failed to persist draft", "error", err)
		return
	}

	s.draftErr = nil
	s.draftSaved = true
	s.draftMaybe = true
	s.logger.Info("Draft saved locally", "version", draft.Version)
}

func (s *Session) clearDraftLocked() {
	if s.drafts == nil || !s.draftMaybe {
		return
	}
	if err := s.drafts.Delete(context.WithoutCancel(s.ctx), s.field.EntityID, s.field.FieldID); err != nil {
		s.draftErr = err
		s.logger.Error("Failed to delete draft", "error", err)
		return
	}
	s.draftErr = nil
	s.draftSaved = false
	s.draftMaybe = false
}

func (s *Session) clearFailureLocked() {
	s.err = nil
	s.retry = nil
	s.conflict = nil
	s.conflictValue = ""
	s.conflictVersion = 0
}

func (s *Session) setState(state models.State) {
	s.state = state

	if state.Settled() {
		if s.settled != nil {
			close(s.settled)
			s.settled = nil
		}
	} else if s.settled == nil {
		s.settled = make(chan struct{})
	}

	if len(s.listeners) > 0 {
		s.events = append(s.events, s.snapshotLocked())
	}
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		Key:             s.field.Key(),
		State:           s.state,
		Value:           s.field.Value,
		RemoteValue:     s.remoteValue,
		Version:         s.field.Version,
		Err:             s.err,
		ConflictValue:   s.conflictValue,
		ConflictVersion: s.conflictVersion,
		DraftSaved:      s.draftSaved,
		DraftErr:        s.draftErr,
	}
	if s.conflict != nil {
		token := *s.conflict
		snap.Conflict = &token
	}
	if s.retry != nil {
		r := *s.retry
		snap.Retry = &r
	}
	if s.current != nil {
		snap.OperationID = s.current.ID
	}
	return snap
}

// unlock releases the session lock and delivers queued notifications.
func (s *Session) unlock() {
	events := s.events
	s.events = nil

	var listeners []func(Snapshot)
	if len(events) > 0 {
		listeners = make([]func(Snapshot), 0, len(s.listeners))
		for _, fn := range s.listeners {
			listeners = append(listeners, fn)
		}
	}
	s.mu.Unlock()

	for _, ev := range events {
		for _, fn := range listeners {
			fn(ev)
		}
	}
}
