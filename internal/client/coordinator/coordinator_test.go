package coordinator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/fieldsync/internal/client/connectivity"
	"github.com/iudanet/fieldsync/internal/client/drafts"
	"github.com/iudanet/fieldsync/internal/client/retry"
	"github.com/iudanet/fieldsync/internal/client/session"
	"github.com/iudanet/fieldsync/internal/client/storage/memory"
	"github.com/iudanet/fieldsync/internal/metrics"
	"github.com/iudanet/fieldsync/internal/models"
	"github.com/iudanet/fieldsync/internal/syncerr"
	"github.com/iudanet/fieldsync/internal/validation"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

// memoryRemote applies conditional writes to an in-memory table.
type memoryRemote struct {
	fail     func(req models.SaveRequest) error
	versions map[models.FieldKey]int64
	calls    int
	mu       sync.Mutex
}

func newMemoryRemote() *memoryRemote {
	return &memoryRemote{versions: map[models.FieldKey]int64{}}
}

func (m *memoryRemote) saver() *session.RemoteSaverMock {
	return &session.RemoteSaverMock{
		SaveFunc: func(ctx context.Context, req models.SaveRequest) (models.SaveResult, error) {
			m.mu.Lock()
			m.calls++
			fail := m.fail
			m.mu.Unlock()

			if fail != nil {
				if err := fail(req); err != nil {
					return models.SaveResult{}, err
				}
			}

			m.mu.Lock()
			defer m.mu.Unlock()

			key := models.FieldKey{EntityID: req.EntityID, FieldID: req.FieldID}
			observed := m.versions[key]
			if observed == req.Version {
				m.versions[key] = observed + 1
			}
			return models.SaveResult{ObservedVersion: &observed, Value: req.Value, Version: m.versions[key]}, nil
		},
	}
}

func (m *memoryRemote) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type fixture struct {
	coord   *Coordinator
	remote  *memoryRemote
	drafts  *drafts.Store
	monitor *connectivity.Monitor
}

func newFixture(t *testing.T, mutate ...func(*Options)) *fixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	policy, err := retry.NewPolicy(retry.Config{
		BaseDelay:   5 * time.Millisecond,
		MaxDelay:    20 * time.Millisecond,
		MaxAttempts: 2,
	})
	require.NoError(t, err)

	f := &fixture{
		remote:  newMemoryRemote(),
		drafts:  drafts.New(memory.New(), logger),
		monitor: connectivity.NewMonitor(true),
	}

	opts := Options{
		Remote:  f.remote.saver(),
		Drafts:  f.drafts,
		Policy:  policy,
		Signal:  f.monitor,
		Metrics: metrics.NewEngine(prometheus.NewRegistry()),
		Logger:  logger,
		Window:  time.Hour,
	}
	for _, m := range mutate {
		m(&opts)
	}

	f.coord, err = New(opts)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), waitFor)
		defer cancel()
		_ = f.coord.Close(ctx)
	})

	return f
}

func field(entity, name string) models.EditableField {
	return models.EditableField{EntityID: entity, FieldID: name}
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)

	_, err = New(Options{Remote: &session.RemoteSaverMock{}})
	assert.Error(t, err)
}

func TestCoordinator_OpenIsAtomic(t *testing.T) {
	f := newFixture(t)

	const workers = 16
	got := make([]*session.Session, workers)

	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := f.coord.Open(field("doc1", "title"))
			assert.NoError(t, err)
			got[i] = s
		}()
	}
	wg.Wait()

	for _, s := range got {
		assert.Same(t, got[0], s)
	}

	s, ok := f.coord.Lookup(models.FieldKey{EntityID: "doc1", FieldID: "title"})
	require.True(t, ok)
	assert.Same(t, got[0], s)

	_, ok = f.coord.Lookup(models.FieldKey{EntityID: "doc1", FieldID: "body"})
	assert.False(t, ok)
}

func TestCoordinator_FlushAll(t *testing.T) {
	f := newFixture(t)
	f.remote.fail = func(req models.SaveRequest) error {
		if req.FieldID == "owner" {
			return &syncerr.PermissionError{Message: "owner is read-only"}
		}
		return nil
	}

	for _, name := range []string{"title", "body", "owner"} {
		s, err := f.coord.Open(field("doc1", name))
		require.NoError(t, err)
		require.NoError(t, s.Edit("new "+name))
	}
	// Поле другой сущности не участвует
	other, err := f.coord.Open(field("doc2", "title"))
	require.NoError(t, err)
	require.NoError(t, other.Edit("untouched"))

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	summary := f.coord.FlushAll(ctx, "doc1")

	assert.Equal(t, []models.FieldKey{
		{EntityID: "doc1", FieldID: "body"},
		{EntityID: "doc1", FieldID: "title"},
	}, summary.Saved)
	assert.Equal(t, []models.FieldKey{{EntityID: "doc1", FieldID: "owner"}}, summary.Failed)
	assert.Empty(t, summary.Pending)

	var pe *syncerr.PermissionError
	assert.ErrorAs(t, summary.Err, &pe)
	assert.Equal(t, 3, f.remote.Calls())
	assert.Equal(t, models.StateScheduled, other.State())
}

func TestCoordinator_FlushAllReportsPending(t *testing.T) {
	release := make(chan struct{})
	f := newFixture(t)
	f.remote.fail = func(models.SaveRequest) error {
		<-release
		return nil
	}
	t.Cleanup(func() { close(release) })

	s, err := f.coord.Open(field("doc1", "title"))
	require.NoError(t, err)
	require.NoError(t, s.Edit("slow"))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	summary := f.coord.FlushAll(ctx, "doc1")

	assert.Equal(t, []models.FieldKey{{EntityID: "doc1", FieldID: "title"}}, summary.Pending)
	assert.NoError(t, summary.Err)
}

func TestCoordinator_CancelAll(t *testing.T) {
	f := newFixture(t)

	s, err := f.coord.Open(models.EditableField{EntityID: "doc1", FieldID: "title", Value: "remote", Version: 3})
	require.NoError(t, err)
	require.NoError(t, s.Edit("local"))

	f.coord.CancelAll("doc1")

	snap := s.Snapshot()
	assert.Equal(t, models.StateIdle, snap.State)
	assert.Equal(t, "remote", snap.Value)
	assert.Zero(t, f.remote.Calls())
}

func TestCoordinator_RestoreDraftsWhileOffline(t *testing.T) {
	f := newFixture(t)
	f.monitor.Set(false)

	ctx := context.Background()
	require.NoError(t, f.drafts.Save(ctx, models.DraftRecord{EntityID: "doc1", FieldID: "title", Value: "draft title"}))
	require.NoError(t, f.drafts.Save(ctx, models.DraftRecord{EntityID: "doc1", FieldID: "body", Value: "draft body"}))

	n, err := f.coord.RestoreDrafts(ctx, "doc1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	s, ok := f.coord.Lookup(models.FieldKey{EntityID: "doc1", FieldID: "title"})
	require.True(t, ok)
	assert.Equal(t, models.StateScheduled, s.State())
	assert.Equal(t, "draft title", s.Snapshot().Value)

	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, f.remote.Calls(), "timers stay unarmed while offline")

	f.monitor.Set(true)

	require.Eventually(t, func() bool {
		return len(f.drafts.LoadAll(ctx, "doc1")) == 0
	}, waitFor, tick)
	assert.Equal(t, 2, f.remote.Calls())
	assert.Equal(t, models.StateSaved, s.State())
}

func TestCoordinator_ReconnectRestoresUnseenEntities(t *testing.T) {
	f := newFixture(t)
	f.monitor.Set(false)

	ctx := context.Background()
	require.NoError(t, f.drafts.Save(ctx, models.DraftRecord{EntityID: "doc9", FieldID: "title", Value: "from disk"}))

	f.monitor.Set(true)

	require.Eventually(t, func() bool {
		s, ok := f.coord.Lookup(models.FieldKey{EntityID: "doc9", FieldID: "title"})
		return ok && s.State() == models.StateSaved
	}, waitFor, tick)
}

func TestCoordinator_OfflineSessionResumesOnReconnect(t *testing.T) {
	f := newFixture(t, func(o *Options) {
		o.Window = 10 * time.Millisecond
	})
	f.monitor.Set(false)

	s, err := f.coord.Open(field("doc1", "title"))
	require.NoError(t, err)
	require.NoError(t, s.Edit("queued"))

	require.Eventually(t, func() bool { return s.State() == models.StateOffline }, waitFor, tick)
	assert.Len(t, f.drafts.LoadAll(context.Background(), "doc1"), 1)

	f.monitor.Set(true)

	require.Eventually(t, func() bool { return s.State() == models.StateSaved }, waitFor, tick)
	assert.Empty(t, f.drafts.LoadAll(context.Background(), "doc1"))
	assert.Equal(t, 1, f.remote.Calls())
}

func TestCoordinator_GatesPerField(t *testing.T) {
	gates := validation.NewRegistry()
	gates.Register("title", validation.New(validation.Required()))

	f := newFixture(t, func(o *Options) { o.Gates = gates })

	title, err := f.coord.Open(field("doc1", "title"))
	require.NoError(t, err)
	body, err := f.coord.Open(field("doc1", "body"))
	require.NoError(t, err)

	require.NoError(t, title.Edit(""))
	require.NoError(t, body.Edit(""))

	assert.Equal(t, models.StateError, title.State())
	assert.Equal(t, models.StateScheduled, body.State())
}

func TestCoordinator_Release(t *testing.T) {
	f := newFixture(t)
	key := models.FieldKey{EntityID: "doc1", FieldID: "title"}

	s, err := f.coord.Open(field("doc1", "title"))
	require.NoError(t, err)
	require.NoError(t, s.Edit("pending"))

	assert.False(t, f.coord.Release(key), "pending session is kept")

	s.Cancel()
	assert.True(t, f.coord.Release(key))
	_, ok := f.coord.Lookup(key)
	assert.False(t, ok)

	assert.False(t, f.coord.Release(key))
}

func TestCoordinator_ClosePersistsDrafts(t *testing.T) {
	f := newFixture(t)

	s, err := f.coord.Open(field("doc1", "title"))
	require.NoError(t, err)
	require.NoError(t, s.Edit("unsent"))

	require.NoError(t, f.coord.Close(context.Background()))

	got := f.drafts.LoadAll(context.Background(), "doc1")
	require.Len(t, got, 1)
	assert.Equal(t, "unsent", got[0].Value)

	_, err = f.coord.Open(field("doc1", "body"))
	assert.True(t, errors.Is(err, ErrClosed))

	_, err = f.coord.RestoreDrafts(context.Background(), "doc1")
	assert.ErrorIs(t, err, ErrClosed)

	// Повторный Close безопасен
	assert.NoError(t, f.coord.Close(context.Background()))
}

func TestCoordinator_OpenRejectsAmbiguousKeys(t *testing.T) {
	f := newFixture(t)

	for _, key := range []models.EditableField{field("a:b", "c"), field("a", "b:c"), field("", "title"), field("doc1", "")} {
		_, err := f.coord.Open(key)
		assert.Error(t, err, "key %q/%q", key.EntityID, key.FieldID)
		_, err = f.coord.OpenUnconfirmed(key)
		assert.Error(t, err)
	}
	assert.Empty(t, f.coord.Sessions("a"))

	s, err := f.coord.Open(field("a", "c"))
	require.NoError(t, err)
	assert.Equal(t, "a/c", s.Key().String())
}
