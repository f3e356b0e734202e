// Package upload runs an attachments field through the regular session
// lifecycle: files are uploaded first, then the field value referencing
// them is saved as one write.
package upload

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/iudanet/fieldsync/internal/client/session"
	"github.com/iudanet/fieldsync/internal/models"
	"github.com/iudanet/fieldsync/internal/syncerr"
)

//go:generate moq -out transport_mock.go . Transport

// DefaultConcurrency limits parallel uploads per save.
const DefaultConcurrency = 4

// File is one attachment. Ref is set once the file is stored remotely.
type File struct {
	Name string `json:"name"`
	Path string `json:"path,omitempty"`
	Ref  string `json:"ref,omitempty"`
	Size int64  `json:"size"`
}

// Transport uploads file contents and returns the remote reference.
// progress receives the number of bytes sent so far.
type Transport interface {
	Upload(ctx context.Context, file File, progress func(sent int64)) (string, error)
}

// Progress is the aggregated state of the files of one save.
type Progress struct {
	Sent      int64
	Total     int64
	Files     int
	Completed int
	Failed    int
}

// Done reports whether every file finished uploading.
func (p Progress) Done() bool {
	return p.Files > 0 && p.Completed == p.Files
}

// EncodeFiles renders files as an attachments field value.
func EncodeFiles(files []File) (string, error) {
	data, err := json.Marshal(files)
	if err != nil {
		return "", fmt.Errorf("failed to encode attachments: %w", err)
	}
	return string(data), nil
}

// DecodeFiles parses an attachments field value. An empty value is an empty list.
func DecodeFiles(value string) ([]File, error) {
	if value == "" {
		return nil, nil
	}
	var files []File
	if err := json.Unmarshal([]byte(value), &files); err != nil {
		return nil, fmt.Errorf("failed to decode attachments: %w", err)
	}
	return files, nil
}

// Saver is a session.RemoteSaver for attachments fields.
type Saver struct {
	next        session.RemoteSaver
	transport   Transport
	logger      *slog.Logger
	refs        map[string]string // refs переживают повторы: уже загруженные файлы не шлём снова
	listeners   []func(models.FieldKey, Progress)
	concurrency int
	mu          sync.Mutex
}

// NewSaver wraps next so that files are uploaded before the value is saved.
func NewSaver(next session.RemoteSaver, transport Transport, logger *slog.Logger) *Saver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Saver{
		next:        next,
		transport:   transport,
		logger:      logger,
		refs:        make(map[string]string),
		concurrency: DefaultConcurrency,
	}
}

// SetConcurrency sets the number of parallel uploads.
func (s *Saver) SetConcurrency(n int) {
	if n < 1 {
		n = 1
	}
	s.mu.Lock()
	s.concurrency = n
	s.mu.Unlock()
}

// OnProgress registers fn to receive aggregated progress.
func (s *Saver) OnProgress(fn func(models.FieldKey, Progress)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// Save uploads every file without a reference, then saves the value with
// the references filled in.
func (s *Saver) Save(ctx context.Context, req models.SaveRequest) (models.SaveResult, error) {
	files, err := DecodeFiles(req.Value)
	if err != nil {
		return models.SaveResult{}, &syncerr.ValidationError{
			Field:   req.FieldID,
			Reasons: []syncerr.Reason{{Code: "attachments", Message: err.Error()}},
		}
	}

	key := models.FieldKey{EntityID: req.EntityID, FieldID: req.FieldID}
	if err := s.uploadAll(ctx, key, files); err != nil {
		return models.SaveResult{}, err
	}

	value, err := EncodeFiles(files)
	if err != nil {
		return models.SaveResult{}, err
	}
	req.Value = value

	return s.next.Save(ctx, req)
}

func (s *Saver) uploadAll(ctx context.Context, key models.FieldKey, files []File) error {
	tracker := newTracker(key, files, s.emit)

	s.mu.Lock()
	limit := s.concurrency
	for i := range files {
		if files[i].Ref == "" {
			files[i].Ref = s.refs[s.cacheKey(key, files[i])]
		}
	}
	s.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i := range files {
		if files[i].Ref != "" {
			tracker.complete(i)
			continue
		}

		g.Go(func() error {
			ref, err := s.transport.Upload(gctx, files[i], func(sent int64) {
				tracker.progress(i, sent)
			})
			if err != nil {
				tracker.fail(i)
				return fmt.Errorf("failed to upload %s: %w", files[i].Name, err)
			}

			s.mu.Lock()
			s.refs[s.cacheKey(key, files[i])] = ref
			s.mu.Unlock()

			files[i].Ref = ref
			tracker.complete(i)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		s.logger.Warn("Attachment upload failed",
			"entity_id", key.EntityID,
			"field_id", key.FieldID,
			"error", err)
		return err
	}
	return nil
}

func (s *Saver) cacheKey(key models.FieldKey, f File) string {
	return key.String() + "\x00" + f.Path + "\x00" + f.Name
}

func (s *Saver) emit(key models.FieldKey, p Progress) {
	s.mu.Lock()
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(key, p)
	}
}

// tracker агрегирует прогресс файлов одного сохранения
type tracker struct {
	emit  func(models.FieldKey, Progress)
	key   models.FieldKey
	sent  []int64
	size  []int64
	state []int8 // 0 в процессе, 1 готов, -1 ошибка
	mu    sync.Mutex
}

func newTracker(key models.FieldKey, files []File, emit func(models.FieldKey, Progress)) *tracker {
	t := &tracker{
		emit:  emit,
		key:   key,
		sent:  make([]int64, len(files)),
		size:  make([]int64, len(files)),
		state: make([]int8, len(files)),
	}
	for i, f := range files {
		t.size[i] = f.Size
	}
	return t
}

func (t *tracker) progress(i int, sent int64) {
	t.update(func() { t.sent[i] = sent })
}

func (t *tracker) complete(i int) {
	t.update(func() {
		t.sent[i] = t.size[i]
		t.state[i] = 1
	})
}

func (t *tracker) fail(i int) {
	t.update(func() { t.state[i] = -1 })
}

func (t *tracker) update(fn func()) {
	t.mu.Lock()
	fn()
	p := Progress{Files: len(t.size)}
	for i := range t.size {
		p.Sent += t.sent[i]
		p.Total += t.size[i]
		switch t.state[i] {
		case 1:
			p.Completed++
		case -1:
			p.Failed++
		}
	}
	t.mu.Unlock()

	t.emit(t.key, p)
}
