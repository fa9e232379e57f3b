package journal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/lithammer/shortuuid/v4"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/mjournal/internal/model"
	appErr "github.com/xxxsen/mjournal/internal/pkg/errors"
)

var entryNamespace = uuid.MustParse("5f0c4d9e-8d4b-4c39-9a53-3f1f6a0f2b71")

// Indexer is the part of the vector index the store writes through.
type Indexer interface {
	Add(ctx context.Context, id string, text string, meta model.EntryMetadata) error
	Has(ctx context.Context, scope model.Scope, id string) (bool, error)
}

type Store struct {
	layout *Layout
	index  Indexer
	now    func() time.Time
}

type Option func(*Store)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

func NewStore(layout *Layout, index Indexer, opts ...Option) *Store {
	s := &Store{layout: layout, index: index, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Layout() *Layout {
	return s.layout
}

// EntryID derives the index id of the entry stored at relPath in scope.
func EntryID(scope model.Scope, relPath string) string {
	return uuid.NewSHA1(entryNamespace, []byte(string(scope)+":"+relPath)).String()
}

func entryFileName(now time.Time) string {
	return fmt.Sprintf("%s-%06d-%s%s", now.Format("15-04-05"), now.Nanosecond()/1000, shortuuid.New(), entryExt)
}

// WriteEntry persists text as a new entry file of scope and then indexes it. When the file is
// written but indexing fails, the entry is returned together with an error wrapping
// ErrIndexUnavailable; the file is kept and a later Reindex picks it up.
func (s *Store) WriteEntry(ctx context.Context, scope model.Scope, text string, sections []string) (*model.JournalEntry, error) {
	root, err := s.layout.Root(scope)
	if err != nil {
		return nil, err
	}
	now := s.now().Local()
	bucket := filepath.Join(root, now.Format(bucketLayout))
	if err := os.MkdirAll(bucket, 0o755); err != nil {
		return nil, fmt.Errorf("create day dir: %w", err)
	}
	file := filepath.Join(bucket, entryFileName(now))
	if err := writeNewFile(file, []byte(text)); err != nil {
		return nil, fmt.Errorf("write entry file: %w", err)
	}
	rel, err := s.layout.Rel(scope, file)
	if err != nil {
		return nil, err
	}
	if sections == nil {
		sections = []string{}
	}
	entry := &model.JournalEntry{
		ID:        EntryID(scope, rel),
		Scope:     scope,
		Text:      text,
		Sections:  sections,
		Timestamp: now.UnixMilli(),
		Path:      rel,
	}
	logger := logutil.GetLogger(ctx).With(zap.String("scope", string(scope)), zap.String("path", rel))
	if err := s.index.Add(ctx, entry.ID, text, entry.Metadata()); err != nil {
		logger.Error("index entry failed, file kept for reindex", zap.Error(err))
		if !appErr.IsIndexUnavailable(err) {
			err = fmt.Errorf("%w: %w", appErr.ErrIndexUnavailable, err)
		}
		return entry, err
	}
	logger.Debug("entry written", zap.String("id", entry.ID))
	return entry, nil
}

// WriteThoughts writes one entry per given category, in category order, each to the scope the
// category belongs to. Index failures do not stop the remaining files from being written; they
// are joined into the returned error. A file that cannot be written stops the call.
func (s *Store) WriteThoughts(ctx context.Context, thoughts *model.Thoughts) ([]*model.JournalEntry, error) {
	if thoughts == nil || thoughts.Empty() {
		return nil, appErr.ErrNoContentProvided
	}
	var (
		entries   []*model.JournalEntry
		indexErrs []error
	)
	for _, spec := range model.Categories {
		text := thoughts.Get(spec.Category)
		if text == nil {
			continue
		}
		body := fmt.Sprintf("## %s\n\n%s\n", spec.Heading, *text)
		entry, err := s.WriteEntry(ctx, spec.Scope, body, []string{string(spec.Category)})
		if entry == nil {
			return entries, errors.Join(append(indexErrs, fmt.Errorf("write %s: %w", spec.Category, err))...)
		}
		entries = append(entries, entry)
		if err != nil {
			indexErrs = append(indexErrs, fmt.Errorf("index %s: %w", spec.Category, err))
		}
	}
	return entries, errors.Join(indexErrs...)
}

// ReadEntry returns the content of the entry file at path.
func (s *Store) ReadEntry(ctx context.Context, path string) (string, error) {
	_, file, err := s.layout.Resolve(path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(file)
	if err != nil {
		if os.IsNotExist(err) || errors.Is(err, syscall.EISDIR) {
			return "", fmt.Errorf("%w: %s", appErr.ErrEntryNotFound, path)
		}
		return "", fmt.Errorf("read entry: %w", err)
	}
	return string(data), nil
}

func writeNewFile(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
