package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/xxxsen/mjournal/internal/ai"
	"github.com/xxxsen/mjournal/internal/model"
	appErr "github.com/xxxsen/mjournal/internal/pkg/errors"
	"github.com/xxxsen/mjournal/internal/pkg/dbutil"
)

const (
	CollectionProject = "journal_project"
	CollectionUser    = "journal_user"
	SpaceCosine       = "cosine"
)

func CollectionName(scope model.Scope) (string, error) {
	switch scope {
	case model.ScopeProject:
		return CollectionProject, nil
	case model.ScopeUser:
		return CollectionUser, nil
	}
	return "", fmt.Errorf("%w: scope %q has no collection", appErr.ErrInvalid, scope)
}

// Index keeps one collection per scope on a Backend. It initializes lazily on first use;
// concurrent first callers share a single initialization and its result.
type Index struct {
	backend  Backend
	embedder ai.IEmbedder

	initGroup singleflight.Group
	ready     atomic.Bool

	mu   sync.RWMutex
	dims map[string]int
}

func New(backend Backend, embedder ai.IEmbedder) *Index {
	return &Index{
		backend:  backend,
		embedder: embedder,
		dims:     make(map[string]int),
	}
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %w", appErr.ErrIndexUnavailable, err)
}

// Initialize opens the backend and creates both collections. It is safe to call repeatedly
// and from many goroutines. A failed attempt is reported to everyone waiting on it; the next
// call starts over.
func (x *Index) Initialize(ctx context.Context) error {
	if x.ready.Load() {
		return nil
	}
	_, err, _ := x.initGroup.Do("init", func() (interface{}, error) {
		if x.ready.Load() {
			return nil, nil
		}
		if err := x.initialize(context.WithoutCancel(ctx)); err != nil {
			return nil, err
		}
		x.ready.Store(true)
		return nil, nil
	})
	return err
}

func (x *Index) initialize(ctx context.Context) error {
	logger := logutil.GetLogger(ctx).With(zap.String("backend", x.backend.Type()))
	logger.Info("initializing vector index")
	if err := x.backend.Open(ctx); err != nil {
		logger.Error("open vector index failed", zap.Error(err))
		return unavailable(err)
	}
	if err := x.ensureCollections(ctx); err != nil {
		logger.Error("create collections failed", zap.Error(err))
		return err
	}
	logger.Info("vector index initialized")
	return nil
}

func (x *Index) ensureCollections(ctx context.Context) error {
	for _, name := range []string{CollectionProject, CollectionUser} {
		coll, err := x.backend.EnsureCollection(ctx, name, SpaceCosine)
		if err != nil {
			return unavailable(err)
		}
		x.mu.Lock()
		x.dims[name] = coll.Dimension
		x.mu.Unlock()
	}
	return nil
}

func (x *Index) dimension(name string) int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.dims[name]
}

// bindDimension ties the collection to dim on first insert and rejects any other length later.
func (x *Index) bindDimension(ctx context.Context, name string, dim int) error {
	bound := x.dimension(name)
	if bound == 0 {
		var err error
		bound, err = x.backend.BindDimension(ctx, name, dim)
		if err != nil {
			return unavailable(err)
		}
		x.mu.Lock()
		x.dims[name] = bound
		x.mu.Unlock()
	}
	if bound != dim {
		return fmt.Errorf("%w: collection %s holds %d-dim vectors, got %d", appErr.ErrDimensionMismatch, name, bound, dim)
	}
	return nil
}

// Add embeds text and stores it in the collection of meta.Type.
func (x *Index) Add(ctx context.Context, id string, text string, meta model.EntryMetadata) error {
	name, err := CollectionName(meta.Type)
	if err != nil {
		return err
	}
	if err := x.Initialize(ctx); err != nil {
		return err
	}
	vec, err := x.embedder.Embed(ctx, text, ai.TaskRetrievalDocument)
	if err != nil {
		return fmt.Errorf("embed entry %s: %w", id, err)
	}
	if err := x.bindDimension(ctx, name, len(vec)); err != nil {
		return err
	}
	err = x.backend.Insert(ctx, name, &model.VectorRecord{ID: id, Embedding: vec, Metadata: meta})
	if err != nil {
		if dbutil.IsConflict(err) {
			return fmt.Errorf("%w: entry %s already indexed in %s", appErr.ErrConflict, id, name)
		}
		return unavailable(err)
	}
	return nil
}

// EmbedQuery embeds a search query with the same gateway used for entries.
func (x *Index) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	return x.embedder.Embed(ctx, query, ai.TaskRetrievalQuery)
}

// Query returns up to limit nearest entries of scope, ordered by ascending cosine distance.
func (x *Index) Query(ctx context.Context, scope model.Scope, vec []float32, limit int, filter Filter) ([]Hit, error) {
	name, err := CollectionName(scope)
	if err != nil {
		return nil, err
	}
	if err := x.Initialize(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}
	bound, err := x.boundDimension(ctx, name)
	if err != nil {
		return nil, err
	}
	if bound != 0 && bound != len(vec) {
		return nil, fmt.Errorf("%w: collection %s holds %d-dim vectors, query has %d", appErr.ErrDimensionMismatch, name, bound, len(vec))
	}
	hits, err := x.backend.Query(ctx, name, vec, limit, filter)
	if err != nil {
		if errors.Is(err, appErr.ErrDimensionMismatch) {
			return nil, err
		}
		return nil, unavailable(err)
	}
	return hits, nil
}

// boundDimension returns the cached binding of name. An unbound cache entry is re-read from the
// backend, since another process may have bound the collection since this one initialized.
func (x *Index) boundDimension(ctx context.Context, name string) (int, error) {
	if bound := x.dimension(name); bound != 0 {
		return bound, nil
	}
	coll, err := x.backend.EnsureCollection(ctx, name, SpaceCosine)
	if err != nil {
		return 0, unavailable(err)
	}
	if coll.Dimension != 0 {
		x.mu.Lock()
		x.dims[name] = coll.Dimension
		x.mu.Unlock()
	}
	return coll.Dimension, nil
}

// List returns up to limit entries of scope without ranking.
func (x *Index) List(ctx context.Context, scope model.Scope, filter Filter, limit int) ([]Hit, error) {
	name, err := CollectionName(scope)
	if err != nil {
		return nil, err
	}
	if err := x.Initialize(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}
	hits, err := x.backend.List(ctx, name, filter, limit)
	if err != nil {
		return nil, unavailable(err)
	}
	return hits, nil
}

func (x *Index) Has(ctx context.Context, scope model.Scope, id string) (bool, error) {
	name, err := CollectionName(scope)
	if err != nil {
		return false, err
	}
	if err := x.Initialize(ctx); err != nil {
		return false, err
	}
	ok, err := x.backend.Has(ctx, name, id)
	if err != nil {
		return false, unavailable(err)
	}
	return ok, nil
}

func (x *Index) Delete(ctx context.Context, scope model.Scope, id string) error {
	name, err := CollectionName(scope)
	if err != nil {
		return err
	}
	if err := x.Initialize(ctx); err != nil {
		return err
	}
	if err := x.backend.Delete(ctx, name, id); err != nil {
		return unavailable(err)
	}
	return nil
}

// Reset drops both collections and recreates them empty, unbinding their dimensions.
func (x *Index) Reset(ctx context.Context) error {
	if err := x.Initialize(ctx); err != nil {
		return err
	}
	for _, name := range []string{CollectionProject, CollectionUser} {
		if err := x.backend.DropCollection(ctx, name); err != nil {
			return unavailable(err)
		}
	}
	if err := x.ensureCollections(ctx); err != nil {
		return err
	}
	logutil.GetLogger(ctx).Warn("vector index reset")
	return nil
}

func (x *Index) Close() error {
	return x.backend.Close()
}
