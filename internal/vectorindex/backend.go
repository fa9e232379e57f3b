package vectorindex

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/xxxsen/mjournal/internal/config"
	"github.com/xxxsen/mjournal/internal/model"
)

// Backend stores collections of (id, vector, metadata) and answers cosine queries.
// Open connects and prepares the schema; nothing touches the store before it.
type Backend interface {
	Type() string
	Open(ctx context.Context) error
	EnsureCollection(ctx context.Context, name string, space string) (*model.EmbeddingCollection, error)
	DropCollection(ctx context.Context, name string) error
	// BindDimension records dim for a collection that has none yet and returns the bound value.
	BindDimension(ctx context.Context, name string, dim int) (int, error)
	Insert(ctx context.Context, collection string, rec *model.VectorRecord) error
	Query(ctx context.Context, collection string, vec []float32, limit int, filter Filter) ([]Hit, error)
	List(ctx context.Context, collection string, filter Filter, limit int) ([]Hit, error)
	Has(ctx context.Context, collection string, id string) (bool, error)
	Delete(ctx context.Context, collection string, id string) error
	Close() error
}

type Hit struct {
	ID       string
	Metadata model.EntryMetadata
	Distance float64
}

// Filter holds the conditions every backend evaluates natively: an inclusive epoch-ms range.
type Filter struct {
	TimestampFrom *int64
	TimestampTo   *int64
}

func FilterFromDateRange(r *model.DateRange) Filter {
	var f Filter
	if r == nil {
		return f
	}
	if r.Start != nil {
		from := r.Start.UnixMilli()
		f.TimestampFrom = &from
	}
	if r.End != nil {
		to := r.End.UnixMilli()
		f.TimestampTo = &to
	}
	return f
}

func (f Filter) Match(ts int64) bool {
	if f.TimestampFrom != nil && ts < *f.TimestampFrom {
		return false
	}
	if f.TimestampTo != nil && ts > *f.TimestampTo {
		return false
	}
	return true
}

type Factory func(args interface{}) (Backend, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

func Register(name string, factory Factory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registryMu.Lock()
	registry[key] = factory
	registryMu.Unlock()
}

func NewBackend(cfg config.IndexConfig) (Backend, error) {
	key := strings.ToLower(strings.TrimSpace(cfg.Type))
	if key == "" {
		return nil, fmt.Errorf("index.type is required")
	}
	registryMu.RLock()
	factory := registry[key]
	registryMu.RUnlock()
	if factory == nil {
		return nil, fmt.Errorf("unsupported index type: %s", cfg.Type)
	}
	return factory(cfg.Data)
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return fmt.Errorf("index config is required")
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode index config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode index config: %w", err)
	}
	return nil
}
