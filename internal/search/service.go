package search

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xxxsen/mjournal/internal/model"
	"github.com/xxxsen/mjournal/internal/vectorindex"
)

const DefaultLimit = 10

// Index is what the service needs from the vector index.
type Index interface {
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
	Query(ctx context.Context, scope model.Scope, vec []float32, limit int, filter vectorindex.Filter) ([]vectorindex.Hit, error)
	List(ctx context.Context, scope model.Scope, filter vectorindex.Filter, limit int) ([]vectorindex.Hit, error)
}

// Reader resolves and reads entry files.
type Reader interface {
	ReadEntry(ctx context.Context, path string) (string, error)
}

type Options struct {
	Limit     int
	Scope     model.Scope
	Sections  []string
	DateRange *model.DateRange
}

type ListOptions struct {
	Limit     int
	Scope     model.Scope
	DateRange *model.DateRange
}

type Service struct {
	index     Index
	reader    Reader
	overFetch int
}

func NewService(index Index, reader Reader, overFetch int) *Service {
	if overFetch <= 0 {
		overFetch = 1
	}
	return &Service{index: index, reader: reader, overFetch: overFetch}
}

// Search embeds query once and returns the best matches across the requested scopes,
// highest score first.
func (s *Service) Search(ctx context.Context, query string, opts Options) ([]model.SearchResult, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	vec, err := s.index.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	filter := vectorindex.FilterFromDateRange(opts.DateRange)
	scopes := scopeOrDefault(opts.Scope).Expand()

	perScope := make([][]vectorindex.Hit, len(scopes))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, scope := range scopes {
		eg.Go(func() error {
			hits, err := s.index.Query(egCtx, scope, vec, limit*s.overFetch, filter)
			if err != nil {
				return fmt.Errorf("query %s: %w", scope, err)
			}
			perScope[i] = hits
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	results := make([]model.SearchResult, 0, limit)
	for _, hits := range perScope {
		for _, hit := range hits {
			if !matchSections(hit.Metadata.Sections, opts.Sections) {
				continue
			}
			results = append(results, model.SearchResult{
				EntryMetadata: hit.Metadata,
				ID:            hit.ID,
				Score:         1 - hit.Distance,
			})
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > limit {
		results = results[:limit]
	}
	logutil.GetLogger(ctx).Debug("search finished",
		zap.String("scope", string(scopeOrDefault(opts.Scope))),
		zap.Int("limit", limit),
		zap.Int("results", len(results)),
	)
	return results, nil
}

// ListRecent returns the newest entries across the requested scopes without embedding.
func (s *Service) ListRecent(ctx context.Context, opts ListOptions) ([]model.RecentEntry, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	filter := vectorindex.FilterFromDateRange(opts.DateRange)
	var entries []model.RecentEntry
	for _, scope := range scopeOrDefault(opts.Scope).Expand() {
		hits, err := s.index.List(ctx, scope, filter, limit)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", scope, err)
		}
		for _, hit := range hits {
			entries = append(entries, model.RecentEntry{EntryMetadata: hit.Metadata, ID: hit.ID})
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp > entries[j].Timestamp
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	if entries == nil {
		entries = []model.RecentEntry{}
	}
	return entries, nil
}

func (s *Service) ReadEntry(ctx context.Context, path string) (string, error) {
	return s.reader.ReadEntry(ctx, path)
}

func scopeOrDefault(scope model.Scope) model.Scope {
	if scope == "" {
		return model.ScopeBoth
	}
	return scope
}

// matchSections keeps an entry when any of its sections contains any wanted term,
// case-insensitively. No wanted terms keeps everything.
func matchSections(have []string, want []string) bool {
	if len(want) == 0 {
		return true
	}
	for _, h := range have {
		h = strings.ToLower(h)
		for _, w := range want {
			if strings.Contains(h, strings.ToLower(w)) {
				return true
			}
		}
	}
	return false
}
