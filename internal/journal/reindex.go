package journal

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"go.uber.org/zap"

	"github.com/xxxsen/mjournal/internal/model"
)

type ReindexStats struct {
	Scanned int `json:"scanned"`
	Added   int `json:"added"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Reindex adds every entry file whose id is missing from the index. Files that do not follow
// the bucket/filename layout are skipped. A failed add is counted and logged; the walk goes on.
func (s *Store) Reindex(ctx context.Context) (*ReindexStats, error) {
	logger := logutil.GetLogger(ctx)
	stats := &ReindexStats{}
	for _, scope := range model.Scopes {
		root, err := s.layout.Root(scope)
		if err != nil {
			return stats, err
		}
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if os.IsNotExist(err) && path == root {
					return filepath.SkipDir
				}
				return err
			}
			if d.IsDir() {
				if path != root && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if filepath.Ext(path) != entryExt {
				return nil
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			stats.Scanned++
			added, err := s.reindexFile(ctx, scope, path)
			if err != nil {
				stats.Failed++
				logger.Warn("reindex entry failed", zap.String("path", path), zap.Error(err))
				return nil
			}
			if added {
				stats.Added++
			} else {
				stats.Skipped++
			}
			return nil
		})
		if err != nil {
			return stats, fmt.Errorf("walk %s journal: %w", scope, err)
		}
	}
	logger.Info("reindex finished",
		zap.Int("scanned", stats.Scanned),
		zap.Int("added", stats.Added),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed),
	)
	return stats, nil
}

func (s *Store) reindexFile(ctx context.Context, scope model.Scope, path string) (bool, error) {
	rel, err := s.layout.Rel(scope, path)
	if err != nil {
		return false, err
	}
	ts, ok := entryTimestamp(rel)
	if !ok {
		return false, nil
	}
	id := EntryID(scope, rel)
	exists, err := s.index.Has(ctx, scope, id)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	content := string(data)
	meta := model.EntryMetadata{
		Text:      content,
		Sections:  sectionsOf(data),
		Timestamp: ts,
		Path:      rel,
		Type:      scope,
	}
	if err := s.index.Add(ctx, id, content, meta); err != nil {
		return false, err
	}
	return true, nil
}

// entryTimestamp recovers the write time from "YYYY-MM-DD/HH-MM-SS-micro-suffix.md", read in
// the local zone the file was named in.
func entryTimestamp(rel string) (int64, bool) {
	parts := strings.Split(rel, "/")
	if len(parts) != 2 {
		return 0, false
	}
	fields := strings.SplitN(strings.TrimSuffix(parts[1], entryExt), "-", 5)
	if len(fields) < 4 {
		return 0, false
	}
	t, err := time.ParseInLocation(bucketLayout+" 15-04-05", parts[0]+" "+strings.Join(fields[:3], "-"), time.Local)
	if err != nil {
		return 0, false
	}
	micro, err := strconv.Atoi(fields[3])
	if err != nil || micro < 0 || micro >= 1_000_000 {
		return 0, false
	}
	return t.Add(time.Duration(micro) * time.Microsecond).UnixMilli(), true
}

// sectionsOf lists the level-2 headings of an entry. Known category headings map back to their
// category name, which is what WriteThoughts stores.
func sectionsOf(source []byte) []string {
	doc := goldmark.New().Parser().Parse(text.NewReader(source))
	sections := []string{}
	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		h, ok := node.(*ast.Heading)
		if !ok || h.Level != 2 {
			continue
		}
		heading := strings.TrimSpace(string(h.Text(source)))
		if heading == "" {
			continue
		}
		if spec, ok := model.CategoryByHeading(heading); ok {
			heading = string(spec.Category)
		}
		sections = append(sections, heading)
	}
	return sections
}
