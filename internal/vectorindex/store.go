package vectorindex

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/didi/gendry/builder"
	"github.com/pkg/errors"

	"github.com/xxxsen/mjournal/internal/model"
)

const (
	tableCollections = "vector_collections"
	tableEntries     = "vector_entries"
)

var entryFields = []string{"id", "text", "sections", "ts", "path", "type"}

// sqlStore holds the statements both SQL backends share. Queries are built with "?"
// placeholders and passed through finalize before execution.
type sqlStore struct {
	db           *sql.DB
	finalize     func(string, []interface{}) (string, []interface{})
	insertIgnore func(string) string
	encode       func([]float32) interface{}
}

func (s *sqlStore) exec(ctx context.Context, sqlStr string, args []interface{}) (sql.Result, error) {
	sqlStr, args = s.finalize(sqlStr, args)
	return s.db.ExecContext(ctx, sqlStr, args...)
}

func (s *sqlStore) query(ctx context.Context, sqlStr string, args []interface{}) (*sql.Rows, error) {
	sqlStr, args = s.finalize(sqlStr, args)
	return s.db.QueryContext(ctx, sqlStr, args...)
}

func (s *sqlStore) queryRow(ctx context.Context, sqlStr string, args []interface{}) *sql.Row {
	sqlStr, args = s.finalize(sqlStr, args)
	return s.db.QueryRowContext(ctx, sqlStr, args...)
}

func (s *sqlStore) EnsureCollection(ctx context.Context, name string, space string) (*model.EmbeddingCollection, error) {
	data := map[string]interface{}{
		"name":      name,
		"space":     space,
		"dimension": 0,
		"ctime":     time.Now().UnixMilli(),
	}
	sqlStr, args, err := builder.BuildInsert(tableCollections, []map[string]interface{}{data})
	if err != nil {
		return nil, err
	}
	if _, err := s.exec(ctx, s.insertIgnore(sqlStr), args); err != nil {
		return nil, errors.Wrapf(err, "create collection %s", name)
	}
	return s.getCollection(ctx, name)
}

func (s *sqlStore) getCollection(ctx context.Context, name string) (*model.EmbeddingCollection, error) {
	sqlStr, args, err := builder.BuildSelect(tableCollections, map[string]interface{}{"name": name}, []string{"name", "space", "dimension", "ctime"})
	if err != nil {
		return nil, err
	}
	coll := &model.EmbeddingCollection{}
	if err := s.queryRow(ctx, sqlStr, args).Scan(&coll.Name, &coll.Space, &coll.Dimension, &coll.Ctime); err != nil {
		return nil, errors.Wrapf(err, "load collection %s", name)
	}
	return coll, nil
}

func (s *sqlStore) DropCollection(ctx context.Context, name string) error {
	sqlStr, args, err := builder.BuildDelete(tableEntries, map[string]interface{}{"collection": name})
	if err != nil {
		return err
	}
	if _, err := s.exec(ctx, sqlStr, args); err != nil {
		return errors.Wrapf(err, "clear collection %s", name)
	}
	sqlStr, args, err = builder.BuildDelete(tableCollections, map[string]interface{}{"name": name})
	if err != nil {
		return err
	}
	if _, err := s.exec(ctx, sqlStr, args); err != nil {
		return errors.Wrapf(err, "drop collection %s", name)
	}
	return nil
}

func (s *sqlStore) BindDimension(ctx context.Context, name string, dim int) (int, error) {
	where := map[string]interface{}{
		"name":      name,
		"dimension": 0,
	}
	sqlStr, args, err := builder.BuildUpdate(tableCollections, where, map[string]interface{}{"dimension": dim})
	if err != nil {
		return 0, err
	}
	if _, err := s.exec(ctx, sqlStr, args); err != nil {
		return 0, errors.Wrapf(err, "bind dimension of %s", name)
	}
	coll, err := s.getCollection(ctx, name)
	if err != nil {
		return 0, err
	}
	return coll.Dimension, nil
}

func (s *sqlStore) Insert(ctx context.Context, collection string, rec *model.VectorRecord) error {
	sections, err := json.Marshal(nonNilSections(rec.Metadata.Sections))
	if err != nil {
		return err
	}
	data := map[string]interface{}{
		"collection": collection,
		"id":         rec.ID,
		"embedding":  s.encode(rec.Embedding),
		"text":       rec.Metadata.Text,
		"sections":   string(sections),
		"ts":         rec.Metadata.Timestamp,
		"path":       rec.Metadata.Path,
		"type":       string(rec.Metadata.Type),
	}
	sqlStr, args, err := builder.BuildInsert(tableEntries, []map[string]interface{}{data})
	if err != nil {
		return err
	}
	_, err = s.exec(ctx, sqlStr, args)
	return err
}

func (s *sqlStore) filterWhere(collection string, filter Filter) map[string]interface{} {
	where := map[string]interface{}{"collection": collection}
	if filter.TimestampFrom != nil {
		where["ts >="] = *filter.TimestampFrom
	}
	if filter.TimestampTo != nil {
		where["ts <="] = *filter.TimestampTo
	}
	return where
}

// List returns entries newest first.
func (s *sqlStore) List(ctx context.Context, collection string, filter Filter, limit int) ([]Hit, error) {
	where := s.filterWhere(collection, filter)
	where["_orderby"] = "ts desc"
	where["_limit"] = []uint{0, uint(limit)}
	sqlStr, args, err := builder.BuildSelect(tableEntries, where, entryFields)
	if err != nil {
		return nil, err
	}
	rows, err := s.query(ctx, sqlStr, args)
	if err != nil {
		return nil, errors.Wrapf(err, "list %s", collection)
	}
	defer rows.Close()
	var hits []Hit
	for rows.Next() {
		var hit Hit
		var sections []byte
		var typ string
		if err := rows.Scan(&hit.ID, &hit.Metadata.Text, &sections, &hit.Metadata.Timestamp, &hit.Metadata.Path, &typ); err != nil {
			return nil, err
		}
		if err := fillMetadata(&hit.Metadata, sections, typ); err != nil {
			return nil, err
		}
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

func (s *sqlStore) Has(ctx context.Context, collection string, id string) (bool, error) {
	sqlStr, args, err := builder.BuildSelect(tableEntries, map[string]interface{}{"collection": collection, "id": id}, []string{"COUNT(1)"})
	if err != nil {
		return false, err
	}
	var cnt int
	if err := s.queryRow(ctx, sqlStr, args).Scan(&cnt); err != nil {
		return false, err
	}
	return cnt > 0, nil
}

func (s *sqlStore) Delete(ctx context.Context, collection string, id string) error {
	sqlStr, args, err := builder.BuildDelete(tableEntries, map[string]interface{}{"collection": collection, "id": id})
	if err != nil {
		return err
	}
	_, err = s.exec(ctx, sqlStr, args)
	return err
}

func (s *sqlStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func fillMetadata(meta *model.EntryMetadata, sections []byte, typ string) error {
	if len(sections) > 0 {
		if err := json.Unmarshal(sections, &meta.Sections); err != nil {
			return fmt.Errorf("decode sections: %w", err)
		}
	}
	meta.Sections = nonNilSections(meta.Sections)
	meta.Type = model.Scope(typ)
	return nil
}

func nonNilSections(sections []string) []string {
	if sections == nil {
		return []string{}
	}
	return sections
}
