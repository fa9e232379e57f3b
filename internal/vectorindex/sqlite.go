package vectorindex

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/didi/gendry/builder"
	"github.com/pkg/errors"

	"github.com/xxxsen/mjournal/internal/config"
	"github.com/xxxsen/mjournal/internal/db"
	appErr "github.com/xxxsen/mjournal/internal/pkg/errors"
)

// sqliteBackend keeps vectors as little-endian float32 blobs and ranks them in process.
// Journals are small enough that a full scan of one collection is fine.
type sqliteBackend struct {
	sqlStore
	path string
}

func newSQLiteBackend(path string) *sqliteBackend {
	return &sqliteBackend{
		path: path,
		sqlStore: sqlStore{
			finalize: func(q string, args []interface{}) (string, []interface{}) { return q, args },
			insertIgnore: func(q string) string {
				return strings.Replace(q, "INSERT INTO", "INSERT OR IGNORE INTO", 1)
			},
			encode: func(vec []float32) interface{} { return encodeVector(vec) },
		},
	}
}

func (b *sqliteBackend) Type() string {
	return db.DriverSQLite
}

func (b *sqliteBackend) Open(ctx context.Context) error {
	if b.db != nil {
		return nil
	}
	conn, err := db.OpenSQLite(b.path)
	if err != nil {
		return err
	}
	if err := db.ApplyMigrations(conn, db.DriverSQLite); err != nil {
		_ = conn.Close()
		return err
	}
	b.db = conn
	return nil
}

func (b *sqliteBackend) Query(ctx context.Context, collection string, vec []float32, limit int, filter Filter) ([]Hit, error) {
	where := b.filterWhere(collection, filter)
	where["_orderby"] = "ts desc"
	sqlStr, args, err := builder.BuildSelect(tableEntries, where, append([]string{"embedding"}, entryFields...))
	if err != nil {
		return nil, err
	}
	rows, err := b.query(ctx, sqlStr, args)
	if err != nil {
		return nil, errors.Wrapf(err, "query %s", collection)
	}
	defer rows.Close()
	var hits []Hit
	for rows.Next() {
		var hit Hit
		var blob, sections []byte
		var typ string
		if err := rows.Scan(&blob, &hit.ID, &hit.Metadata.Text, &sections, &hit.Metadata.Timestamp, &hit.Metadata.Path, &typ); err != nil {
			return nil, err
		}
		stored, err := decodeVector(blob)
		if err != nil {
			return nil, errors.Wrapf(err, "decode vector of %s", hit.ID)
		}
		if err := fillMetadata(&hit.Metadata, sections, typ); err != nil {
			return nil, err
		}
		if len(stored) != len(vec) {
			return nil, fmt.Errorf("%w: entry %s has %d dims, query has %d", appErr.ErrDimensionMismatch, hit.ID, len(stored), len(vec))
		}
		hit.Distance = cosineDistance(vec, stored)
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Distance < hits[j].Distance
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func createSQLiteBackend(args interface{}) (Backend, error) {
	c := &config.SQLiteConfig{}
	if err := decodeConfig(args, c); err != nil {
		return nil, err
	}
	if c.Path == "" {
		return nil, errors.New("sqlite index path is required")
	}
	path := c.Path
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, errors.Wrap(err, "resolve home dir")
		}
		path = config.ExpandHome(path, home)
	}
	return newSQLiteBackend(path), nil
}

func init() {
	Register(db.DriverSQLite, createSQLiteBackend)
}
