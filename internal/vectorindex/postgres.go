package vectorindex

import (
	"context"
	"strings"

	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"

	"github.com/xxxsen/mjournal/internal/config"
	"github.com/xxxsen/mjournal/internal/db"
	"github.com/xxxsen/mjournal/internal/pkg/dbutil"
)

// postgresBackend ranks with pgvector's cosine distance operator inside the database.
type postgresBackend struct {
	sqlStore
	cfg config.DatabaseConfig
}

func newPostgresBackend(cfg config.DatabaseConfig) *postgresBackend {
	return &postgresBackend{
		cfg: cfg,
		sqlStore: sqlStore{
			finalize: dbutil.Finalize,
			insertIgnore: func(q string) string {
				return q + " ON CONFLICT DO NOTHING"
			},
			encode: func(vec []float32) interface{} { return pgvector.NewVector(vec) },
		},
	}
}

func (b *postgresBackend) Type() string {
	return db.DriverPostgres
}

func (b *postgresBackend) Open(ctx context.Context) error {
	if b.db != nil {
		return nil
	}
	conn, err := db.OpenPostgres(b.cfg)
	if err != nil {
		return err
	}
	if err := db.ApplyMigrations(conn, db.DriverPostgres); err != nil {
		_ = conn.Close()
		return err
	}
	b.db = conn
	return nil
}

func (b *postgresBackend) Query(ctx context.Context, collection string, vec []float32, limit int, filter Filter) ([]Hit, error) {
	var sb strings.Builder
	sb.WriteString("SELECT id, text, sections, ts, path, type, embedding <=> ? AS distance FROM ")
	sb.WriteString(tableEntries)
	sb.WriteString(" WHERE collection = ?")
	args := []interface{}{pgvector.NewVector(vec), collection}
	if filter.TimestampFrom != nil {
		sb.WriteString(" AND ts >= ?")
		args = append(args, *filter.TimestampFrom)
	}
	if filter.TimestampTo != nil {
		sb.WriteString(" AND ts <= ?")
		args = append(args, *filter.TimestampTo)
	}
	sb.WriteString(" ORDER BY distance ASC, ts DESC LIMIT ?")
	args = append(args, limit)

	rows, err := b.query(ctx, sb.String(), args)
	if err != nil {
		return nil, errors.Wrapf(err, "query %s", collection)
	}
	defer rows.Close()
	var hits []Hit
	for rows.Next() {
		var hit Hit
		var sections []byte
		var typ string
		if err := rows.Scan(&hit.ID, &hit.Metadata.Text, &sections, &hit.Metadata.Timestamp, &hit.Metadata.Path, &typ, &hit.Distance); err != nil {
			return nil, err
		}
		if err := fillMetadata(&hit.Metadata, sections, typ); err != nil {
			return nil, err
		}
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

func createPostgresBackend(args interface{}) (Backend, error) {
	c := &config.DatabaseConfig{}
	if err := decodeConfig(args, c); err != nil {
		return nil, err
	}
	if c.DSN == "" && c.Host == "" {
		return nil, errors.New("postgres index requires dsn or host")
	}
	return newPostgresBackend(*c), nil
}

func init() {
	Register(db.DriverPostgres, createPostgresBackend)
}
