package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/tallybook/tallybook/internal/catalog"
	"github.com/tallybook/tallybook/internal/ledger"
	"github.com/tallybook/tallybook/internal/ledger/sqlgen"
	"github.com/tallybook/tallybook/internal/observability"
	"github.com/tallybook/tallybook/internal/storage"
)

const defaultRefreshInterval = 30 * time.Second

type Options struct {
	// Prefix is the object key prefix the exporter writes under.
	Prefix string
	// RefreshInterval bounds how often object metadata is checked for a newer
	// export. Zero uses 30s; negative checks on every query.
	RefreshInterval time.Duration
}

// Source answers ledger reads from the parquet replica in object storage
// using an in-process DuckDB. Each entity is exposed as a typed view named
// after its table, so generated SQL is identical to the primary database.
type Source struct {
	store           storage.ObjectStore
	prefix          string
	refreshInterval time.Duration
	now             func() time.Time

	mu         sync.RWMutex
	db         *sql.DB
	workDir    string
	versions   map[catalog.Entity]string
	files      map[catalog.Entity]string
	generation int
	checkedAt  time.Time
}

var _ ledger.Source = (*Source)(nil)

func Open(store storage.ObjectStore, opts Options) (*Source, error) {
	if store == nil {
		return nil, fmt.Errorf("object store is required")
	}
	refreshInterval := opts.RefreshInterval
	if refreshInterval == 0 {
		refreshInterval = defaultRefreshInterval
	}

	workDir, err := os.MkdirTemp("", "tallybook-replica-")
	if err != nil {
		return nil, fmt.Errorf("create replica temp dir: %w", err)
	}
	db, err := sql.Open("duckdb", "")
	if err != nil {
		_ = os.RemoveAll(workDir)
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	return &Source{
		store:           store,
		prefix:          opts.Prefix,
		refreshInterval: refreshInterval,
		now:             time.Now,
		db:              db,
		workDir:         workDir,
		versions:        map[catalog.Entity]string{},
		files:           map[catalog.Entity]string{},
	}, nil
}

func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.db.Close()
	_ = os.RemoveAll(s.workDir)
	return err
}

func (s *Source) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping duckdb: %w", err)
	}
	return nil
}

func (s *Source) Reader(entity catalog.Entity) (ledger.Reader, error) {
	if _, ok := catalog.Spec(entity); !ok {
		return nil, fmt.Errorf("%w: %q", ledger.ErrUnsupportedEntity, entity.String())
	}
	return &replicaReader{source: s, entity: entity}, nil
}

// Refresh downloads every entity export whose object version changed since
// the last check and swaps its view. Missing exports keep the previous view.
func (s *Source) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.checkedAt.IsZero() && s.refreshInterval > 0 && s.now().Sub(s.checkedAt) < s.refreshInterval {
		return nil
	}

	for _, entity := range catalog.Entities() {
		if err := s.refreshEntity(ctx, entity); err != nil {
			observability.RecordReplicaRefresh(entity.String(), "error")
			return err
		}
	}
	s.checkedAt = s.now()
	return nil
}

func (s *Source) refreshEntity(ctx context.Context, entity catalog.Entity) error {
	key, err := storage.BuildReplicaPath(s.prefix, entity.String())
	if err != nil {
		return err
	}
	info, err := s.store.Stat(ctx, key)
	if errors.Is(err, storage.ErrObjectNotFound) {
		observability.RecordReplicaRefresh(entity.String(), "missing")
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat replica object %q: %w", key, err)
	}

	version := objectVersion(info)
	if s.versions[entity] == version {
		return nil
	}

	reader, err := s.store.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("get replica object %q: %w", key, err)
	}
	s.generation++
	localPath := filepath.Join(s.workDir, fmt.Sprintf("%s-%d.parquet", entity.String(), s.generation))
	_, writeErr := writeFile(localPath, reader)
	closeErr := reader.Close()
	if writeErr != nil {
		return fmt.Errorf("write local parquet file %q: %w", localPath, writeErr)
	}
	if closeErr != nil {
		_ = os.Remove(localPath)
		return fmt.Errorf("close replica object %q: %w", key, closeErr)
	}

	spec, _ := catalog.Spec(entity)
	if _, err := s.db.ExecContext(ctx, viewSQL(spec, localPath)); err != nil {
		_ = os.Remove(localPath)
		return fmt.Errorf("create view for %s: %w", entity, err)
	}

	if previous := s.files[entity]; previous != "" {
		_ = os.Remove(previous)
	}
	s.files[entity] = localPath
	s.versions[entity] = version
	observability.RecordReplicaRefresh(entity.String(), "loaded")
	return nil
}

// viewSQL casts every column to the type the catalog declares. Exports store
// decimals and dates as text so no precision is lost in transit.
func viewSQL(spec catalog.EntitySpec, localPath string) string {
	columns := make([]string, 0, len(spec.Fields))
	for _, field := range spec.Fields {
		column := quoteIdent(field.Column)
		columns = append(columns, fmt.Sprintf("CAST(%s AS %s) AS %s", column, duckType(field.Type), column))
	}
	return fmt.Sprintf(`CREATE OR REPLACE VIEW %s AS SELECT %s FROM read_parquet(%s)`,
		quoteIdent(spec.Table), strings.Join(columns, ", "), quoteString(localPath))
}

func duckType(fieldType catalog.FieldType) string {
	switch fieldType {
	case catalog.FieldDecimal:
		return "DOUBLE"
	case catalog.FieldInteger:
		return "BIGINT"
	case catalog.FieldDate:
		return "DATE"
	case catalog.FieldBool:
		return "BOOLEAN"
	default:
		return "VARCHAR"
	}
}

func objectVersion(info storage.ObjectInfo) string {
	if info.ETag != "" {
		return info.ETag
	}
	return fmt.Sprintf("%d-%d", info.LastModified.UnixNano(), info.Size)
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func quoteString(value string) string {
	return `'` + strings.ReplaceAll(value, `'`, `''`) + `'`
}

type replicaReader struct {
	source *Source
	entity catalog.Entity
}

func (r *replicaReader) with(ctx context.Context, fn func(reader *sqlgen.Reader) error) error {
	if err := r.source.Refresh(ctx); err != nil {
		return err
	}
	r.source.mu.RLock()
	defer r.source.mu.RUnlock()
	if r.source.files[r.entity] == "" {
		return fmt.Errorf("%w: no replica export for %s", ledger.ErrUnsupportedEntity, r.entity)
	}
	return fn(sqlgen.NewReader(r.source.db, sqlgen.DuckDB, r.entity))
}

func (r *replicaReader) FindMany(ctx context.Context, args map[string]any) ([]ledger.Record, error) {
	var records []ledger.Record
	err := r.with(ctx, func(reader *sqlgen.Reader) error {
		var err error
		records, err = reader.FindMany(ctx, args)
		return err
	})
	return records, err
}

func (r *replicaReader) FindFirst(ctx context.Context, args map[string]any) (ledger.Record, error) {
	var record ledger.Record
	err := r.with(ctx, func(reader *sqlgen.Reader) error {
		var err error
		record, err = reader.FindFirst(ctx, args)
		return err
	})
	return record, err
}

func (r *replicaReader) FindUnique(ctx context.Context, args map[string]any) (ledger.Record, error) {
	var record ledger.Record
	err := r.with(ctx, func(reader *sqlgen.Reader) error {
		var err error
		record, err = reader.FindUnique(ctx, args)
		return err
	})
	return record, err
}

func (r *replicaReader) Aggregate(ctx context.Context, args map[string]any) (ledger.Record, error) {
	var record ledger.Record
	err := r.with(ctx, func(reader *sqlgen.Reader) error {
		var err error
		record, err = reader.Aggregate(ctx, args)
		return err
	})
	return record, err
}

func (r *replicaReader) GroupBy(ctx context.Context, args map[string]any) ([]ledger.Record, error) {
	var records []ledger.Record
	err := r.with(ctx, func(reader *sqlgen.Reader) error {
		var err error
		records, err = reader.GroupBy(ctx, args)
		return err
	})
	return records, err
}

func (r *replicaReader) Count(ctx context.Context, args map[string]any) (int64, error) {
	var count int64
	err := r.with(ctx, func(reader *sqlgen.Reader) error {
		var err error
		count, err = reader.Count(ctx, args)
		return err
	})
	return count, err
}
