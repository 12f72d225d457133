package replica

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/parquet-go/parquet-go"

	"github.com/tallybook/tallybook/internal/catalog"
	"github.com/tallybook/tallybook/internal/observability"
	"github.com/tallybook/tallybook/internal/storage"
)

const parquetContentType = "application/vnd.apache.parquet"

type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type Config struct {
	Prefix    string
	Interval  time.Duration
	BatchSize int
}

// Exporter copies every catalog entity table into one parquet object per
// entity. Objects are replaced whole, so readers see either the previous or
// the new export.
type Exporter struct {
	DB          Querier
	ObjectStore storage.ObjectStore
	Config      Config
	Logger      *slog.Logger
	Clock       func() time.Time
}

type TableSummary struct {
	Entity    string
	ObjectKey string
	Rows      int64
	Bytes     int64
	ETag      string
}

type Summary struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Tables     []TableSummary
}

func (s Summary) RowCounts() map[string]int64 {
	counts := make(map[string]int64, len(s.Tables))
	for _, table := range s.Tables {
		counts[table.Entity] = table.Rows
	}
	return counts
}

func (e *Exporter) Run(ctx context.Context) error {
	e.ensureDefaults()

	ticker := time.NewTicker(e.Config.Interval)
	defer ticker.Stop()

	for {
		if _, err := e.ExportOnce(ctx); err != nil {
			if e.Logger != nil {
				e.Logger.ErrorContext(ctx, "replica export failed", slog.Any("error", err))
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (e *Exporter) ExportOnce(ctx context.Context) (Summary, error) {
	e.ensureDefaults()
	if e.DB == nil || e.ObjectStore == nil {
		return Summary{}, fmt.Errorf("database and object store are required")
	}

	summary := Summary{RunID: uuid.NewString(), StartedAt: e.Clock().UTC()}
	for _, table := range tables {
		tableSummary, err := e.exportTable(ctx, summary, table)
		if err != nil {
			observability.ObserveReplicaExport("error", summary.RowCounts(), e.Clock())
			return summary, fmt.Errorf("export %s: %w", table.entity(), err)
		}
		summary.Tables = append(summary.Tables, tableSummary)
	}
	summary.FinishedAt = e.Clock().UTC()
	observability.ObserveReplicaExport("success", summary.RowCounts(), summary.FinishedAt)

	if e.Logger != nil {
		e.Logger.InfoContext(ctx, "replica export completed",
			slog.String("run_id", summary.RunID),
			slog.Int("tables", len(summary.Tables)),
			slog.Int64("duration_ms", summary.FinishedAt.Sub(summary.StartedAt).Milliseconds()),
		)
	}
	return summary, nil
}

func (e *Exporter) exportTable(ctx context.Context, summary Summary, t table) (TableSummary, error) {
	key, err := storage.BuildReplicaPath(e.Config.Prefix, t.entity().String())
	if err != nil {
		return TableSummary{}, err
	}
	encoded, rows, err := t.encode(ctx, e.DB, e.Config.BatchSize)
	if err != nil {
		return TableSummary{}, err
	}

	info, err := e.ObjectStore.Put(ctx, key, bytes.NewReader(encoded), int64(len(encoded)), storage.PutOptions{
		ContentType: parquetContentType,
		Metadata: map[string]string{
			"export-run":  summary.RunID,
			"rows":        strconv.FormatInt(rows, 10),
			"exported-at": summary.StartedAt.Format(time.RFC3339),
		},
	})
	if err != nil {
		return TableSummary{}, fmt.Errorf("put parquet object: %w", err)
	}

	if e.Logger != nil {
		e.Logger.DebugContext(ctx, "replica table exported",
			slog.String("run_id", summary.RunID),
			slog.String("entity", t.entity().String()),
			slog.Int64("rows", rows),
			slog.String("object_path", key),
		)
	}
	return TableSummary{Entity: t.entity().String(), ObjectKey: key, Rows: rows, Bytes: int64(len(encoded)), ETag: info.ETag}, nil
}

func (e *Exporter) ensureDefaults() {
	if e.Clock == nil {
		e.Clock = time.Now
	}
	if e.Config.Interval <= 0 {
		e.Config.Interval = 15 * time.Minute
	}
	if e.Config.BatchSize <= 0 {
		e.Config.BatchSize = 5000
	}
	if strings.TrimSpace(e.Config.Prefix) == "" {
		e.Config.Prefix = storage.DefaultReplicaPrefix
	}
}

type table interface {
	entity() catalog.Entity
	encode(ctx context.Context, db Querier, batchSize int) ([]byte, int64, error)
}

type typedTable[T any] struct {
	target catalog.Entity
	scan   func(rows *sql.Rows) (T, error)
	key    func(row T) (string, string)
}

func tableOf[T any](entity catalog.Entity, scan func(rows *sql.Rows) (T, error), key func(row T) (string, string)) table {
	return typedTable[T]{target: entity, scan: scan, key: key}
}

func (t typedTable[T]) entity() catalog.Entity {
	return t.target
}

// encode pages through the table in (company_id, id) order and streams every
// page into one parquet file.
func (t typedTable[T]) encode(ctx context.Context, db Querier, batchSize int) ([]byte, int64, error) {
	spec, ok := catalog.Spec(t.target)
	if !ok {
		return nil, 0, fmt.Errorf("unknown entity %q", t.target)
	}
	first, next := pageQueries(spec)

	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[T](buf)
	var total int64
	var lastCompany, lastID string
	for {
		var rows *sql.Rows
		var err error
		if total == 0 {
			rows, err = db.QueryContext(ctx, first, batchSize)
		} else {
			rows, err = db.QueryContext(ctx, next, lastCompany, lastID, batchSize)
		}
		if err != nil {
			return nil, 0, fmt.Errorf("query %s: %w", spec.Table, err)
		}
		page, err := collect(rows, t.scan)
		if err != nil {
			return nil, 0, fmt.Errorf("read %s: %w", spec.Table, err)
		}
		if len(page) > 0 {
			if _, err := writer.Write(page); err != nil {
				return nil, 0, fmt.Errorf("write parquet rows: %w", err)
			}
			total += int64(len(page))
			lastCompany, lastID = t.key(page[len(page)-1])
		}
		if len(page) < batchSize {
			break
		}
	}
	if err := writer.Close(); err != nil {
		return nil, 0, fmt.Errorf("close parquet writer: %w", err)
	}
	return buf.Bytes(), total, nil
}

func collect[T any](rows *sql.Rows, scan func(rows *sql.Rows) (T, error)) ([]T, error) {
	defer func() { _ = rows.Close() }()
	out := make([]T, 0)
	for rows.Next() {
		row, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

// pageQueries selects every catalog column, rendering decimals and dates as
// text so exports keep full precision.
func pageQueries(spec catalog.EntitySpec) (string, string) {
	columns := make([]string, 0, len(spec.Fields))
	for _, field := range spec.Fields {
		column := quoteIdent(field.Column)
		switch field.Type {
		case catalog.FieldDecimal, catalog.FieldDate:
			columns = append(columns, column+"::text")
		default:
			columns = append(columns, column)
		}
	}
	tenant := quoteIdent(spec.TenantColumn())
	base := fmt.Sprintf("SELECT %s FROM %s", strings.Join(columns, ", "), quoteIdent(spec.Table))
	order := fmt.Sprintf(" ORDER BY %s, \"id\"", tenant)
	first := base + order + " LIMIT $1"
	next := base + fmt.Sprintf(" WHERE (%s, \"id\") > ($1, $2)", tenant) + order + " LIMIT $3"
	return first, next
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}
