package sqlgen

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/tallybook/tallybook/internal/catalog"
	"github.com/tallybook/tallybook/internal/ledger"
)

type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Reader runs generated SQL for one entity against any database/sql handle.
type Reader struct {
	db      Querier
	dialect Dialect
	entity  catalog.Entity
}

var _ ledger.Reader = (*Reader)(nil)

func NewReader(db Querier, dialect Dialect, entity catalog.Entity) *Reader {
	return &Reader{db: db, dialect: dialect, entity: entity}
}

func (r *Reader) FindMany(ctx context.Context, args map[string]any) ([]ledger.Record, error) {
	return r.query(ctx, catalog.FindMany, args)
}

func (r *Reader) FindFirst(ctx context.Context, args map[string]any) (ledger.Record, error) {
	return r.first(ctx, catalog.FindFirst, args)
}

func (r *Reader) FindUnique(ctx context.Context, args map[string]any) (ledger.Record, error) {
	return r.first(ctx, catalog.FindUnique, args)
}

func (r *Reader) Aggregate(ctx context.Context, args map[string]any) (ledger.Record, error) {
	record, err := r.first(ctx, catalog.Aggregate, args)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return ledger.Record{}, nil
	}
	return record, nil
}

func (r *Reader) GroupBy(ctx context.Context, args map[string]any) ([]ledger.Record, error) {
	return r.query(ctx, catalog.GroupBy, args)
}

func (r *Reader) Count(ctx context.Context, args map[string]any) (int64, error) {
	record, err := r.first(ctx, catalog.Count, args)
	if err != nil {
		return 0, err
	}
	count, ok := record["_count"].(int64)
	if !ok {
		return 0, fmt.Errorf("%s count: unexpected result %#v", r.entity, record)
	}
	return count, nil
}

func (r *Reader) first(ctx context.Context, operation catalog.Operation, args map[string]any) (ledger.Record, error) {
	records, err := r.query(ctx, operation, args)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}

func (r *Reader) query(ctx context.Context, operation catalog.Operation, args map[string]any) ([]ledger.Record, error) {
	built, err := Build(r.dialect, r.entity, operation, args)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, built.SQL, built.Args...)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", r.entity, operation, err)
	}
	defer func() { _ = rows.Close() }()

	records, err := Collect(rows, built.Columns)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", r.entity, operation, err)
	}
	return records, nil
}

// Collect scans every row and decodes it with the column plan.
func Collect(rows *sql.Rows, columns []Column) ([]ledger.Record, error) {
	records := make([]ledger.Record, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		record, err := Decode(columns, values)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return records, nil
}
