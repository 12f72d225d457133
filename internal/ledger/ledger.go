package ledger

import (
	"context"
	"errors"

	"github.com/tallybook/tallybook/internal/catalog"
)

// ErrUnsupportedEntity is returned by a Source that has no reader for an
// entity, for example a replica whose export has not run yet.
var ErrUnsupportedEntity = errors.New("ledger: entity not available")

// Record is one decoded row keyed by catalog field name. Aggregate results
// nest per aggregate, e.g. {"_sum": {"total": 120.5}}.
type Record = map[string]any

// Reader is the read-only query surface for one entity. Args use the same
// shape the model proposes: where, select, orderBy, take, skip, by and the
// _count/_sum/_avg/_min/_max aggregates.
type Reader interface {
	FindMany(ctx context.Context, args map[string]any) ([]Record, error)
	// FindFirst and FindUnique return a nil Record when nothing matches.
	FindFirst(ctx context.Context, args map[string]any) (Record, error)
	FindUnique(ctx context.Context, args map[string]any) (Record, error)
	Aggregate(ctx context.Context, args map[string]any) (Record, error)
	GroupBy(ctx context.Context, args map[string]any) ([]Record, error)
	Count(ctx context.Context, args map[string]any) (int64, error)
}

type Source interface {
	Reader(entity catalog.Entity) (Reader, error)
}
