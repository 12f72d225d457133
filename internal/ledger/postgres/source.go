package postgres

import (
	"context"
	"fmt"

	"github.com/tallybook/tallybook/internal/catalog"
	"github.com/tallybook/tallybook/internal/ledger"
	"github.com/tallybook/tallybook/internal/ledger/sqlgen"
)

// DB is the subset of *sql.DB the source needs.
type DB interface {
	sqlgen.Querier
	PingContext(ctx context.Context) error
}

// Source reads ledger entities from the primary Postgres database.
type Source struct {
	db DB
}

var _ ledger.Source = (*Source)(nil)

func NewSource(db DB) *Source {
	return &Source{db: db}
}

func (s *Source) Reader(entity catalog.Entity) (ledger.Reader, error) {
	if _, ok := catalog.Spec(entity); !ok {
		return nil, fmt.Errorf("%w: %q", ledger.ErrUnsupportedEntity, entity.String())
	}
	return sqlgen.NewReader(s.db, sqlgen.Postgres, entity), nil
}

func (s *Source) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping ledger db: %w", err)
	}
	return nil
}
