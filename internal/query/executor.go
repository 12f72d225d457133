package query

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/tallybook/tallybook/internal/catalog"
	"github.com/tallybook/tallybook/internal/intent"
	"github.com/tallybook/tallybook/internal/ledger"
	"github.com/tallybook/tallybook/internal/observability"
)

const (
	contactIDField   = "contactId"
	contactNameField = "contactName"
)

// Executor runs validated intents against a ledger source. It performs no
// validation of its own and never retries.
type Executor struct {
	source   ledger.Source
	logger   *slog.Logger
	deadline time.Duration
}

func NewExecutor(source ledger.Source, logger *slog.Logger, deadline time.Duration) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	if deadline <= 0 {
		deadline = DefaultDeadline
	}
	return &Executor{source: source, logger: logger, deadline: deadline}
}

func (e *Executor) Deadline() time.Duration {
	return e.deadline
}

type outcome struct {
	data []ledger.Record
	err  error
}

// Execute races the ledger call against the deadline. When the deadline wins
// the derived context is cancelled and the call is abandoned; its outcome is
// unknown to the caller.
func (e *Executor) Execute(ctx context.Context, validated intent.ValidatedIntent) Result {
	if !validated.Valid() {
		return Failed("intent was not validated")
	}
	if e.source == nil {
		return Failed("ledger source is not configured")
	}

	entity := validated.Entity().String()
	operation := validated.Operation().String()
	start := time.Now()

	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if recovered := recover(); recovered != nil {
				done <- outcome{err: fmt.Errorf("ledger call panicked: %v", recovered)}
			}
		}()
		data, err := e.run(callCtx, validated)
		done <- outcome{data: data, err: err}
	}()

	timer := time.NewTimer(e.deadline)
	defer timer.Stop()

	select {
	case result := <-done:
		elapsed := time.Since(start)
		if result.err != nil {
			observability.ObserveQueryExecution(entity, operation, "error", elapsed)
			e.logger.Warn("ledger query failed", "entity", entity, "operation", operation, "duration_ms", elapsed.Milliseconds(), "error", result.err)
			return Failed(result.err.Error())
		}
		observability.ObserveQueryExecution(entity, operation, "success", elapsed)
		e.logger.Debug("ledger query completed", "entity", entity, "operation", operation, "rows", len(result.data), "duration_ms", elapsed.Milliseconds())
		return Succeeded(result.data)
	case <-timer.C:
		observability.ObserveQueryExecution(entity, operation, "timeout", time.Since(start))
		e.logger.Warn("ledger query timed out", "entity", entity, "operation", operation, "deadline_ms", e.deadline.Milliseconds())
		return Failed(fmt.Sprintf("query timed out after %dms", e.deadline.Milliseconds()))
	case <-ctx.Done():
		observability.ObserveQueryExecution(entity, operation, "cancelled", time.Since(start))
		return Failed(fmt.Sprintf("query cancelled: %v", ctx.Err()))
	}
}

func (e *Executor) run(ctx context.Context, validated intent.ValidatedIntent) ([]ledger.Record, error) {
	reader, err := e.source.Reader(validated.Entity())
	if err != nil {
		return nil, err
	}
	args := validated.Args()

	switch validated.Operation() {
	case catalog.FindMany:
		return reader.FindMany(ctx, args)
	case catalog.FindFirst:
		record, err := reader.FindFirst(ctx, args)
		return single(record, err)
	case catalog.FindUnique:
		record, err := reader.FindUnique(ctx, args)
		return single(record, err)
	case catalog.Aggregate:
		record, err := reader.Aggregate(ctx, args)
		if err != nil {
			return nil, err
		}
		if record == nil {
			record = ledger.Record{}
		}
		return []ledger.Record{record}, nil
	case catalog.GroupBy:
		rows, err := reader.GroupBy(ctx, args)
		if err != nil {
			return nil, err
		}
		return e.enrichContacts(ctx, validated.TenantID(), rows), nil
	case catalog.Count:
		count, err := reader.Count(ctx, args)
		if err != nil {
			return nil, err
		}
		return []ledger.Record{{"_count": count}}, nil
	default:
		return nil, fmt.Errorf("unsupported operation %q", validated.Operation().String())
	}
}

func single(record ledger.Record, err error) ([]ledger.Record, error) {
	if err != nil {
		return nil, err
	}
	if record == nil {
		return []ledger.Record{}, nil
	}
	return []ledger.Record{record}, nil
}

// enrichContacts adds contactName to grouped rows keyed by contactId using
// one lookup bounded by the number of distinct IDs.
func (e *Executor) enrichContacts(ctx context.Context, tenantID string, rows []ledger.Record) []ledger.Record {
	carriesContact := false
	ids := make([]any, 0)
	seen := map[string]bool{}
	for _, row := range rows {
		value, ok := row[contactIDField]
		if !ok {
			continue
		}
		carriesContact = true
		id, ok := value.(string)
		if !ok || id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	if !carriesContact {
		return rows
	}

	names := map[string]string{}
	if len(ids) > 0 {
		resolved, err := e.lookupContactNames(ctx, tenantID, ids)
		if err != nil {
			e.logger.Warn("contact name lookup failed", "contacts", len(ids), "error", err)
		} else {
			names = resolved
		}
	}

	enriched := make([]ledger.Record, 0, len(rows))
	for _, row := range rows {
		out := maps.Clone(row)
		if out == nil {
			out = ledger.Record{}
		}
		name := UnknownContact
		if id, ok := row[contactIDField].(string); ok {
			if resolved, ok := names[id]; ok {
				name = resolved
			}
		}
		out[contactNameField] = name
		enriched = append(enriched, out)
	}
	return enriched
}

func (e *Executor) lookupContactNames(ctx context.Context, tenantID string, ids []any) (map[string]string, error) {
	reader, err := e.source.Reader(catalog.Contact)
	if err != nil {
		return nil, err
	}
	contacts, err := reader.FindMany(ctx, map[string]any{
		"where": map[string]any{
			catalog.TenantField: tenantID,
			"id":                map[string]any{"in": ids},
		},
		"select": map[string]any{"id": true, "name": true},
		"take":   float64(len(ids)),
	})
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(contacts))
	for _, contact := range contacts {
		id, idOK := contact["id"].(string)
		name, nameOK := contact["name"].(string)
		if idOK && nameOK {
			names[id] = name
		}
	}
	return names, nil
}
