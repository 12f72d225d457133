package duckdb

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/parquet-go/parquet-go"

	"github.com/tallybook/tallybook/internal/catalog"
	"github.com/tallybook/tallybook/internal/ledger"
	"github.com/tallybook/tallybook/internal/storage"
)

type invoiceRow struct {
	ID         string  `parquet:"id"`
	CompanyID  string  `parquet:"company_id"`
	ContactID  *string `parquet:"contact_id,optional"`
	Number     string  `parquet:"number"`
	Status     string  `parquet:"status"`
	IssueDate  string  `parquet:"issue_date"`
	DueDate    *string `parquet:"due_date,optional"`
	Currency   string  `parquet:"currency"`
	Subtotal   string  `parquet:"subtotal"`
	TaxTotal   string  `parquet:"tax_total"`
	Total      string  `parquet:"total"`
	AmountPaid string  `parquet:"amount_paid"`
}

type contactRow struct {
	ID        string  `parquet:"id"`
	CompanyID string  `parquet:"company_id"`
	Name      string  `parquet:"name"`
	Email     *string `parquet:"email,optional"`
	Phone     *string `parquet:"phone,optional"`
	Type      string  `parquet:"contact_type"`
	TaxNumber *string `parquet:"tax_number,optional"`
}

func TestGroupByReadsReplica(t *testing.T) {
	store := newMemoryStore(t)
	store.putParquet(t, "replica/invoice.parquet", "v1", []invoiceRow{
		invoice("i1", "T1", "c1", "paid", "2026-01-10", "5000.00"),
		invoice("i2", "T1", "c1", "sent", "2026-02-10", "250.50"),
		invoice("i3", "T1", "c2", "paid", "2026-02-11", "3000.00"),
		invoice("i4", "T2", "c9", "paid", "2026-02-12", "99999.00"),
	})

	source := openSource(t, store)
	reader, err := source.Reader(catalog.Invoice)
	if err != nil {
		t.Fatalf("Reader() error = %v", err)
	}
	records, err := reader.GroupBy(context.Background(), map[string]any{
		"by":      []any{"contactId"},
		"_sum":    map[string]any{"total": true},
		"where":   map[string]any{"companyId": "T1"},
		"orderBy": map[string]any{"_sum": map[string]any{"total": "desc"}},
		"take":    float64(50),
	})
	if err != nil {
		t.Fatalf("GroupBy() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %#v", records)
	}
	if records[0]["contactId"] != "c1" || records[0]["_sum"].(map[string]any)["total"] != 5250.5 {
		t.Fatalf("records[0] = %#v", records[0])
	}
	if records[1]["contactId"] != "c2" {
		t.Fatalf("records[1] = %#v", records[1])
	}
}

func TestFindManyDecodesDatesAndFiltersRelations(t *testing.T) {
	store := newMemoryStore(t)
	store.putParquet(t, "replica/invoice.parquet", "v1", []invoiceRow{
		invoice("i1", "T1", "c1", "paid", "2026-01-10", "10.00"),
		invoice("i2", "T1", "c2", "paid", "2026-01-11", "20.00"),
	})
	store.putParquet(t, "replica/contact.parquet", "v1", []contactRow{
		{ID: "c1", CompanyID: "T1", Name: "Acme Supplies", Type: "customer"},
		{ID: "c2", CompanyID: "T1", Name: "Globex", Type: "customer"},
	})

	source := openSource(t, store)
	reader, _ := source.Reader(catalog.Invoice)
	records, err := reader.FindMany(context.Background(), map[string]any{
		"where": map[string]any{
			"companyId": "T1",
			"contact":   map[string]any{"name": map[string]any{"startsWith": "acme", "mode": "insensitive"}},
		},
		"select": map[string]any{"id": true, "issueDate": true, "total": true},
		"take":   float64(100),
	})
	if err != nil {
		t.Fatalf("FindMany() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records = %#v", records)
	}
	if records[0]["id"] != "i1" || records[0]["issueDate"] != "2026-01-10" || records[0]["total"] != 10.0 {
		t.Fatalf("records[0] = %#v", records[0])
	}
}

func TestRefreshSwapsNewExport(t *testing.T) {
	store := newMemoryStore(t)
	store.putParquet(t, "replica/invoice.parquet", "v1", []invoiceRow{invoice("i1", "T1", "c1", "paid", "2026-01-10", "10.00")})

	source := openSource(t, store)
	reader, _ := source.Reader(catalog.Invoice)
	count := func() int64 {
		t.Helper()
		n, err := reader.Count(context.Background(), map[string]any{"where": map[string]any{"companyId": "T1"}})
		if err != nil {
			t.Fatalf("Count() error = %v", err)
		}
		return n
	}
	if got := count(); got != 1 {
		t.Fatalf("count = %d", got)
	}

	store.putParquet(t, "replica/invoice.parquet", "v2", []invoiceRow{
		invoice("i1", "T1", "c1", "paid", "2026-01-10", "10.00"),
		invoice("i2", "T1", "c1", "paid", "2026-01-12", "12.00"),
	})
	if got := count(); got != 2 {
		t.Fatalf("count after refresh = %d", got)
	}
	if store.gets("replica/invoice.parquet") != 2 {
		t.Fatalf("downloads = %d", store.gets("replica/invoice.parquet"))
	}
	if got := count(); got != 2 || store.gets("replica/invoice.parquet") != 2 {
		t.Fatal("unchanged export should not be downloaded again")
	}
}

func TestMissingExportIsUnsupported(t *testing.T) {
	source := openSource(t, newMemoryStore(t))
	reader, _ := source.Reader(catalog.JournalEntry)
	_, err := reader.Count(context.Background(), map[string]any{"where": map[string]any{"companyId": "T1"}})
	if !errors.Is(err, ledger.ErrUnsupportedEntity) {
		t.Fatalf("Count() error = %v", err)
	}
}

func TestViewSQLCastsDeclaredTypes(t *testing.T) {
	spec, _ := catalog.Spec(catalog.Account)
	got := viewSQL(spec, "/tmp/it's.parquet")
	want := `CREATE OR REPLACE VIEW "account" AS SELECT CAST("id" AS VARCHAR) AS "id", CAST("company_id" AS VARCHAR) AS "company_id", CAST("code" AS VARCHAR) AS "code", CAST("name" AS VARCHAR) AS "name", CAST("account_type" AS VARCHAR) AS "account_type", CAST("is_active" AS BOOLEAN) AS "is_active" FROM read_parquet('/tmp/it''s.parquet')`
	if got != want {
		t.Fatalf("viewSQL() = %s\nwant        %s", got, want)
	}
}

func invoice(id, tenant, contact, status, issued, total string) invoiceRow {
	contactID := contact
	return invoiceRow{
		ID:         id,
		CompanyID:  tenant,
		ContactID:  &contactID,
		Number:     "INV-" + id,
		Status:     status,
		IssueDate:  issued,
		Currency:   "EUR",
		Subtotal:   total,
		TaxTotal:   "0",
		Total:      total,
		AmountPaid: "0",
	}
}

func openSource(t *testing.T, store storage.ObjectStore) *Source {
	t.Helper()
	source, err := Open(store, Options{Prefix: "replica", RefreshInterval: -1})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = source.Close() })
	return source
}

type memoryObject struct {
	body []byte
	etag string
}

type memoryStore struct {
	mu       sync.Mutex
	objects  map[string]memoryObject
	getCount map[string]int
}

func newMemoryStore(t *testing.T) *memoryStore {
	t.Helper()
	return &memoryStore{objects: map[string]memoryObject{}, getCount: map[string]int{}}
}

func (m *memoryStore) putParquet(t *testing.T, key, etag string, rows any) {
	t.Helper()
	buf := bytes.NewBuffer(nil)
	var err error
	switch typed := rows.(type) {
	case []invoiceRow:
		err = writeRows(buf, typed)
	case []contactRow:
		err = writeRows(buf, typed)
	default:
		err = fmt.Errorf("unsupported rows %T", rows)
	}
	if err != nil {
		t.Fatalf("write parquet: %v", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = memoryObject{body: buf.Bytes(), etag: etag}
}

func writeRows[T any](w io.Writer, rows []T) error {
	writer := parquet.NewGenericWriter[T](w)
	if _, err := writer.Write(rows); err != nil {
		return err
	}
	return writer.Close()
}

func (m *memoryStore) gets(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getCount[key]
}

func (m *memoryStore) Put(context.Context, string, io.Reader, int64, storage.PutOptions) (storage.ObjectInfo, error) {
	return storage.ObjectInfo{}, nil
}

func (m *memoryStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	object, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	m.getCount[key]++
	return io.NopCloser(bytes.NewReader(object.body)), nil
}

func (m *memoryStore) Stat(_ context.Context, key string) (storage.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	object, ok := m.objects[key]
	if !ok {
		return storage.ObjectInfo{}, storage.ErrObjectNotFound
	}
	return storage.ObjectInfo{Key: key, Size: int64(len(object.body)), ETag: object.etag}, nil
}

func (m *memoryStore) Delete(context.Context, string) error {
	return nil
}
