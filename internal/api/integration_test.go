//go:build integration

package api

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/tallybook/tallybook/internal/assistant"
	catalogpostgres "github.com/tallybook/tallybook/internal/catalog/postgres"
	ledgerpostgres "github.com/tallybook/tallybook/internal/ledger/postgres"
	"github.com/tallybook/tallybook/internal/llm"
	"github.com/tallybook/tallybook/internal/migrations"
	"github.com/tallybook/tallybook/internal/prompt"
	"github.com/tallybook/tallybook/internal/query"
)

type scriptedModel struct {
	mu      sync.Mutex
	replies []string
	prompts []prompt.Prompt
}

func (m *scriptedModel) Complete(_ context.Context, p prompt.Prompt) (llm.Completion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	index := len(m.prompts)
	m.prompts = append(m.prompts, p)
	if index >= len(m.replies) {
		return llm.Completion{}, fmt.Errorf("unexpected completion %d", index)
	}
	return llm.Completion{Content: m.replies[index], Model: "scripted"}, nil
}

func TestAskTopCustomersAgainstPostgres(t *testing.T) {
	db := openMigratedDatabase(t)
	seedLedger(t, db)

	model := &scriptedModel{replies: []string{
		`{"entity":"invoice","operation":"groupBy","args":{"by":["contactId"],"_sum":{"total":true},"where":{"status":"paid"},"orderBy":{"_sum":{"total":"desc"}},"take":5},"explanation":"Paid invoice totals per customer"}`,
		"Acme Supplies is your top customer with EUR 5,000.00.",
	}}
	handler := newIntegrationHandler(t, db, model)

	rr := postAsk(t, handler, "T1", `{"question":"Who are my top customers?","as_of":"2026-03-01"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	if body["kind"] != "answered" || body["answer"] != "Acme Supplies is your top customer with EUR 5,000.00." {
		t.Fatalf("body = %#v", body)
	}
	rows, ok := body["rows"].([]any)
	if !ok || len(rows) != 2 {
		t.Fatalf("rows = %#v", body["rows"])
	}
	first := rows[0].(map[string]any)
	if first["contactId"] != "c1" || first["contactName"] != "Acme Supplies" {
		t.Fatalf("rows[0] = %#v", first)
	}

	if !strings.Contains(model.prompts[0].User, "Northwind Trading") || !strings.Contains(model.prompts[0].User, "2026-03-01") {
		t.Fatalf("intent prompt = %q", model.prompts[0].User)
	}
	if strings.Contains(model.prompts[1].User, "Other Tenant Co") || strings.Contains(model.prompts[1].User, "99999") {
		t.Fatalf("answer prompt leaked another tenant: %q", model.prompts[1].User)
	}
}

func TestAskRejectsWriteOperationBeforeQuerying(t *testing.T) {
	db := openMigratedDatabase(t)
	seedLedger(t, db)

	model := &scriptedModel{replies: []string{`{"entity":"invoice","operation":"deleteMany","args":{}}`}}
	handler := newIntegrationHandler(t, db, model)

	rr := postAsk(t, handler, "T1", `{"question":"delete all invoices"}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, body=%s", rr.Code, rr.Body.String())
	}
	if decodeBody(t, rr)["error_code"] != "QUERY_REJECTED" {
		t.Fatalf("body = %s", rr.Body.String())
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM invoice`).Scan(&count); err != nil {
		t.Fatalf("count invoices: %v", err)
	}
	if count != 4 {
		t.Fatalf("invoice count = %d, want 4", count)
	}
}

func TestAskUnknownCompanyIsForbidden(t *testing.T) {
	db := openMigratedDatabase(t)
	seedLedger(t, db)

	handler := newIntegrationHandler(t, db, &scriptedModel{})
	rr := postAsk(t, handler, "T404", `{"question":"How many invoices?"}`)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d, body=%s", rr.Code, rr.Body.String())
	}
}

func newIntegrationHandler(t *testing.T, db *sql.DB, model llm.Model) http.Handler {
	t.Helper()
	companies := catalogpostgres.NewRepository(db)
	executor := query.NewExecutor(ledgerpostgres.NewSource(db), nil, 5*time.Second)
	return NewHandler(loadConfig(t, map[string]string{"TALLYBOOK_DB_DSN": "postgres://integration"}), Dependencies{
		Companies: companies,
		Assistant: assistant.NewService(model, executor, nil, assistant.Config{}),
		Readiness: CombineReadinessChecks(companies.HealthCheck),
	})
}

func openMigratedDatabase(t *testing.T) *sql.DB {
	t.Helper()
	adminDSN := strings.TrimSpace(os.Getenv("TALLYBOOK_TEST_DATABASE_DSN"))
	if adminDSN == "" {
		t.Skip("TALLYBOOK_TEST_DATABASE_DSN is not set")
	}

	testDSN, cleanup := createTemporaryDatabase(t, adminDSN)
	t.Cleanup(cleanup)

	db, err := sql.Open("pgx", testDSN)
	if err != nil {
		t.Fatalf("sql.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	if _, err := migrations.NewRunner().Up(ctx, db, 0); err != nil {
		t.Fatalf("runner.Up() error = %v", err)
	}
	return db
}

func seedLedger(t *testing.T, db *sql.DB) {
	t.Helper()
	statements := []string{
		`INSERT INTO company (id, name, base_currency) VALUES ('T1', 'Northwind Trading', 'EUR'), ('T2', 'Other Tenant Co', 'USD')`,
		`INSERT INTO contact (id, company_id, name, contact_type) VALUES
			('c1', 'T1', 'Acme Supplies', 'customer'),
			('c2', 'T1', 'Globex', 'customer'),
			('c9', 'T2', 'Other Tenant Customer', 'customer')`,
		`INSERT INTO invoice (id, company_id, contact_id, number, status, issue_date, currency, subtotal, total, amount_paid) VALUES
			('i1', 'T1', 'c1', 'INV-1', 'paid', '2026-01-10', 'EUR', 5000.00, 5000.00, 5000.00),
			('i2', 'T1', 'c2', 'INV-2', 'paid', '2026-02-10', 'EUR', 300.00, 300.00, 300.00),
			('i3', 'T1', 'c1', 'INV-3', 'sent', '2026-02-11', 'EUR', 800.00, 800.00, 0),
			('i4', 'T2', 'c9', 'INV-1', 'paid', '2026-02-12', 'USD', 99999.00, 99999.00, 99999.00)`,
	}
	for _, statement := range statements {
		if _, err := db.Exec(statement); err != nil {
			t.Fatalf("seed ledger: %v", err)
		}
	}
}

func createTemporaryDatabase(t *testing.T, adminDSN string) (string, func()) {
	t.Helper()

	parsed, err := url.Parse(adminDSN)
	if err != nil {
		t.Fatalf("url.Parse(adminDSN) error = %v", err)
	}
	if strings.TrimPrefix(parsed.Path, "/") == "" {
		t.Fatal("admin DSN must include a database name")
	}

	adminDB, err := sql.Open("pgx", adminDSN)
	if err != nil {
		t.Fatalf("sql.Open(adminDSN) error = %v", err)
	}

	name := fmt.Sprintf("tallybook_it_api_%d", time.Now().UnixNano())
	if _, err := adminDB.Exec(`CREATE DATABASE ` + name); err != nil {
		t.Fatalf("CREATE DATABASE failed: %v", err)
	}

	testURL := *parsed
	testURL.Path = "/" + name
	testDSN := testURL.String()

	cleanup := func() {
		defer func() { _ = adminDB.Close() }()
		if _, err := adminDB.Exec(`SELECT pg_terminate_backend(pid) FROM pg_stat_activity WHERE datname = $1`, name); err != nil {
			t.Fatalf("terminate test db sessions: %v", err)
		}
		if _, err := adminDB.Exec(`DROP DATABASE ` + name); err != nil {
			t.Fatalf("DROP DATABASE failed: %v", err)
		}
	}
	return testDSN, cleanup
}
