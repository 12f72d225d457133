package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaultsForDevProfile(t *testing.T) {
	cfg, err := Load("tallybook-api", mapLookup(map[string]string{}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileDev {
		t.Fatalf("Profile = %q, want %q", cfg.Profile, ProfileDev)
	}
	if cfg.HTTP.Address != ":8080" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.Observability.LogLevel != slog.LevelDebug {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if cfg.Auth.Required {
		t.Fatal("Auth.Required should default to false in dev")
	}
	if cfg.Ledger.Source != LedgerSourcePostgres {
		t.Fatalf("Ledger.Source = %q", cfg.Ledger.Source)
	}
	if cfg.Assistant.QueryDeadline != 5*time.Second {
		t.Fatalf("Assistant.QueryDeadline = %s", cfg.Assistant.QueryDeadline)
	}
	if cfg.Replica.Prefix != "replica" || cfg.Replica.ExportInterval != 15*time.Minute {
		t.Fatalf("Replica = %#v", cfg.Replica)
	}
	if cfg.AI.Enabled {
		t.Fatal("AI.Enabled should default to false")
	}
	if cfg.AI.Temperature != 0 {
		t.Fatalf("AI.Temperature = %f", cfg.AI.Temperature)
	}
}

func TestLoadProdProfileDefaults(t *testing.T) {
	cfg, err := Load("tallybook-api", mapLookup(map[string]string{"TALLYBOOK_PROFILE": "prod"}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.Auth.Required {
		t.Fatal("Auth.Required should default to true in prod")
	}
	if cfg.Observability.LogLevel != slog.LevelInfo {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if !cfg.ObjectStore.UseSSL {
		t.Fatal("ObjectStore.UseSSL should default to true in prod")
	}
	if cfg.ObjectStore.AutoCreateBucket {
		t.Fatal("ObjectStore.AutoCreateBucket should default to false in prod")
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	cfg, err := Load("tallybook-api", mapLookup(map[string]string{
		"TALLYBOOK_PROFILE":                       "test",
		"TALLYBOOK_SERVICE_NAME":                  "tallybook-custom",
		"TALLYBOOK_HTTP_ADDR":                     ":9999",
		"TALLYBOOK_HTTP_READ_TIMEOUT":             "2s",
		"TALLYBOOK_LOG_LEVEL":                     "error",
		"TALLYBOOK_AUTH_REQUIRED":                 "true",
		"TALLYBOOK_AUTH_STATIC_KEYS":              "k1:c1:assistant_user",
		"TALLYBOOK_DB_DSN":                        "postgres://example",
		"TALLYBOOK_DB_MAX_OPEN_CONNS":             "42",
		"TALLYBOOK_DATA_SOURCE":                   " Replica ",
		"TALLYBOOK_REPLICA_REFRESH_INTERVAL":      "10s",
		"TALLYBOOK_OBJECTSTORE_BUCKET":            "tallybook-prod",
		"TALLYBOOK_OBJECTSTORE_USE_SSL":           "true",
		"TALLYBOOK_REPLICA_PREFIX":                "exports/replica",
		"TALLYBOOK_REPLICA_EXPORT_INTERVAL":       "1h",
		"TALLYBOOK_REPLICA_BATCH_SIZE":            "250",
		"TALLYBOOK_AI_ENABLED":                    "true",
		"TALLYBOOK_AI_BASE_URL":                   "https://llm.example.com",
		"TALLYBOOK_AI_API_KEY":                    "secret-key",
		"TALLYBOOK_AI_MODEL":                      "gpt-4.1",
		"TALLYBOOK_AI_TEMPERATURE":                "0.2",
		"TALLYBOOK_AI_MAX_TOKENS":                 "512",
		"TALLYBOOK_AI_TIMEOUT":                    "9s",
		"TALLYBOOK_ASSISTANT_QUERY_DEADLINE":      "750ms",
		"TALLYBOOK_ASSISTANT_MAX_QUESTION_LENGTH": "300",
		"TALLYBOOK_ASSISTANT_ANSWER_ROW_LIMIT":    "20",
	}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Service.Name != "tallybook-custom" {
		t.Fatalf("Service.Name = %q", cfg.Service.Name)
	}
	if cfg.HTTP.Address != ":9999" || cfg.HTTP.ReadTimeout != 2*time.Second {
		t.Fatalf("HTTP = %#v", cfg.HTTP)
	}
	if cfg.Observability.LogLevel != slog.LevelError {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if !cfg.Auth.Required || cfg.Auth.StaticKeys != "k1:c1:assistant_user" {
		t.Fatalf("Auth = %#v", cfg.Auth)
	}
	if cfg.Database.DSN != "postgres://example" || cfg.Database.MaxOpenConns != 42 {
		t.Fatalf("Database = %#v", cfg.Database)
	}
	if cfg.Ledger.Source != LedgerSourceReplica || cfg.Ledger.RefreshInterval != 10*time.Second {
		t.Fatalf("Ledger = %#v", cfg.Ledger)
	}
	if cfg.ObjectStore.Bucket != "tallybook-prod" || !cfg.ObjectStore.UseSSL {
		t.Fatalf("ObjectStore = %#v", cfg.ObjectStore)
	}
	if cfg.Replica.Prefix != "exports/replica" || cfg.Replica.ExportInterval != time.Hour || cfg.Replica.BatchSize != 250 {
		t.Fatalf("Replica = %#v", cfg.Replica)
	}
	if !cfg.AI.Enabled || cfg.AI.BaseURL != "https://llm.example.com" || cfg.AI.APIKey != "secret-key" {
		t.Fatalf("AI = %#v", cfg.AI)
	}
	if cfg.AI.Model != "gpt-4.1" || cfg.AI.Temperature != 0.2 || cfg.AI.MaxTokens != 512 || cfg.AI.Timeout != 9*time.Second {
		t.Fatalf("AI = %#v", cfg.AI)
	}
	if cfg.Assistant.QueryDeadline != 750*time.Millisecond {
		t.Fatalf("Assistant.QueryDeadline = %s", cfg.Assistant.QueryDeadline)
	}
	if cfg.Assistant.MaxQuestionLength != 300 || cfg.Assistant.AnswerRowLimit != 20 {
		t.Fatalf("Assistant = %#v", cfg.Assistant)
	}
}

func TestLoadErrorsOnInvalidValues(t *testing.T) {
	tests := []map[string]string{
		{"TALLYBOOK_PROFILE": "oops"},
		{"TALLYBOOK_HTTP_READ_TIMEOUT": "NaN"},
		{"TALLYBOOK_DB_MAX_OPEN_CONNS": "oops"},
		{"TALLYBOOK_AI_TEMPERATURE": "bad"},
		{"TALLYBOOK_AUTH_REQUIRED": "not-bool"},
		{"TALLYBOOK_LOG_LEVEL": "verbose"},
		{"TALLYBOOK_DATA_SOURCE": "mysql"},
		{"TALLYBOOK_ASSISTANT_QUERY_DEADLINE": "0s"},
		{"TALLYBOOK_REPLICA_BATCH_SIZE": "0"},
		{"TALLYBOOK_AI_ENABLED": "true", "TALLYBOOK_AI_MODEL": ""},
		{"TALLYBOOK_PROFILE": "prod", "TALLYBOOK_AI_ENABLED": "true"},
	}
	for _, env := range tests {
		if _, err := Load("tallybook-api", mapLookup(env)); err == nil {
			t.Fatalf("Load() expected error for env %#v", env)
		}
	}
}

func TestLoadErrorNamesTheVariable(t *testing.T) {
	_, err := Load("tallybook-api", mapLookup(map[string]string{"TALLYBOOK_AI_TIMEOUT": "soon"}))
	if err == nil || !strings.Contains(err.Error(), "TALLYBOOK_AI_TIMEOUT") {
		t.Fatalf("Load() error = %v", err)
	}
}

func mapLookup(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}
