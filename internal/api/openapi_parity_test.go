package api

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestOpenAPIContainsImplementedPaths(t *testing.T) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed")
	}
	repoRoot := filepath.Clean(filepath.Join(filepath.Dir(filename), "..", ".."))
	openAPIPath := filepath.Join(repoRoot, "api", "openapi.yaml")

	content, err := os.ReadFile(openAPIPath)
	if err != nil {
		t.Fatalf("read openapi file error = %v", err)
	}
	text := string(content)

	requiredPaths := []string{
		"/v1/health:",
		"/v1/ready:",
		"/v1/metrics:",
		"/v1/assistant/schema:",
		"/v1/assistant/ask:",
	}
	for _, path := range requiredPaths {
		if !strings.Contains(text, path) {
			t.Fatalf("openapi missing path %s", path)
		}
	}
}

func TestOpenAPIDocumentsErrorCodes(t *testing.T) {
	_, filename, _, _ := runtime.Caller(0)
	content, err := os.ReadFile(filepath.Join(filepath.Dir(filename), "..", "..", "api", "openapi.yaml"))
	if err != nil {
		t.Fatalf("read openapi file error = %v", err)
	}
	for _, code := range []string{"QUERY_REJECTED", "QUERY_FAILED", "MODEL_UNAVAILABLE", "ASSISTANT_DISABLED", "TENANT_UNKNOWN", "TENANT_LOOKUP_FAILED"} {
		if !strings.Contains(string(content), code) {
			t.Fatalf("openapi missing error code %s", code)
		}
	}
}
