package auth

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestStaticAPIKeyValidatorParsing(t *testing.T) {
	validator, err := NewStaticAPIKeyValidator("k1:c1:schema_reader|assistant_user, k2:c2:assistant_user")
	if err != nil {
		t.Fatalf("NewStaticAPIKeyValidator() error = %v", err)
	}
	identity, ok := validator.Validate(context.Background(), "k1")
	if !ok {
		t.Fatal("expected key to be valid")
	}
	if identity.CompanyID != "c1" {
		t.Fatalf("CompanyID = %q", identity.CompanyID)
	}
	if !identity.HasRole(RoleAssistantUser) || !identity.HasRole(RoleSchemaReader) {
		t.Fatalf("Roles = %v", identity.Roles)
	}
	second, ok := validator.Validate(context.Background(), "k2")
	if !ok || second.CompanyID != "c2" || second.HasRole(RoleSchemaReader) {
		t.Fatalf("second identity = %#v", second)
	}
	if _, ok := validator.Validate(context.Background(), "k3"); ok {
		t.Fatal("unknown key should be rejected")
	}
}

func TestStaticAPIKeyValidatorRejectsBadSpec(t *testing.T) {
	for _, spec := range []string{"invalid", "k1::assistant_user", "k1:c1:", "k1:c1:a,k1:c2:b"} {
		if _, err := NewStaticAPIKeyValidator(spec); err == nil {
			t.Fatalf("expected parse error for %q", spec)
		}
	}
}

func TestStaticAPIKeyValidatorErrorsDoNotLeakKey(t *testing.T) {
	_, err := NewStaticAPIKeyValidator("sk-very-secret:c1:")
	if err == nil || strings.Contains(err.Error(), "sk-very-secret") {
		t.Fatalf("error = %v", err)
	}
}

func TestMiddlewareRequiresKey(t *testing.T) {
	validator, err := NewStaticAPIKeyValidator("k1:c1:assistant_user")
	if err != nil {
		t.Fatalf("validator setup: %v", err)
	}

	mw := Middleware(slog.New(slog.NewJSONHandler(io.Discard, nil)), validator)
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	for _, header := range []string{"", "Basic azE6", "Bearer wrong"} {
		req := httptest.NewRequest(http.MethodPost, "/v1/assistant/ask", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("Authorization %q: status = %d, want %d", header, rr.Code, http.StatusUnauthorized)
		}
	}
}

func TestMiddlewareInjectsIdentity(t *testing.T) {
	validator, err := NewStaticAPIKeyValidator("k1:c1:assistant_user")
	if err != nil {
		t.Fatalf("validator setup: %v", err)
	}

	mw := Middleware(nil, validator)
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFromContext(r.Context())
		if !ok {
			t.Fatal("expected identity in context")
		}
		if identity.CompanyID != "c1" {
			t.Fatalf("CompanyID = %q", identity.CompanyID)
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	for _, set := range []func(*http.Request){
		func(r *http.Request) { r.Header.Set("X-API-Key", "k1") },
		func(r *http.Request) { r.Header.Set("Authorization", "bearer k1") },
	} {
		req := httptest.NewRequest(http.MethodPost, "/v1/assistant/ask", nil)
		set(req)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusNoContent {
			t.Fatalf("status = %d", rr.Code)
		}
	}
}
