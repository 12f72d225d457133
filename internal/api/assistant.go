package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tallybook/tallybook/internal/assistant"
	"github.com/tallybook/tallybook/internal/auth"
	"github.com/tallybook/tallybook/internal/catalog"
	"github.com/tallybook/tallybook/internal/config"
	"github.com/tallybook/tallybook/internal/intent"
	"github.com/tallybook/tallybook/internal/ledger"
)

const (
	rejectedMessage = "That question can't be answered from your books. Try asking about invoices, contacts, accounts or journal entries."
	failedMessage   = "The lookup could not be completed. Please try again in a moment."
	modelMessage    = "The assistant is temporarily unavailable. Please try again in a moment."
	maxAskBodyBytes = 64 << 10
)

type askRequest struct {
	Question string `json:"question"`
	AsOf     string `json:"as_of,omitempty"`
}

type askResponse struct {
	QuestionID  string          `json:"question_id"`
	Kind        assistant.Kind  `json:"kind"`
	Answer      string          `json:"answer,omitempty"`
	Message     string          `json:"message,omitempty"`
	Explanation string          `json:"explanation,omitempty"`
	Rows        []ledger.Record `json:"rows,omitempty"`
}

func handleSchema(w http.ResponseWriter, r *http.Request) {
	if _, err := tenantFromRequest(r); err != nil {
		writeError(r.Context(), w, http.StatusUnauthorized, "TENANT_REQUIRED", err.Error(), false, nil)
		return
	}
	if err := requireAnyRole(r, auth.RoleSchemaReader, auth.RoleAssistantUser); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entities":   catalog.EntityNames(),
		"operations": catalog.OperationNames(),
		"limits": map[string]int{
			"find_many": intent.ListLimit,
			"group_by":  intent.GroupLimit,
		},
		"schema": catalog.DescribeSchema(),
	})
}

func handleAsk(cfg config.Config, deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Assistant == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "ASSISTANT_DISABLED", "the assistant is not configured", false, nil)
		return
	}
	tenantID, err := tenantFromRequest(r)
	if err != nil {
		writeError(r.Context(), w, http.StatusUnauthorized, "TENANT_REQUIRED", err.Error(), false, nil)
		return
	}
	if err := requireAnyRole(r, auth.RoleAssistantUser); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	var req askRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAskBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid ask request body", false, map[string]any{"details": err.Error()})
		return
	}

	asOf, err := resolveAsOf(req.AsOf, deps.Now)
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_AS_OF", err.Error(), false, nil)
		return
	}

	tenant := intent.Tenant{TenantID: tenantID, DisplayName: tenantID, AsOfDate: asOf}
	if deps.Companies != nil {
		company, err := deps.Companies.GetCompany(r.Context(), tenantID)
		switch {
		case errors.Is(err, catalog.ErrNotFound):
			writeError(r.Context(), w, http.StatusForbidden, "TENANT_UNKNOWN", "no company is registered for this tenant", false, nil)
			return
		case err != nil:
			if deps.Logger != nil {
				deps.Logger.Error("company lookup failed", "tenant_id", tenantID, "error", err)
			}
			writeError(r.Context(), w, http.StatusServiceUnavailable, "TENANT_LOOKUP_FAILED", "company details are unavailable", true, nil)
			return
		}
		tenant.DisplayName = company.Name
		tenant.BaseCurrency = company.BaseCurrency
	}

	outcome, err := deps.Assistant.Ask(r.Context(), tenant, req.Question)
	switch {
	case errors.Is(err, assistant.ErrEmptyQuestion), errors.Is(err, assistant.ErrQuestionTooLong):
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_QUESTION", err.Error(), false, map[string]any{"max_length": cfg.Assistant.MaxQuestionLength})
		return
	case errors.Is(err, assistant.ErrModelUnavailable):
		writeError(r.Context(), w, http.StatusBadGateway, "MODEL_UNAVAILABLE", modelMessage, true, questionContext(outcome))
		return
	case err != nil:
		writeError(r.Context(), w, http.StatusInternalServerError, "ASK_FAILED", failedMessage, true, questionContext(outcome))
		return
	}

	switch outcome.Kind {
	case assistant.KindAnswered:
		writeJSON(w, http.StatusOK, askResponse{
			QuestionID:  outcome.QuestionID,
			Kind:        outcome.Kind,
			Answer:      outcome.Answer,
			Explanation: outcome.Explanation,
			Rows:        outcome.Rows,
		})
	case assistant.KindNonAnswer:
		writeJSON(w, http.StatusOK, askResponse{
			QuestionID: outcome.QuestionID,
			Kind:       outcome.Kind,
			Message:    outcome.ModelMessage,
		})
	case assistant.KindRejected:
		writeError(r.Context(), w, http.StatusUnprocessableEntity, "QUERY_REJECTED", rejectedMessage, false, questionContext(outcome))
	default:
		writeError(r.Context(), w, http.StatusBadGateway, "QUERY_FAILED", failedMessage, true, questionContext(outcome))
	}
}

func questionContext(outcome assistant.Outcome) map[string]any {
	if outcome.QuestionID == "" {
		return nil
	}
	return map[string]any{"question_id": outcome.QuestionID}
}

func resolveAsOf(value string, now func() time.Time) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value != "" {
		parsed, err := time.Parse("2006-01-02", value)
		if err != nil {
			return time.Time{}, fmt.Errorf("as_of must be a YYYY-MM-DD date")
		}
		return parsed, nil
	}
	if now == nil {
		now = time.Now
	}
	current := now().UTC()
	return time.Date(current.Year(), current.Month(), current.Day(), 0, 0, 0, 0, time.UTC), nil
}

func tenantFromRequest(r *http.Request) (string, error) {
	if identity, ok := auth.IdentityFromContext(r.Context()); ok {
		if strings.TrimSpace(identity.CompanyID) != "" {
			return identity.CompanyID, nil
		}
	}
	tenantID := strings.TrimSpace(r.Header.Get("X-Tenant-ID"))
	if tenantID == "" {
		return "", fmt.Errorf("tenant context is required")
	}
	return tenantID, nil
}

// requireAnyRole passes unauthenticated requests; those only reach handlers
// when auth is disabled.
func requireAnyRole(r *http.Request, roles ...string) error {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		return nil
	}
	for _, role := range roles {
		if identity.HasRole(role) {
			return nil
		}
	}
	return fmt.Errorf("missing required role %q", roles[0])
}
