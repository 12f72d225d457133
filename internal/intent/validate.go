package intent

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/tallybook/tallybook/internal/catalog"
)

// forbiddenTokens is a textual second line behind the entity and operation
// allowlists. It is matched against lowercased canonical JSON.
var forbiddenTokens = []string{
	"create",
	"update",
	"delete",
	"upsert",
	"createmany",
	"updatemany",
	"deletemany",
	"$executeraw",
	"$queryraw",
	"executeraw",
	"queryraw",
	"drop",
	"truncate",
}

// Validate runs every gate in order and either returns a tenant-scoped,
// bounded intent or a *Rejection. It is a pure function of its inputs.
func Validate(raw RawIntent, tenant Tenant) (ValidatedIntent, error) {
	tenantID := strings.TrimSpace(tenant.TenantID)
	if tenantID == "" {
		return ValidatedIntent{}, &Rejection{Reason: ReasonTenantRequired, Message: "tenant context is required"}
	}

	if raw.Sentinel != "" {
		return ValidatedIntent{}, sentinelRejection(raw)
	}

	entity, ok := catalog.ParseEntity(raw.Entity)
	if !ok {
		return ValidatedIntent{}, &Rejection{
			Reason:  ReasonUnknownEntity,
			Message: "unknown entity; allowed: " + strings.Join(catalog.EntityNames(), ", "),
			Detail:  fmt.Sprintf("entity=%q", raw.Entity),
		}
	}

	operation, ok := catalog.ParseOperation(raw.Operation)
	if !ok {
		return ValidatedIntent{}, &Rejection{
			Reason:  ReasonUnknownOperation,
			Message: "unknown operation; allowed: " + strings.Join(catalog.OperationNames(), ", "),
			Detail:  fmt.Sprintf("operation=%q", raw.Operation),
		}
	}

	args, canonical, err := canonicalArgs(raw.Args)
	if err != nil {
		return ValidatedIntent{}, &Rejection{
			Reason:  ReasonMalformedIntent,
			Message: "arguments are not a JSON object",
			Detail:  err.Error(),
		}
	}
	if token, found := findForbiddenToken(canonical); found {
		return ValidatedIntent{}, &Rejection{
			Reason:  ReasonForbiddenContent,
			Message: "arguments contain forbidden content",
			Detail:  "token=" + token,
		}
	}

	scopeToTenant(args, tenantID)

	switch operation {
	case catalog.FindMany:
		applyBound(args, ListLimit)
	case catalog.GroupBy:
		applyBound(args, GroupLimit)
	}

	return ValidatedIntent{
		entity:      entity,
		operation:   operation,
		tenantID:    tenantID,
		args:        args,
		explanation: raw.Explanation,
	}, nil
}

func sentinelRejection(raw RawIntent) *Rejection {
	switch raw.Sentinel {
	case SentinelOutOfScope:
		return &Rejection{Reason: ReasonOutOfScope, Message: raw.Message}
	case SentinelClarificationNeeded:
		return &Rejection{Reason: ReasonClarificationNeeded, Message: raw.Message}
	default:
		return &Rejection{
			Reason:  ReasonMalformedIntent,
			Message: "unrecognized non-answer marker",
			Detail:  fmt.Sprintf("error=%q", raw.Sentinel),
		}
	}
}

// canonicalArgs returns a JSON-normalised deep copy of args together with its
// canonical encoding. encoding/json sorts map keys, so equal trees encode equally.
func canonicalArgs(in map[string]any) (map[string]any, []byte, error) {
	if in == nil {
		return map[string]any{}, []byte("{}"), nil
	}
	encoded, err := json.Marshal(in)
	if err != nil {
		return nil, nil, fmt.Errorf("encode args: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(encoded, &out); err != nil {
		return nil, nil, fmt.Errorf("decode args: %w", err)
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, encoded, nil
}

func findForbiddenToken(canonical []byte) (string, bool) {
	lowered := strings.ToLower(string(canonical))
	for _, token := range forbiddenTokens {
		if strings.Contains(lowered, token) {
			return token, true
		}
	}
	return "", false
}

// scopeToTenant overwrites the tenant filter. Top-level where keys are
// conjunctive, so any other tenant reference elsewhere can only narrow the
// result further.
func scopeToTenant(args map[string]any, tenantID string) {
	where, ok := args["where"].(map[string]any)
	if !ok {
		where = map[string]any{}
		args["where"] = where
	}
	where[catalog.TenantField] = tenantID
}

func applyBound(args map[string]any, ceiling int) {
	if take, ok := args["take"].(float64); ok {
		if take == math.Trunc(take) && take >= 0 && take <= float64(ceiling) {
			return
		}
	}
	args["take"] = float64(ceiling)
}
