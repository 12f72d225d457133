package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

const (
	// RoleAssistantUser may ask the assistant questions about its company.
	RoleAssistantUser = "assistant_user"
	// RoleSchemaReader may read the advertised query schema.
	RoleSchemaReader = "schema_reader"
)

// Identity is the authenticated caller. CompanyID is the tenant every query
// of the request is scoped to.
type Identity struct {
	CompanyID string
	Roles     []string
}

func (i Identity) HasRole(role string) bool {
	for _, candidate := range i.Roles {
		if candidate == role {
			return true
		}
	}
	return false
}

type APIKeyValidator interface {
	Validate(ctx context.Context, apiKey string) (Identity, bool)
}

// StaticAPIKeyValidator holds keys from configuration. Only SHA-256 digests of
// the keys are kept in memory.
type StaticAPIKeyValidator struct {
	keys map[string]Identity
}

// NewStaticAPIKeyValidator parses "key:company:role|role,key2:company2:role".
func NewStaticAPIKeyValidator(spec string) (*StaticAPIKeyValidator, error) {
	validator := &StaticAPIKeyValidator{keys: map[string]Identity{}}
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return validator, nil
	}

	for _, entry := range strings.Split(spec, ",") {
		parts := strings.Split(strings.TrimSpace(entry), ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("invalid static key entry: expected key:company:role|role")
		}
		key := strings.TrimSpace(parts[0])
		company := strings.TrimSpace(parts[1])
		if key == "" || company == "" {
			return nil, fmt.Errorf("invalid static key entry for company %q: empty key/company", company)
		}
		roles := make([]string, 0)
		for _, role := range strings.Split(parts[2], "|") {
			if role = strings.TrimSpace(role); role != "" {
				roles = append(roles, role)
			}
		}
		if len(roles) == 0 {
			return nil, fmt.Errorf("invalid static key entry for company %q: at least one role is required", company)
		}
		sort.Strings(roles)
		digest := digestKey(key)
		if _, exists := validator.keys[digest]; exists {
			return nil, fmt.Errorf("duplicate static key for company %q", company)
		}
		validator.keys[digest] = Identity{CompanyID: company, Roles: roles}
	}

	return validator, nil
}

func (v *StaticAPIKeyValidator) Validate(_ context.Context, apiKey string) (Identity, bool) {
	identity, ok := v.keys[digestKey(apiKey)]
	return identity, ok
}

func digestKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
