package intent

import (
	"errors"
	"fmt"
	"time"

	"github.com/tallybook/tallybook/internal/catalog"
)

const (
	// ListLimit caps findMany results when the model supplies no smaller take.
	ListLimit = 100
	// GroupLimit caps groupBy results.
	GroupLimit = 50
)

type Sentinel string

const (
	SentinelOutOfScope          Sentinel = "out_of_scope"
	SentinelClarificationNeeded Sentinel = "clarification_needed"
)

// RawIntent is the untrusted structure proposed by the language model.
type RawIntent struct {
	Entity      string         `json:"entity,omitempty"`
	Operation   string         `json:"operation,omitempty"`
	Args        map[string]any `json:"args,omitempty"`
	Explanation string         `json:"explanation,omitempty"`
	Sentinel    Sentinel       `json:"error,omitempty"`
	Message     string         `json:"message,omitempty"`
}

// Tenant is the authenticated caller's company context for one request.
type Tenant struct {
	TenantID     string
	DisplayName  string
	BaseCurrency string
	AsOfDate     time.Time
}

// ValidatedIntent can only be produced by Validate. The zero value reports
// Valid() == false and must not be executed.
type ValidatedIntent struct {
	entity      catalog.Entity
	operation   catalog.Operation
	tenantID    string
	args        map[string]any
	explanation string
}

func (v ValidatedIntent) Valid() bool {
	return !v.entity.IsZero() && !v.operation.IsZero() && v.tenantID != ""
}

func (v ValidatedIntent) Entity() catalog.Entity { return v.entity }

func (v ValidatedIntent) Operation() catalog.Operation { return v.operation }

func (v ValidatedIntent) TenantID() string { return v.tenantID }

func (v ValidatedIntent) Explanation() string { return v.explanation }

// Args returns a private copy of the validated arguments.
func (v ValidatedIntent) Args() map[string]any {
	if v.args == nil {
		return nil
	}
	return cloneMap(v.args)
}

type Reason string

const (
	ReasonOutOfScope          Reason = "out_of_scope"
	ReasonClarificationNeeded Reason = "clarification_needed"
	ReasonUnknownEntity       Reason = "unknown_entity"
	ReasonUnknownOperation    Reason = "unknown_operation"
	ReasonForbiddenContent    Reason = "forbidden_content"
	ReasonMalformedIntent     Reason = "malformed_intent"
	ReasonTenantRequired      Reason = "tenant_required"
)

type Bucket string

const (
	BucketNonAnswer Bucket = "non_answer"
	BucketPolicy    Bucket = "policy"
)

// Rejection is returned by every failing gate. Message is safe for operators
// and, for the sentinel reasons only, is the model's text shown to the user.
// Detail may echo untrusted input and belongs in logs.
type Rejection struct {
	Reason  Reason
	Message string
	Detail  string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("intent rejected (%s): %s", r.Reason, r.Message)
}

func (r *Rejection) Bucket() Bucket {
	switch r.Reason {
	case ReasonOutOfScope, ReasonClarificationNeeded:
		return BucketNonAnswer
	default:
		return BucketPolicy
	}
}

func AsRejection(err error) (*Rejection, bool) {
	var rejection *Rejection
	if errors.As(err, &rejection) {
		return rejection, true
	}
	return nil, false
}

func cloneMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = cloneValue(value)
	}
	return out
}

func cloneValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return cloneMap(typed)
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return typed
	}
}
