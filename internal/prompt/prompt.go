package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tallybook/tallybook/internal/catalog"
	"github.com/tallybook/tallybook/internal/intent"
	"github.com/tallybook/tallybook/internal/query"
)

const dateLayout = "2006-01-02"

// Prompt is one system/user message pair for a chat completion.
type Prompt struct {
	System string
	User   string
}

// IntentPrompt instructs the model to answer with exactly one query intent or
// one of the non-answer markers. The entity and operation lists are rendered
// from the catalog, which is also what the validator enforces.
func IntentPrompt(tenant intent.Tenant, question string) Prompt {
	var b strings.Builder
	b.WriteString("You translate accounting questions into one read-only query against a fixed schema.\n")
	b.WriteString("Respond with a single JSON object and nothing else.\n\n")

	b.WriteString("Answer format:\n")
	b.WriteString(`{"entity": "<entity>", "operation": "<operation>", "args": {...}, "explanation": "<one sentence>"}` + "\n")
	b.WriteString("If the question is not about this company's accounting data respond with:\n")
	fmt.Fprintf(&b, `{"error": %q, "message": "<short reply to the user>"}`+"\n", intent.SentinelOutOfScope)
	b.WriteString("If the question is ambiguous respond with:\n")
	fmt.Fprintf(&b, `{"error": %q, "message": "<question asking the user to clarify>"}`+"\n\n", intent.SentinelClarificationNeeded)

	fmt.Fprintf(&b, "Entities: %s\n", strings.Join(catalog.EntityNames(), ", "))
	fmt.Fprintf(&b, "Operations: %s\n", strings.Join(catalog.OperationNames(), ", "))
	b.WriteString("Args use where, select, orderBy, take, skip, by, _count, _sum, _avg, _min and _max.\n")
	b.WriteString("Filters support equals, not, in, notIn, lt, lte, gt, gte, contains, startsWith, endsWith, AND, OR and NOT. Relations support is, isNot, some, none and every.\n")
	fmt.Fprintf(&b, "findMany returns at most %d records and groupBy at most %d groups.\n", intent.ListLimit, intent.GroupLimit)
	b.WriteString("Dates are YYYY-MM-DD strings. Amounts are decimal numbers.\n")
	b.WriteString("Results are always limited to the current company; do not filter by company yourself.\n\n")

	b.WriteString("Schema:\n")
	b.WriteString(catalog.DescribeSchema())

	system := b.String()
	user := fmt.Sprintf("%s\nQuestion:\n%s", tenantContext(tenant), strings.TrimSpace(question))
	return Prompt{System: system, User: user}
}

// AnswerPrompt asks the model to phrase the query result as an answer to the
// original question. The model must not invent figures missing from result.
func AnswerPrompt(question string, tenant intent.Tenant, explanation string, result query.Result) (Prompt, error) {
	encoded, err := json.Marshal(result)
	if err != nil {
		return Prompt{}, fmt.Errorf("encode query result: %w", err)
	}
	system := "You are a bookkeeping assistant. Answer the user's question using only the query result provided. " +
		"Be concise, format amounts in the company's base currency and say so plainly when the result is empty. " +
		"Never mention queries, JSON or internal field names."

	var b strings.Builder
	b.WriteString(tenantContext(tenant))
	fmt.Fprintf(&b, "\nQuestion:\n%s\n", strings.TrimSpace(question))
	if explanation != "" {
		fmt.Fprintf(&b, "\nWhat was looked up:\n%s\n", explanation)
	}
	fmt.Fprintf(&b, "\nQuery result (JSON):\n%s", encoded)
	return Prompt{System: system, User: b.String()}, nil
}

func tenantContext(tenant intent.Tenant) string {
	var b strings.Builder
	name := tenant.DisplayName
	if name == "" {
		name = tenant.TenantID
	}
	fmt.Fprintf(&b, "Company: %s\n", name)
	if tenant.BaseCurrency != "" {
		fmt.Fprintf(&b, "Base currency: %s\n", tenant.BaseCurrency)
	}
	if !tenant.AsOfDate.IsZero() {
		fmt.Fprintf(&b, "Today: %s\n", tenant.AsOfDate.Format(dateLayout))
	}
	return b.String()
}
