package intent

import "testing"

func TestParseQueryIntent(t *testing.T) {
	raw, err := Parse(`{"entity":"invoice","operation":"groupBy","args":{"by":["contactId"],"_sum":{"total":true}},"explanation":"Revenue by customer"}`)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if raw.Entity != "invoice" || raw.Operation != "groupBy" {
		t.Fatalf("raw = %#v", raw)
	}
	if raw.Explanation != "Revenue by customer" {
		t.Fatalf("Explanation = %q", raw.Explanation)
	}
	if _, ok := raw.Args["_sum"].(map[string]any); !ok {
		t.Fatalf("args = %#v", raw.Args)
	}
}

func TestParseStripsFencesAndProse(t *testing.T) {
	cases := []string{
		"```json\n{\"entity\":\"contact\",\"operation\":\"count\"}\n```",
		"```\n{\"entity\":\"contact\",\"operation\":\"count\"}\n```",
		"Here is the query:\n{\"entity\":\"contact\",\"operation\":\"count\"}\nLet me know.",
	}
	for _, text := range cases {
		raw, err := Parse(text)
		if err != nil {
			t.Fatalf("Parse(%q) error = %v", text, err)
		}
		if raw.Entity != "contact" || raw.Operation != "count" {
			t.Fatalf("Parse(%q) = %#v", text, raw)
		}
	}
}

func TestParseSentinel(t *testing.T) {
	raw, err := Parse(`{"error":"out_of_scope","message":"I can only help with your books."}`)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if raw.Sentinel != SentinelOutOfScope || raw.Message != "I can only help with your books." {
		t.Fatalf("raw = %#v", raw)
	}
}

func TestParseAcceptsNullArgs(t *testing.T) {
	raw, err := Parse(`{"entity":"account","operation":"findMany","args":null}`)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if raw.Args != nil {
		t.Fatalf("args = %#v", raw.Args)
	}
}

func TestParseRejectsMalformedOutput(t *testing.T) {
	cases := map[string]string{
		"empty":           "",
		"prose":           "I think you should look at your invoices.",
		"broken json":     `{"entity":"invoice","operation":}`,
		"array":           `[{"entity":"invoice"}]`,
		"missing op":      `{"entity":"invoice"}`,
		"args array":      `{"entity":"invoice","operation":"findMany","args":[1,2]}`,
		"numeric entity":  `{"entity":7,"operation":"findMany"}`,
		"sentinel no msg": `{"error":"out_of_scope"}`,
		"mixed shapes":    `{"entity":"invoice","operation":"findMany","error":"out_of_scope"}`,
	}
	for name, text := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(text)
			assertReason(t, err, ReasonMalformedIntent)
		})
	}
}

func TestParseThenValidateNeverExecutesSentinel(t *testing.T) {
	raw, err := Parse(`{"error":"clarification_needed","message":"Which period do you mean?"}`)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	validated, err := Validate(raw, tenantT1)
	rejection := assertReason(t, err, ReasonClarificationNeeded)
	if rejection.Message != "Which period do you mean?" {
		t.Fatalf("message = %q", rejection.Message)
	}
	if validated.Valid() {
		t.Fatal("sentinel must not produce a valid intent")
	}
}
