package intent

import (
	"encoding/json"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// documentSchema only checks the shape of the model output. Membership of
// entity and operation is decided by the gates so each failure keeps its own
// reason.
const documentSchema = `{
  "type": "object",
  "oneOf": [
    {
      "required": ["error", "message"],
      "properties": {
        "error": {"enum": ["out_of_scope", "clarification_needed"]},
        "message": {"type": "string"}
      }
    },
    {
      "required": ["entity", "operation"],
      "not": {"required": ["error"]},
      "properties": {
        "entity": {"type": "string"},
        "operation": {"type": "string"},
        "args": {"type": ["object", "null"]},
        "explanation": {"type": "string"}
      }
    }
  ]
}`

var documentSchemaLoader = gojsonschema.NewStringLoader(documentSchema)

// Parse decodes the model's reply into a RawIntent. Markdown fences and prose
// around the JSON object are tolerated.
func Parse(text string) (RawIntent, error) {
	body := extractObject(stripCodeFence(text))
	if body == "" {
		return RawIntent{}, &Rejection{Reason: ReasonMalformedIntent, Message: "model output is not a query intent", Detail: "no JSON object found"}
	}

	var document map[string]any
	if err := json.Unmarshal([]byte(body), &document); err != nil {
		return RawIntent{}, &Rejection{Reason: ReasonMalformedIntent, Message: "model output is not a query intent", Detail: err.Error()}
	}

	result, err := gojsonschema.Validate(documentSchemaLoader, gojsonschema.NewGoLoader(document))
	if err != nil {
		return RawIntent{}, &Rejection{Reason: ReasonMalformedIntent, Message: "model output is not a query intent", Detail: err.Error()}
	}
	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}
		return RawIntent{}, &Rejection{Reason: ReasonMalformedIntent, Message: "model output is not a query intent", Detail: strings.Join(problems, "; ")}
	}

	var raw RawIntent
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return RawIntent{}, &Rejection{Reason: ReasonMalformedIntent, Message: "model output is not a query intent", Detail: err.Error()}
	}
	return raw, nil
}

func stripCodeFence(value string) string {
	trimmed := strings.TrimSpace(value)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

func extractObject(value string) string {
	start := strings.Index(value, "{")
	end := strings.LastIndex(value, "}")
	if start < 0 || end <= start {
		return ""
	}
	return value[start : end+1]
}
