package reasoning

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
)

// Schema is a named, resolved JSON schema for structured replies.
type Schema struct {
	name     string
	raw      *jsonschema.Schema
	resolved *jsonschema.Resolved
}

// NewSchema resolves s. It fails if s is not a valid schema.
func NewSchema(name string, s *jsonschema.Schema) (*Schema, error) {
	r, err := s.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("resolve schema %s: %w", name, err)
	}
	return &Schema{name: name, raw: s, resolved: r}, nil
}

// MustSchema is NewSchema for package-level schemas.
func MustSchema(name string, s *jsonschema.Schema) *Schema {
	out, err := NewSchema(name, s)
	if err != nil {
		panic(err)
	}
	return out
}

// Name returns the schema name.
func (s *Schema) Name() string { return s.name }

// JSON returns the schema document, for inclusion in prompts.
func (s *Schema) JSON() string {
	b, err := json.Marshal(s.raw)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// Decode validates raw against the schema and unmarshals it into dst.
// Markdown code fences around the JSON are ignored.
func (s *Schema) Decode(raw string, dst any) error {
	body := stripFences(raw)
	var instance any
	if err := json.Unmarshal([]byte(body), &instance); err != nil {
		return &SchemaValidationError{Schema: s.name, Raw: raw, Err: err}
	}
	if err := s.resolved.Validate(instance); err != nil {
		return &SchemaValidationError{Schema: s.name, Raw: raw, Err: err}
	}
	if err := json.Unmarshal([]byte(body), dst); err != nil {
		return &SchemaValidationError{Schema: s.name, Raw: raw, Err: err}
	}
	return nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:] // drop the language tag line
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func ptr(f float64) *float64 { return &f }

// DecisionSchema is the arbiter's reply: a proposed decision, a confidence in
// [0,1] and the technical reasoning. Escalation is not a value the model may
// propose; it is applied afterwards by the confidence gate.
var DecisionSchema = MustSchema("decision", &jsonschema.Schema{
	Type:     "object",
	Required: []string{"decision", "confidence", "reasoning"},
	Properties: map[string]*jsonschema.Schema{
		"decision": {
			Type:        "string",
			Enum:        []any{"APPROVE", "CHALLENGE", "BLOCK"},
			Description: "APPROVE, CHALLENGE or BLOCK",
		},
		"confidence": {
			Type:        "number",
			Minimum:     ptr(0),
			Maximum:     ptr(1),
			Description: "confidence level between 0 and 1",
		},
		"reasoning": {
			Type:        "string",
			Description: "brief technical reasoning for the decision",
		},
	},
})

// Verdict is the decoded DecisionSchema reply.
type Verdict struct {
	Decision   string  `json:"decision"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}
