// Package reasoning is the client side of the language-model backend used by
// the aggregation, debate, arbiter and explanation stages. Calls are slow and
// may fail; the client never retries.
package reasoning

import (
	"context"
	"errors"
	"fmt"
)

// ErrEmptyResponse is returned when the backend answers with no text.
var ErrEmptyResponse = errors.New("reasoning: empty response")

// Backend produces free text or schema-conforming values from a prompt.
type Backend interface {
	Complete(ctx context.Context, prompt string) (string, error)
	// CompleteStructured decodes the reply into dst after validating it
	// against schema. A reply that does not conform yields *SchemaValidationError.
	CompleteStructured(ctx context.Context, prompt string, schema *Schema, dst any) error
}

// SchemaValidationError reports a reply that could not be coerced to a schema.
type SchemaValidationError struct {
	Schema string
	Raw    string
	Err    error
}

func (e *SchemaValidationError) Error() string {
	return fmt.Sprintf("reasoning: reply does not match schema %s: %v", e.Schema, e.Err)
}

func (e *SchemaValidationError) Unwrap() error { return e.Err }
