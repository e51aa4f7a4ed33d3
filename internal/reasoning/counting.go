package reasoning

import (
	"context"
	"sync/atomic"
)

// Counting wraps a Backend and counts calls. It is safe for concurrent use.
type Counting struct {
	Backend    Backend
	complete   atomic.Int64
	structured atomic.Int64
	failures   atomic.Int64
}

// NewCounting wraps b.
func NewCounting(b Backend) *Counting { return &Counting{Backend: b} }

// Complete implements Backend.
func (c *Counting) Complete(ctx context.Context, prompt string) (string, error) {
	c.complete.Add(1)
	s, err := c.Backend.Complete(ctx, prompt)
	if err != nil {
		c.failures.Add(1)
	}
	return s, err
}

// CompleteStructured implements Backend.
func (c *Counting) CompleteStructured(ctx context.Context, prompt string, schema *Schema, dst any) error {
	c.structured.Add(1)
	err := c.Backend.CompleteStructured(ctx, prompt, schema, dst)
	if err != nil {
		c.failures.Add(1)
	}
	return err
}

// Calls returns the total number of calls of either kind.
func (c *Counting) Calls() int64 { return c.complete.Load() + c.structured.Load() }

// StructuredCalls returns the number of CompleteStructured calls.
func (c *Counting) StructuredCalls() int64 { return c.structured.Load() }

// Failures returns the number of calls that returned an error.
func (c *Counting) Failures() int64 { return c.failures.Load() }
