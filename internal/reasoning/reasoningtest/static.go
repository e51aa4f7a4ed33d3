// Package reasoningtest provides a scripted reasoning backend for tests.
package reasoningtest

import (
	"context"
	"time"

	"riskgraph/internal/reasoning"
)

// Static is a reasoning.Backend with canned replies. Structured replies go through the
// same schema validation as a live backend, so malformed output can be
// simulated by setting Structured to non-conforming JSON.
type Static struct {
	Text       string
	Structured string
	Err        error
	// Delay is waited before every reply, honouring ctx.
	Delay time.Duration
	// Reply, when set, overrides Text for prompts it returns ok for.
	Reply func(prompt string) (string, bool)
}

// Complete implements reasoning.Backend.
func (s *Static) Complete(ctx context.Context, prompt string) (string, error) {
	if err := s.wait(ctx); err != nil {
		return "", err
	}
	if s.Reply != nil {
		if text, ok := s.Reply(prompt); ok {
			return text, nil
		}
	}
	if s.Text == "" {
		return "", reasoning.ErrEmptyResponse
	}
	return s.Text, nil
}

// CompleteStructured implements reasoning.Backend.
func (s *Static) CompleteStructured(ctx context.Context, _ string, schema *reasoning.Schema, dst any) error {
	if err := s.wait(ctx); err != nil {
		return err
	}
	return schema.Decode(s.Structured, dst)
}

func (s *Static) wait(ctx context.Context) error {
	if s.Err != nil {
		return s.Err
	}
	if s.Delay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(s.Delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
