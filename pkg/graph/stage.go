package graph

import "context"

// Stage is one unit of work in a Graph. Reads and Writes declare which state
// fields the stage consumes and produces; the graph checks them against the
// dependency edges at construction time.
type Stage[S any] interface {
	Name() string
	Reads() []string
	Writes() []string
	Run(ctx context.Context, state S) error
}

// StageFunc adapts a plain function to the Stage interface.
type StageFunc[S any] struct {
	StageName string
	In        []string
	Out       []string
	Fn        func(ctx context.Context, state S) error
}

func (f StageFunc[S]) Name() string     { return f.StageName }
func (f StageFunc[S]) Reads() []string  { return f.In }
func (f StageFunc[S]) Writes() []string { return f.Out }

func (f StageFunc[S]) Run(ctx context.Context, state S) error {
	return f.Fn(ctx, state)
}
