// Package graph runs a fixed directed acyclic graph of stages over a shared
// state value. A stage starts as soon as every stage it depends on has
// finished; independent stages run concurrently and each stage runs at most
// once per Run. A Graph is immutable after New and safe for concurrent runs.
package graph

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
)

// Graph is a validated stage DAG over state type S.
type Graph[S any] struct {
	name        string
	stages      []Stage[S] // topological order
	index       map[string]Stage[S]
	deps        map[string][]string // stage -> prerequisites
	inputs      map[string]bool
	observer    Observer
	maxParallel int
}

type config struct {
	observer    Observer
	maxParallel int
	inputs      []string
}

// Option configures a Graph during construction.
type Option func(*config)

// WithObserver attaches a graph-level observer that receives events from
// every run, composed with any per-run observers.
func WithObserver(obs Observer) Option {
	return func(c *config) { c.observer = obs }
}

// WithMaxParallel bounds how many stages of a single run execute at once.
// The bound is per run; concurrent runs never share it. n <= 0 means no bound.
func WithMaxParallel(n int) Option {
	return func(c *config) { c.maxParallel = n }
}

// WithInputs declares state fields seeded before the run starts. Stages may
// read them without an upstream writer.
func WithInputs(fields ...string) Option {
	return func(c *config) { c.inputs = append(c.inputs, fields...) }
}

// New validates and constructs a Graph. deps maps a stage name to the names
// of the stages it depends on. It fails when a dependency references a
// missing stage, names collide, the edges contain a cycle, a field has more
// than one writer, or a stage reads a field that no ancestor writes.
func New[S any](name string, stages []Stage[S], deps map[string][]string, opts ...Option) (*Graph[S], error) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	g := &Graph[S]{
		name:        name,
		index:       make(map[string]Stage[S], len(stages)),
		deps:        make(map[string][]string, len(stages)),
		inputs:      make(map[string]bool, len(cfg.inputs)),
		observer:    cfg.observer,
		maxParallel: cfg.maxParallel,
	}
	for _, f := range cfg.inputs {
		g.inputs[f] = true
	}

	for _, s := range stages {
		if _, dup := g.index[s.Name()]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateStage, s.Name())
		}
		g.index[s.Name()] = s
	}
	for stage, prereqs := range deps {
		if _, ok := g.index[stage]; !ok {
			return nil, fmt.Errorf("%w: dependency entry for %q", ErrStageNotFound, stage)
		}
		for _, p := range prereqs {
			if _, ok := g.index[p]; !ok {
				return nil, fmt.Errorf("%w: %q depends on %q", ErrStageNotFound, stage, p)
			}
		}
		g.deps[stage] = append([]string(nil), prereqs...)
	}

	order, err := topoSort(stages, g.deps)
	if err != nil {
		return nil, err
	}
	for _, n := range order {
		g.stages = append(g.stages, g.index[n])
	}

	if err := g.checkFields(); err != nil {
		return nil, err
	}
	return g, nil
}

// topoSort orders stages so every stage follows its prerequisites. Ties keep
// the declaration order so the order is deterministic.
func topoSort[S any](stages []Stage[S], deps map[string][]string) ([]string, error) {
	pos := make(map[string]int, len(stages))
	indeg := make(map[string]int, len(stages))
	children := make(map[string][]string)
	for i, s := range stages {
		pos[s.Name()] = i
		indeg[s.Name()] = len(deps[s.Name()])
		for _, p := range deps[s.Name()] {
			children[p] = append(children[p], s.Name())
		}
	}

	var ready []string
	for _, s := range stages {
		if indeg[s.Name()] == 0 {
			ready = append(ready, s.Name())
		}
	}

	var order []string
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return pos[ready[i]] < pos[ready[j]] })
		n := ready[0]
		ready = ready[1:]
		order = append(order, n)
		for _, c := range children[n] {
			indeg[c]--
			if indeg[c] == 0 {
				ready = append(ready, c)
			}
		}
	}
	if len(order) != len(stages) {
		var stuck []string
		for _, s := range stages {
			if indeg[s.Name()] > 0 {
				stuck = append(stuck, s.Name())
			}
		}
		return nil, fmt.Errorf("%w: involving %v", ErrCycle, stuck)
	}
	return order, nil
}

// checkFields enforces single ownership of every written field and that each
// read is satisfied by an input or by an ancestor's write.
func (g *Graph[S]) checkFields() error {
	owner := make(map[string]string)
	for _, s := range g.stages {
		for _, f := range s.Writes() {
			if prev, ok := owner[f]; ok {
				return fmt.Errorf("%w: %q declared by %s and %s", ErrFieldOwnership, f, prev, s.Name())
			}
			if g.inputs[f] {
				return fmt.Errorf("%w: input %q written by %s", ErrFieldOwnership, f, s.Name())
			}
			owner[f] = s.Name()
		}
	}
	for _, s := range g.stages {
		ancestors := g.ancestors(s.Name())
		for _, f := range s.Reads() {
			if g.inputs[f] {
				continue
			}
			w, ok := owner[f]
			if !ok || !ancestors[w] {
				return fmt.Errorf("%w: %s reads %q", ErrUnsatisfiedRead, s.Name(), f)
			}
		}
	}
	return nil
}

func (g *Graph[S]) ancestors(stage string) map[string]bool {
	seen := make(map[string]bool)
	stack := append([]string(nil), g.deps[stage]...)
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[n] {
			continue
		}
		seen[n] = true
		stack = append(stack, g.deps[n]...)
	}
	return seen
}

func (g *Graph[S]) Name() string { return g.name }

// Stages returns the stage names in topological order.
func (g *Graph[S]) Stages() []string {
	out := make([]string, len(g.stages))
	for i, s := range g.stages {
		out[i] = s.Name()
	}
	return out
}

// Dependencies returns the prerequisites of stage.
func (g *Graph[S]) Dependencies(stage string) []string {
	return append([]string(nil), g.deps[stage]...)
}

// Run executes every stage once over state. Each stage waits for all of its
// prerequisites to return successfully before it starts, so a joining stage
// never observes a partial write from its predecessors. The first stage error
// cancels the run context for all in-flight stages and is returned wrapped as
// "stage <name>: ...". Observers passed here apply to this run only and must
// be safe for concurrent use.
func (g *Graph[S]) Run(ctx context.Context, state S, observers ...Observer) error {
	obs := composeObservers(g.observer, observers...)
	runStart := time.Now()

	done := make(map[string]chan struct{}, len(g.stages))
	for _, s := range g.stages {
		done[s.Name()] = make(chan struct{})
	}

	eg, egCtx := errgroup.WithContext(ctx)
	if g.maxParallel > 0 {
		eg.SetLimit(g.maxParallel)
	}

	// Stages are launched in topological order, so with a parallelism bound the
	// earliest unfinished stage always has its prerequisites complete.
	for _, s := range g.stages {
		s := s
		eg.Go(func() error {
			for _, p := range g.deps[s.Name()] {
				select {
				case <-done[p]:
				case <-egCtx.Done():
					return egCtx.Err()
				}
			}
			if err := egCtx.Err(); err != nil {
				return err
			}

			emitEvent(obs, Event{Type: EventStageEnter, Graph: g.name, Stage: s.Name()})
			start := time.Now()
			err := s.Run(egCtx, state)
			elapsed := time.Since(start)
			if err != nil {
				emitEvent(obs, Event{Type: EventStageExit, Graph: g.name, Stage: s.Name(), Started: start, Elapsed: elapsed, Error: err})
				return fmt.Errorf("stage %s: %w", s.Name(), err)
			}
			emitEvent(obs, Event{Type: EventStageExit, Graph: g.name, Stage: s.Name(), Started: start, Elapsed: elapsed})
			close(done[s.Name()])
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		emitEvent(obs, Event{Type: EventRunError, Graph: g.name, Elapsed: time.Since(runStart), Error: err})
		return err
	}
	emitEvent(obs, Event{Type: EventRunComplete, Graph: g.name, Elapsed: time.Since(runStart)})
	return nil
}
