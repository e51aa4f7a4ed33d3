package graph

import (
	"fmt"
	"sync"
)

// Slot is a write-once state field owned by a single stage. The zero value is
// not usable; create slots with NewSlot when building the run state.
type Slot[T any] struct {
	field string
	owner string

	mu      sync.Mutex
	written bool
	value   T
}

// NewSlot returns an empty slot for field, writable only by owner.
func NewSlot[T any](field, owner string) *Slot[T] {
	return &Slot[T]{field: field, owner: owner}
}

// Field is the declared field name.
func (s *Slot[T]) Field() string { return s.field }

// Owner is the name of the only stage allowed to write the slot.
func (s *Slot[T]) Owner() string { return s.owner }

// Set stores v on behalf of stage.
func (s *Slot[T]) Set(stage string, v T) error {
	if stage != s.owner {
		return fmt.Errorf("%w: %s owns %q, %s tried to write it", ErrFieldOwnership, s.owner, s.field, stage)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.written {
		return fmt.Errorf("%w: %q", ErrFieldWritten, s.field)
	}
	s.value = v
	s.written = true
	return nil
}

// Get returns the stored value, or ErrFieldNotReady if the owner has not
// written it yet.
func (s *Slot[T]) Get() (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.written {
		var zero T
		return zero, fmt.Errorf("%w: %q (owner %s)", ErrFieldNotReady, s.field, s.owner)
	}
	return s.value, nil
}

// Value returns the stored value or the zero value when unwritten.
func (s *Slot[T]) Value() T {
	v, _ := s.Get()
	return v
}

// Written reports whether the owner has stored a value.
func (s *Slot[T]) Written() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written
}
