package graph

import "errors"

var (
	// ErrStageNotFound is returned when a dependency names a stage that does not exist.
	ErrStageNotFound = errors.New("graph: stage not found")

	// ErrDuplicateStage is returned when two stages share a name.
	ErrDuplicateStage = errors.New("graph: duplicate stage name")

	// ErrCycle is returned when the declared dependencies do not form a DAG.
	ErrCycle = errors.New("graph: dependency cycle")

	// ErrFieldOwnership is returned when a state field is declared by more than
	// one writer, or written by a stage that does not own it.
	ErrFieldOwnership = errors.New("graph: field written by non-owner")

	// ErrFieldWritten is returned on a second write to a write-once field.
	ErrFieldWritten = errors.New("graph: field already written")

	// ErrUnsatisfiedRead is returned when a stage reads a field that no
	// ancestor stage writes and that is not a declared run input.
	ErrUnsatisfiedRead = errors.New("graph: read of field with no upstream writer")

	// ErrFieldNotReady is returned when a field is read before it was written.
	ErrFieldNotReady = errors.New("graph: field read before write")
)
