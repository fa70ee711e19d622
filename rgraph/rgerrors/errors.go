// Package rgerrors defines the fixed taxonomy of recoverable error kinds
// the render graph can produce. Every fallible operation in the graph
// returns one of these, wrapped with a human-readable message, so callers
// can errors.Is/As against a stable kind while still getting a descriptive
// fmt.Errorf-style string for logs.
package rgerrors

import (
	"errors"
	"fmt"
)

// Kind identifies the category of a render graph error.
type Kind int

const (
	// InvalidHandle means a handle does not resolve or resolves to the wrong kind.
	InvalidHandle Kind = iota

	// UsageMismatch means a declared read/write is not permitted by the resource's usage flags.
	UsageMismatch

	// AliasConflict means a handle was used as both read and write in the same pass.
	AliasConflict

	// DuplicateConfig means a render-target/depth-stencil/swap-chain was set twice.
	DuplicateConfig

	// MissingConfig means executor/render-target/pipeline/swap-chain was not set before finish().
	MissingConfig

	// NameCollision means the name already exists in the blackboard for this kind.
	NameCollision

	// OldVersionWrite means a write targeted a non-newest resource version.
	OldVersionWrite

	// CycleDetected means the topological sort could not drain the pass-only flow graph.
	CycleDetected

	// BackendError wraps an error surfaced verbatim from the device layer.
	BackendError
)

func (k Kind) String() string {
	switch k {
	case InvalidHandle:
		return "InvalidHandle"
	case UsageMismatch:
		return "UsageMismatch"
	case AliasConflict:
		return "AliasConflict"
	case DuplicateConfig:
		return "DuplicateConfig"
	case MissingConfig:
		return "MissingConfig"
	case NameCollision:
		return "NameCollision"
	case OldVersionWrite:
		return "OldVersionWrite"
	case CycleDetected:
		return "CycleDetected"
	case BackendError:
		return "BackendError"
	default:
		return "Unknown"
	}
}

// Error is a render graph error tagged with a stable Kind.
type Error struct {
	Kind Kind
	msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("rendergraph: %s: %s: %v", e.Kind, e.msg, e.err)
	}
	return fmt.Sprintf("rendergraph: %s: %s", e.Kind, e.msg)
}

func (e *Error) Unwrap() error { return e.err }

// Is reports whether target is an *Error with the same Kind, so that
// callers can write errors.Is(err, rgerrors.New(rgerrors.CycleDetected, "")).
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return other.Kind == e.Kind
	}
	return false
}

// New creates a new Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Wrap creates a new Error of the given kind wrapping a lower-level error,
// matching the teacher's fmt.Errorf("...: %w", err) idiom.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, msg: fmt.Sprintf(format, args...), err: err}
}

// KindOf returns the Kind of err if it is (or wraps) an *Error, and ok=true.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
