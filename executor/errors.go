package executor

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies a target failure.
type Kind int

const (
	KindUnknown Kind = iota
	ToolNotFound
	CompileError
	BuildFailed
	DestinationUnavailable
	SourceNotFound
)

func (k Kind) String() string {
	switch k {
	case ToolNotFound:
		return "tool not found"
	case CompileError:
		return "compile error"
	case BuildFailed:
		return "build failed"
	case DestinationUnavailable:
		return "destination unavailable"
	case SourceNotFound:
		return "source not found"
	}
	return "unknown error"
}

// TargetError reports the first failing target in dependency order,
// carrying the underlying tool's exit code when one exists.
type TargetError struct {
	Target   string
	Kind     Kind
	ExitCode int
	Err      error
}

func (e *TargetError) Error() string {
	if e.ExitCode != 0 {
		return fmt.Sprintf("target %s: %s (exit code %d): %v", e.Target, e.Kind, e.ExitCode, e.Err)
	}
	return fmt.Sprintf("target %s: %s: %v", e.Target, e.Kind, e.Err)
}

func (e *TargetError) Unwrap() error { return e.Err }

// Cause implements the github.com/pkg/errors causer interface.
func (e *TargetError) Cause() error { return e.Err }

// IsKind reports whether err is a TargetError of the given kind.
func IsKind(err error, kind Kind) bool {
	var te *TargetError
	if errors.As(err, &te) {
		return te.Kind == kind
	}
	return false
}
