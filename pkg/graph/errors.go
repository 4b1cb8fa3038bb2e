package graph

import (
	"github.com/matzehuels/graphstate/pkg/errors"
)

// Sentinel errors. They match any error carrying the same code under the
// standard errors.Is, whatever its message.
var (
	// ErrStructureMismatch is returned when a state does not fit a graph
	// definition: wrong leaf count, dangling references, or a live object
	// whose type changed between calls.
	ErrStructureMismatch = &errors.Error{Code: errors.ErrCodeStructureMismatch, Message: "structure mismatch"}

	// ErrInconsistentAliasing is returned when one object is reached under
	// two conflicting sharing annotations in the same scope.
	ErrInconsistentAliasing = &errors.Error{Code: errors.ErrCodeInconsistentAliasing, Message: "inconsistent aliasing"}

	// ErrUnknownPath is returned when a state holds a path the graph
	// definition has no leaf for.
	ErrUnknownPath = &errors.Error{Code: errors.ErrCodeUnknownPath, Message: "unknown path"}

	// ErrContextProtocol is returned when split, merge or update contexts are
	// used out of order, reentered, used after close, or closed early.
	ErrContextProtocol = &errors.Error{Code: errors.ErrCodeContextProtocol, Message: "context protocol violation"}

	// ErrRecompose is returned when an opaque value cannot be decomposed or
	// rebuilt from its auxiliary data.
	ErrRecompose = &errors.Error{Code: errors.ErrCodeRecompose, Message: "recompose failed"}

	// ErrUnsupported is returned for values or operations the engine cannot handle.
	ErrUnsupported = &errors.Error{Code: errors.ErrCodeUnsupported, Message: "unsupported"}
)

func mismatch(format string, args ...any) error {
	return errors.New(errors.ErrCodeStructureMismatch, format, args...)
}

func protocol(format string, args ...any) error {
	return errors.New(errors.ErrCodeContextProtocol, format, args...)
}

// wrapAs wraps err with context, keeping its code when it has one.
func wrapAs(err error, fallback errors.Code, format string, args ...any) error {
	code := errors.GetCode(err)
	if code == "" {
		code = fallback
	}
	return errors.Wrap(code, err, format, args...)
}
