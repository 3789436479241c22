package shaderpg

import (
	"errors"
	"fmt"
)

var (
	// ErrCompile matches every *CompileError via errors.Is.
	ErrCompile = errors.New("shaderpg: shader compilation failed")

	// ErrBuild matches every *BuildError via errors.Is.
	ErrBuild = errors.New("shaderpg: pipeline build failed")

	// ErrClosed is returned by operations on an App after Close.
	ErrClosed = errors.New("shaderpg: app closed")
)

// CompileError is the diagnostic produced when shader source fails to
// compile. The current pipeline is never affected by it.
type CompileError struct {
	// Name identifies the source, usually the shader file name.
	Name string

	// Count is the number of individual errors reported by the compiler.
	Count int

	// Message is the compiler output.
	Message string

	// Err is the underlying compiler error, if any.
	Err error
}

// NewCompileError wraps a compiler error into a *CompileError. Errors
// produced by errors.Join are counted individually. An existing
// *CompileError is returned unchanged.
func NewCompileError(name string, err error) *CompileError {
	var ce *CompileError
	if errors.As(err, &ce) {
		return ce
	}
	if err == nil {
		return &CompileError{Name: name, Count: 1, Message: "unknown error"}
	}
	count := 1
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		if n := len(joined.Unwrap()); n > 0 {
			count = n
		}
	}
	return &CompileError{Name: name, Count: count, Message: err.Error(), Err: err}
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("shaderpg: compile %s: %d error(s): %s", e.Name, e.Count, e.Message)
}

// Is reports whether target is ErrCompile.
func (e *CompileError) Is(target error) bool { return target == ErrCompile }

func (e *CompileError) Unwrap() error { return e.Err }

// BuildError reports that compiled shader code could not be turned into a
// usable GPU pipeline.
type BuildError struct {
	Err error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("shaderpg: build pipeline: %v", e.Err)
}

// Is reports whether target is ErrBuild.
func (e *BuildError) Is(target error) bool { return target == ErrBuild }

func (e *BuildError) Unwrap() error { return e.Err }
