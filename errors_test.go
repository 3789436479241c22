package shaderpg

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNewCompileError(t *testing.T) {
	single := errors.New("unexpected token")
	joined := errors.Join(errors.New("a"), errors.New("b"), errors.New("c"))
	existing := &CompileError{Name: "x.wgsl", Count: 7, Message: "seven"}

	tests := []struct {
		name      string
		err       error
		wantCount int
		wantSame  bool
	}{
		{"single", single, 1, false},
		{"joined", joined, 3, false},
		{"existing", existing, 7, true},
		{"wrapped existing", fmt.Errorf("compile: %w", existing), 7, true},
		{"nil", nil, 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ce := NewCompileError("shader.wgsl", tt.err)
			if ce.Count != tt.wantCount {
				t.Errorf("Count = %d, want %d", ce.Count, tt.wantCount)
			}
			if tt.wantSame && ce != existing {
				t.Error("existing *CompileError was not returned unchanged")
			}
			if !errors.Is(ce, ErrCompile) {
				t.Error("CompileError does not match ErrCompile")
			}
			if tt.err != nil && !tt.wantSame && !errors.Is(ce, tt.err) {
				t.Error("CompileError does not unwrap to the compiler error")
			}
		})
	}
}

func TestCompileErrorMessage(t *testing.T) {
	ce := NewCompileError("frag.wgsl", errors.New("line 3: expected ';'"))
	msg := ce.Error()
	for _, want := range []string{"frag.wgsl", "1 error(s)", "expected ';'"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, missing %q", msg, want)
		}
	}
}

func TestBuildError(t *testing.T) {
	cause := errors.New("invalid SPIR-V")
	err := fmt.Errorf("rebuild: %w", &BuildError{Err: cause})

	if !errors.Is(err, ErrBuild) {
		t.Error("BuildError does not match ErrBuild")
	}
	if errors.Is(err, ErrCompile) {
		t.Error("BuildError must not match ErrCompile")
	}
	if !errors.Is(err, cause) {
		t.Error("BuildError does not unwrap to its cause")
	}
}
