//go:build !nogpu

package gpu

import (
	_ "embed"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/spirv"

	"github.com/gogpu/shaderpg"
)

//go:embed shaders/prelude.wgsl
var preludeSource string

// Prelude returns the WGSL prepended to every fragment shader: the
// Uniforms struct bound as u, the VertexOutput struct and vs_main.
func Prelude() string {
	return preludeSource
}

// Compiler compiles fragment shader source to SPIR-V with naga.
type Compiler struct{}

var _ shaderpg.Compiler = (*Compiler)(nil)

// NewCompiler creates a Compiler.
func NewCompiler() *Compiler {
	return &Compiler{}
}

// SetLogger sets the logger for the GPU backend.
func (c *Compiler) SetLogger(l *slog.Logger) { setLogger(l) }

// Compile appends fragment to the prelude and compiles the result to
// SPIR-V words. Diagnostics are returned as *shaderpg.CompileError with
// line numbers relative to fragment.
func (c *Compiler) Compile(name, fragment string) ([]uint32, error) {
	start := time.Now()
	src := preludeSource + "\n" + fragment

	ast, err := naga.Parse(src)
	if err != nil {
		return nil, diagnose(name, err)
	}
	module, err := naga.LowerWithSource(ast, src)
	if err != nil {
		return nil, diagnose(name, err)
	}
	invalid, err := naga.Validate(module)
	if err != nil {
		return nil, diagnose(name, err)
	}
	if len(invalid) > 0 {
		errs := make([]error, len(invalid))
		msgs := make([]string, len(invalid))
		for i, v := range invalid {
			errs[i] = v
			msgs[i] = v.Error()
		}
		return nil, &shaderpg.CompileError{
			Name:    name,
			Count:   len(invalid),
			Message: strings.Join(msgs, "; "),
			Err:     errors.Join(errs...),
		}
	}

	spirvBytes, err := naga.GenerateSPIRV(module, spirv.Options{Version: spirv.Version1_3})
	if err != nil {
		return nil, diagnose(name, err)
	}
	words, err := spirvWords(spirvBytes)
	if err != nil {
		return nil, shaderpg.NewCompileError(name, err)
	}
	slogger().Debug("shader compiled",
		"name", name,
		"words", len(words),
		"elapsed", time.Since(start))
	return words, nil
}

var (
	// naga's parser reports "parsing failed with N error(s): <first>".
	parseCountRe = regexp.MustCompile(`parsing failed with (\d+) error\(s\): `)
	// Lowering reports "<first> (and N more errors)".
	moreErrorsRe = regexp.MustCompile(` \(and (\d+) more errors\)$`)

	parseLineRe = regexp.MustCompile(`line (\d+), column (\d+)`)
	spanLineRe  = regexp.MustCompile(`(^|: )(\d+):(\d+): `)
)

// diagnose turns a naga error into a *shaderpg.CompileError carrying the
// error count naga reported and a message located in the user's source.
func diagnose(name string, err error) *shaderpg.CompileError {
	msg := err.Error()
	count := 1
	if m := parseCountRe.FindStringSubmatchIndex(msg); m != nil {
		count, _ = strconv.Atoi(msg[m[2]:m[3]])
		msg = msg[m[1]:]
	} else if m := moreErrorsRe.FindStringSubmatchIndex(msg); m != nil {
		more, _ := strconv.Atoi(msg[m[2]:m[3]])
		count = more + 1
		msg = msg[:m[0]]
	}
	if count < 1 {
		count = 1
	}
	return &shaderpg.CompileError{
		Name:    name,
		Count:   count,
		Message: rebaseLines(msg),
		Err:     err,
	}
}

// rebaseLines rewrites line numbers in msg from the combined prelude and
// fragment source to the fragment alone. Locations inside the prelude are
// marked as such.
func rebaseLines(msg string) string {
	offset := preludeLines()
	msg = parseLineRe.ReplaceAllStringFunc(msg, func(s string) string {
		m := parseLineRe.FindStringSubmatch(s)
		n, _ := strconv.Atoi(m[1])
		if n <= offset {
			return fmt.Sprintf("prelude line %d, column %s", n, m[2])
		}
		return fmt.Sprintf("line %d, column %s", n-offset, m[2])
	})
	return spanLineRe.ReplaceAllStringFunc(msg, func(s string) string {
		m := spanLineRe.FindStringSubmatch(s)
		n, _ := strconv.Atoi(m[2])
		if n <= offset {
			return fmt.Sprintf("%sprelude:%d:%s: ", m[1], n, m[3])
		}
		return fmt.Sprintf("%s%d:%s: ", m[1], n-offset, m[3])
	})
}

// preludeLines is the number of lines that precede the fragment in the
// compiled source.
func preludeLines() int {
	return strings.Count(preludeSource, "\n") + 1
}

// spirvWords converts a little-endian SPIR-V byte stream to 32-bit words.
func spirvWords(b []byte) ([]uint32, error) {
	if len(b) == 0 || len(b)%4 != 0 {
		return nil, fmt.Errorf("invalid SPIR-V length %d", len(b))
	}
	words := make([]uint32, len(b)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	return words, nil
}
