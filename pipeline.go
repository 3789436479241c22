package shaderpg

// Pipeline is an opaque compiled GPU program. It is immutable once built
// and owned by exactly one holder at a time: the App's current slot or its
// discard list. Destroy releases the GPU objects and is called by the App
// only once no in-flight frame can reference the pipeline.
type Pipeline interface {
	Destroy()
}

// Compiler turns fragment shader source into SPIR-V words.
//
// Compile failures should be reported as *CompileError; any other error is
// wrapped into one by the App.
type Compiler interface {
	Compile(name, source string) ([]uint32, error)
}

// Builder turns compiled SPIR-V into a render pipeline.
type Builder interface {
	Build(spirv []uint32) (Pipeline, error)
}

// Rerecorder is implemented by renderers that keep recorded command state
// which becomes stale when the current pipeline changes.
type Rerecorder interface {
	RequestRerecord()
}

// Target receives the commands of a single frame.
type Target interface {
	// Size returns the size of the render target in pixels.
	Size() (width, height uint32)

	// WriteUniforms uploads the per-frame uniform payload.
	WriteUniforms(u Uniforms)

	// DrawQuad binds p and draws the static full-target quad.
	DrawQuad(p Pipeline)
}

// Uniforms is the per-frame payload consumed by the shader.
//
// The GPU layout matches the Uniforms struct of the shader prelude:
// time, aspect and resolution as four consecutive f32 values.
type Uniforms struct {
	// Time is the elapsed time in seconds since the App was created.
	// It never decreases.
	Time float32

	// Aspect is width / height of the render target.
	Aspect float32

	Width, Height float32
}

// FrameInfo describes one recorded frame.
type FrameInfo struct {
	// Pipeline is the pipeline bound by the frame.
	Pipeline Pipeline

	// InFlight is the usage counter after this frame was counted.
	InFlight uint64

	// Rerecord is true for the first frame recorded after a swap.
	Rerecord bool

	Uniforms Uniforms
}
