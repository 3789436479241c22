//go:build !nogpu

// Package gpu implements the shaderpg GPU backend on gogpu/wgpu's hal
// layer.
//
// Fragment shaders are WGSL. Compiler prepends a fixed prelude declaring
// the Uniforms block and vs_main, then compiles with naga to SPIR-V.
// Builder turns SPIR-V into render pipelines sharing a single bind group
// layout, so rebuilt pipelines drop into the renderer's existing bind
// groups.
//
// Renderer draws a full-screen quad into an offscreen BGRA8 target. It
// keeps a ring of frame slots, each with its own uniform buffer and bind
// group. A slot remembers the queue submission index of its last frame.
// Before the slot is reused the renderer polls the queue until that index
// has completed, which bounds the number of submissions the GPU can have
// queued to the ring size:
//
//	slot 0: frame 0, frame 3, frame 6 ...
//	slot 1: frame 1, frame 4, frame 7 ...
//	slot 2: frame 2, frame 5, frame 8 ...
//
// With FramesInFlight equal to shaderpg's retirement threshold, by the time
// N frames have been recorded against a new pipeline the last frame that
// referenced the old one has completed.
//
// Tests run on the hal/noop backend, which accepts every command without
// a GPU.
package gpu
