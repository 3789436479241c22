// Package shaderpg hot-reloads a GPU render pipeline from a watched WGSL
// fragment shader while frames that use the previous pipeline may still be
// in flight on the GPU.
//
// # Overview
//
// An App owns three things: the current pipeline, a list of retired
// pipelines waiting to be freed, and a counter of frames recorded since the
// last swap. Two loops share it:
//
//   - The update loop (Run, or Update per tick) polls the shader source's
//     modification time, rebuilds on change and sweeps retired pipelines.
//   - The frame loop calls RecordFrame once per frame, which binds the
//     current pipeline, draws a full-target quad and bumps the counter.
//
// A retired pipeline is destroyed only after frames-in-flight frames have
// been recorded since the most recent swap, so no queued command buffer can
// still reference it.
//
// # Quick Start
//
//	dev, _ := gpu.OpenDevice("vulkan")
//	builder, _ := gpu.NewBuilder(dev.Device)
//	renderer, _ := gpu.NewRenderer(dev.Device, dev.Queue, builder, gpu.RendererConfig{
//	    Width: 800, Height: 600, FramesInFlight: 3,
//	})
//
//	app, err := shaderpg.New(gpu.NewCompiler(), builder,
//	    shaderpg.WithShaderPath("shader.wgsl"),
//	    shaderpg.WithRerecorder(renderer),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	go app.Run(ctx)
//
//	for range frameTicker.C {
//	    renderer.RenderFrame(app.RecordFrame)
//	}
//
// # Errors
//
// A shader that fails to compile or link never replaces the current
// pipeline. Rebuild returns a *CompileError or *BuildError (matching
// ErrCompile and ErrBuild with errors.Is) and logs it; rendering continues
// with the last good pipeline.
//
// # Shader Interface
//
// The watched file holds only the fragment stage. It is appended to a fixed
// prelude that declares the Uniforms struct (bound as u), the VertexOutput
// struct and the vertex stage; the file must define
//
//	@fragment fn fs_main(in: VertexOutput) -> @location(0) vec4<f32>
package shaderpg
