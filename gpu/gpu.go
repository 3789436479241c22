//go:build !nogpu

// Package gpu provides the wgpu/hal backend for shaderpg: a naga shader
// compiler, a render pipeline builder and an offscreen renderer that keeps
// several frames in flight.
//
// Usage:
//
//	dev, err := gpu.OpenDevice(gpu.BackendAuto)
//	builder, err := gpu.NewBuilder(dev.Device)
//	renderer, err := gpu.NewRenderer(dev.Device, dev.Queue, builder, gpu.RendererConfig{
//		Width: 1280, Height: 720, FramesInFlight: 3,
//	})
//	app, err := shaderpg.New(gpu.NewCompiler(), builder, shaderpg.WithRerecorder(renderer))
//	report, err := renderer.RenderFrame(app.RecordFrame)
package gpu

import (
	"github.com/gogpu/wgpu/hal"

	impl "github.com/gogpu/shaderpg/internal/gpu"
)

type (
	// Device is an opened GPU device and queue.
	Device = impl.Device
	// Compiler compiles fragment shaders with naga.
	Compiler = impl.Compiler
	// Builder creates render pipelines from SPIR-V.
	Builder = impl.Builder
	// Pipeline is a render pipeline built by Builder.
	Pipeline = impl.Pipeline
	// Renderer records and submits frames into an offscreen target.
	Renderer = impl.Renderer
	// RendererConfig configures NewRenderer.
	RendererConfig = impl.RendererConfig
	// FrameReport describes one submitted frame.
	FrameReport = impl.FrameReport
)

// Backend names accepted by OpenDevice.
const (
	BackendAuto   = impl.BackendAuto
	BackendVulkan = impl.BackendVulkan
	BackendNoop   = impl.BackendNoop
)

// ErrRendererDestroyed is returned by Renderer methods after Destroy.
var ErrRendererDestroyed = impl.ErrRendererDestroyed

// OpenDevice opens a device on the named backend.
func OpenDevice(backend string) (*Device, error) {
	return impl.OpenDevice(backend)
}

// NewCompiler creates a naga-backed shader compiler.
func NewCompiler() *Compiler {
	return impl.NewCompiler()
}

// NewBuilder creates a pipeline builder on device.
func NewBuilder(device hal.Device) (*Builder, error) {
	return impl.NewBuilder(device)
}

// NewRenderer creates an offscreen renderer sharing builder's layouts.
func NewRenderer(device hal.Device, queue hal.Queue, builder *Builder, cfg RendererConfig) (*Renderer, error) {
	return impl.NewRenderer(device, queue, builder, cfg)
}

// Prelude returns the WGSL prepended to every fragment shader.
func Prelude() string {
	return impl.Prelude()
}
