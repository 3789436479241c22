//go:build !nogpu

package gpu

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/shaderpg"
)

// TargetFormat is the color format of the offscreen render target and the
// single color output of every pipeline.
const TargetFormat = gputypes.TextureFormatBGRA8Unorm

const (
	// uniformSize is the byte size of shaderpg.Uniforms in the prelude
	// layout: time, aspect, resolution.x, resolution.y.
	uniformSize = 16

	// quadVertexStride is the byte stride of one vec2<f32> position.
	quadVertexStride = 8
)

var errBuilderDestroyed = errors.New("pipeline builder destroyed")

// Builder creates render pipelines from compiled SPIR-V. The bind group
// layout and pipeline layout are shared by every pipeline it builds, so a
// rebuilt pipeline can reuse the renderer's bind groups unchanged.
type Builder struct {
	device hal.Device

	mu            sync.Mutex
	uniformLayout hal.BindGroupLayout
	pipeLayout    hal.PipelineLayout
	destroyed     bool

	generation atomic.Uint64
}

var _ shaderpg.Builder = (*Builder)(nil)

// NewBuilder creates the shared layouts on device.
func NewBuilder(device hal.Device) (*Builder, error) {
	if device == nil {
		return nil, errors.New("gpu: nil device")
	}

	uniformLayout, err := device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "shaderpg_uniform_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
				Buffer: &gputypes.BufferBindingLayout{
					Type: gputypes.BufferBindingTypeUniform,
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create uniform bind group layout: %w", err)
	}

	pipeLayout, err := device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "shaderpg_pipeline_layout",
		BindGroupLayouts: []hal.BindGroupLayout{uniformLayout},
	})
	if err != nil {
		device.DestroyBindGroupLayout(uniformLayout)
		return nil, fmt.Errorf("create pipeline layout: %w", err)
	}

	return &Builder{
		device:        device,
		uniformLayout: uniformLayout,
		pipeLayout:    pipeLayout,
	}, nil
}

// SetLogger sets the logger for the GPU backend.
func (b *Builder) SetLogger(l *slog.Logger) { setLogger(l) }

// UniformLayout returns the bind group layout for the uniform buffer.
func (b *Builder) UniformLayout() hal.BindGroupLayout {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.uniformLayout
}

// Build creates a shader module and render pipeline from SPIR-V words
// produced by Compiler. The returned value is a *Pipeline.
func (b *Builder) Build(spirv []uint32) (shaderpg.Pipeline, error) {
	if len(spirv) == 0 {
		return nil, errors.New("gpu: empty SPIR-V")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.destroyed {
		return nil, errBuilderDestroyed
	}

	gen := b.generation.Add(1)
	label := fmt.Sprintf("shaderpg_pipeline_%d", gen)

	module, err := b.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  label + "_shader",
		Source: hal.ShaderSource{SPIRV: spirv},
	})
	if err != nil {
		return nil, fmt.Errorf("create shader module: %w", err)
	}

	pipeline, err := b.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  label,
		Layout: b.pipeLayout,
		Vertex: hal.VertexState{
			Module:     module,
			EntryPoint: "vs_main",
			Buffers: []gputypes.VertexBufferLayout{
				{
					ArrayStride: quadVertexStride,
					StepMode:    gputypes.VertexStepModeVertex,
					Attributes: []gputypes.VertexAttribute{
						{Format: gputypes.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 0},
					},
				},
			},
		},
		Fragment: &hal.FragmentState{
			Module:     module,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{
				{
					Format:    TargetFormat,
					WriteMask: gputypes.ColorWriteMaskAll,
				},
			},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		b.device.DestroyShaderModule(module)
		return nil, fmt.Errorf("create render pipeline: %w", err)
	}

	slogger().Debug("pipeline built", "generation", gen, "spirv_words", len(spirv))
	return &Pipeline{
		device:     b.device,
		shader:     module,
		pipeline:   pipeline,
		generation: gen,
	}, nil
}

// Built returns how many pipelines have been built so far.
func (b *Builder) Built() uint64 {
	return b.generation.Load()
}

// Destroy releases the shared layouts. Pipelines built earlier must be
// destroyed first. Safe to call more than once.
func (b *Builder) Destroy() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.destroyed {
		return
	}
	b.destroyed = true
	if b.pipeLayout != nil {
		b.device.DestroyPipelineLayout(b.pipeLayout)
		b.pipeLayout = nil
	}
	if b.uniformLayout != nil {
		b.device.DestroyBindGroupLayout(b.uniformLayout)
		b.uniformLayout = nil
	}
}

// Pipeline is a compiled render pipeline and the shader module it was
// created from.
type Pipeline struct {
	device     hal.Device
	shader     hal.ShaderModule
	pipeline   hal.RenderPipeline
	generation uint64

	once      sync.Once
	destroyed atomic.Bool
}

// Generation returns the build sequence number, starting at 1.
func (p *Pipeline) Generation() uint64 { return p.generation }

// Destroyed reports whether Destroy has been called.
func (p *Pipeline) Destroyed() bool { return p.destroyed.Load() }

// Destroy releases the render pipeline and its shader module.
// Safe to call more than once.
func (p *Pipeline) Destroy() {
	p.once.Do(func() {
		p.destroyed.Store(true)
		if p.pipeline != nil {
			p.device.DestroyRenderPipeline(p.pipeline)
			p.pipeline = nil
		}
		if p.shader != nil {
			p.device.DestroyShaderModule(p.shader)
			p.shader = nil
		}
		slogger().Debug("pipeline destroyed", "generation", p.generation)
	})
}
