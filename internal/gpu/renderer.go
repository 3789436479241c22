//go:build !nogpu

package gpu

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/shaderpg"
)

const (
	// DefaultSubmitTimeout bounds how long RenderFrame waits for a slot's
	// previous submission to complete.
	DefaultSubmitTimeout = 5 * time.Second

	// pollInterval is the sleep between completion polls.
	pollInterval = 200 * time.Microsecond

	// quadVertexCount is the number of vertices in the full-screen quad,
	// drawn as two triangles without an index buffer.
	quadVertexCount = 6

	copyPitchAlignment = 256
)

// quadVertices covers clip space with two triangles.
var quadVertices = [quadVertexCount * 2]float32{
	-1, -1, 1, -1, 1, 1,
	-1, -1, 1, 1, -1, 1,
}

// ErrRendererDestroyed is returned by Renderer methods after Destroy.
var ErrRendererDestroyed = errors.New("gpu: renderer destroyed")

// RendererConfig configures a Renderer.
type RendererConfig struct {
	// Width and Height are the offscreen target size in pixels.
	Width, Height uint32

	// FramesInFlight is the number of frame slots. It must not exceed the
	// frames-in-flight value given to shaderpg.New, otherwise a retired
	// pipeline could still be referenced by a pending submission.
	FramesInFlight int

	// SubmitTimeout defaults to DefaultSubmitTimeout.
	SubmitTimeout time.Duration
}

// FrameReport describes one submitted frame.
type FrameReport struct {
	Index      uint64
	Slot       int
	Draws      int
	Rerecorded bool
	Wait       time.Duration // blocked on the slot's previous submission
	CPU        time.Duration // recording and submission
	Info       shaderpg.FrameInfo

	// UploadErrors counts uniform writes the queue rejected. The frame is
	// still submitted with the slot's previous uniforms.
	UploadErrors int
}

// frameSlot owns the per-frame resources reused every FramesInFlight frames.
type frameSlot struct {
	uniforms  hal.Buffer
	bindGroup hal.BindGroup

	// Set while a submission using this slot may still be executing.
	cmdBuf     hal.CommandBuffer
	submission uint64
	busy       bool
}

// Renderer draws a full-screen quad into an offscreen target once per
// frame, keeping up to FramesInFlight submissions pending on the GPU.
//
// Command buffers are recorded fresh every frame, so a re-record request
// is always honored by the next RenderFrame.
type Renderer struct {
	device        hal.Device
	queue         hal.Queue
	width         uint32
	height        uint32
	submitTimeout time.Duration

	target     hal.Texture
	targetView hal.TextureView
	quad       hal.Buffer

	mu        sync.Mutex
	slots     []frameSlot
	frame     uint64
	destroyed bool

	rerecord  atomic.Bool
	rerecords atomic.Uint64
}

var _ shaderpg.Rerecorder = (*Renderer)(nil)

// NewRenderer creates the offscreen target, the quad vertex buffer and
// one uniform buffer and bind group per frame slot.
func NewRenderer(device hal.Device, queue hal.Queue, builder *Builder, cfg RendererConfig) (*Renderer, error) {
	if device == nil || queue == nil {
		return nil, errors.New("gpu: nil device or queue")
	}
	if builder == nil {
		return nil, errors.New("gpu: nil pipeline builder")
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return nil, fmt.Errorf("gpu: invalid target size %dx%d", cfg.Width, cfg.Height)
	}
	if cfg.FramesInFlight < 1 {
		cfg.FramesInFlight = 1
	}
	if cfg.SubmitTimeout <= 0 {
		cfg.SubmitTimeout = DefaultSubmitTimeout
	}

	r := &Renderer{
		device:        device,
		queue:         queue,
		width:         cfg.Width,
		height:        cfg.Height,
		submitTimeout: cfg.SubmitTimeout,
	}
	if err := r.createTarget(); err != nil {
		r.releaseResources()
		return nil, err
	}
	if err := r.createQuad(); err != nil {
		r.releaseResources()
		return nil, err
	}
	layout := builder.UniformLayout()
	if layout == nil {
		r.releaseResources()
		return nil, errBuilderDestroyed
	}
	r.slots = make([]frameSlot, cfg.FramesInFlight)
	for i := range r.slots {
		if err := r.createSlot(&r.slots[i], i, layout); err != nil {
			r.releaseResources()
			return nil, err
		}
	}

	slogger().Debug("renderer created",
		"width", cfg.Width,
		"height", cfg.Height,
		"frames_in_flight", cfg.FramesInFlight)
	return r, nil
}

func (r *Renderer) createTarget() error {
	tex, err := r.device.CreateTexture(&hal.TextureDescriptor{
		Label:         "shaderpg_target",
		Size:          hal.Extent3D{Width: r.width, Height: r.height, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        TargetFormat,
		Usage:         gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc,
	})
	if err != nil {
		return fmt.Errorf("create target texture: %w", err)
	}
	r.target = tex

	view, err := r.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         "shaderpg_target_view",
		Format:        TargetFormat,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		return fmt.Errorf("create target view: %w", err)
	}
	r.targetView = view
	return nil
}

func (r *Renderer) createQuad() error {
	data := make([]byte, len(quadVertices)*4)
	for i, v := range quadVertices {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(v))
	}
	buf, err := r.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "shaderpg_quad",
		Size:  uint64(len(data)),
		Usage: gputypes.BufferUsageVertex | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create quad buffer: %w", err)
	}
	r.quad = buf
	if err := r.queue.WriteBuffer(buf, 0, data); err != nil {
		return fmt.Errorf("upload quad vertices: %w", err)
	}
	return nil
}

func (r *Renderer) createSlot(s *frameSlot, i int, layout hal.BindGroupLayout) error {
	buf, err := r.device.CreateBuffer(&hal.BufferDescriptor{
		Label: fmt.Sprintf("shaderpg_uniforms_%d", i),
		Size:  uniformSize,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create uniform buffer %d: %w", i, err)
	}
	s.uniforms = buf

	bg, err := r.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  fmt.Sprintf("shaderpg_bind_group_%d", i),
		Layout: layout,
		Entries: []gputypes.BindGroupEntry{
			{
				Binding:  0,
				Resource: gputypes.BufferBinding{Buffer: buf.NativeHandle(), Offset: 0, Size: uniformSize},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create bind group %d: %w", i, err)
	}
	s.bindGroup = bg
	return nil
}

// SetLogger sets the logger for the GPU backend.
func (r *Renderer) SetLogger(l *slog.Logger) { setLogger(l) }

// Size returns the offscreen target size.
func (r *Renderer) Size() (width, height uint32) { return r.width, r.height }

// FramesInFlight returns the number of frame slots.
func (r *Renderer) FramesInFlight() int { return len(r.slots) }

// RequestRerecord marks the next frame as re-recorded.
func (r *Renderer) RequestRerecord() {
	r.rerecord.Store(true)
}

// Rerecords returns how many frames were recorded in response to a
// re-record request.
func (r *Renderer) Rerecords() uint64 { return r.rerecords.Load() }

// Frames returns the number of frames submitted.
func (r *Renderer) Frames() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frame
}

// RenderFrame waits for the next frame slot to become free, then records
// and submits one render pass. record is called with the pass open and
// issues the frame's uniform write and draw; shaderpg.App.RecordFrame
// has the right signature.
func (r *Renderer) RenderFrame(record func(shaderpg.Target) shaderpg.FrameInfo) (FrameReport, error) {
	if record == nil {
		return FrameReport{}, errors.New("gpu: nil record function")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.destroyed {
		return FrameReport{}, ErrRendererDestroyed
	}

	idx := int(r.frame % uint64(len(r.slots)))
	slot := &r.slots[idx]

	waitStart := time.Now()
	if err := r.retireSlot(slot); err != nil {
		return FrameReport{}, err
	}
	wait := time.Since(waitStart)

	start := time.Now()
	rerecorded := r.rerecord.Swap(false)
	if rerecorded {
		r.rerecords.Add(1)
		slogger().Debug("recording frame commands for new pipeline", "frame", r.frame)
	}

	encoder, err := r.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: "shaderpg_frame_encoder",
	})
	if err != nil {
		return FrameReport{}, fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("shaderpg_frame"); err != nil {
		return FrameReport{}, fmt.Errorf("begin encoding: %w", err)
	}

	rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "shaderpg_frame_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       r.targetView,
			LoadOp:     gputypes.LoadOpClear,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: gputypes.Color{R: 1, G: 0, B: 0.5, A: 1},
		}},
	})
	ft := &frameTarget{r: r, slot: slot, pass: rp}
	info := record(ft)
	rp.End()

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return FrameReport{}, fmt.Errorf("end encoding: %w", err)
	}
	submission, err := r.queue.Submit([]hal.CommandBuffer{cmdBuf})
	if err != nil {
		r.device.FreeCommandBuffer(cmdBuf)
		return FrameReport{}, fmt.Errorf("submit: %w", err)
	}
	slot.cmdBuf, slot.submission, slot.busy = cmdBuf, submission, true

	report := FrameReport{
		Index:      r.frame,
		Slot:       idx,
		Draws:      ft.draws,
		Rerecorded: rerecorded,
		Wait:       wait,
		CPU:        time.Since(start),
		Info:       info,

		UploadErrors: ft.uploadErrs,
	}
	r.frame++
	return report, nil
}

// retireSlot waits for the slot's pending submission and frees its
// command buffer. Caller must hold r.mu.
func (r *Renderer) retireSlot(s *frameSlot) error {
	if !s.busy {
		return nil
	}
	if err := r.waitSubmission(s.submission); err != nil {
		return fmt.Errorf("wait for frame: %w", err)
	}
	r.device.FreeCommandBuffer(s.cmdBuf)
	s.cmdBuf, s.submission, s.busy = nil, 0, false
	return nil
}

// waitSubmission blocks until the queue reports submission idx as
// completed or the submit timeout expires.
func (r *Renderer) waitSubmission(idx uint64) error {
	if r.queue.PollCompleted() >= idx {
		return nil
	}
	deadline := time.Now().Add(r.submitTimeout)
	for r.queue.PollCompleted() < idx {
		if time.Now().After(deadline) {
			return fmt.Errorf("submission %d not complete after %v", idx, r.submitTimeout)
		}
		time.Sleep(pollInterval)
	}
	return nil
}

// Drain waits for every pending submission to complete.
func (r *Renderer) Drain() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.destroyed {
		return nil
	}
	return r.drainLocked()
}

func (r *Renderer) drainLocked() error {
	var errs []error
	for i := range r.slots {
		if err := r.retireSlot(&r.slots[i]); err != nil {
			errs = append(errs, fmt.Errorf("slot %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// Snapshot drains pending frames and reads the offscreen target back as
// an RGBA image.
func (r *Renderer) Snapshot() (*image.RGBA, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.destroyed {
		return nil, ErrRendererDestroyed
	}
	if err := r.drainLocked(); err != nil {
		return nil, err
	}

	w, h := r.width, r.height
	bytesPerRow := w * 4
	alignedBytesPerRow := (bytesPerRow + copyPitchAlignment - 1) &^ (copyPitchAlignment - 1)
	stagingSize := uint64(alignedBytesPerRow) * uint64(h)

	staging, err := r.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "shaderpg_snapshot_staging",
		Size:  stagingSize,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create staging buffer: %w", err)
	}
	defer r.device.DestroyBuffer(staging)

	encoder, err := r.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: "shaderpg_snapshot_encoder",
	})
	if err != nil {
		return nil, fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("shaderpg_snapshot"); err != nil {
		return nil, fmt.Errorf("begin encoding: %w", err)
	}

	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: r.target,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageRenderAttachment,
			NewUsage: gputypes.TextureUsageCopySrc,
		},
	}})
	encoder.CopyTextureToBuffer(r.target, staging, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{Offset: 0, BytesPerRow: alignedBytesPerRow, RowsPerImage: h},
		TextureBase:  hal.ImageCopyTexture{Texture: r.target, MipLevel: 0},
		Size:         hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	}})
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: r.target,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageCopySrc,
			NewUsage: gputypes.TextureUsageRenderAttachment,
		},
	}})

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("end encoding: %w", err)
	}
	defer r.device.FreeCommandBuffer(cmdBuf)

	submission, err := r.queue.Submit([]hal.CommandBuffer{cmdBuf})
	if err != nil {
		return nil, fmt.Errorf("submit: %w", err)
	}
	if err := r.waitSubmission(submission); err != nil {
		return nil, fmt.Errorf("wait for snapshot: %w", err)
	}

	readback, err := r.readBuffer(staging, stagingSize)
	if err != nil {
		return nil, fmt.Errorf("readback: %w", err)
	}

	img := image.NewRGBA(image.Rect(0, 0, int(w), int(h)))
	for y := 0; y < int(h); y++ {
		src := readback[y*int(alignedBytesPerRow) : y*int(alignedBytesPerRow)+int(bytesPerRow)]
		dst := img.Pix[y*img.Stride : y*img.Stride+int(bytesPerRow)]
		convertBGRAToRGBA(src, dst)
	}
	return img, nil
}

// readBuffer maps size bytes of buf and copies them out.
func (r *Renderer) readBuffer(buf hal.Buffer, size uint64) ([]byte, error) {
	m, err := r.device.MapBuffer(buf, 0, size)
	if err != nil {
		return nil, fmt.Errorf("map staging buffer: %w", err)
	}
	defer func() {
		if err := r.device.UnmapBuffer(buf); err != nil {
			slogger().Warn("unmap staging buffer failed", "error", err)
		}
	}()
	if m.Ptr == nil {
		return nil, errors.New("staging buffer mapped to nil")
	}
	out := make([]byte, size)
	copy(out, unsafe.Slice((*byte)(m.Ptr), size))
	return out, nil
}

// convertBGRAToRGBA swaps the red and blue channels of src into dst.
func convertBGRAToRGBA(src, dst []byte) {
	for i := 0; i+3 < len(src) && i+3 < len(dst); i += 4 {
		dst[i+0] = src[i+2]
		dst[i+1] = src[i+1]
		dst[i+2] = src[i+0]
		dst[i+3] = src[i+3]
	}
}

// Destroy drains pending frames and releases all renderer resources.
// Safe to call more than once.
func (r *Renderer) Destroy() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.destroyed {
		return
	}
	if err := r.drainLocked(); err != nil {
		slogger().Warn("renderer drain failed during destroy", "error", err)
	}
	r.destroyed = true
	r.releaseResources()
}

func (r *Renderer) releaseResources() {
	for i := range r.slots {
		s := &r.slots[i]
		if s.busy {
			r.device.FreeCommandBuffer(s.cmdBuf)
			s.cmdBuf, s.submission, s.busy = nil, 0, false
		}
		if s.bindGroup != nil {
			r.device.DestroyBindGroup(s.bindGroup)
			s.bindGroup = nil
		}
		if s.uniforms != nil {
			r.device.DestroyBuffer(s.uniforms)
			s.uniforms = nil
		}
	}
	if r.quad != nil {
		r.device.DestroyBuffer(r.quad)
		r.quad = nil
	}
	if r.targetView != nil {
		r.device.DestroyTextureView(r.targetView)
		r.targetView = nil
	}
	if r.target != nil {
		r.device.DestroyTexture(r.target)
		r.target = nil
	}
}

// frameTarget is the shaderpg.Target handed to the record function for a
// single frame.
type frameTarget struct {
	r     *Renderer
	slot  *frameSlot
	pass  hal.RenderPassEncoder
	draws int

	uploadErrs int
}

func (t *frameTarget) Size() (width, height uint32) { return t.r.width, t.r.height }

func (t *frameTarget) WriteUniforms(u shaderpg.Uniforms) {
	if err := t.r.queue.WriteBuffer(t.slot.uniforms, 0, encodeUniforms(u)); err != nil {
		t.uploadErrs++
		slogger().Warn("uniform upload failed", "error", err)
	}
}

func (t *frameTarget) DrawQuad(p shaderpg.Pipeline) {
	hp, ok := p.(*Pipeline)
	if !ok || hp == nil || hp.pipeline == nil {
		slogger().Warn("skipping draw with unusable pipeline", "type", fmt.Sprintf("%T", p))
		return
	}
	t.pass.SetPipeline(hp.pipeline)
	t.pass.SetBindGroup(0, t.slot.bindGroup, nil)
	t.pass.SetVertexBuffer(0, t.r.quad, 0)
	t.pass.Draw(quadVertexCount, 1, 0, 0)
	t.draws++
}

// encodeUniforms lays out u to match the prelude's Uniforms struct.
func encodeUniforms(u shaderpg.Uniforms) []byte {
	b := make([]byte, uniformSize)
	binary.LittleEndian.PutUint32(b[0:], math.Float32bits(u.Time))
	binary.LittleEndian.PutUint32(b[4:], math.Float32bits(u.Aspect))
	binary.LittleEndian.PutUint32(b[8:], math.Float32bits(u.Width))
	binary.LittleEndian.PutUint32(b[12:], math.Float32bits(u.Height))
	return b
}
