//go:build wgpu

// Package webgpu runs the gpu device on hardware through wgpu-native.
//
// The surface is an offscreen RGBA8 texture; Frame copies it back through a
// staging buffer so the window or the snapshot writer can present it.
package webgpu

import (
	"context"
	"fmt"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
	"go.uber.org/zap"

	"gpulife/internal/gpu"
)

// Backend is the name the device registers under.
const Backend = "wgpu"

func init() {
	gpu.Register(Backend, func(opts gpu.Options) (gpu.Device, error) {
		return Open(opts)
	})
}

// Device wraps a wgpu device and its queue.
type Device struct {
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	wq       *wgpu.Queue
	info     gpu.AdapterInfo
	log      *zap.Logger

	queue   *queue
	surface *surface

	mu       sync.Mutex
	released bool
}

var _ gpu.Device = (*Device)(nil)
var _ gpu.BufferReader = (*Device)(nil)

// Open requests a high performance adapter and a device with default limits.
func Open(opts gpu.Options) (*Device, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	instance := wgpu.CreateInstance(nil)
	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		instance.Release()
		return nil, fmt.Errorf("request adapter: %w", err)
	}
	device, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{Label: "gpulife"})
	if err != nil {
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("request device: %w", err)
	}
	info := adapter.GetInfo()
	d := &Device{
		instance: instance,
		adapter:  adapter,
		device:   device,
		wq:       device.GetQueue(),
		info:     gpu.AdapterInfo{Name: info.Name, Backend: Backend},
		log:      log.Named("webgpu"),
	}
	d.queue = &queue{dev: d}

	w, h := opts.SurfaceWidth, opts.SurfaceHeight
	if w <= 0 {
		w = gpu.DefaultSurfaceSize
	}
	if h <= 0 {
		h = gpu.DefaultSurfaceSize
	}
	s, err := newSurface(d, w, h)
	if err != nil {
		d.Release()
		return nil, err
	}
	d.surface = s
	return d, nil
}

func (d *Device) Info() gpu.AdapterInfo { return d.info }
func (d *Device) Queue() gpu.Queue      { return d.queue }
func (d *Device) Surface() gpu.Surface  { return d.surface }

// Release waits for outstanding work and frees the device.
func (d *Device) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released {
		return
	}
	d.released = true
	d.device.Poll(true, nil)
	if d.surface != nil {
		d.surface.release()
	}
	d.wq.Release()
	d.device.Release()
	d.adapter.Release()
	d.instance.Release()
}

func (d *Device) poll() { d.device.Poll(true, nil) }

func bufferUsage(u gpu.BufferUsage) wgpu.BufferUsage {
	var out wgpu.BufferUsage
	if u.Has(gpu.BufferUsageCopySrc) {
		out |= wgpu.BufferUsageCopySrc
	}
	if u.Has(gpu.BufferUsageCopyDst) {
		out |= wgpu.BufferUsageCopyDst
	}
	if u.Has(gpu.BufferUsageVertex) {
		out |= wgpu.BufferUsageVertex
	}
	if u.Has(gpu.BufferUsageUniform) {
		out |= wgpu.BufferUsageUniform
	}
	if u.Has(gpu.BufferUsageStorage) {
		out |= wgpu.BufferUsageStorage
	}
	return out
}

func shaderStage(s gpu.ShaderStage) wgpu.ShaderStage {
	var out wgpu.ShaderStage
	if s&gpu.ShaderStageVertex != 0 {
		out |= wgpu.ShaderStageVertex
	}
	if s&gpu.ShaderStageFragment != 0 {
		out |= wgpu.ShaderStageFragment
	}
	if s&gpu.ShaderStageCompute != 0 {
		out |= wgpu.ShaderStageCompute
	}
	return out
}

func bindingType(t gpu.BindingType) wgpu.BufferBindingType {
	switch t {
	case gpu.BindingTypeUniform:
		return wgpu.BufferBindingTypeUniform
	case gpu.BindingTypeReadOnlyStorage:
		return wgpu.BufferBindingTypeReadOnlyStorage
	default:
		return wgpu.BufferBindingTypeStorage
	}
}

func (d *Device) CreateBuffer(desc *gpu.BufferDescriptor) (gpu.Buffer, error) {
	b, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: desc.Label,
		Size:  desc.Size,
		Usage: bufferUsage(desc.Usage),
	})
	if err != nil {
		return nil, gpu.NewResourceError("buffer", desc.Label, err)
	}
	return &buffer{b: b, label: desc.Label, size: desc.Size, usage: desc.Usage}, nil
}

func (d *Device) CreateBindGroupLayout(desc *gpu.BindGroupLayoutDescriptor) (gpu.BindGroupLayout, error) {
	entries := make([]wgpu.BindGroupLayoutEntry, len(desc.Entries))
	for i, e := range desc.Entries {
		entries[i] = wgpu.BindGroupLayoutEntry{
			Binding:    e.Binding,
			Visibility: shaderStage(e.Visibility),
			Buffer:     wgpu.BufferBindingLayout{Type: bindingType(e.Type)},
		}
	}
	l, err := d.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{Label: desc.Label, Entries: entries})
	if err != nil {
		return nil, gpu.NewResourceError("bind group layout", desc.Label, err)
	}
	pl, err := d.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            desc.Label,
		BindGroupLayouts: []*wgpu.BindGroupLayout{l},
	})
	if err != nil {
		l.Release()
		return nil, gpu.NewResourceError("pipeline layout", desc.Label, err)
	}
	return &bindGroupLayout{l: l, pipeline: pl, label: desc.Label, entries: append([]gpu.BindGroupLayoutEntry(nil), desc.Entries...)}, nil
}

func (d *Device) CreateBindGroup(desc *gpu.BindGroupDescriptor) (gpu.BindGroup, error) {
	layout, ok := desc.Layout.(*bindGroupLayout)
	if !ok {
		return nil, gpu.NewResourceError("bind group", desc.Label, gpu.ErrForeignResource)
	}
	entries := make([]wgpu.BindGroupEntry, len(desc.Entries))
	for i, e := range desc.Entries {
		buf, ok := e.Buffer.(*buffer)
		if !ok {
			return nil, gpu.NewResourceError("bind group", desc.Label, gpu.ErrForeignResource)
		}
		entries[i] = wgpu.BindGroupEntry{Binding: e.Binding, Buffer: buf.b, Offset: 0, Size: buf.size}
	}
	g, err := d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{Label: desc.Label, Layout: layout.l, Entries: entries})
	if err != nil {
		return nil, gpu.NewResourceError("bind group", desc.Label, err)
	}
	return &bindGroup{g: g, label: desc.Label, layout: layout}, nil
}

func (d *Device) shaderModule(label, source string) (*wgpu.ShaderModule, error) {
	return d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          label,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: source},
	})
}

func (d *Device) CreateComputePipeline(desc *gpu.ComputePipelineDescriptor) (gpu.ComputePipeline, error) {
	layout, ok := desc.Layout.(*bindGroupLayout)
	if !ok || desc.Program == nil {
		return nil, gpu.NewResourceError("compute pipeline", desc.Label, fmt.Errorf("missing layout or program"))
	}
	module, err := d.shaderModule(desc.Program.Name, desc.Program.Source)
	if err != nil {
		return nil, gpu.NewResourceError("compute pipeline", desc.Label, err)
	}
	defer module.Release()
	p, err := d.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  desc.Label,
		Layout: layout.pipeline,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     module,
			EntryPoint: desc.EntryPoint,
		},
	})
	if err != nil {
		return nil, gpu.NewResourceError("compute pipeline", desc.Label, err)
	}
	return &computePipeline{p: p, label: desc.Label}, nil
}

func (d *Device) CreateRenderPipeline(desc *gpu.RenderPipelineDescriptor) (gpu.RenderPipeline, error) {
	layout, ok := desc.Layout.(*bindGroupLayout)
	if !ok || desc.Program == nil {
		return nil, gpu.NewResourceError("render pipeline", desc.Label, fmt.Errorf("missing layout or program"))
	}
	module, err := d.shaderModule(desc.Program.Name, desc.Program.Source)
	if err != nil {
		return nil, gpu.NewResourceError("render pipeline", desc.Label, err)
	}
	defer module.Release()

	attrs := make([]wgpu.VertexAttribute, len(desc.VertexBuffer.Attributes))
	for i, a := range desc.VertexBuffer.Attributes {
		attrs[i] = wgpu.VertexAttribute{Format: wgpu.VertexFormatFloat32x2, Offset: a.Offset, ShaderLocation: a.Location}
	}
	p, err := d.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  desc.Label,
		Layout: layout.pipeline,
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: desc.VertexEntry,
			Buffers: []wgpu.VertexBufferLayout{{
				ArrayStride: desc.VertexBuffer.Stride,
				StepMode:    wgpu.VertexStepModeVertex,
				Attributes:  attrs,
			}},
		},
		Fragment: &wgpu.FragmentState{
			Module:     module,
			EntryPoint: desc.FragmentEntry,
			Targets: []wgpu.ColorTargetState{{
				Format:    wgpu.TextureFormatRGBA8Unorm,
				WriteMask: wgpu.ColorWriteMaskAll,
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		Multisample: wgpu.MultisampleState{Count: 1, Mask: 0xFFFFFFFF},
	})
	if err != nil {
		return nil, gpu.NewResourceError("render pipeline", desc.Label, err)
	}
	return &renderPipeline{p: p, label: desc.Label}, nil
}

func (d *Device) CreateCommandEncoder(label string) (gpu.CommandEncoder, error) {
	enc, err := d.device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return nil, err
	}
	return &encoder{dev: d, enc: enc, label: label}, nil
}

// ReadBuffer copies buf into a mappable staging buffer and waits for the map.
func (d *Device) ReadBuffer(ctx context.Context, b gpu.Buffer) ([]byte, error) {
	buf, ok := b.(*buffer)
	if !ok {
		return nil, gpu.ErrForeignResource
	}
	staging, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: buf.label + " staging",
		Size:  buf.size,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}
	defer staging.Release()

	enc, err := d.device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, err
	}
	defer enc.Release()
	enc.CopyBufferToBuffer(buf.b, 0, staging, 0, buf.size)
	cmd, err := enc.Finish(nil)
	if err != nil {
		return nil, err
	}
	defer cmd.Release()
	d.wq.Submit(cmd)
	return mapRead(ctx, d, staging, buf.size)
}

func mapRead(ctx context.Context, d *Device, staging *wgpu.Buffer, size uint64) ([]byte, error) {
	status := make(chan wgpu.BufferMapAsyncStatus, 1)
	if err := staging.MapAsync(wgpu.MapModeRead, 0, size, func(s wgpu.BufferMapAsyncStatus) {
		status <- s
	}); err != nil {
		return nil, err
	}
	d.poll()
	select {
	case s := <-status:
		if s != wgpu.BufferMapAsyncStatusSuccess {
			return nil, fmt.Errorf("webgpu: map failed: %v", s)
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	out := make([]byte, size)
	copy(out, staging.GetMappedRange(0, uint(size)))
	staging.Unmap()
	return out, nil
}

type buffer struct {
	b     *wgpu.Buffer
	label string
	size  uint64
	usage gpu.BufferUsage
}

func (b *buffer) Label() string          { return b.label }
func (b *buffer) Size() uint64           { return b.size }
func (b *buffer) Usage() gpu.BufferUsage { return b.usage }
func (b *buffer) Release()               { b.b.Release() }

type bindGroupLayout struct {
	l        *wgpu.BindGroupLayout
	pipeline *wgpu.PipelineLayout
	label    string
	entries  []gpu.BindGroupLayoutEntry
}

func (l *bindGroupLayout) Label() string                       { return l.label }
func (l *bindGroupLayout) Entries() []gpu.BindGroupLayoutEntry { return l.entries }
func (l *bindGroupLayout) Release() {
	l.pipeline.Release()
	l.l.Release()
}

type bindGroup struct {
	g      *wgpu.BindGroup
	label  string
	layout *bindGroupLayout
}

func (g *bindGroup) Label() string               { return g.label }
func (g *bindGroup) Layout() gpu.BindGroupLayout { return g.layout }
func (g *bindGroup) Release()                    { g.g.Release() }

type computePipeline struct {
	p     *wgpu.ComputePipeline
	label string
}

func (p *computePipeline) Label() string { return p.label }
func (p *computePipeline) Release()      { p.p.Release() }

type renderPipeline struct {
	p     *wgpu.RenderPipeline
	label string
}

func (p *renderPipeline) Label() string { return p.label }
func (p *renderPipeline) Release()      { p.p.Release() }
