// Package software is a CPU implementation of the gpu device.
//
// Submissions run in order on a single queue goroutine. Compute dispatches
// fan their workgroups out over an errgroup, and render passes rasterize
// triangle lists into an RGBA back buffer that is swapped into the surface
// when the pass ends. Pipelines execute the host kernels supplied in their
// descriptors; the WGSL program is only checked for the named entry points.
package software

import (
	"context"
	"fmt"
	"runtime"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"gpulife/internal/gpu"
	"gpulife/internal/shader"
)

// Backend is the name the device registers under.
const Backend = "software"

func init() {
	gpu.Register(Backend, func(opts gpu.Options) (gpu.Device, error) {
		return New(opts), nil
	})
}

// Device is the CPU device.
type Device struct {
	info    gpu.AdapterInfo
	queue   *queue
	surface *surface
	workers int
	log     *zap.Logger

	released atomic.Bool
}

var _ gpu.Device = (*Device)(nil)
var _ gpu.BufferReader = (*Device)(nil)

// New opens a CPU device.
func New(opts gpu.Options) *Device {
	w, h := opts.SurfaceWidth, opts.SurfaceHeight
	if w <= 0 {
		w = gpu.DefaultSurfaceSize
	}
	if h <= 0 {
		h = gpu.DefaultSurfaceSize
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	d := &Device{
		info:    gpu.AdapterInfo{Name: fmt.Sprintf("cpu (%d workers)", workers), Backend: Backend, HostKernels: true},
		workers: workers,
		log:     log.Named("software"),
	}
	d.surface = newSurface(d, w, h)
	d.queue = newQueue(d)
	return d
}

func (d *Device) Info() gpu.AdapterInfo { return d.info }
func (d *Device) Queue() gpu.Queue      { return d.queue }
func (d *Device) Surface() gpu.Surface  { return d.surface }

// Release drains the queue and stops its goroutine. Work submitted earlier
// still executes.
func (d *Device) Release() {
	if !d.released.CompareAndSwap(false, true) {
		return
	}
	d.queue.close()
	d.log.Debug("device released")
}

func (d *Device) alive() error {
	if d.released.Load() {
		return gpu.ErrReleased
	}
	return nil
}

// CreateBuffer allocates a zeroed buffer. Sizes must be a positive multiple of 4.
func (d *Device) CreateBuffer(desc *gpu.BufferDescriptor) (gpu.Buffer, error) {
	if err := d.alive(); err != nil {
		return nil, err
	}
	if desc == nil {
		return nil, gpu.NewResourceError("buffer", "", fmt.Errorf("nil descriptor"))
	}
	if desc.Size == 0 || desc.Size%4 != 0 {
		return nil, gpu.NewResourceError("buffer", desc.Label, fmt.Errorf("size %d is not a positive multiple of 4", desc.Size))
	}
	if desc.Usage == 0 {
		return nil, gpu.NewResourceError("buffer", desc.Label, fmt.Errorf("no usage"))
	}
	return &buffer{
		dev:   d,
		label: desc.Label,
		size:  desc.Size,
		usage: desc.Usage,
		words: make([]uint32, desc.Size/4),
	}, nil
}

// CreateBindGroupLayout validates and records a layout.
func (d *Device) CreateBindGroupLayout(desc *gpu.BindGroupLayoutDescriptor) (gpu.BindGroupLayout, error) {
	if err := d.alive(); err != nil {
		return nil, err
	}
	if desc == nil || len(desc.Entries) == 0 {
		return nil, gpu.NewResourceError("bind group layout", labelOf(desc), fmt.Errorf("no entries"))
	}
	seen := make(map[uint32]bool, len(desc.Entries))
	for _, e := range desc.Entries {
		if seen[e.Binding] {
			return nil, gpu.NewResourceError("bind group layout", desc.Label, fmt.Errorf("binding %d declared twice", e.Binding))
		}
		seen[e.Binding] = true
		switch e.Type {
		case gpu.BindingTypeUniform, gpu.BindingTypeReadOnlyStorage:
		case gpu.BindingTypeStorage:
			if e.Visibility&gpu.ShaderStageVertex != 0 {
				return nil, gpu.NewResourceError("bind group layout", desc.Label, fmt.Errorf("binding %d: writable storage is not visible to the vertex stage", e.Binding))
			}
		default:
			return nil, gpu.NewResourceError("bind group layout", desc.Label, fmt.Errorf("binding %d: unknown type %d", e.Binding, e.Type))
		}
		if e.Visibility == 0 {
			return nil, gpu.NewResourceError("bind group layout", desc.Label, fmt.Errorf("binding %d: no visibility", e.Binding))
		}
	}
	entries := append([]gpu.BindGroupLayoutEntry(nil), desc.Entries...)
	return &bindGroupLayout{dev: d, label: desc.Label, entries: entries}, nil
}

func labelOf(desc *gpu.BindGroupLayoutDescriptor) string {
	if desc == nil {
		return ""
	}
	return desc.Label
}

// CreateBindGroup binds whole buffers to every slot of a layout. A buffer
// bound as writable storage may not appear in any other slot of the group.
func (d *Device) CreateBindGroup(desc *gpu.BindGroupDescriptor) (gpu.BindGroup, error) {
	if err := d.alive(); err != nil {
		return nil, err
	}
	if desc == nil {
		return nil, gpu.NewResourceError("bind group", "", fmt.Errorf("nil descriptor"))
	}
	layout, ok := desc.Layout.(*bindGroupLayout)
	if !ok || layout.dev != d {
		return nil, gpu.NewResourceError("bind group", desc.Label, gpu.ErrForeignResource)
	}
	if len(desc.Entries) != len(layout.entries) {
		return nil, gpu.NewResourceError("bind group", desc.Label,
			fmt.Errorf("%d entries for a layout with %d bindings", len(desc.Entries), len(layout.entries)))
	}

	buffers := make(map[uint32]*buffer, len(desc.Entries))
	uses := make(map[*buffer]int, len(desc.Entries))
	writable := make(map[*buffer]bool)
	for _, e := range desc.Entries {
		le, ok := layout.entry(e.Binding)
		if !ok {
			return nil, gpu.NewResourceError("bind group", desc.Label, fmt.Errorf("binding %d not in layout", e.Binding))
		}
		if _, dup := buffers[e.Binding]; dup {
			return nil, gpu.NewResourceError("bind group", desc.Label, fmt.Errorf("binding %d set twice", e.Binding))
		}
		buf, ok := e.Buffer.(*buffer)
		if !ok || buf.dev != d {
			return nil, gpu.NewResourceError("bind group", desc.Label, fmt.Errorf("binding %d: %w", e.Binding, gpu.ErrForeignResource))
		}
		if buf.released.Load() {
			return nil, gpu.NewResourceError("bind group", desc.Label, fmt.Errorf("binding %d: buffer %q released", e.Binding, buf.label))
		}
		want := gpu.BufferUsageStorage
		if le.Type == gpu.BindingTypeUniform {
			want = gpu.BufferUsageUniform
		}
		if !buf.usage.Has(want) {
			return nil, gpu.NewResourceError("bind group", desc.Label, fmt.Errorf("binding %d: buffer %q lacks usage %#x", e.Binding, buf.label, want))
		}
		buffers[e.Binding] = buf
		uses[buf]++
		if le.Type == gpu.BindingTypeStorage {
			writable[buf] = true
		}
	}
	for buf := range writable {
		if uses[buf] > 1 {
			return nil, gpu.NewResourceError("bind group", desc.Label,
				fmt.Errorf("buffer %q is bound as writable storage and aliased by another binding", buf.label))
		}
	}
	return &bindGroup{dev: d, label: desc.Label, layout: layout, buffers: buffers}, nil
}

// CreateComputePipeline records the kernel and the workgroup size of the program.
func (d *Device) CreateComputePipeline(desc *gpu.ComputePipelineDescriptor) (gpu.ComputePipeline, error) {
	if err := d.alive(); err != nil {
		return nil, err
	}
	if desc == nil {
		return nil, gpu.NewResourceError("compute pipeline", "", fmt.Errorf("nil descriptor"))
	}
	layout, ok := desc.Layout.(*bindGroupLayout)
	if !ok || layout.dev != d {
		return nil, gpu.NewResourceError("compute pipeline", desc.Label, gpu.ErrForeignResource)
	}
	if err := requireEntry(desc.Program, desc.EntryPoint, shader.StageCompute); err != nil {
		return nil, gpu.NewResourceError("compute pipeline", desc.Label, err)
	}
	if desc.Kernel == nil {
		return nil, gpu.NewResourceError("compute pipeline", desc.Label, fmt.Errorf("no host kernel for %s", desc.EntryPoint))
	}
	tile := desc.Program.TileSize
	if tile == 0 {
		tile = shader.DefaultTileSize
	}
	return &computePipeline{
		dev:       d,
		label:     desc.Label,
		layout:    layout,
		kernel:    desc.Kernel,
		workgroup: [3]uint32{tile, tile, 1},
	}, nil
}

// CreateRenderPipeline records the vertex and fragment kernels.
func (d *Device) CreateRenderPipeline(desc *gpu.RenderPipelineDescriptor) (gpu.RenderPipeline, error) {
	if err := d.alive(); err != nil {
		return nil, err
	}
	if desc == nil {
		return nil, gpu.NewResourceError("render pipeline", "", fmt.Errorf("nil descriptor"))
	}
	layout, ok := desc.Layout.(*bindGroupLayout)
	if !ok || layout.dev != d {
		return nil, gpu.NewResourceError("render pipeline", desc.Label, gpu.ErrForeignResource)
	}
	if err := requireEntry(desc.Program, desc.VertexEntry, shader.StageVertex); err != nil {
		return nil, gpu.NewResourceError("render pipeline", desc.Label, err)
	}
	if err := requireEntry(desc.Program, desc.FragmentEntry, shader.StageFragment); err != nil {
		return nil, gpu.NewResourceError("render pipeline", desc.Label, err)
	}
	if desc.VertexKernel == nil || desc.FragmentKernel == nil {
		return nil, gpu.NewResourceError("render pipeline", desc.Label, fmt.Errorf("missing host kernels"))
	}
	if desc.TargetFormat != gpu.TextureFormatRGBA8Unorm {
		return nil, gpu.NewResourceError("render pipeline", desc.Label, fmt.Errorf("unsupported target format %d", desc.TargetFormat))
	}
	vb := desc.VertexBuffer
	if vb.Stride == 0 || vb.Stride%4 != 0 {
		return nil, gpu.NewResourceError("render pipeline", desc.Label, fmt.Errorf("vertex stride %d is not a positive multiple of 4", vb.Stride))
	}
	locations := 0
	for _, a := range vb.Attributes {
		n := a.Format.Components()
		if n == 0 || a.Offset%4 != 0 || a.Offset+uint64(4*n) > vb.Stride {
			return nil, gpu.NewResourceError("render pipeline", desc.Label, fmt.Errorf("attribute at location %d does not fit the stride", a.Location))
		}
		if int(a.Location)+1 > locations {
			locations = int(a.Location) + 1
		}
	}
	return &renderPipeline{
		dev:       d,
		label:     desc.Label,
		layout:    layout,
		vertex:    desc.VertexKernel,
		fragment:  desc.FragmentKernel,
		vbLayout:  vb,
		locations: locations,
	}, nil
}

func requireEntry(p *shader.Program, name string, stage shader.Stage) error {
	if p == nil {
		return fmt.Errorf("no program")
	}
	e, ok := p.Entry(name)
	if !ok {
		return fmt.Errorf("program %s has no entry point %q", p.Name, name)
	}
	if e.Stage != stage {
		return fmt.Errorf("entry point %s is a %s entry, want %s", name, e.Stage, stage)
	}
	return nil
}

// CreateCommandEncoder starts recording a command buffer.
func (d *Device) CreateCommandEncoder(label string) (gpu.CommandEncoder, error) {
	if err := d.alive(); err != nil {
		return nil, err
	}
	return &encoder{dev: d, label: label}, nil
}

// ReadBuffer waits for all queued work and copies the buffer out.
func (d *Device) ReadBuffer(ctx context.Context, b gpu.Buffer) ([]byte, error) {
	buf, ok := b.(*buffer)
	if !ok || buf.dev != d {
		return nil, gpu.ErrForeignResource
	}
	var out []byte
	sub := gpu.NewSubmission(nil)
	if err := d.queue.push(op{
		run: func() error {
			out = gpu.EncodeWords(buf.words)
			return nil
		},
		done: sub,
	}); err != nil {
		return nil, err
	}
	if err := sub.Wait(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

type buffer struct {
	dev      *Device
	label    string
	size     uint64
	usage    gpu.BufferUsage
	words    []uint32
	released atomic.Bool
}

func (b *buffer) Label() string          { return b.label }
func (b *buffer) Size() uint64           { return b.size }
func (b *buffer) Usage() gpu.BufferUsage { return b.usage }
func (b *buffer) Release()               { b.released.Store(true) }

type bindGroupLayout struct {
	dev     *Device
	label   string
	entries []gpu.BindGroupLayoutEntry
}

func (l *bindGroupLayout) Label() string                       { return l.label }
func (l *bindGroupLayout) Entries() []gpu.BindGroupLayoutEntry { return l.entries }
func (l *bindGroupLayout) Release()                            {}

func (l *bindGroupLayout) entry(binding uint32) (gpu.BindGroupLayoutEntry, bool) {
	for _, e := range l.entries {
		if e.Binding == binding {
			return e, true
		}
	}
	return gpu.BindGroupLayoutEntry{}, false
}

type bindGroup struct {
	dev     *Device
	label   string
	layout  *bindGroupLayout
	buffers map[uint32]*buffer
}

func (g *bindGroup) Label() string               { return g.label }
func (g *bindGroup) Layout() gpu.BindGroupLayout { return g.layout }
func (g *bindGroup) Release()                    {}

// Words implements gpu.Resources.
func (g *bindGroup) Words(binding uint32) []uint32 {
	if buf := g.buffers[binding]; buf != nil {
		return buf.words
	}
	return nil
}

type computePipeline struct {
	dev       *Device
	label     string
	layout    *bindGroupLayout
	kernel    gpu.ComputeKernel
	workgroup [3]uint32
}

func (p *computePipeline) Label() string { return p.label }
func (p *computePipeline) Release()      {}

type renderPipeline struct {
	dev       *Device
	label     string
	layout    *bindGroupLayout
	vertex    gpu.VertexKernel
	fragment  gpu.FragmentKernel
	vbLayout  gpu.VertexBufferLayout
	locations int
}

func (p *renderPipeline) Label() string { return p.label }
func (p *renderPipeline) Release()      {}
