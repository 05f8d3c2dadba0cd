package software

import (
	"fmt"

	"gpulife/internal/gpu"
)

const maxBindGroups = 4

type pass interface {
	execute() error
}

// encoder records passes. The first recording error is kept and returned
// by Finish; later calls are still accepted but ignored.
type encoder struct {
	dev      *Device
	label    string
	passes   []pass
	open     interface{ isOpen() bool }
	err      error
	finished bool
}

func (e *encoder) fail(err error) {
	if e.err == nil {
		e.err = err
	}
}

func (e *encoder) beginPass() bool {
	if e.finished {
		e.fail(gpu.ErrEncoderFinished)
		return false
	}
	if e.open != nil && e.open.isOpen() {
		e.fail(gpu.ErrPassOpen)
		return false
	}
	return true
}

func (e *encoder) BeginComputePass(label string) gpu.ComputePass {
	p := &computePass{enc: e, label: label}
	if !e.beginPass() {
		p.ended = true
		return p
	}
	e.open = p
	e.passes = append(e.passes, p)
	return p
}

func (e *encoder) BeginRenderPass(desc *gpu.RenderPassDescriptor) gpu.RenderPass {
	p := &renderPass{enc: e}
	if !e.beginPass() {
		p.ended = true
		return p
	}
	if desc == nil {
		e.fail(fmt.Errorf("software: nil render pass descriptor"))
		p.ended = true
		return p
	}
	target, ok := desc.Target.(*surface)
	if !ok || target.dev != e.dev {
		e.fail(fmt.Errorf("render pass %q target: %w", desc.Label, gpu.ErrForeignResource))
		p.ended = true
		return p
	}
	p.label = desc.Label
	p.target = target
	p.clear = desc.ClearColor
	e.open = p
	e.passes = append(e.passes, p)
	return p
}

func (e *encoder) Finish() (gpu.CommandBuffer, error) {
	if e.finished {
		return nil, gpu.ErrEncoderFinished
	}
	e.finished = true
	if e.open != nil && e.open.isOpen() {
		e.fail(gpu.ErrPassOpen)
	}
	if e.err != nil {
		return nil, fmt.Errorf("software: encoder %q: %w", e.label, e.err)
	}
	return &commandBuffer{dev: e.dev, label: e.label, passes: e.passes}, nil
}

type dispatch struct {
	pipeline *computePipeline
	group    *bindGroup
	count    [3]uint32
}

type computePass struct {
	enc        *encoder
	label      string
	pipeline   *computePipeline
	groups     [maxBindGroups]*bindGroup
	dispatches []dispatch
	ended      bool
}

func (p *computePass) isOpen() bool { return !p.ended }

func (p *computePass) SetPipeline(pl gpu.ComputePipeline) {
	if p.ended {
		p.enc.fail(gpu.ErrPassEnded)
		return
	}
	cp, ok := pl.(*computePipeline)
	if !ok || cp.dev != p.enc.dev {
		p.enc.fail(gpu.ErrForeignResource)
		return
	}
	p.pipeline = cp
}

func (p *computePass) SetBindGroup(index uint32, group gpu.BindGroup) {
	if p.ended {
		p.enc.fail(gpu.ErrPassEnded)
		return
	}
	bg, err := checkBindGroup(p.enc.dev, index, group)
	if err != nil {
		p.enc.fail(err)
		return
	}
	p.groups[index] = bg
}

func (p *computePass) DispatchWorkgroups(x, y, z uint32) {
	if p.ended {
		p.enc.fail(gpu.ErrPassEnded)
		return
	}
	if p.pipeline == nil {
		p.enc.fail(gpu.ErrNoPipeline)
		return
	}
	if x == 0 || y == 0 || z == 0 {
		p.enc.fail(gpu.ErrWorkgroupCountZero)
		return
	}
	g := p.groups[0]
	if g == nil {
		p.enc.fail(gpu.ErrMissingBindGroup)
		return
	}
	if g.layout != p.pipeline.layout {
		p.enc.fail(gpu.ErrIncompatibleBindGroup)
		return
	}
	p.dispatches = append(p.dispatches, dispatch{pipeline: p.pipeline, group: g, count: [3]uint32{x, y, z}})
}

func (p *computePass) End() {
	if p.ended {
		p.enc.fail(gpu.ErrPassEnded)
		return
	}
	p.ended = true
}

func (p *computePass) execute() error {
	for _, d := range p.dispatches {
		if err := p.enc.dev.dispatch(d); err != nil {
			return fmt.Errorf("compute pass %q: %w", p.label, err)
		}
	}
	return nil
}

type draw struct {
	pipeline  *renderPipeline
	group     *bindGroup
	vertex    *buffer
	vertices  uint32
	instances uint32
}

type renderPass struct {
	enc      *encoder
	label    string
	target   *surface
	clear    gpu.Color
	pipeline *renderPipeline
	groups   [maxBindGroups]*bindGroup
	vertex   *buffer
	draws    []draw
	ended    bool
}

func (p *renderPass) isOpen() bool { return !p.ended }

func (p *renderPass) SetPipeline(pl gpu.RenderPipeline) {
	if p.ended {
		p.enc.fail(gpu.ErrPassEnded)
		return
	}
	rp, ok := pl.(*renderPipeline)
	if !ok || rp.dev != p.enc.dev {
		p.enc.fail(gpu.ErrForeignResource)
		return
	}
	p.pipeline = rp
}

func (p *renderPass) SetBindGroup(index uint32, group gpu.BindGroup) {
	if p.ended {
		p.enc.fail(gpu.ErrPassEnded)
		return
	}
	bg, err := checkBindGroup(p.enc.dev, index, group)
	if err != nil {
		p.enc.fail(err)
		return
	}
	p.groups[index] = bg
}

func (p *renderPass) SetVertexBuffer(slot uint32, b gpu.Buffer) {
	if p.ended {
		p.enc.fail(gpu.ErrPassEnded)
		return
	}
	if slot != 0 {
		p.enc.fail(fmt.Errorf("software: vertex buffer slot %d out of range", slot))
		return
	}
	buf, ok := b.(*buffer)
	if !ok || buf.dev != p.enc.dev {
		p.enc.fail(gpu.ErrForeignResource)
		return
	}
	if !buf.usage.Has(gpu.BufferUsageVertex) {
		p.enc.fail(fmt.Errorf("software: buffer %q lacks Vertex usage", buf.label))
		return
	}
	p.vertex = buf
}

func (p *renderPass) Draw(vertexCount, instanceCount uint32) {
	if p.ended {
		p.enc.fail(gpu.ErrPassEnded)
		return
	}
	if p.pipeline == nil {
		p.enc.fail(gpu.ErrNoPipeline)
		return
	}
	g := p.groups[0]
	if g == nil {
		p.enc.fail(gpu.ErrMissingBindGroup)
		return
	}
	if g.layout != p.pipeline.layout {
		p.enc.fail(gpu.ErrIncompatibleBindGroup)
		return
	}
	if p.vertex == nil {
		p.enc.fail(gpu.ErrMissingVertexBuffer)
		return
	}
	if need := uint64(vertexCount) * p.pipeline.vbLayout.Stride; need > p.vertex.size {
		p.enc.fail(fmt.Errorf("software: draw of %d vertices overruns vertex buffer %q", vertexCount, p.vertex.label))
		return
	}
	p.draws = append(p.draws, draw{
		pipeline:  p.pipeline,
		group:     g,
		vertex:    p.vertex,
		vertices:  vertexCount,
		instances: instanceCount,
	})
}

func (p *renderPass) End() {
	if p.ended {
		p.enc.fail(gpu.ErrPassEnded)
		return
	}
	p.ended = true
}

func (p *renderPass) execute() error {
	p.target.begin(p.clear)
	for _, d := range p.draws {
		if err := p.target.draw(d); err != nil {
			return fmt.Errorf("render pass %q: %w", p.label, err)
		}
	}
	p.target.present()
	return nil
}

func checkBindGroup(dev *Device, index uint32, group gpu.BindGroup) (*bindGroup, error) {
	if index >= maxBindGroups {
		return nil, gpu.ErrBindGroupIndexOutOfRange
	}
	bg, ok := group.(*bindGroup)
	if !ok || bg.dev != dev {
		return nil, gpu.ErrForeignResource
	}
	return bg, nil
}
