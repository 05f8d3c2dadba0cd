//go:build wgpu

package webgpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"

	"gpulife/internal/gpu"
)

type queue struct {
	dev *Device
}

func (q *queue) WriteBuffer(b gpu.Buffer, offset uint64, data []byte) error {
	buf, ok := b.(*buffer)
	if !ok {
		return gpu.ErrForeignResource
	}
	q.dev.wq.WriteBuffer(buf.b, offset, data)
	return nil
}

// Submit hands the command buffers to wgpu. The returned submission
// completes when a caller waits on it, which polls the device.
func (q *queue) Submit(cmds ...gpu.CommandBuffer) (*gpu.Submission, error) {
	list := make([]*wgpu.CommandBuffer, 0, len(cmds))
	for _, c := range cmds {
		cb, ok := c.(*commandBuffer)
		if !ok {
			return nil, gpu.ErrForeignResource
		}
		list = append(list, cb.cb)
	}
	q.dev.wq.Submit(list...)
	for _, c := range cmds {
		c.(*commandBuffer).cb.Release()
	}
	var sub *gpu.Submission
	sub = gpu.NewSubmission(func() {
		q.dev.poll()
		sub.Complete(nil)
	})
	return sub, nil
}

type commandBuffer struct {
	cb    *wgpu.CommandBuffer
	label string
}

func (c *commandBuffer) Label() string { return c.label }

type encoder struct {
	dev      *Device
	enc      *wgpu.CommandEncoder
	label    string
	open     bool
	err      error
	finished bool
}

func (e *encoder) fail(err error) {
	if e.err == nil {
		e.err = err
	}
}

func (e *encoder) begin() bool {
	switch {
	case e.finished:
		e.fail(gpu.ErrEncoderFinished)
		return false
	case e.open:
		e.fail(gpu.ErrPassOpen)
		return false
	}
	e.open = true
	return true
}

func (e *encoder) BeginComputePass(label string) gpu.ComputePass {
	if !e.begin() {
		return &computePass{enc: e, ended: true}
	}
	return &computePass{enc: e, pass: e.enc.BeginComputePass(&wgpu.ComputePassDescriptor{Label: label})}
}

func (e *encoder) BeginRenderPass(desc *gpu.RenderPassDescriptor) gpu.RenderPass {
	if !e.begin() {
		return &renderPass{enc: e, ended: true}
	}
	target, ok := desc.Target.(*surface)
	if !ok {
		e.open = false
		e.fail(gpu.ErrForeignResource)
		return &renderPass{enc: e, ended: true}
	}
	c := desc.ClearColor
	pass := e.enc.BeginRenderPass(&wgpu.RenderPassDescriptor{
		Label: desc.Label,
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       target.view,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: wgpu.Color{R: c.R, G: c.G, B: c.B, A: c.A},
		}},
	})
	return &renderPass{enc: e, pass: pass}
}

func (e *encoder) Finish() (gpu.CommandBuffer, error) {
	if e.finished {
		return nil, gpu.ErrEncoderFinished
	}
	e.finished = true
	defer e.enc.Release()
	if e.open {
		e.fail(gpu.ErrPassOpen)
	}
	if e.err != nil {
		return nil, fmt.Errorf("webgpu: encoder %q: %w", e.label, e.err)
	}
	cb, err := e.enc.Finish(nil)
	if err != nil {
		return nil, fmt.Errorf("webgpu: encoder %q: %w", e.label, err)
	}
	return &commandBuffer{cb: cb, label: e.label}, nil
}

type computePass struct {
	enc      *encoder
	pass     *wgpu.ComputePassEncoder
	pipeline bool
	ended    bool
}

func (p *computePass) SetPipeline(pl gpu.ComputePipeline) {
	if p.ended {
		p.enc.fail(gpu.ErrPassEnded)
		return
	}
	cp, ok := pl.(*computePipeline)
	if !ok {
		p.enc.fail(gpu.ErrForeignResource)
		return
	}
	p.pass.SetPipeline(cp.p)
	p.pipeline = true
}

func (p *computePass) SetBindGroup(index uint32, group gpu.BindGroup) {
	if p.ended {
		p.enc.fail(gpu.ErrPassEnded)
		return
	}
	if index > 3 {
		p.enc.fail(gpu.ErrBindGroupIndexOutOfRange)
		return
	}
	bg, ok := group.(*bindGroup)
	if !ok {
		p.enc.fail(gpu.ErrForeignResource)
		return
	}
	p.pass.SetBindGroup(index, bg.g, nil)
}

func (p *computePass) DispatchWorkgroups(x, y, z uint32) {
	switch {
	case p.ended:
		p.enc.fail(gpu.ErrPassEnded)
	case !p.pipeline:
		p.enc.fail(gpu.ErrNoPipeline)
	case x == 0 || y == 0 || z == 0:
		p.enc.fail(gpu.ErrWorkgroupCountZero)
	default:
		p.pass.DispatchWorkgroups(x, y, z)
	}
}

func (p *computePass) End() {
	if p.ended {
		p.enc.fail(gpu.ErrPassEnded)
		return
	}
	p.ended = true
	p.enc.open = false
	p.pass.End()
	p.pass.Release()
}

type renderPass struct {
	enc      *encoder
	pass     *wgpu.RenderPassEncoder
	pipeline bool
	vertex   bool
	ended    bool
}

func (p *renderPass) SetPipeline(pl gpu.RenderPipeline) {
	if p.ended {
		p.enc.fail(gpu.ErrPassEnded)
		return
	}
	rp, ok := pl.(*renderPipeline)
	if !ok {
		p.enc.fail(gpu.ErrForeignResource)
		return
	}
	p.pass.SetPipeline(rp.p)
	p.pipeline = true
}

func (p *renderPass) SetBindGroup(index uint32, group gpu.BindGroup) {
	if p.ended {
		p.enc.fail(gpu.ErrPassEnded)
		return
	}
	if index > 3 {
		p.enc.fail(gpu.ErrBindGroupIndexOutOfRange)
		return
	}
	bg, ok := group.(*bindGroup)
	if !ok {
		p.enc.fail(gpu.ErrForeignResource)
		return
	}
	p.pass.SetBindGroup(index, bg.g, nil)
}

func (p *renderPass) SetVertexBuffer(slot uint32, b gpu.Buffer) {
	if p.ended {
		p.enc.fail(gpu.ErrPassEnded)
		return
	}
	buf, ok := b.(*buffer)
	if !ok {
		p.enc.fail(gpu.ErrForeignResource)
		return
	}
	p.pass.SetVertexBuffer(slot, buf.b, 0, wgpu.WholeSize)
	p.vertex = true
}

func (p *renderPass) Draw(vertexCount, instanceCount uint32) {
	switch {
	case p.ended:
		p.enc.fail(gpu.ErrPassEnded)
	case !p.pipeline:
		p.enc.fail(gpu.ErrNoPipeline)
	case !p.vertex:
		p.enc.fail(gpu.ErrMissingVertexBuffer)
	default:
		p.pass.Draw(vertexCount, instanceCount, 0, 0)
	}
}

func (p *renderPass) End() {
	if p.ended {
		p.enc.fail(gpu.ErrPassEnded)
		return
	}
	p.ended = true
	p.enc.open = false
	p.pass.End()
	p.pass.Release()
}
