package life

import (
	"fmt"

	"gpulife/internal/core"
	"gpulife/internal/gpu"
	"gpulife/internal/shader"
)

// Background is the clear colour of every frame.
var Background = gpu.Color{R: 0, G: 0, B: 0.4, A: 1}

// quad is two triangles in object space, drawn once per cell instance.
var quad = []float32{
	-0.8, -0.8,
	0.8, -0.8,
	0.8, 0.8,

	-0.8, -0.8,
	0.8, 0.8,
	-0.8, 0.8,
}

const quadVertices = 6

// RenderStage draws one instance of the quad per cell.
type RenderStage struct {
	pipeline gpu.RenderPipeline
	vertices gpu.Buffer
	size     core.Size
}

// NewRenderStage uploads the quad and builds the render pipeline.
func NewRenderStage(ctx *gpu.Context, layout gpu.BindGroupLayout, program *shader.Program, size core.Size) (*RenderStage, error) {
	vertices, err := createBuffer(ctx.Device, &gpu.BufferDescriptor{
		Label: "cell vertices",
		Size:  uint64(4 * len(quad)),
		Usage: gpu.BufferUsageVertex | gpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}
	if err := ctx.Queue.WriteBuffer(vertices, 0, gpu.EncodeFloats(quad)); err != nil {
		vertices.Release()
		return nil, fmt.Errorf("upload cell vertices: %w", err)
	}

	pipeline, err := ctx.Device.CreateRenderPipeline(&gpu.RenderPipelineDescriptor{
		Label:         "cell render pipeline",
		Layout:        layout,
		Program:       program,
		VertexEntry:   shader.VertexMain,
		FragmentEntry: shader.FragmentMain,
		VertexBuffer: gpu.VertexBufferLayout{
			Stride: 8,
			Attributes: []gpu.VertexAttribute{
				{Format: gpu.VertexFormatFloat32x2, Offset: 0, Location: 0},
			},
		},
		TargetFormat:   ctx.Surface.Format(),
		VertexKernel:   cellVertex,
		FragmentKernel: cellFragment,
	})
	if err != nil {
		vertices.Release()
		return nil, err
	}
	return &RenderStage{pipeline: pipeline, vertices: vertices, size: size}, nil
}

// Encode records one render pass that clears target and draws every cell
// from b.Read.
func (r *RenderStage) Encode(enc gpu.CommandEncoder, target gpu.Surface, b Binding) {
	pass := enc.BeginRenderPass(&gpu.RenderPassDescriptor{
		Label:      "cells",
		Target:     target,
		ClearColor: Background,
	})
	pass.SetPipeline(r.pipeline)
	pass.SetBindGroup(0, b.Group)
	pass.SetVertexBuffer(0, r.vertices)
	pass.Draw(quadVertices, uint32(r.size.Cells()))
	pass.End()
}

// Release frees the pipeline and the vertex buffer.
func (r *RenderStage) Release() {
	r.pipeline.Release()
	r.vertices.Release()
}
