package life

import (
	"gpulife/internal/core"
	"gpulife/internal/gpu"
	"gpulife/internal/shader"
)

// ComputeStage dispatches the transition program over the whole grid.
type ComputeStage struct {
	pipeline gpu.ComputePipeline
	size     core.Size
	tile     uint32
}

// NewComputeStage builds the compute pipeline from the life program.
func NewComputeStage(dev gpu.Device, layout gpu.BindGroupLayout, program *shader.Program, size core.Size) (*ComputeStage, error) {
	p, err := dev.CreateComputePipeline(&gpu.ComputePipelineDescriptor{
		Label:      "life compute pipeline",
		Layout:     layout,
		Program:    program,
		EntryPoint: shader.ComputeMain,
		Kernel:     transitionKernel,
	})
	if err != nil {
		return nil, err
	}
	return &ComputeStage{pipeline: p, size: size, tile: program.TileSize}, nil
}

// Workgroups returns the dispatch size: enough tiles to cover every cell.
func (c *ComputeStage) Workgroups() (x, y uint32) {
	t := int(c.tile)
	return uint32((c.size.W + t - 1) / t), uint32((c.size.H + t - 1) / t)
}

// Encode records one compute pass reading b.Read and writing b.Write.
func (c *ComputeStage) Encode(enc gpu.CommandEncoder, b Binding) {
	x, y := c.Workgroups()
	pass := enc.BeginComputePass("life compute")
	pass.SetPipeline(c.pipeline)
	pass.SetBindGroup(0, b.Group)
	pass.DispatchWorkgroups(x, y, 1)
	pass.End()
}

// Release frees the pipeline.
func (c *ComputeStage) Release() { c.pipeline.Release() }
