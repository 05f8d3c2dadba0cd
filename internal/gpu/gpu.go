// Package gpu is the device boundary of the simulator.
//
// It describes the small slice of a WebGPU-style API the simulation needs:
// buffers, one bind group layout per pipeline, compute and render pipelines,
// command encoders with compute and render passes, an ordered queue and a
// presentable surface. Backends register themselves by name (see Register)
// and are opened through Open, which returns the Context every simulation
// component is constructed from.
//
// Recording follows WebGPU semantics: pass and encoder methods do not return
// errors; the first recording error is reported by CommandEncoder.Finish.
package gpu

import (
	"image"

	"gpulife/internal/shader"
)

// BufferUsage is a bitmask specifying how a buffer will be used.
type BufferUsage uint32

// Buffer usage flags.
const (
	BufferUsageCopySrc BufferUsage = 1 << iota
	BufferUsageCopyDst
	BufferUsageVertex
	BufferUsageUniform
	BufferUsageStorage
)

// Has reports whether all bits of flag are set.
func (u BufferUsage) Has(flag BufferUsage) bool { return u&flag == flag }

// ShaderStage is a bitmask of pipeline stages a binding is visible to.
type ShaderStage uint32

// Shader stage flags.
const (
	ShaderStageVertex ShaderStage = 1 << iota
	ShaderStageFragment
	ShaderStageCompute
)

// BindingType is the kind of buffer binding a layout entry accepts.
type BindingType uint8

// Binding types.
const (
	BindingTypeUniform BindingType = iota + 1
	BindingTypeReadOnlyStorage
	BindingTypeStorage
)

// TextureFormat specifies the pixel format of a surface.
type TextureFormat uint32

// Texture formats.
const (
	// TextureFormatRGBA8Unorm is 8-bit RGBA, normalized unsigned integer.
	TextureFormatRGBA8Unorm TextureFormat = iota + 1
)

// VertexFormat specifies the layout of one vertex attribute.
type VertexFormat uint32

// Vertex formats.
const (
	VertexFormatFloat32x2 VertexFormat = iota + 1
)

// Components returns the number of 32-bit components of the format.
func (f VertexFormat) Components() int {
	switch f {
	case VertexFormatFloat32x2:
		return 2
	default:
		return 0
	}
}

// Color is a linear RGBA clear colour with components in [0,1].
type Color struct {
	R, G, B, A float64
}

// AdapterInfo describes the device a backend opened.
type AdapterInfo struct {
	Name    string
	Backend string

	// HostKernels is set when pipelines run Go kernels instead of the WGSL
	// source they were built from.
	HostKernels bool
}

// BufferDescriptor describes a buffer to create.
type BufferDescriptor struct {
	Label string
	Size  uint64
	Usage BufferUsage
}

// BindGroupLayoutEntry describes one binding slot of a layout.
type BindGroupLayoutEntry struct {
	Binding    uint32
	Visibility ShaderStage
	Type       BindingType
}

// BindGroupLayoutDescriptor describes a bind group layout to create.
type BindGroupLayoutDescriptor struct {
	Label   string
	Entries []BindGroupLayoutEntry
}

// BindGroupEntry attaches a whole buffer to a binding slot.
type BindGroupEntry struct {
	Binding uint32
	Buffer  Buffer
}

// BindGroupDescriptor describes a bind group to create.
type BindGroupDescriptor struct {
	Label   string
	Layout  BindGroupLayout
	Entries []BindGroupEntry
}

// ComputePipelineDescriptor describes a compute pipeline. Program is the
// validated module compiled by hardware backends; Kernel is the host
// implementation of the same entry point run by devices without a shader
// compiler.
type ComputePipelineDescriptor struct {
	Label      string
	Layout     BindGroupLayout
	Program    *shader.Program
	EntryPoint string
	Kernel     ComputeKernel
}

// VertexAttribute describes one attribute within a vertex buffer.
type VertexAttribute struct {
	Format   VertexFormat
	Offset   uint64
	Location uint32
}

// VertexBufferLayout describes how a vertex buffer is read.
type VertexBufferLayout struct {
	Stride     uint64
	Attributes []VertexAttribute
}

// RenderPipelineDescriptor describes a render pipeline drawing a triangle list.
type RenderPipelineDescriptor struct {
	Label          string
	Layout         BindGroupLayout
	Program        *shader.Program
	VertexEntry    string
	FragmentEntry  string
	VertexBuffer   VertexBufferLayout
	TargetFormat   TextureFormat
	VertexKernel   VertexKernel
	FragmentKernel FragmentKernel
}

// RenderPassDescriptor describes a render pass drawing into a surface.
type RenderPassDescriptor struct {
	Label      string
	Target     Surface
	ClearColor Color
}

// Buffer is a device allocation.
type Buffer interface {
	Label() string
	Size() uint64
	Usage() BufferUsage
	Release()
}

// BindGroupLayout is the shape shared by bind groups and pipelines.
type BindGroupLayout interface {
	Label() string
	Entries() []BindGroupLayoutEntry
	Release()
}

// BindGroup is a set of buffers bound together to a pipeline.
type BindGroup interface {
	Label() string
	Layout() BindGroupLayout
	Release()
}

// ComputePipeline is a compiled compute entry point.
type ComputePipeline interface {
	Label() string
	Release()
}

// RenderPipeline is a compiled vertex+fragment pair.
type RenderPipeline interface {
	Label() string
	Release()
}

// CommandBuffer is a finished, submittable unit of work.
type CommandBuffer interface {
	Label() string
}

// CommandEncoder records passes into a command buffer. Passes execute in the
// order they were begun.
type CommandEncoder interface {
	BeginComputePass(label string) ComputePass
	BeginRenderPass(desc *RenderPassDescriptor) RenderPass
	Finish() (CommandBuffer, error)
}

// ComputePass records dispatches.
type ComputePass interface {
	SetPipeline(p ComputePipeline)
	SetBindGroup(index uint32, group BindGroup)
	DispatchWorkgroups(x, y, z uint32)
	End()
}

// RenderPass records draws into its target surface.
type RenderPass interface {
	SetPipeline(p RenderPipeline)
	SetBindGroup(index uint32, group BindGroup)
	SetVertexBuffer(slot uint32, buf Buffer)
	Draw(vertexCount, instanceCount uint32)
	End()
}

// Queue executes writes and submissions in call order.
type Queue interface {
	WriteBuffer(buf Buffer, offset uint64, data []byte) error
	Submit(cmds ...CommandBuffer) (*Submission, error)
}

// Surface is the presentable render target.
type Surface interface {
	Size() (width, height int)
	Format() TextureFormat
	// Frame returns a copy of the most recently presented frame.
	Frame() (*image.RGBA, error)
}

// Device creates resources and owns the queue and surface.
type Device interface {
	Info() AdapterInfo
	Queue() Queue
	Surface() Surface
	CreateBuffer(desc *BufferDescriptor) (Buffer, error)
	CreateBindGroupLayout(desc *BindGroupLayoutDescriptor) (BindGroupLayout, error)
	CreateBindGroup(desc *BindGroupDescriptor) (BindGroup, error)
	CreateComputePipeline(desc *ComputePipelineDescriptor) (ComputePipeline, error)
	CreateRenderPipeline(desc *RenderPipelineDescriptor) (RenderPipeline, error)
	CreateCommandEncoder(label string) (CommandEncoder, error)
	Release()
}
