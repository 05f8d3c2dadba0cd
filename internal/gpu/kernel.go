package gpu

// Resources exposes the buffers of the bind group at index 0 to host kernels.
// Words returns the live 32-bit word view of the buffer bound at the given
// slot, or nil when nothing is bound there.
type Resources interface {
	Words(binding uint32) []uint32
}

// Invocation identifies one compute invocation, as the WGSL builtins do.
type Invocation struct {
	GlobalID    [3]uint32
	LocalID     [3]uint32
	WorkgroupID [3]uint32
}

// ComputeKernel is the host implementation of a compute entry point.
type ComputeKernel func(inv Invocation, res Resources)

// VertexInput carries the builtins and attributes of one vertex. Attributes
// is indexed by shader location.
type VertexInput struct {
	VertexIndex   uint32
	InstanceIndex uint32
	Attributes    [][4]float32
}

// VertexOutput is the clip-space position plus up to four varyings.
type VertexOutput struct {
	Position [4]float32
	Varyings [4]float32
}

// FragmentInput is the pixel-centre position and interpolated varyings.
type FragmentInput struct {
	Position [4]float32
	Varyings [4]float32
}

// VertexKernel is the host implementation of a vertex entry point.
type VertexKernel func(in VertexInput, res Resources) VertexOutput

// FragmentKernel is the host implementation of a fragment entry point. It
// returns a linear RGBA colour.
type FragmentKernel func(in FragmentInput, res Resources) [4]float32
