package life

import (
	"fmt"

	"gpulife/internal/gpu"
)

// NewLayout creates the bind group layout shared by the compute and render
// pipelines.
func NewLayout(dev gpu.Device) (gpu.BindGroupLayout, error) {
	return dev.CreateBindGroupLayout(&gpu.BindGroupLayoutDescriptor{
		Label: "cell bind group layout",
		Entries: []gpu.BindGroupLayoutEntry{
			{
				Binding:    BindingGrid,
				Visibility: gpu.ShaderStageVertex | gpu.ShaderStageFragment | gpu.ShaderStageCompute,
				Type:       gpu.BindingTypeUniform,
			},
			{
				Binding:    BindingRead,
				Visibility: gpu.ShaderStageVertex | gpu.ShaderStageCompute,
				Type:       gpu.BindingTypeReadOnlyStorage,
			},
			{
				Binding:    BindingWrite,
				Visibility: gpu.ShaderStageCompute,
				Type:       gpu.BindingTypeStorage,
			},
		},
	})
}

// Binding is one of the two buffer configurations.
type Binding struct {
	Group gpu.BindGroup
	Read  gpu.Buffer
	Write gpu.Buffer
}

// BindingSet holds the two bind groups: configuration p reads buffer p and
// writes buffer 1-p. It references the GridState buffers without owning them.
type BindingSet struct {
	configs [2]Binding
}

// NewBindingSet creates both bind groups once.
func NewBindingSet(dev gpu.Device, layout gpu.BindGroupLayout, state *GridState) (*BindingSet, error) {
	s := &BindingSet{}
	for p := 0; p < 2; p++ {
		read, write := state.Buffer(p), state.Buffer(1-p)
		group, err := dev.CreateBindGroup(&gpu.BindGroupDescriptor{
			Label:  fmt.Sprintf("cell bind group %s", read.Label()),
			Layout: layout,
			Entries: []gpu.BindGroupEntry{
				{Binding: BindingGrid, Buffer: state.Uniform()},
				{Binding: BindingRead, Buffer: read},
				{Binding: BindingWrite, Buffer: write},
			},
		})
		if err != nil {
			s.Release()
			return nil, fmt.Errorf("bind group %d: %w", p, err)
		}
		s.configs[p] = Binding{Group: group, Read: read, Write: write}
	}
	return s, nil
}

// For returns the configuration for a tick counter value.
func (s *BindingSet) For(tick uint64) Binding { return s.configs[tick%2] }

// Release frees both bind groups.
func (s *BindingSet) Release() {
	for i := range s.configs {
		if s.configs[i].Group != nil {
			s.configs[i].Group.Release()
		}
		s.configs[i] = Binding{}
	}
}
