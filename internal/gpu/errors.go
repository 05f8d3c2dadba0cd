package gpu

import (
	"errors"
	"fmt"
)

// Device lifecycle errors.
var (
	// ErrDeviceUnavailable is returned when no compatible device can be opened.
	ErrDeviceUnavailable = errors.New("gpu: device unavailable")

	// ErrResourceCreation is returned when a buffer, layout, bind group or
	// pipeline cannot be created.
	ErrResourceCreation = errors.New("gpu: resource creation failed")

	// ErrReleased is returned by operations on a released device.
	ErrReleased = errors.New("gpu: device released")
)

// Recording errors, reported by CommandEncoder.Finish.
var (
	// ErrPassEnded is returned when a pass is used after End.
	ErrPassEnded = errors.New("gpu: pass has already ended")

	// ErrPassOpen is returned when a pass is begun or the encoder finished
	// while another pass is still recording.
	ErrPassOpen = errors.New("gpu: previous pass has not ended")

	// ErrEncoderFinished is returned when an encoder is used after Finish.
	ErrEncoderFinished = errors.New("gpu: command encoder already finished")

	// ErrNoPipeline is returned when a dispatch or draw has no pipeline set.
	ErrNoPipeline = errors.New("gpu: no pipeline set")

	// ErrBindGroupIndexOutOfRange is returned for bind group indices above 3.
	ErrBindGroupIndexOutOfRange = errors.New("gpu: bind group index exceeds maximum (3)")

	// ErrMissingBindGroup is returned when a dispatch or draw has no bind group at index 0.
	ErrMissingBindGroup = errors.New("gpu: bind group 0 not set")

	// ErrWorkgroupCountZero is returned when any workgroup dimension is zero.
	ErrWorkgroupCountZero = errors.New("gpu: workgroup count must be greater than zero")

	// ErrMissingVertexBuffer is returned when a draw has no vertex buffer.
	ErrMissingVertexBuffer = errors.New("gpu: vertex buffer 0 not set")

	// ErrIncompatibleBindGroup is returned when a bind group was not created
	// from the layout of the pipeline it is used with.
	ErrIncompatibleBindGroup = errors.New("gpu: bind group layout does not match pipeline layout")

	// ErrForeignResource is returned when a resource from another backend is used.
	ErrForeignResource = errors.New("gpu: resource belongs to another device")
)

// ResourceError wraps ErrResourceCreation with the failing resource label.
type ResourceError struct {
	Kind  string
	Label string
	Err   error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("%s: %s %q: %v", ErrResourceCreation, e.Kind, e.Label, e.Err)
}

// Unwrap returns both the sentinel and the cause.
func (e *ResourceError) Unwrap() []error { return []error{ErrResourceCreation, e.Err} }

// NewResourceError builds a ResourceError.
func NewResourceError(kind, label string, err error) error {
	return &ResourceError{Kind: kind, Label: label, Err: err}
}
