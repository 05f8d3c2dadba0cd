package gpu

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrReadbackUnsupported is returned when a device cannot read buffers back.
var ErrReadbackUnsupported = errors.New("gpu: buffer readback not supported")

// BufferReader is implemented by devices that can copy a buffer back to the
// host. Readback is a diagnostic: it waits for all previously queued work.
type BufferReader interface {
	ReadBuffer(ctx context.Context, buf Buffer) ([]byte, error)
}

// ReadBuffer copies buf back from dev. The buffer needs BufferUsageCopySrc.
func ReadBuffer(ctx context.Context, dev Device, buf Buffer) ([]byte, error) {
	r, ok := dev.(BufferReader)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrReadbackUnsupported, dev.Info().Backend)
	}
	if !buf.Usage().Has(BufferUsageCopySrc) {
		return nil, fmt.Errorf("gpu: read %q: buffer lacks CopySrc usage", buf.Label())
	}
	return r.ReadBuffer(ctx, buf)
}

// ReadWords reads buf back as little-endian 32-bit words.
func ReadWords(ctx context.Context, dev Device, buf Buffer) ([]uint32, error) {
	raw, err := ReadBuffer(ctx, dev, buf)
	if err != nil {
		return nil, err
	}
	return DecodeWords(raw), nil
}

// EncodeWords serialises words as little-endian bytes.
func EncodeWords(words []uint32) []byte {
	out := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(out[4*i:], w)
	}
	return out
}

// DecodeWords parses little-endian bytes into words. Trailing bytes that do
// not fill a word are ignored.
func DecodeWords(raw []byte) []uint32 {
	words := make([]uint32, len(raw)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(raw[4*i:])
	}
	return words
}

// EncodeFloats serialises float32 values as little-endian bytes.
func EncodeFloats(values []float32) []byte {
	words := make([]uint32, len(values))
	for i, v := range values {
		words[i] = math.Float32bits(v)
	}
	return EncodeWords(words)
}
