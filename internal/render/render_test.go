package render

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func checker() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.SetRGBA(0, 0, color.RGBA{R: 255, A: 255})
	img.SetRGBA(1, 1, color.RGBA{B: 255, A: 255})
	return img
}

func TestUpscaleNearestNeighbour(t *testing.T) {
	up := Upscale(checker(), 3)
	require.Equal(t, image.Rect(0, 0, 6, 6), up.Bounds())
	for y := 0; y < 6; y++ {
		for x := 0; x < 6; x++ {
			want := checker().RGBAAt(x/3, y/3)
			assert.Equal(t, want, up.RGBAAt(x, y), "pixel %d,%d", x, y)
		}
	}
	src := checker()
	assert.Same(t, src, Upscale(src, 1))
}

func TestCopyFrameHandlesSubImages(t *testing.T) {
	big := image.NewRGBA(image.Rect(0, 0, 4, 4))
	big.SetRGBA(2, 1, color.RGBA{G: 200, A: 255})
	sub := big.SubImage(image.Rect(1, 1, 3, 3)).(*image.RGBA)

	buf := make([]byte, 4*2*2)
	copyFrameRGBA(buf, sub)
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 200, 0, 255}, buf[:8])
	assert.Equal(t, make([]byte, 8), buf[8:])
}

func TestFillRGBA(t *testing.T) {
	buf := make([]byte, 8)
	fillRGBA(buf, color.RGBA{R: 1, G: 2, B: 3, A: 255})
	assert.Equal(t, []byte{1, 2, 3, 255, 1, 2, 3, 255}, buf)
}

func TestSnapshotWriter(t *testing.T) {
	w := SnapshotWriter{Dir: filepath.Join(t.TempDir(), "frames"), Scale: 2}
	path, err := w.Write(7, checker())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(w.Dir, "frame-000007.png"), path)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 4, 4), img.Bounds())
	r, _, _, _ := img.At(1, 1).RGBA()
	assert.Equal(t, uint32(0xffff), r)
}
