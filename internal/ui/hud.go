//go:build ebiten

package ui

import (
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/text"
	"golang.org/x/image/font/basicfont"

	"gpulife/internal/core"
)

// ParameterProvider supplies the values shown in the panel.
type ParameterProvider interface {
	Parameters() core.ParameterSnapshot
}

// HUD renders the parameter panel to the right of the simulation view.
type HUD struct {
	source ParameterProvider
	width  int
	panel  *ebiten.Image
	lines  []Line
}

// NewHUD constructs a HUD for the provided source and panel width.
func NewHUD(source ParameterProvider, width int) *HUD {
	if width < 0 {
		width = 0
	}
	return &HUD{source: source, width: width}
}

// Width returns the panel width in pixels.
func (h *HUD) Width() int {
	if h == nil {
		return 0
	}
	return h.width
}

// Update refreshes the cached rows from the source.
func (h *HUD) Update(paused bool) {
	if h == nil || h.source == nil {
		return
	}
	h.lines = Lines(h.source.Parameters(), paused)
}

// Draw paints the panel anchored at offsetX with the given height.
func (h *HUD) Draw(screen *ebiten.Image, offsetX, height int) {
	if h == nil || h.width <= 0 || height <= 0 {
		return
	}
	if h.panel == nil || h.panel.Bounds().Dy() != height {
		h.panel = ebiten.NewImage(h.width, height)
	}
	h.panel.Fill(color.RGBA{R: 16, G: 16, B: 20, A: 255})

	face := basicfont.Face7x13
	y := panelPadding + headerBaseline
	for _, line := range h.lines {
		switch line.Kind {
		case LineHeader:
			y += headerGap
			text.Draw(h.panel, line.Label, face, panelPadding, y, headerColor)
		default:
			labelColor := textColor
			if line.Kind == LineHelp {
				labelColor = dimColor
			}
			text.Draw(h.panel, line.Label, face, panelPadding, y, labelColor)
			bounds := text.BoundString(face, line.Value)
			text.Draw(h.panel, line.Value, face, h.width-panelPadding-bounds.Dx(), y, textColor)
		}
		y += lineHeight
		if y > height {
			break
		}
	}

	op := &ebiten.DrawImageOptions{}
	op.GeoM.Translate(float64(offsetX), 0)
	screen.DrawImage(h.panel, op)
}

var (
	headerColor = color.RGBA{R: 200, G: 200, B: 210, A: 255}
	textColor   = color.RGBA{R: 220, G: 220, B: 230, A: 255}
	dimColor    = color.RGBA{R: 160, G: 160, B: 170, A: 255}
)

const (
	panelPadding   = 12
	lineHeight     = 18
	headerGap      = 8
	headerBaseline = 6
)
