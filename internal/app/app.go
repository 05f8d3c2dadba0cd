//go:build ebiten

package app

import (
	"context"
	"errors"
	"image"
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"go.uber.org/zap"

	"gpulife/internal/core"
	"gpulife/internal/gpu"
	"gpulife/internal/life"
	"gpulife/internal/render"
	"gpulife/internal/ui"
)

// Game adapts a life.Simulation to the ebiten.Game interface. Ticks follow
// the configured interval; each presented frame is copied into the window.
type Game struct {
	sim     *life.Simulation
	log     *zap.Logger
	painter *render.FramePainter
	overlay *ui.Overlay
	hud     *ui.HUD
	step    *core.FixedStep

	scale    int
	paused   bool
	tickOnce bool
}

// New constructs a Game for the provided simulation.
func New(sim *life.Simulation, cfg *Config, log *zap.Logger) *Game {
	if log == nil {
		log = zap.NewNop()
	}
	w, h := sim.Context().Surface.Size()
	size := sim.Options().Size
	g := &Game{
		sim:     sim,
		log:     log,
		painter: render.NewFramePainter(w, h),
		overlay: ui.NewOverlay(size.W, size.H),
		hud:     ui.NewHUD(sim, cfg.HUDWidth),
		step:    core.NewFixedStep(cfg.Interval),
		scale:   cfg.Scale,
	}
	g.painter.Clear(background())
	return g
}

// Update handles per-frame logic and advances the simulation.
func (g *Game) Update() error {
	if inpututil.IsKeyJustPressed(ebiten.KeyQ) || inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}
	if inpututil.IsKeyJustPressed(ebiten.KeySpace) {
		g.paused = !g.paused
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyN) {
		g.tickOnce = true
	}
	g.overlay.Update()

	due := g.step.ShouldStep()
	if (!g.paused && due) || g.tickOnce {
		g.tickOnce = false
		if err := g.tick(); err != nil {
			return err
		}
	}
	g.hud.Update(g.paused)
	return nil
}

func (g *Game) tick() error {
	sub, err := g.sim.Scheduler().RunTick()
	if errors.Is(err, life.ErrTickInProgress) {
		return nil
	}
	if err != nil {
		g.log.Error("tick failed", zap.Error(err))
		return err
	}
	return g.present(sub)
}

func (g *Game) present(sub *gpu.Submission) error {
	if err := sub.Wait(context.Background()); err != nil {
		return err
	}
	frame, err := g.sim.Context().Surface.Frame()
	if err != nil {
		return err
	}
	g.painter.Upload(frame)
	return nil
}

// Draw renders the latest presented frame, the grid overlay and the panel.
func (g *Game) Draw(screen *ebiten.Image) {
	g.painter.Blit(screen, float64(g.scale))
	w, h := g.viewSize()
	g.overlay.Draw(screen, image.Rect(0, 0, w, h))
	g.hud.Draw(screen, w, h)
}

// Layout returns the logical screen size.
func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	w, h := g.viewSize()
	return w + g.hud.Width(), h
}

func (g *Game) viewSize() (int, int) {
	w, h := g.painter.Size()
	return w * g.scale, h * g.scale
}

func background() color.RGBA {
	b := life.Background
	return color.RGBA{R: uint8(b.R*255 + 0.5), G: uint8(b.G*255 + 0.5), B: uint8(b.B*255 + 0.5), A: uint8(b.A*255 + 0.5)}
}
