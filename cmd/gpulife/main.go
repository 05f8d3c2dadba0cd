//go:build ebiten

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/hajimehoshi/ebiten/v2"
	"go.uber.org/zap"

	"gpulife/internal/app"
	"gpulife/internal/gpu"
	"gpulife/internal/life"
)

func main() {
	cfg, err := app.Parse(os.Args[0], os.Args[1:])
	if app.IsHelp(err) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	log, err := cfg.Logger()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer log.Sync()

	dev, err := gpu.Open(cfg.Backend, cfg.DeviceOptions(log))
	if err != nil {
		log.Fatal("open device", zap.Error(err))
	}
	defer dev.Release()

	sim, err := life.New(dev, cfg.SimulationOptions())
	if err != nil {
		log.Fatal("build simulation", zap.Error(err))
	}
	defer sim.Close()

	game := app.New(sim, cfg, log)
	w, h := game.Layout(0, 0)

	ebiten.SetWindowTitle(fmt.Sprintf("gpulife %s (%s)", sim.Options().Size, cfg.Backend))
	ebiten.SetWindowSize(w, h)

	if err := ebiten.RunGame(game); err != nil && !errors.Is(err, ebiten.Termination) {
		log.Error("game stopped", zap.Error(err))
	}
}
