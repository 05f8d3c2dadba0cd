package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"gpulife/internal/app"
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	h, err := app.NewHeadless(cfg, log)
	if err != nil {
		log.Fatal("build simulation", zap.Error(err))
	}
	runErr := h.Run(ctx)
	if err := h.Close(); err != nil && runErr == nil {
		runErr = err
	}
	if runErr != nil {
		log.Error("run failed", zap.Error(runErr))
		os.Exit(1)
	}
}
