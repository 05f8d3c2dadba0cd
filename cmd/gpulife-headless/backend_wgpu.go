//go:build wgpu

package main

import _ "gpulife/internal/gpu/webgpu"
