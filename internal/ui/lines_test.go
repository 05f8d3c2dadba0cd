package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"gpulife/internal/core"
)

func TestLines(t *testing.T) {
	snap := core.ParameterSnapshot{Groups: []core.ParameterGroup{
		{Name: "Grid", Params: []core.Parameter{
			{Key: "width", Label: "Width", Value: "32"},
			{Key: "tick", Value: "5"},
		}},
	}}

	lines := Lines(snap, true)
	assert.Equal(t, Line{Kind: LineHeader, Label: "Grid"}, lines[0])
	assert.Equal(t, Line{Kind: LineParam, Label: "Width", Value: "32"}, lines[1])
	assert.Equal(t, Line{Kind: LineParam, Label: "tick", Value: "5"}, lines[2])
	assert.Equal(t, Line{Kind: LineHeader, Label: "Keys (paused)"}, lines[3])
	assert.Equal(t, KeyHelp, lines[4:])
}

func TestLinesEmptySnapshot(t *testing.T) {
	lines := Lines(core.ParameterSnapshot{}, false)
	assert.Equal(t, "Keys (running)", lines[0].Label)
	assert.Len(t, lines, 1+len(KeyHelp))
}
