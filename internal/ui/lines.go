// Package ui draws the side panel and overlays of the windowed binary.
package ui

import (
	"fmt"

	"gpulife/internal/core"
)

// LineKind distinguishes panel rows.
type LineKind int

const (
	LineHeader LineKind = iota
	LineParam
	LineHelp
)

// Line is one row of the panel.
type Line struct {
	Kind  LineKind
	Label string
	Value string
}

// KeyHelp lists the keyboard controls shown at the bottom of the panel.
var KeyHelp = []Line{
	{Kind: LineHelp, Label: "Space", Value: "pause"},
	{Kind: LineHelp, Label: "N", Value: "single tick"},
	{Kind: LineHelp, Label: "G", Value: "grid lines"},
	{Kind: LineHelp, Label: "Q / Esc", Value: "quit"},
}

// Lines flattens a snapshot into panel rows: one header per group followed
// by its parameters, then the key help.
func Lines(snapshot core.ParameterSnapshot, paused bool) []Line {
	var out []Line
	for _, g := range snapshot.Groups {
		out = append(out, Line{Kind: LineHeader, Label: g.Name})
		for _, p := range g.Params {
			label := p.Label
			if label == "" {
				label = p.Key
			}
			out = append(out, Line{Kind: LineParam, Label: label, Value: p.Value})
		}
	}
	status := "running"
	if paused {
		status = "paused"
	}
	out = append(out, Line{Kind: LineHeader, Label: fmt.Sprintf("Keys (%s)", status)})
	return append(out, KeyHelp...)
}
