// Package shader loads the WGSL programs run by the simulation.
//
// Programs are resource modules: the WGSL text lives in files (embedded by
// default, optionally read from a directory) and each program declares the
// interface the orchestration code relies on, namely its entry points and
// binding slots. Load renders the module, checks the declared interface
// against the source and compiles it with naga, so a broken or mismatched
// program is rejected before any pipeline is created.
package shader

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"
	"text/template"

	"github.com/gogpu/naga"
)

//go:embed programs/*.wgsl
var embedded embed.FS

// ErrInvalidProgram is wrapped by every load or validation failure.
var ErrInvalidProgram = errors.New("shader: invalid program")

// Program names.
const (
	Life  = "life"
	Cells = "cells"
)

// Entry point names shared with the WGSL sources.
const (
	ComputeMain  = "computeMain"
	VertexMain   = "vertexMain"
	FragmentMain = "fragmentMain"
)

// DefaultTileSize is the workgroup edge length used when none is configured.
const DefaultTileSize = 8

// MaxTileSize keeps TileSize² within the 256-invocation workgroup limit.
const MaxTileSize = 16

// Stage identifies the pipeline stage of an entry point.
type Stage uint8

const (
	StageCompute Stage = iota + 1
	StageVertex
	StageFragment
)

func (s Stage) String() string {
	switch s {
	case StageCompute:
		return "compute"
	case StageVertex:
		return "vertex"
	case StageFragment:
		return "fragment"
	default:
		return fmt.Sprintf("Stage(%d)", uint8(s))
	}
}

// BindingKind is the address space and access mode of a binding.
type BindingKind uint8

const (
	BindingUniform BindingKind = iota + 1
	BindingReadOnlyStorage
	BindingStorage
)

// EntryPoint is a function a pipeline may be built from.
type EntryPoint struct {
	Name  string
	Stage Stage
}

// Binding is a resource slot a program reads or writes.
type Binding struct {
	Group uint32
	Slot  uint32
	Kind  BindingKind
	Name  string
}

// Interface is the contract between a program and the code that binds it.
type Interface struct {
	Entries  []EntryPoint
	Bindings []Binding
}

// Interfaces lists the contract of every program this package knows about.
var Interfaces = map[string]Interface{
	Life: {
		Entries: []EntryPoint{{Name: ComputeMain, Stage: StageCompute}},
		Bindings: []Binding{
			{Group: 0, Slot: 0, Kind: BindingUniform, Name: "grid"},
			{Group: 0, Slot: 1, Kind: BindingReadOnlyStorage, Name: "cellStateIn"},
			{Group: 0, Slot: 2, Kind: BindingStorage, Name: "cellStateOut"},
		},
	},
	Cells: {
		Entries: []EntryPoint{
			{Name: VertexMain, Stage: StageVertex},
			{Name: FragmentMain, Stage: StageFragment},
		},
		Bindings: []Binding{
			{Group: 0, Slot: 0, Kind: BindingUniform, Name: "grid"},
			{Group: 0, Slot: 1, Kind: BindingReadOnlyStorage, Name: "cellState"},
		},
	},
}

// Params are substituted into program templates before validation.
type Params struct {
	TileSize uint32
}

// Program is a rendered, validated and compiled shader module.
type Program struct {
	Name      string
	Source    string
	SPIRV     []byte
	Interface Interface
	TileSize  uint32
}

// Entry returns the entry point with the given name.
func (p *Program) Entry(name string) (EntryPoint, bool) {
	for _, e := range p.Interface.Entries {
		if e.Name == name {
			return e, true
		}
	}
	return EntryPoint{}, false
}

// Loader reads program modules from a file system.
type Loader struct {
	FS fs.FS

	// Compile turns WGSL into SPIR-V. It defaults to naga.Compile.
	Compile func(source string) ([]byte, error)
}

// NewLoader returns a Loader reading from dir, or from the embedded programs
// when dir is empty.
func NewLoader(dir string) *Loader {
	if dir == "" {
		sub, err := fs.Sub(embedded, "programs")
		if err != nil {
			panic(err)
		}
		return &Loader{FS: sub}
	}
	return &Loader{FS: os.DirFS(dir)}
}

// Load reads, renders and validates the named program.
func (l *Loader) Load(name string, params Params) (*Program, error) {
	iface, ok := Interfaces[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown program %q", ErrInvalidProgram, name)
	}
	if params.TileSize == 0 {
		params.TileSize = DefaultTileSize
	}
	if params.TileSize > MaxTileSize {
		return nil, fmt.Errorf("%w: %s: tile size %d exceeds %d", ErrInvalidProgram, name, params.TileSize, MaxTileSize)
	}

	raw, err := fs.ReadFile(l.FS, name+".wgsl")
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidProgram, name, err)
	}
	source, err := render(name, string(raw), params)
	if err != nil {
		return nil, err
	}
	if err := checkInterface(name, source, iface); err != nil {
		return nil, err
	}

	compile := l.Compile
	if compile == nil {
		compile = naga.Compile
	}
	spirv, err := compile(source)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: compile: %w", ErrInvalidProgram, name, err)
	}

	return &Program{
		Name:      name,
		Source:    source,
		SPIRV:     spirv,
		Interface: iface,
		TileSize:  params.TileSize,
	}, nil
}

func render(name, text string, params Params) (string, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return "", fmt.Errorf("%w: %s: template: %w", ErrInvalidProgram, name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, params); err != nil {
		return "", fmt.Errorf("%w: %s: template: %w", ErrInvalidProgram, name, err)
	}
	return buf.String(), nil
}

func checkInterface(name, source string, iface Interface) error {
	var missing []string
	for _, e := range iface.Entries {
		if !entryPattern(e).MatchString(source) {
			missing = append(missing, fmt.Sprintf("%s entry point %s", e.Stage, e.Name))
		}
	}
	for _, b := range iface.Bindings {
		if !bindingPattern(b).MatchString(source) {
			missing = append(missing, fmt.Sprintf("binding @group(%d) @binding(%d) %s", b.Group, b.Slot, b.Name))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s: missing %s", ErrInvalidProgram, name, strings.Join(missing, ", "))
	}
	return nil
}

func entryPattern(e EntryPoint) *regexp.Regexp {
	attr := "@" + e.Stage.String()
	if e.Stage == StageCompute {
		attr += `\s+@workgroup_size\([^)]*\)`
	}
	return regexp.MustCompile(attr + `\s+fn\s+` + regexp.QuoteMeta(e.Name) + `\b`)
}

func bindingPattern(b Binding) *regexp.Regexp {
	var space string
	switch b.Kind {
	case BindingUniform:
		space = `uniform`
	case BindingReadOnlyStorage:
		space = `storage,\s*read`
	default:
		space = `storage,\s*read_write`
	}
	return regexp.MustCompile(fmt.Sprintf(`@group\(%d\)\s*@binding\(%d\)\s*var<%s>\s*%s\b`,
		b.Group, b.Slot, space, regexp.QuoteMeta(b.Name)))
}
