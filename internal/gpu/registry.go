package gpu

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// DefaultSurfaceSize is the edge length of the surface when none is configured.
const DefaultSurfaceSize = 512

// Options configure a backend when it is opened.
type Options struct {
	SurfaceWidth  int
	SurfaceHeight int

	// Workers bounds parallelism on host backends; 0 means GOMAXPROCS.
	Workers int

	Logger *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.SurfaceWidth <= 0 {
		o.SurfaceWidth = DefaultSurfaceSize
	}
	if o.SurfaceHeight <= 0 {
		o.SurfaceHeight = DefaultSurfaceSize
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Factory opens a device.
type Factory func(opts Options) (Device, error)

var (
	backendsMu sync.RWMutex
	backends   = map[string]Factory{}
)

// Register adds a backend factory under the provided name.
func Register(name string, f Factory) {
	if name == "" || f == nil {
		return
	}
	backendsMu.Lock()
	defer backendsMu.Unlock()
	backends[name] = f
}

// Backends lists the registered backend names in sorted order.
func Backends() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Context bundles the device, its queue and surface. It is created once and
// passed to every component; there is no package-level device.
type Context struct {
	Device  Device
	Queue   Queue
	Surface Surface
	Log     *zap.Logger
}

// NewContext wraps an already opened device.
func NewContext(dev Device, log *zap.Logger) *Context {
	if log == nil {
		log = zap.NewNop()
	}
	return &Context{Device: dev, Queue: dev.Queue(), Surface: dev.Surface(), Log: log}
}

// Open opens the named backend. Failures wrap ErrDeviceUnavailable.
func Open(name string, opts Options) (*Context, error) {
	opts = opts.withDefaults()

	backendsMu.RLock()
	f, ok := backends[name]
	backendsMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: unknown backend %q (available: %v)", ErrDeviceUnavailable, name, Backends())
	}

	dev, err := f(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDeviceUnavailable, name, err)
	}
	info := dev.Info()
	opts.Logger.Info("device opened",
		zap.String("backend", info.Backend),
		zap.String("adapter", info.Name),
		zap.Int("surface_width", opts.SurfaceWidth),
		zap.Int("surface_height", opts.SurfaceHeight),
	)
	return NewContext(dev, opts.Logger), nil
}

// Release releases the device.
func (c *Context) Release() {
	if c == nil || c.Device == nil {
		return
	}
	c.Device.Release()
}
