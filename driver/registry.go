package driver

import (
	"slices"
	"strings"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
	"github.com/gogpu/wgpu/hal/software"
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

// Priority is the order in which Best picks a backend.
var Priority = []string{"vulkan", "metal", "dx12", "gles", "software", "noop"}

// Drivers is a set of named HAL backends.
type Drivers struct {
	reg *gpucontext.Registry[hal.Backend]
}

// NewDrivers returns a set holding the software and noop backends and
// every backend registered with hal.
func NewDrivers() *Drivers {
	d := &Drivers{reg: gpucontext.NewRegistry[hal.Backend](gpucontext.WithPriority(Priority...))}
	d.Register("noop", func() hal.Backend { return noop.API{} })
	d.Register("software", func() hal.Backend { return software.API{} })
	d.RegisterHAL()
	return d
}

var std = NewDrivers()

// Default returns the process-wide driver set used by the package
// functions.
func Default() *Drivers { return std }

// Register adds or replaces the backend called name.
func (d *Drivers) Register(name string, factory func() hal.Backend) {
	d.reg.Register(strings.ToLower(name), factory)
}

// Unregister removes the backend called name.
func (d *Drivers) Unregister(name string) {
	d.reg.Unregister(strings.ToLower(name))
}

// Has reports whether a backend called name is registered.
func (d *Drivers) Has(name string) bool {
	return d.reg.Has(strings.ToLower(name))
}

// RegisterHAL registers the hardware backends that were registered with
// hal, usually through a side-effect import such as hal/allbackends.
// BackendEmpty is skipped: noop and software both claim it.
func (d *Drivers) RegisterHAL() {
	for _, v := range hal.AvailableBackends() {
		name := backendName(v)
		if name == "" {
			continue
		}
		d.Register(name, func() hal.Backend {
			b, _ := hal.GetBackend(v)
			return b
		})
	}
}

func backendName(v gputypes.Backend) string {
	switch v {
	case gputypes.BackendVulkan:
		return "vulkan"
	case gputypes.BackendMetal:
		return "metal"
	case gputypes.BackendDX12:
		return "dx12"
	case gputypes.BackendGL:
		return "gles"
	}
	return ""
}

// Best returns the name of the highest priority registered backend, or
// "" when none is.
func (d *Drivers) Best() string {
	return d.reg.BestName()
}

// Available returns the registered names in priority order. Names outside
// Priority follow in lexical order.
func (d *Drivers) Available() []string {
	names := d.reg.Available()
	slices.SortFunc(names, func(a, b string) int {
		ia, ib := rank(a), rank(b)
		if ia != ib {
			return ia - ib
		}
		return strings.Compare(a, b)
	})
	return names
}

func rank(name string) int {
	if i := slices.Index(Priority, name); i >= 0 {
		return i
	}
	return len(Priority)
}

// Register adds a backend to the default set.
func Register(name string, factory func() hal.Backend) { std.Register(name, factory) }

// Unregister removes a backend from the default set.
func Unregister(name string) { std.Unregister(name) }

// Best returns the preferred backend of the default set.
func Best() string { return std.Best() }

// Available lists the default set in priority order.
func Available() []string { return std.Available() }

// Open opens a device on the default set. See Drivers.Open.
func Open(name string) (*Provider, error) { return std.Open(name) }
