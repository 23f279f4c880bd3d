package driver

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/gogpu/gfxcore"
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Provider is an open HAL device. It implements gpucontext.DeviceProvider
// and is accepted by device.Open.
type Provider struct {
	name     string
	instance hal.Instance
	adapter  hal.ExposedAdapter
	device   hal.Device
	queue    hal.Queue
	format   gputypes.TextureFormat
}

var _ gpucontext.DeviceProvider = (*Provider)(nil)

// Open creates an instance of the backend called name and opens a device
// on its first discrete or integrated adapter, falling back to the first
// adapter. An empty name or "auto" picks Best.
func (d *Drivers) Open(name string) (*Provider, error) {
	name = strings.ToLower(name)
	if name == "" || name == "auto" {
		name = d.Best()
		if name == "" {
			return nil, ErrNoBackend
		}
	}
	if !d.reg.Has(name) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, name)
	}
	backend := d.reg.Get(name)
	if backend == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, name)
	}

	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("driver: %s: create instance: %w", name, err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, fmt.Errorf("%w: %s", ErrNoAdapter, name)
	}
	selected := &adapters[0]
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("driver: %s: open device: %w", name, err)
	}
	gfxcore.Logger().Info("device opened",
		slog.String("backend", name),
		slog.String("adapter", selected.Info.Name))
	return &Provider{
		name:     name,
		instance: instance,
		adapter:  *selected,
		device:   openDev.Device,
		queue:    openDev.Queue,
	}, nil
}

// Backend returns the registry name of the backend.
func (p *Provider) Backend() string { return p.name }

// Device returns the HAL device.
func (p *Provider) Device() gpucontext.Device { return p.device }

// Queue returns the HAL queue.
func (p *Provider) Queue() gpucontext.Queue { return p.queue }

// HalDevice returns the HAL device for device.Open.
func (p *Provider) HalDevice() any { return p.device }

// HalQueue returns the HAL queue for device.Open.
func (p *Provider) HalQueue() any { return p.queue }

// SurfaceFormat is undefined: providers are headless.
func (p *Provider) SurfaceFormat() gputypes.TextureFormat { return p.format }

// Adapter returns the HAL adapter.
func (p *Provider) Adapter() gpucontext.Adapter { return p.adapter.Adapter }

// AdapterInfo maps the HAL adapter metadata.
func (p *Provider) AdapterInfo() gpucontext.AdapterInfo {
	info := gpucontext.AdapterInfo{Name: p.adapter.Info.Name, Type: gpucontext.AdapterTypeUnknown}
	switch p.adapter.Info.DeviceType {
	case gputypes.DeviceTypeDiscreteGPU:
		info.Type = gpucontext.AdapterTypeDiscrete
	case gputypes.DeviceTypeIntegratedGPU:
		info.Type = gpucontext.AdapterTypeIntegrated
	case gputypes.DeviceTypeCPU:
		info.Type = gpucontext.AdapterTypeSoftware
	}
	return info
}

// Close destroys the device and the instance. Resources created on the
// device must be released first.
func (p *Provider) Close() {
	if p.device != nil {
		p.device.Destroy()
		p.device, p.queue = nil, nil
	}
	if p.instance != nil {
		p.instance.Destroy()
		p.instance = nil
	}
}

// NullProvider is a DeviceProvider without a device. device.Open rejects
// it.
type NullProvider struct{}

var _ gpucontext.DeviceProvider = NullProvider{}

func (NullProvider) Device() gpucontext.Device             { return nil }
func (NullProvider) Queue() gpucontext.Queue               { return nil }
func (NullProvider) HalDevice() any                        { return nil }
func (NullProvider) HalQueue() any                         { return nil }
func (NullProvider) SurfaceFormat() gputypes.TextureFormat { return gputypes.TextureFormatUndefined }
func (NullProvider) Adapter() gpucontext.Adapter           { return nil }
func (NullProvider) AdapterInfo() gpucontext.AdapterInfo   { return gpucontext.AdapterInfo{Type: gpucontext.AdapterTypeUnknown} }
