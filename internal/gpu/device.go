//go:build !nogpu

package gpu

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

// Backend names accepted by OpenDevice.
const (
	BackendAuto   = "auto"
	BackendVulkan = "vulkan"
	BackendNoop   = "noop"
)

// Device is an opened GPU device and its queue.
type Device struct {
	Device hal.Device
	Queue  hal.Queue

	// Name is the adapter name reported by the driver.
	Name string
	// Backend is the backend that was actually opened.
	Backend string

	instance hal.Instance
}

// OpenDevice opens a device on the named backend. BackendAuto tries
// Vulkan first and falls back to the noop backend, which accepts every
// command and renders nothing.
func OpenDevice(backend string) (*Device, error) {
	switch strings.ToLower(backend) {
	case BackendVulkan:
		return openVulkan()
	case BackendNoop:
		return openNoop()
	case BackendAuto, "":
		d, err := openVulkan()
		if err == nil {
			return d, nil
		}
		slogger().Warn("vulkan unavailable, using noop backend", "error", err)
		return openNoop()
	default:
		return nil, fmt.Errorf("gpu: unknown backend %q", backend)
	}
}

func openVulkan() (*Device, error) {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, errors.New("vulkan backend not available")
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("create instance: %w", err)
	}
	return openAdapter(instance, BackendVulkan)
}

func openNoop() (*Device, error) {
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		return nil, fmt.Errorf("create noop instance: %w", err)
	}
	return openAdapter(instance, BackendNoop)
}

// openAdapter prefers a discrete or integrated GPU over software adapters.
func openAdapter(instance hal.Instance, backend string) (*Device, error) {
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, errors.New("no GPU adapters found")
	}

	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("open device: %w", err)
	}

	slogger().Info("GPU device opened", "backend", backend, "adapter", selected.Info.Name)
	return &Device{
		Device:   openDev.Device,
		Queue:    openDev.Queue,
		Name:     selected.Info.Name,
		Backend:  backend,
		instance: instance,
	}, nil
}

// Close destroys the device and its instance. Resources created on the
// device must be released first.
func (d *Device) Close() {
	if d.Device != nil {
		d.Device.Destroy()
		d.Device = nil
	}
	if d.instance != nil {
		d.instance.Destroy()
		d.instance = nil
	}
}
