//go:build !nogpu

package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	// Import the Vulkan backend so it registers via init(). Callers that
	// already hold a hal.Device (e.g. via gpucontext) never need this;
	// OpenDevice is the fallback path for a standalone detector/matcher.
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

// OpenedDevice bundles the handles acquired from a fresh backend/instance
// bootstrap.
type OpenedDevice struct {
	Instance hal.Instance
	Device   hal.Device
	Queue    hal.Queue
	Name     string
}

// OpenDevice selects a discrete or integrated GPU adapter on the Vulkan
// backend and opens a device with default limits and no optional features.
func OpenDevice() (*OpenedDevice, error) {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, fmt.Errorf("vulkan backend not available")
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("create instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, fmt.Errorf("no GPU adapters found")
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
		return nil, fmt.Errorf("open device: %w", err)
	}
	return &OpenedDevice{
		Instance: instance,
		Device:   openDev.Device,
		Queue:    openDev.Queue,
		Name:     selected.Info.Name,
	}, nil
}

// Close tears down the device and instance, in that order. Safe to call on
// a zero-value OpenedDevice reached via an earlier partial failure.
func (od *OpenedDevice) Close() {
	if od == nil {
		return
	}
	if od.Device != nil {
		od.Device.Destroy()
	}
	if od.Instance != nil {
		od.Instance.Destroy()
	}
}
