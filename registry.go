package stage

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// Device backend names.
const (
	// BackendWGPU is the wgpu/hal GPU device, registered by importing
	// the gpu sub-package.
	BackendWGPU = "wgpu"

	// BackendSoftware is the CPU device, always available.
	BackendSoftware = "software"
)

// DeviceFactory creates a device with the given backbuffer size.
type DeviceFactory func(width, height int) (Device, error)

// registry holds registered device backends.
var (
	registryMu sync.RWMutex
	backends   = make(map[string]DeviceFactory)
	// Priority order for backend selection (first that succeeds wins).
	backendPriority = []string{BackendWGPU, BackendSoftware}
)

// RegisterBackend registers a device factory with the given name.
// This is typically called from init() functions in backend packages.
// If a backend with the same name is already registered, it will be
// replaced.
func RegisterBackend(name string, factory DeviceFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	backends[name] = factory
}

// UnregisterBackend removes a backend from the registry.
// This is useful for testing.
func UnregisterBackend(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(backends, name)
}

// AvailableBackends returns the registered backend names.
func AvailableBackends() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	return names
}

// NewNamedDevice creates a device from the named backend.
func NewNamedDevice(name string, width, height int) (Device, error) {
	registryMu.RLock()
	factory, ok := backends[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q not registered", ErrBackendNotAvailable, name)
	}
	dev, err := factory(width, height)
	if err != nil {
		return nil, fmt.Errorf("create %q device: %w", name, err)
	}
	return dev, nil
}

// NewDevice creates a device from the best available backend.
// Priority order: wgpu > software. A backend whose factory fails is
// skipped with a warning; the next one is tried.
func NewDevice(width, height int) (Device, error) {
	registryMu.RLock()
	ordered := make([]string, 0, len(backends))
	for _, name := range backendPriority {
		if _, ok := backends[name]; ok {
			ordered = append(ordered, name)
		}
	}
	for name := range backends {
		if !slices.Contains(backendPriority, name) {
			ordered = append(ordered, name)
		}
	}
	registryMu.RUnlock()

	for _, name := range ordered {
		dev, err := NewNamedDevice(name, width, height)
		if err != nil {
			Logger().Warn("device backend unavailable",
				slog.String("backend", name),
				slog.String("error", err.Error()))
			continue
		}
		Logger().Info("device backend selected", slog.String("backend", name))
		return dev, nil
	}
	return nil, ErrBackendNotAvailable
}
