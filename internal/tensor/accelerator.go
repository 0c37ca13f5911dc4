package tensor

import "sync"

// Accelerator is the device interface the harness stages blobs through.
// Implementations manage their own memory; Synchronize blocks until every
// operation queued so far has completed on the device.
type Accelerator interface {
	Name() string
	Device() Device

	Alloc(byteSize int) (DeviceMemory, error)
	Free(mem DeviceMemory)
	Upload(dst DeviceMemory, src []byte) error
	Download(dst []byte, src DeviceMemory) error
	Synchronize()
}

var (
	accMu        sync.RWMutex
	accelerators = make(map[Device]Accelerator)
)

// RegisterAccelerator makes an accelerator available for its device. Backends
// call this from init when their device can actually be used, so a build
// without GPU support simply leaves the device unregistered. Re-registering a
// device replaces the previous accelerator.
func RegisterAccelerator(acc Accelerator) {
	accMu.Lock()
	defer accMu.Unlock()
	accelerators[acc.Device()] = acc
}

// UnregisterAccelerator removes the accelerator for a device.
func UnregisterAccelerator(dev Device) {
	accMu.Lock()
	defer accMu.Unlock()
	delete(accelerators, dev)
}

// AcceleratorFor returns the registered accelerator for a device.
func AcceleratorFor(dev Device) (Accelerator, bool) {
	accMu.RLock()
	defer accMu.RUnlock()
	acc, ok := accelerators[dev]
	return acc, ok
}

// HasAccelerator reports whether a device has a registered accelerator.
func HasAccelerator(dev Device) bool {
	_, ok := AcceleratorFor(dev)
	return ok
}
