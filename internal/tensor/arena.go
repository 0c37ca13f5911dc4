package tensor

import "fmt"

// Arena allocates blobs and owns their lifetime. Every blob handed out stays
// valid until Release; after Release all of them are dead. Device arenas free
// their accelerator memory on Release, host arenas just drop their storage.
//
// An arena is not safe for concurrent use.
type Arena struct {
	device   Device
	acc      Accelerator // nil for host arenas
	blobs    []*Blob
	released bool
}

// NewArena creates an arena allocating on the given device.
// Panics if the device is not the host and has no registered accelerator.
func NewArena(dev Device) *Arena {
	if dev == CPU {
		return &Arena{device: CPU}
	}
	acc, ok := AcceleratorFor(dev)
	if !ok {
		panic(fmt.Sprintf("tensor: arena: no accelerator registered for device %s", dev))
	}
	return &Arena{device: dev, acc: acc}
}

// Device returns the device this arena allocates on.
func (a *Arena) Device() Device {
	return a.device
}

// Alloc allocates a zero-filled blob and registers it with the arena.
// Panics on invalid shapes or allocation failure.
func (a *Arena) Alloc(shape Shape, dtype DataType) *Blob {
	if a.released {
		panic("tensor: arena: alloc after release")
	}
	var (
		blob *Blob
		err  error
	)
	if a.acc == nil {
		blob, err = NewBlob(shape, dtype)
	} else {
		var mem DeviceMemory
		mem, err = a.acc.Alloc(shape.NumElements() * dtype.Size())
		if err == nil {
			blob, err = NewDeviceBlob(shape, dtype, a.device, mem)
		}
	}
	if err != nil {
		panic(fmt.Sprintf("tensor: arena: alloc %v of %s on %s: %v", shape, dtype, a.device, err))
	}
	a.blobs = append(a.blobs, blob)
	return blob
}

// Len returns how many blobs the arena currently owns.
func (a *Arena) Len() int {
	return len(a.blobs)
}

// Release frees every blob the arena owns, in allocation order.
// Safe to call more than once.
func (a *Arena) Release() {
	if a.released {
		return
	}
	a.released = true
	for _, blob := range a.blobs {
		if a.acc != nil && blob.mem != nil {
			a.acc.Free(blob.mem)
			blob.mem = nil
		}
		blob.data = nil
	}
	a.blobs = nil
}
