package harness

import (
	"fmt"

	"github.com/born-ml/opcheck/internal/tensor"
)

// stagedData is one scoped device residency of an executor's buffer groups.
// stageSets copies every host blob to a device twin; Release copies the
// device contents back into the borrowed host blobs and frees the device
// memory. Callers pair the two with defer so the copy-back happens on every
// exit path. The host blobs must outlive the staged data.
type stagedData struct {
	acc      tensor.Accelerator
	arena    *tensor.Arena
	host     *[RoleCount][]*tensor.Blob
	dev      [RoleCount][]*tensor.Blob
	released bool
}

// stageSets uploads all five buffer groups to the device and synchronizes so
// the kernels that follow see complete data.
func stageSets(dev tensor.Device, host *[RoleCount][]*tensor.Blob) *stagedData {
	acc, ok := tensor.AcceleratorFor(dev)
	if !ok {
		panic(fmt.Sprintf("harness: staging to %s with no registered accelerator", dev))
	}

	s := &stagedData{acc: acc, arena: tensor.NewArena(dev), host: host}
	for _, role := range Roles() {
		blobs := make([]*tensor.Blob, len(host[role]))
		for i, hb := range host[role] {
			db := s.arena.Alloc(hb.Shape(), hb.DType())
			if err := acc.Upload(db.Memory(), hb.Data()); err != nil {
				panic(fmt.Sprintf("harness: stage %s[%d] to %s: %v", role, i, dev, err))
			}
			blobs[i] = db
		}
		s.dev[role] = blobs
	}
	acc.Synchronize()
	return s
}

// Release drains the device, copies every staged blob back into its host
// twin, frees the device memory and drains again. Safe to call more than
// once; only the first call does the work.
func (s *stagedData) Release() {
	if s.released {
		return
	}
	s.released = true

	s.acc.Synchronize()
	for _, role := range Roles() {
		if len(s.dev[role]) != len(s.host[role]) {
			panic(fmt.Sprintf("harness: %s staged %d blobs for %d host blobs",
				role, len(s.dev[role]), len(s.host[role])))
		}
		for i, db := range s.dev[role] {
			if err := s.acc.Download(s.host[role][i].Data(), db.Memory()); err != nil {
				panic(fmt.Sprintf("harness: copy %s[%d] back from %s: %v", role, i, s.acc.Device(), err))
			}
		}
	}
	s.arena.Release()
	s.acc.Synchronize()
}
