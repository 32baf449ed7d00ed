package timerwheel

import (
	"github.com/pkg/errors"
)

// Handle is an opaque reference to a scheduled timer: the slot index in the
// low 32 bits, the generation stamped at allocation in the high 32. Handles
// are values; copy them freely. A handle dies the moment its timer is
// canceled or exhausts its fire budget, and is rejected as stale afterwards
// even if the slot has been reissued to a new timer.
type Handle uint64

func makeHandle(slot, seq uint32) Handle {
	return Handle(uint64(seq)<<32 | uint64(slot))
}

func (h Handle) slot() uint32 { return uint32(h) }

// resolve validates a handle and returns the live slot it refers to.
func (s *Store) resolve(h Handle) (uint32, error) {
	slot := h.slot()
	if slot == 0 || uint64(slot) > s.hdr.maxCount() {
		return 0, errors.Wrapf(ErrInvalidHandle, "slot %d outside [1, %d]", slot, s.hdr.maxCount())
	}
	n := s.node(slot)
	if !n.used() || n.id() != uint64(h) {
		return 0, errors.Wrapf(ErrStaleHandle, "handle %#x no longer owns slot %d", uint64(h), slot)
	}
	return slot, nil
}
