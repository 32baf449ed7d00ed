package timerwheel

// alloc pops the free-list head, marks it in use, and stamps it with a fresh
// handle under the next generation. Returns slot 0 when the arena is full.
// Generations advance only here, never on release, so a freed-then-reissued
// slot can always be told apart from its previous occupant.
func (s *Store) alloc() (uint32, Handle) {
	h := s.hdr
	slot := h.freeHead()
	if slot == 0 || h.usedCount() >= h.maxCount() {
		return 0, 0
	}
	n := s.node(slot)
	h.setFreeHead(n.next())
	h.setUsedCount(h.usedCount() + 1)

	seq := h.seq()
	h.setSeq(seq + 1) // u32 wrap accepted
	id := makeHandle(slot, seq)

	n.setPrev(0)
	n.setNext(0)
	n.setUsed(true)
	n.setID(uint64(id))
	return slot, id
}

// release returns a slot to the free list. Only linkage and the used flag are
// cleared; payload bytes stay until the slot is next allocated.
func (s *Store) release(slot uint32) {
	h := s.hdr
	n := s.node(slot)
	n.setUsed(false)
	n.setPrev(0)
	n.setNext(h.freeHead())
	h.setFreeHead(slot)
	h.setUsedCount(h.usedCount() - 1)
}
