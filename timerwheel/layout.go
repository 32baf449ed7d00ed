package timerwheel

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// BucketCount is the number of slots in the wheel. One slot spans one second,
// so an interval may be at most one full revolution of 60 seconds.
const BucketCount = 60

// MaxTimerCount bounds the configurable capacity: a slot index must fit the
// lower 32 bits of a handle, with 0 reserved for the null sentinel.
const MaxTimerCount = 1<<32 - 2

// Region layout, all fields little-endian:
//
//	[Header][Bucket; BucketCount][Node; maxTimers+1]
//
// Node 0 is never allocated; index 0 doubles as the list terminator, so
// zeroed memory is already a valid empty structure.
const (
	headerMagic   uint32 = 0x316c7774 // "twl1"
	layoutVersion uint32 = 1

	headerSize     = 80
	bucketSize     = 4
	nodeHeaderSize = 40

	offMagic       = 0
	offVersion     = 4
	offTotalSize   = 8
	offPayloadSize = 16
	offMaxCount    = 24
	offUsedCount   = 32
	offBucketPos   = 40
	offBucketTime  = 48
	offFreeHead    = 56
	offSeq         = 64

	nodeOffPrev      = 0
	nodeOffNext      = 4
	nodeOffID        = 8
	nodeOffExpire    = 16
	nodeOffInterval  = 24
	nodeOffMaxFires  = 28
	nodeOffFireCount = 32
	nodeOffFlags     = 36
	nodeOffPayload   = nodeHeaderSize

	flagUsed uint32 = 1
)

// TotalSize returns the exact number of bytes a store with the given capacity
// and payload cell size occupies. Hosts use it to size a region before
// acquisition; Attach uses it to validate one.
func TotalSize(maxTimers, payloadSize int) int {
	return headerSize + BucketCount*bucketSize + (maxTimers+1)*(nodeHeaderSize+payloadSize)
}

// header is a view over the store header bytes. Every mutation writes through
// to the region immediately so that a crash or detach never observes state
// that exists only in process memory.
type header struct{ b []byte }

func (h header) magic() uint32          { return binary.LittleEndian.Uint32(h.b[offMagic:]) }
func (h header) setMagic(v uint32)      { binary.LittleEndian.PutUint32(h.b[offMagic:], v) }
func (h header) version() uint32        { return binary.LittleEndian.Uint32(h.b[offVersion:]) }
func (h header) setVersion(v uint32)    { binary.LittleEndian.PutUint32(h.b[offVersion:], v) }
func (h header) totalSize() uint64      { return binary.LittleEndian.Uint64(h.b[offTotalSize:]) }
func (h header) setTotalSize(v uint64)  { binary.LittleEndian.PutUint64(h.b[offTotalSize:], v) }
func (h header) payloadSize() uint64    { return binary.LittleEndian.Uint64(h.b[offPayloadSize:]) }
func (h header) setPayloadSize(v uint64) {
	binary.LittleEndian.PutUint64(h.b[offPayloadSize:], v)
}
func (h header) maxCount() uint64      { return binary.LittleEndian.Uint64(h.b[offMaxCount:]) }
func (h header) setMaxCount(v uint64)  { binary.LittleEndian.PutUint64(h.b[offMaxCount:], v) }
func (h header) usedCount() uint64     { return binary.LittleEndian.Uint64(h.b[offUsedCount:]) }
func (h header) setUsedCount(v uint64) { binary.LittleEndian.PutUint64(h.b[offUsedCount:], v) }
func (h header) bucketPos() uint64     { return binary.LittleEndian.Uint64(h.b[offBucketPos:]) }
func (h header) setBucketPos(v uint64) { binary.LittleEndian.PutUint64(h.b[offBucketPos:], v) }
func (h header) bucketTime() int64 {
	return int64(binary.LittleEndian.Uint64(h.b[offBucketTime:]))
}
func (h header) setBucketTime(v int64) {
	binary.LittleEndian.PutUint64(h.b[offBucketTime:], uint64(v))
}
func (h header) freeHead() uint32     { return binary.LittleEndian.Uint32(h.b[offFreeHead:]) }
func (h header) setFreeHead(v uint32) { binary.LittleEndian.PutUint32(h.b[offFreeHead:], v) }
func (h header) seq() uint32          { return binary.LittleEndian.Uint32(h.b[offSeq:]) }
func (h header) setSeq(v uint32)      { binary.LittleEndian.PutUint32(h.b[offSeq:], v) }

// node is a view over one arena slot's bytes.
type node struct{ b []byte }

func (n node) prev() uint32         { return binary.LittleEndian.Uint32(n.b[nodeOffPrev:]) }
func (n node) setPrev(v uint32)     { binary.LittleEndian.PutUint32(n.b[nodeOffPrev:], v) }
func (n node) next() uint32         { return binary.LittleEndian.Uint32(n.b[nodeOffNext:]) }
func (n node) setNext(v uint32)     { binary.LittleEndian.PutUint32(n.b[nodeOffNext:], v) }
func (n node) id() uint64           { return binary.LittleEndian.Uint64(n.b[nodeOffID:]) }
func (n node) setID(v uint64)       { binary.LittleEndian.PutUint64(n.b[nodeOffID:], v) }
func (n node) expire() int64        { return int64(binary.LittleEndian.Uint64(n.b[nodeOffExpire:])) }
func (n node) setExpire(v int64)    { binary.LittleEndian.PutUint64(n.b[nodeOffExpire:], uint64(v)) }
func (n node) interval() uint32     { return binary.LittleEndian.Uint32(n.b[nodeOffInterval:]) }
func (n node) setInterval(v uint32) { binary.LittleEndian.PutUint32(n.b[nodeOffInterval:], v) }
func (n node) maxFires() uint32     { return binary.LittleEndian.Uint32(n.b[nodeOffMaxFires:]) }
func (n node) setMaxFires(v uint32) { binary.LittleEndian.PutUint32(n.b[nodeOffMaxFires:], v) }
func (n node) fireCount() uint32    { return binary.LittleEndian.Uint32(n.b[nodeOffFireCount:]) }
func (n node) setFireCount(v uint32) {
	binary.LittleEndian.PutUint32(n.b[nodeOffFireCount:], v)
}
func (n node) used() bool { return binary.LittleEndian.Uint32(n.b[nodeOffFlags:])&flagUsed != 0 }
func (n node) setUsed(used bool) {
	var v uint32
	if used {
		v = flagUsed
	}
	binary.LittleEndian.PutUint32(n.b[nodeOffFlags:], v)
}

// payload returns the node's payload cell. The slice aliases store memory.
func (n node) payload() []byte { return n.b[nodeOffPayload:] }

// carve splits a region into header, bucket ring, and node arena views after
// checking the region is large enough for the requested geometry.
func (s *Store) carve(region []byte, maxTimers, payloadSize int) error {
	need := TotalSize(maxTimers, payloadSize)
	if len(region) < need {
		return errors.Wrapf(ErrInsufficientSize, "need %d bytes for %d timers of %d payload bytes, region holds %d",
			need, maxTimers, payloadSize, len(region))
	}
	s.hdr = header{b: region[:headerSize]}
	s.buckets = region[headerSize : headerSize+BucketCount*bucketSize]
	s.nodes = region[headerSize+BucketCount*bucketSize : need]
	s.stride = nodeHeaderSize + payloadSize
	s.payloadSize = payloadSize
	return nil
}

// initFresh seeds a zeroable region: header written from scratch, every
// bucket emptied, and slots maxTimers..1 pushed onto the free list so the
// lowest index is handed out first.
func (s *Store) initFresh(maxTimers, payloadSize int) {
	now := s.now()
	h := s.hdr
	h.setMagic(headerMagic)
	h.setVersion(layoutVersion)
	h.setTotalSize(uint64(TotalSize(maxTimers, payloadSize)))
	h.setPayloadSize(uint64(payloadSize))
	h.setMaxCount(uint64(maxTimers))
	h.setUsedCount(0)
	h.setBucketTime(now)
	h.setBucketPos(uint64(now % BucketCount))
	h.setSeq(uint32(now))
	h.setFreeHead(0)
	for i := 0; i < BucketCount; i++ {
		s.setBucketHead(uint32(i), 0)
	}
	for i := maxTimers; i >= 1; i-- {
		n := s.node(uint32(i))
		n.setPrev(0)
		n.setID(0)
		n.setUsed(false)
		n.setNext(h.freeHead())
		h.setFreeHead(uint32(i))
	}
}

// validateAttach checks a previously initialized header against the geometry
// the caller expects before any of the region's contents are trusted.
func (s *Store) validateAttach(maxTimers, payloadSize int) error {
	h := s.hdr
	if h.magic() != headerMagic {
		return errors.Wrapf(ErrLayoutMismatch, "magic %#x, want %#x", h.magic(), headerMagic)
	}
	if h.version() != layoutVersion {
		return errors.Wrapf(ErrLayoutMismatch, "layout version %d, want %d", h.version(), layoutVersion)
	}
	if h.maxCount() != uint64(maxTimers) {
		return errors.Wrapf(ErrLayoutMismatch, "stored capacity %d, expected %d", h.maxCount(), maxTimers)
	}
	if h.payloadSize() != uint64(payloadSize) {
		return errors.Wrapf(ErrLayoutMismatch, "stored payload size %d, expected %d", h.payloadSize(), payloadSize)
	}
	if h.totalSize() != uint64(TotalSize(maxTimers, payloadSize)) {
		return errors.Wrapf(ErrLayoutMismatch, "stored total size %d, expected %d",
			h.totalSize(), TotalSize(maxTimers, payloadSize))
	}
	if h.usedCount() > h.maxCount() {
		return errors.Wrapf(ErrLayoutMismatch, "stored used count %d exceeds capacity %d", h.usedCount(), h.maxCount())
	}
	return nil
}
