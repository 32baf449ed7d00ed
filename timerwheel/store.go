package timerwheel

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opencensus.io/stats"
)

var storeLogger = logrus.WithFields(logrus.Fields{
	"app":       "shmtimer",
	"component": "timerwheel",
})

// Handler receives timer firings. OnTimeout runs inline with Advance on the
// caller's goroutine; the payload slice aliases store memory and must not be
// retained past the call. The handler may call back into the store, including
// canceling the very timer being fired.
type Handler interface {
	OnTimeout(h Handle, payload []byte)
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(h Handle, payload []byte)

func (f HandlerFunc) OnTimeout(h Handle, payload []byte) { f(h, payload) }

// Option customizes a Store at construction.
type Option func(*Store)

// WithClock replaces the time source. The function must return a
// nondecreasing reading of whole seconds.
func WithClock(now func() int64) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger replaces the logger used for traversal diagnostics.
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Store) { s.log = log }
}

// Store is a timer wheel over a caller-supplied byte region. It performs no
// locking of its own: a store, and the region behind it, must only ever be
// touched by one call at a time.
type Store struct {
	hdr     header
	buckets []byte
	nodes   []byte
	stride  int

	payloadSize int
	handler     Handler
	now         func() int64
	log         logrus.FieldLogger
}

func newStore(region []byte, maxTimers, payloadSize int, handler Handler, opts []Option) (*Store, error) {
	if maxTimers < 1 || maxTimers > MaxTimerCount {
		return nil, errors.Wrapf(ErrInvalidParameter, "capacity %d outside [1, %d]", maxTimers, MaxTimerCount)
	}
	if payloadSize < 0 {
		return nil, errors.Wrapf(ErrInvalidParameter, "payload size %d is negative", payloadSize)
	}
	if handler == nil {
		return nil, errors.Wrap(ErrInvalidParameter, "nil timeout handler")
	}
	s := &Store{
		handler: handler,
		now:     func() int64 { return time.Now().Unix() },
		log:     storeLogger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// New initializes a fresh store over region, discarding whatever the region
// held before. The region must be at least TotalSize(maxTimers, payloadSize)
// bytes and stay mapped for the life of the store.
func New(region []byte, maxTimers, payloadSize int, handler Handler, opts ...Option) (*Store, error) {
	s, err := newStore(region, maxTimers, payloadSize, handler, opts)
	if err != nil {
		return nil, err
	}
	if err := s.carve(region, maxTimers, payloadSize); err != nil {
		return nil, err
	}
	s.initFresh(maxTimers, payloadSize)
	return s, nil
}

// Attach re-opens a store previously initialized in region, preserving every
// pending timer. The expected geometry must match what the region's header
// records; any disagreement fails with ErrLayoutMismatch and leaves the
// region untouched.
func Attach(region []byte, maxTimers, payloadSize int, handler Handler, opts ...Option) (*Store, error) {
	s, err := newStore(region, maxTimers, payloadSize, handler, opts)
	if err != nil {
		return nil, err
	}
	// Validate the stored header before sizing anything against the caller's
	// expectation, so a geometry disagreement reports as a mismatch rather
	// than a short region.
	if len(region) < headerSize {
		return nil, errors.Wrapf(ErrInsufficientSize, "region of %d bytes cannot hold a %d byte header", len(region), headerSize)
	}
	s.hdr = header{b: region[:headerSize]}
	if err := s.validateAttach(maxTimers, payloadSize); err != nil {
		return nil, err
	}
	if err := s.carve(region, maxTimers, payloadSize); err != nil {
		return nil, err
	}
	return s, nil
}

// NewInMemory is the convenience path for hosts that do not need persistence:
// it allocates a heap region of exactly the required size and runs New on it.
func NewInMemory(maxTimers, payloadSize int, handler Handler, opts ...Option) (*Store, error) {
	if maxTimers < 1 || maxTimers > MaxTimerCount || payloadSize < 0 {
		return nil, errors.Wrapf(ErrInvalidParameter, "capacity %d, payload size %d", maxTimers, payloadSize)
	}
	return New(make([]byte, TotalSize(maxTimers, payloadSize)), maxTimers, payloadSize, handler, opts...)
}

func (s *Store) node(i uint32) node {
	off := int(i) * s.stride
	return node{b: s.nodes[off : off+s.stride]}
}

func (s *Store) bucketHead(i uint32) uint32 {
	return binary.LittleEndian.Uint32(s.buckets[int(i)*bucketSize:])
}

func (s *Store) setBucketHead(i uint32, slot uint32) {
	binary.LittleEndian.PutUint32(s.buckets[int(i)*bucketSize:], slot)
}

func bucketOf(expire int64) uint32 {
	return uint32(expire % BucketCount)
}

// link inserts slot at the head of a bucket's list.
func (s *Store) link(bucket uint32, slot uint32) {
	n := s.node(slot)
	head := s.bucketHead(bucket)
	n.setPrev(0)
	n.setNext(head)
	if head != 0 {
		s.node(head).setPrev(slot)
	}
	s.setBucketHead(bucket, slot)
}

// unlink detaches slot from a bucket's list using its own neighbor indices.
func (s *Store) unlink(bucket uint32, slot uint32) {
	n := s.node(slot)
	prev, next := n.prev(), n.next()
	if prev == 0 {
		s.setBucketHead(bucket, next)
	} else {
		s.node(prev).setNext(next)
	}
	if next != 0 {
		s.node(next).setPrev(prev)
	}
}

// Schedule registers a timer due intervalSec seconds from now. maxFires 0
// repeats forever; maxFires n fires n times and then releases the timer. The
// payload is copied into the node's fixed-size cell, zero-padded.
func (s *Store) Schedule(intervalSec int64, maxFires int, payload []byte) (Handle, error) {
	if intervalSec <= 0 || intervalSec > BucketCount {
		return 0, errors.Wrapf(ErrInvalidParameter, "interval %ds outside (0, %d]", intervalSec, BucketCount)
	}
	if maxFires < 0 {
		return 0, errors.Wrapf(ErrInvalidParameter, "negative fire budget %d", maxFires)
	}
	if len(payload) > s.payloadSize {
		return 0, errors.Wrapf(ErrInvalidParameter, "payload %d bytes exceeds cell size %d", len(payload), s.payloadSize)
	}
	now := s.now()
	expire := now + intervalSec
	if expire < s.hdr.bucketTime() {
		return 0, errors.Wrapf(ErrClockRegression, "expiry %d behind wheel time %d", expire, s.hdr.bucketTime())
	}
	slot, id := s.alloc()
	if slot == 0 {
		return 0, errors.Wrapf(ErrCapacityExceeded, "all %d slots in use", s.Cap())
	}
	n := s.node(slot)
	n.setInterval(uint32(intervalSec))
	n.setMaxFires(uint32(maxFires))
	n.setFireCount(0)
	n.setExpire(expire)
	cell := n.payload()
	copy(cell, payload)
	clear(cell[len(payload):])
	s.link(bucketOf(expire), slot)
	stats.Record(context.Background(), mScheduled.M(1))
	return id, nil
}

// Cancel removes a pending timer. The handle is dead afterwards. Nothing is
// mutated when validation fails.
func (s *Store) Cancel(h Handle) error {
	slot, err := s.resolve(h)
	if err != nil {
		return err
	}
	n := s.node(slot)
	s.unlink(bucketOf(n.expire()), slot)
	s.release(slot)
	stats.Record(context.Background(), mCanceled.M(1))
	return nil
}

// ExpireAt returns the absolute second a timer next fires.
func (s *Store) ExpireAt(h Handle) (int64, error) {
	slot, err := s.resolve(h)
	if err != nil {
		return 0, err
	}
	return s.node(slot).expire(), nil
}

// Len returns the number of live timers.
func (s *Store) Len() int { return int(s.hdr.usedCount()) }

// Cap returns the configured capacity.
func (s *Store) Cap() int { return int(s.hdr.maxCount()) }
