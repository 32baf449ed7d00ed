package timerwheel

import (
	"context"

	"github.com/sirupsen/logrus"
	"go.opencensus.io/stats"
)

// Advance moves the wheel up to the clock's current second, firing every
// timer that became due since the previous call. Gaps longer than one
// revolution are caught up bucket by bucket, oldest first, so nothing due in
// the gap is skipped. Advance never fails; the one degraded case, a callback
// freeing the traversal's latched next node, is logged and the remainder of
// that bucket deferred until its index comes around again.
func (s *Store) Advance() {
	now := s.now()
	h := s.hdr
	if h.usedCount() == 0 {
		// Nothing pending: just resynchronize so old empty buckets are
		// never walked.
		h.setBucketTime(now)
		h.setBucketPos(uint64(now % BucketCount))
		return
	}
	last := h.bucketTime()
	if now <= last {
		return
	}
	for t := last + 1; t <= now; t++ {
		s.fireBucket(t)
	}
	h.setBucketTime(now)
	h.setBucketPos(uint64(now % BucketCount))
}

// fireBucket runs every timer in the bucket for second t. Timers that remain
// alive after their callback are rescheduled relative to t, so a repeating
// timer caught up over a long gap fires once per elapsed interval multiple,
// in order.
func (s *Store) fireBucket(t int64) {
	idx := bucketOf(t)
	pos := s.bucketHead(idx)
	for pos != 0 {
		n := s.node(pos)
		// Latch the successor before handing control to the callback, in
		// case the callback cancels the current timer.
		next := n.next()

		n.setFireCount(n.fireCount() + 1)
		s.handler.OnTimeout(Handle(n.id()), n.payload())
		stats.Record(context.Background(), mFired.M(1))

		if n.used() {
			// The callback did not cancel this timer, but it may have
			// canceled others and repaired the chain; trust the node's
			// current successor over the latched one.
			next = n.next()
			s.unlink(idx, pos)
			if mf := n.maxFires(); mf != 0 && n.fireCount() >= mf {
				s.release(pos)
				stats.Record(context.Background(), mExhausted.M(1))
			} else {
				expire := t + int64(n.interval())
				n.setExpire(expire)
				s.link(bucketOf(expire), pos)
			}
		}

		if next != 0 && !s.node(next).used() {
			// The callback freed the node we latched as next, so the rest
			// of this bucket's chain is unreachable for this pass. Those
			// timers fire when the bucket index comes around again, up to
			// one revolution late. Accepted trade-off; do not guard deeper.
			s.log.WithFields(logrus.Fields{
				"bucket": idx,
				"tick":   t,
			}).Warn("callback freed the next pending timer; deferring rest of bucket one revolution")
			stats.Record(context.Background(), mChainBreaks.M(1))
			return
		}
		pos = next
	}
}
