package timerwheel

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOneShotFiresExactlyOnce(t *testing.T) {
	clk := &fakeClock{sec: 1000}
	rec := &recorder{}
	s := newTestStore(t, 10, 8, rec, clk)

	h, err := s.Schedule(5, 1, []byte("ping"))
	require.NoError(t, err)

	clk.sec = 1004
	s.Advance()
	require.Empty(t, rec.handles)

	clk.sec = 1005
	s.Advance()
	require.Equal(t, []Handle{h}, rec.handles)
	require.Equal(t, 0, s.Len())

	_, err = s.ExpireAt(h)
	require.ErrorIs(t, err, ErrStaleHandle)
	require.ErrorIs(t, s.Cancel(h), ErrStaleHandle)

	clk.sec = 1100
	s.Advance()
	require.Len(t, rec.handles, 1)
}

func TestRepeatingFiresOnEveryMultiple(t *testing.T) {
	clk := &fakeClock{sec: 1000}
	rec := &recorder{}
	s := newTestStore(t, 10, 0, rec, clk)

	h, err := s.Schedule(3, 0, nil)
	require.NoError(t, err)

	for sec := int64(1001); sec <= 1012; sec++ {
		clk.sec = sec
		s.Advance()
	}
	// Due at 1003, 1006, 1009, 1012.
	require.Len(t, rec.handles, 4)
	require.Equal(t, 1, s.Len())

	at, err := s.ExpireAt(h)
	require.NoError(t, err)
	require.Equal(t, int64(1015), at)
	require.NoError(t, s.Cancel(h))
}

// Bounded-repeat walkthrough: interval 5, budget 3, scheduled at t=0. One
// call at t=5 fires once; a catch-up call at t=15 fires at both 10 and 15,
// exhausting the budget and retiring the handle.
func TestBoundedRepeatCatchUp(t *testing.T) {
	clk := &fakeClock{sec: 0}
	rec := &recorder{}
	s := newTestStore(t, 10, 4, rec, clk)

	h, err := s.Schedule(5, 3, []byte("x"))
	require.NoError(t, err)

	clk.sec = 5
	s.Advance()
	require.Len(t, rec.handles, 1)
	at, err := s.ExpireAt(h)
	require.NoError(t, err)
	require.Equal(t, int64(10), at)

	clk.sec = 15
	s.Advance()
	require.Len(t, rec.handles, 3)
	require.Equal(t, 0, s.Len())
	_, err = s.ExpireAt(h)
	require.ErrorIs(t, err, ErrStaleHandle)
}

func TestCatchUpBeyondOneRevolution(t *testing.T) {
	clk := &fakeClock{sec: 1000}
	rec := &recorder{}
	s := newTestStore(t, 80, 1, rec, clk)

	for i := 1; i <= BucketCount; i++ {
		_, err := s.Schedule(int64(i), 1, []byte{byte(i)})
		require.NoError(t, err)
	}

	// 130 elapsed seconds: more than two revolutions in one call. Every
	// timer fires exactly once, in nondecreasing expiry order.
	clk.sec = 1130
	s.Advance()
	require.Len(t, rec.handles, BucketCount)
	require.Equal(t, 0, s.Len())
	intervals := make([]int, 0, BucketCount)
	for _, p := range rec.payloads {
		intervals = append(intervals, int(p[0]))
	}
	require.True(t, sort.IntsAreSorted(intervals), "fired out of expiry order: %v", intervals)
}

func TestCatchUpRepeatingFiresPerMultiple(t *testing.T) {
	clk := &fakeClock{sec: 1000}
	rec := &recorder{}
	s := newTestStore(t, 4, 0, rec, clk)

	h, err := s.Schedule(7, 0, nil)
	require.NoError(t, err)

	clk.sec = 1070
	s.Advance()
	// Due at 1007, 1014, ..., 1070.
	require.Len(t, rec.handles, 10)

	at, err := s.ExpireAt(h)
	require.NoError(t, err)
	require.Equal(t, int64(1077), at)
}

func TestEmptyWheelResynchronizes(t *testing.T) {
	clk := &fakeClock{sec: 1000}
	rec := &recorder{}
	s := newTestStore(t, 4, 0, rec, clk)

	// A long idle gap with nothing pending must not walk stale buckets.
	clk.sec = 5000
	s.Advance()
	require.Empty(t, rec.handles)

	_, err := s.Schedule(2, 1, nil)
	require.NoError(t, err)
	clk.sec = 5002
	s.Advance()
	require.Len(t, rec.handles, 1)
}

func TestAdvanceIgnoresBackwardClock(t *testing.T) {
	clk := &fakeClock{sec: 1000}
	rec := &recorder{}
	s := newTestStore(t, 4, 0, rec, clk)

	_, err := s.Schedule(5, 1, nil)
	require.NoError(t, err)
	clk.sec = 990
	s.Advance()
	require.Empty(t, rec.handles)

	clk.sec = 1005
	s.Advance()
	require.Len(t, rec.handles, 1)
}

func TestCallbackCancelsItself(t *testing.T) {
	clk := &fakeClock{sec: 1000}
	fh := &fnHandler{}
	s := newTestStore(t, 4, 0, fh, clk)

	h, err := s.Schedule(2, 0, nil)
	require.NoError(t, err)

	fired := 0
	fh.fn = func(got Handle, _ []byte) {
		fired++
		require.Equal(t, h, got)
		require.NoError(t, s.Cancel(got))
	}

	clk.sec = 1002
	s.Advance()
	require.Equal(t, 1, fired)
	require.Equal(t, 0, s.Len())

	// The repeating timer is gone despite an unbounded budget.
	clk.sec = 1010
	s.Advance()
	require.Equal(t, 1, fired)
}

func TestCallbackSchedulesNewTimer(t *testing.T) {
	clk := &fakeClock{sec: 1000}
	fh := &fnHandler{}
	s := newTestStore(t, 4, 0, fh, clk)

	_, err := s.Schedule(1, 1, nil)
	require.NoError(t, err)

	var chained Handle
	fired := 0
	fh.fn = func(Handle, []byte) {
		fired++
		if fired == 1 {
			var err error
			chained, err = s.Schedule(3, 1, nil)
			require.NoError(t, err)
		}
	}

	clk.sec = 1001
	s.Advance()
	require.Equal(t, 1, fired)
	at, err := s.ExpireAt(chained)
	require.NoError(t, err)
	require.Equal(t, int64(1004), at)

	clk.sec = 1004
	s.Advance()
	require.Equal(t, 2, fired)
	require.Equal(t, 0, s.Len())
}

// A callback that frees both its own timer and the traversal's latched next
// node breaks the bucket's chain: the stranded remainder is skipped for this
// pass and fires one revolution later. This degraded behavior is deliberate.
func TestCancelOfLatchedNextDefersRestOfBucket(t *testing.T) {
	clk := &fakeClock{sec: 1000}
	fh := &fnHandler{}
	s := newTestStore(t, 8, 1, fh, clk)

	// Head insertion puts the bucket list in reverse scheduling order:
	// c -> b -> a.
	a, err := s.Schedule(5, 1, []byte("a"))
	require.NoError(t, err)
	b, err := s.Schedule(5, 1, []byte("b"))
	require.NoError(t, err)
	_, err = s.Schedule(5, 1, []byte("c"))
	require.NoError(t, err)

	var fired []string
	fh.fn = func(got Handle, payload []byte) {
		fired = append(fired, string(payload))
		if len(fired) == 1 {
			require.NoError(t, s.Cancel(got)) // self
			require.NoError(t, s.Cancel(b))   // the latched next
		}
	}

	clk.sec = 1005
	s.Advance()
	require.Equal(t, []string{"c"}, fired)
	require.Equal(t, 1, s.Len())

	// a is stranded until its bucket index comes around again.
	clk.sec = 1064
	s.Advance()
	require.Equal(t, []string{"c"}, fired)
	clk.sec = 1065
	s.Advance()
	require.Equal(t, []string{"c", "a"}, fired)
	require.Equal(t, 0, s.Len())

	require.ErrorIs(t, s.Cancel(a), ErrStaleHandle)
}

// A callback canceling only the latched next leaves the fired node in place;
// its relink re-reads the repaired chain and traversal continues unharmed.
func TestCancelOfNextByLiveNodeRepairsChain(t *testing.T) {
	clk := &fakeClock{sec: 1000}
	fh := &fnHandler{}
	s := newTestStore(t, 8, 1, fh, clk)

	a, err := s.Schedule(5, 1, []byte("a"))
	require.NoError(t, err)
	b, err := s.Schedule(5, 1, []byte("b"))
	require.NoError(t, err)
	c, err := s.Schedule(5, 0, []byte("c"))
	require.NoError(t, err)

	var fired []string
	fh.fn = func(got Handle, payload []byte) {
		fired = append(fired, string(payload))
		if got == c {
			// b is the node latched as c's successor. c stays live, so its
			// relink re-reads the repaired chain and still reaches a.
			require.NoError(t, s.Cancel(b))
		}
	}

	clk.sec = 1005
	s.Advance()
	require.Equal(t, []string{"c", "a"}, fired)
	require.ErrorIs(t, s.Cancel(a), ErrStaleHandle)
	// c repeats, so it is still live.
	require.Equal(t, 1, s.Len())
}
