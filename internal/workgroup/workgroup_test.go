package workgroup

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGroupRunsAndStops(t *testing.T) {
	var ticks int64
	g := New(1, func() {
		atomic.AddInt64(&ticks, 1)
		time.Sleep(time.Millisecond)
	})

	require.Eventually(t, func() bool {
		return atomic.LoadInt64(&ticks) > 0
	}, time.Second, time.Millisecond)

	g.Close()
	after := atomic.LoadInt64(&ticks)
	time.Sleep(10 * time.Millisecond)
	require.Equal(t, after, atomic.LoadInt64(&ticks))
}

func TestGroupResize(t *testing.T) {
	var ticks int64
	g := New(0, func() {
		atomic.AddInt64(&ticks, 1)
		time.Sleep(time.Millisecond)
	})
	time.Sleep(5 * time.Millisecond)
	require.Zero(t, atomic.LoadInt64(&ticks))

	g.Resize(2)
	require.Eventually(t, func() bool {
		return atomic.LoadInt64(&ticks) > 0
	}, time.Second, time.Millisecond)
	g.Close()
}

func TestCloseOnEmptyGroup(t *testing.T) {
	g := New(0, func() {})
	g.Close()
}
