package timerd

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"siody.home/shmtimer/internal/memseg"
	"siody.home/shmtimer/internal/workgroup"
	"siody.home/shmtimer/timerwheel"
)

// The tick loop must be joined before the segment is unmapped, even with a
// zero tick period keeping Advance hot on the mapped region.
func TestShutdownJoinsTickLoopBeforeUnmap(t *testing.T) {
	for i := 0; i < 50; i++ {
		seg, err := memseg.Open(filepath.Join(t.TempDir(), "timerd.seg"), timerwheel.TotalSize(8, 16))
		require.NoError(t, err)

		svc := &service{seg: seg}
		svc.store, err = timerwheel.New(seg.Bytes(), 8, 16,
			timerwheel.HandlerFunc(func(timerwheel.Handle, []byte) {}))
		require.NoError(t, err)

		svc.ticker = workgroup.New(1, func() {
			svc.mu.Lock()
			svc.store.Advance()
			svc.mu.Unlock()
		})
		time.Sleep(time.Millisecond)
		require.NoError(t, svc.shutdown())
	}
}
