// Package timerd is the timer daemon: a persistent timer wheel in an mmap'd
// segment file, ticked once per period, with an HTTP admin API. Restarting
// the daemon against the same segment resumes every pending timer.
package timerd

import (
	"bytes"
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"siody.home/shmtimer/internal/appmain"
	"siody.home/shmtimer/internal/memseg"
	"siody.home/shmtimer/internal/workgroup"
	"siody.home/shmtimer/timerwheel"
)

var logger = logrus.WithFields(logrus.Fields{
	"app":       "shmtimer",
	"component": "timerd",
})

// service wraps the store with the external locking the engine requires:
// the tick goroutine and the HTTP handlers never touch the wheel without mu.
type service struct {
	mu     sync.Mutex
	store  *timerwheel.Store
	seg    *memseg.Segment
	ticker *workgroup.Group
}

// Bind wires the daemon into the application: segment, store, tick loop,
// and admin handlers.
func Bind(p *appmain.Params, b *appmain.Bindings) error {
	cfg := p.Config()
	capacity := cfg.GetInt("store.capacity")
	payloadSize := cfg.GetInt("store.payloadSize")
	segmentFile := cfg.GetString("store.segmentFile")
	tickPeriod := cfg.GetDuration("store.tickPeriod")

	seg, err := memseg.Open(segmentFile, timerwheel.TotalSize(capacity, payloadSize))
	if err != nil {
		return err
	}
	svc := &service{seg: seg}
	handler := timerwheel.HandlerFunc(svc.onTimeout)
	if seg.Fresh() {
		svc.store, err = timerwheel.New(seg.Bytes(), capacity, payloadSize, handler)
	} else {
		svc.store, err = timerwheel.Attach(seg.Bytes(), capacity, payloadSize, handler)
	}
	if err != nil {
		seg.Close()
		return errors.Wrapf(err, "cannot open timer store in %s", segmentFile)
	}
	logger.WithFields(logrus.Fields{
		"segment":  segmentFile,
		"fresh":    seg.Fresh(),
		"pending":  svc.store.Len(),
		"capacity": svc.store.Cap(),
	}).Info("timer store ready")

	svc.ticker = workgroup.New(1, func() {
		svc.mu.Lock()
		svc.store.Advance()
		svc.mu.Unlock()
		time.Sleep(tickPeriod)
	})
	b.AddCloserErr(svc.shutdown)

	b.AddHealthCheckFunc(func(context.Context) error { return nil })
	b.AddHandleFunc(func(mux *http.ServeMux) {
		mux.HandleFunc("/v1/timers", svc.handleTimers)
		mux.HandleFunc("/v1/stats", svc.handleStats)
	})
	return nil
}

// shutdown joins the tick loop before the segment goes away; Advance must
// never run against an unmapped region.
func (s *service) shutdown() error {
	s.ticker.Close()
	if err := s.seg.Sync(); err != nil {
		s.seg.Close()
		return err
	}
	return s.seg.Close()
}

func (s *service) onTimeout(h timerwheel.Handle, payload []byte) {
	logger.WithFields(logrus.Fields{
		"handle":  uint64(h),
		"payload": string(bytes.TrimRight(payload, "\x00")),
	}).Info("timer fired")
}
