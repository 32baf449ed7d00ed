package timerd

import (
	"net/http"
	"strconv"

	"github.com/pkg/errors"
	"github.com/sugawarayuuta/sonnet"

	"siody.home/shmtimer/timerwheel"
)

type scheduleRequest struct {
	IntervalSec int64  `json:"interval_sec"`
	MaxFires    int    `json:"max_fires"`
	Payload     string `json:"payload"`
}

type timerResponse struct {
	Handle   uint64 `json:"handle"`
	ExpireAt int64  `json:"expire_at"`
}

type statsResponse struct {
	Pending  int `json:"pending"`
	Capacity int `json:"capacity"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := sonnet.NewEncoder(w).Encode(body); err != nil {
		logger.WithError(err).Debug("cannot write response")
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, timerwheel.ErrInvalidParameter),
		errors.Is(err, timerwheel.ErrClockRegression):
		status = http.StatusBadRequest
	case errors.Is(err, timerwheel.ErrInvalidHandle),
		errors.Is(err, timerwheel.ErrStaleHandle):
		status = http.StatusNotFound
	case errors.Is(err, timerwheel.ErrCapacityExceeded):
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// handleTimers serves POST (schedule), GET (inspect) and DELETE (cancel) on
// /v1/timers. GET and DELETE identify the timer by the handle query param.
func (s *service) handleTimers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.scheduleTimer(w, r)
	case http.MethodGet:
		s.inspectTimer(w, r)
	case http.MethodDelete:
		s.cancelTimer(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *service) scheduleTimer(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if err := sonnet.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return
	}
	s.mu.Lock()
	h, err := s.store.Schedule(req.IntervalSec, req.MaxFires, []byte(req.Payload))
	var expireAt int64
	if err == nil {
		expireAt, err = s.store.ExpireAt(h)
	}
	s.mu.Unlock()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, timerResponse{Handle: uint64(h), ExpireAt: expireAt})
}

func (s *service) inspectTimer(w http.ResponseWriter, r *http.Request) {
	h, ok := handleParam(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	expireAt, err := s.store.ExpireAt(h)
	s.mu.Unlock()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, timerResponse{Handle: uint64(h), ExpireAt: expireAt})
}

func (s *service) cancelTimer(w http.ResponseWriter, r *http.Request) {
	h, ok := handleParam(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	err := s.store.Cancel(h)
	s.mu.Unlock()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (s *service) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.mu.Lock()
	resp := statsResponse{Pending: s.store.Len(), Capacity: s.store.Cap()}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, resp)
}

func handleParam(w http.ResponseWriter, r *http.Request) (timerwheel.Handle, bool) {
	raw := r.URL.Query().Get("handle")
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "handle query param must be an unsigned integer"})
		return 0, false
	}
	return timerwheel.Handle(v), true
}
