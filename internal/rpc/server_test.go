package rpc

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestServerServesHandlersAndHealth(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	p := NewServerParamsFromListener(l)
	p.AddHandleFunc(func(mux *http.ServeMux) {
		mux.HandleFunc("/ping", func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte("pong"))
		})
	})
	p.AddHealthCheckFunc(func(context.Context) error { return nil })

	s := &Server{}
	require.NoError(t, s.Start(p))
	defer s.Stop()

	base := fmt.Sprintf("http://%s", l.Addr().String())

	resp, err := http.Get(base + "/ping")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.Equal(t, "pong", string(body))

	resp, err = http.Get(base + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServerReportsFailedProbe(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	p := NewServerParamsFromListener(l)
	p.AddHealthCheckFunc(func(context.Context) error {
		return fmt.Errorf("segment not mapped")
	})

	s := &Server{}
	require.NoError(t, s.Start(p))
	defer s.Stop()

	resp, err := http.Get(fmt.Sprintf("http://%s/healthz", l.Addr().String()))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
