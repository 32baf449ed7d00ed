// Package appmain contains the common application initialization code for
// shmtimer servers.
package appmain

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"siody.home/shmtimer/internal/config"
	"siody.home/shmtimer/internal/logging"
	"siody.home/shmtimer/internal/rpc"
	"siody.home/shmtimer/internal/telemetry"
)

var logger = logrus.WithFields(logrus.Fields{
	"app":       "shmtimer",
	"component": "appmain",
})

// Bind attaches a service's handlers, probes, and closers to the app.
type Bind func(p *Params, b *Bindings) error

// Params are the read-only pieces a service binding may consume.
type Params struct {
	config      config.View
	serviceName string
}

// Config returns the application configuration.
func (p *Params) Config() config.View { return p.config }

// ServiceName returns the name this binary runs as.
func (p *Params) ServiceName() string { return p.serviceName }

// App tracks cleanup work registered during binding.
type App struct {
	closers []func() error
}

// AddCloser registers shutdown work, run in reverse registration order.
func (a *App) AddCloser(c func()) {
	a.closers = append(a.closers, func() error {
		c()
		return nil
	})
}

// AddCloserErr registers shutdown work that can fail.
func (a *App) AddCloserErr(c func() error) {
	a.closers = append(a.closers, c)
}

// Stop runs all closers. The first error is returned, but every closer runs.
func (a *App) Stop() error {
	var firstErr error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.closers = nil
	return firstErr
}

// Bindings is the registration surface handed to a service's Bind.
type Bindings struct {
	a  *App
	sp *rpc.ServerParams
}

// AddHandleFunc registers HTTP handlers on the server's shared mux.
func (b *Bindings) AddHandleFunc(handler rpc.HTTPHandler) {
	b.sp.AddHandleFunc(handler)
}

// AddHealthCheckFunc adds a readiness probe.
func (b *Bindings) AddHealthCheckFunc(f func(ctx context.Context) error) {
	b.sp.AddHealthCheckFunc(f)
}

// TelemetryHandle binds a handler on the telemetry endpoints.
func (b *Bindings) TelemetryHandle(pattern string, handler http.Handler) {
	b.sp.ServeMux.Handle(pattern, handler)
}

// TelemetryHandleFunc binds a handler function on the telemetry endpoints.
func (b *Bindings) TelemetryHandleFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	b.sp.ServeMux.HandleFunc(pattern, handler)
}

// AddCloser registers shutdown work.
func (b *Bindings) AddCloser(c func()) { b.a.AddCloser(c) }

// AddCloserErr registers shutdown work that can fail.
func (b *Bindings) AddCloserErr(c func() error) { b.a.AddCloserErr(c) }

// RunApplication reads configuration, binds the service, serves until
// SIGINT/SIGTERM, then runs the registered closers. For use in main.
func RunApplication(serviceName string, bindService Bind) {
	a, err := run(serviceName, bindService, config.Read)
	if err != nil {
		logger.Fatal(err)
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	s := <-signals
	logger.WithFields(logrus.Fields{"signal": s.String()}).Info("shutting down")

	if err := a.Stop(); err != nil {
		logger.Fatal(err)
	}
	logger.Info("Application stopped successfully.")
}

// run is used internally, and separate from RunApplication for tests.
func run(serviceName string, bindService Bind, getCfg func() (config.View, error)) (*App, error) {
	cfg, err := getCfg()
	if err != nil {
		return nil, err
	}
	logging.ConfigureLogging(cfg)

	a := &App{}
	p := &Params{
		config:      cfg,
		serviceName: serviceName,
	}

	sp, err := rpc.NewServerParamsFromConfig(cfg, "api", net.Listen)
	if err != nil {
		return nil, err
	}
	b := &Bindings{a: a, sp: sp}

	if err := telemetry.Setup(p, b); err != nil {
		stopIgnoringErr(a)
		return nil, err
	}
	if err := bindService(p, b); err != nil {
		stopIgnoringErr(a)
		return nil, err
	}

	server := &rpc.Server{}
	if err := server.Start(sp); err != nil {
		stopIgnoringErr(a)
		return nil, err
	}
	a.AddCloserErr(server.Stop)
	return a, nil
}

func stopIgnoringErr(a *App) {
	// Don't care about additional errors while bailing out.
	_ = a.Stop()
}
