// Package rpc hosts the daemon's HTTP surface: admin handlers, telemetry
// endpoints, and the readiness probe, on one shared mux with optional TLS.
package rpc

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/http/httputil"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opencensus.io/plugin/ochttp"
	"go.opencensus.io/plugin/ochttp/propagation/b3"

	"siody.home/shmtimer/internal/config"
	"siody.home/shmtimer/internal/logging"
	"siody.home/shmtimer/internal/telemetry"
)

const (
	// ConfigNameEnableRPCLogging is the config name for enabling request logging.
	ConfigNameEnableRPCLogging = "logging.rpc"

	configNameServerPublicCertificateFile = "api.tls.certificateFile"
	configNameServerPrivateKeyFile        = "api.tls.privateKey"
	configNameServerRootCertificatePath   = "api.tls.rootCertificateFile"

	// https://http2.github.io/http2-spec/#rfc.section.3.1
	http2WithTLSVersionID = "h2"
)

var serverLogger = logrus.WithFields(logrus.Fields{
	"app":       "shmtimer",
	"component": "server",
})

// HTTPHandler registers handlers on the server's mux.
type HTTPHandler func(mux *http.ServeMux)

// ServerParams holds everything required to start the HTTP server.
type ServerParams struct {
	// ServeMux is the router for the HTTP server. Use this, or AddHandleFunc,
	// to serve additional pages.
	ServeMux *http.ServeMux

	handlersForHTTP        []HTTPHandler
	handlersForHealthCheck []func(context.Context) error

	httpListener net.Listener

	// Root CA public certificate in PEM format. If this is the same as the
	// public certificate then the certificate is not backed by a CA.
	rootCaPublicCertificateFileData []byte
	publicCertificateFileData       []byte
	privateKeyFileData              []byte

	enableRequestLogging        bool
	enableRequestPayloadLogging bool
	enableMetrics               bool
}

// NewServerParamsFromConfig returns server params initialized from the
// configuration file.
func NewServerParamsFromConfig(cfg config.View, prefix string, listen func(network, address string) (net.Listener, error)) (*ServerParams, error) {
	httpL, err := listen("tcp", fmt.Sprintf(":%d", cfg.GetInt(prefix+".httpport")))
	if err != nil {
		return nil, errors.Wrap(err, "can't start listener for http")
	}

	p := NewServerParamsFromListener(httpL)

	certFile := cfg.GetString(configNameServerPublicCertificateFile)
	privateKeyFile := cfg.GetString(configNameServerPrivateKeyFile)
	if len(certFile) > 0 && len(privateKeyFile) > 0 {
		serverLogger.Debugf("Loading TLS certificate (%s) and private key (%s)", certFile, privateKeyFile)
		publicCertData, err := os.ReadFile(certFile)
		if err != nil {
			p.invalidate()
			return nil, errors.Wrapf(err, "cannot read TLS server public certificate file %s", certFile)
		}
		privateKeyData, err := os.ReadFile(privateKeyFile)
		if err != nil {
			p.invalidate()
			return nil, errors.Wrapf(err, "cannot read TLS server private key file %s", privateKeyFile)
		}
		// Without a root CA certificate the public certificate is its own
		// trusted root.
		rootPublicCertData := publicCertData
		if rootCertFile := cfg.GetString(configNameServerRootCertificatePath); len(rootCertFile) > 0 {
			serverLogger.Debugf("Loading root CA TLS certificate (%s)", rootCertFile)
			rootPublicCertData, err = os.ReadFile(rootCertFile)
			if err != nil {
				p.invalidate()
				return nil, errors.Wrapf(err, "cannot read TLS server root certificate file %s", rootCertFile)
			}
		}
		p.SetTLSConfiguration(rootPublicCertData, publicCertData, privateKeyData)
	}

	p.enableMetrics = cfg.GetBool(telemetry.ConfigNameEnableMetrics)
	p.enableRequestLogging = cfg.GetBool(ConfigNameEnableRPCLogging)
	p.enableRequestPayloadLogging = logging.IsDebugEnabled(cfg)
	return p, nil
}

// NewServerParamsFromListener returns server params bound to an existing
// listener, for tests and embedding.
func NewServerParamsFromListener(httpL net.Listener) *ServerParams {
	return &ServerParams{
		ServeMux:     http.NewServeMux(),
		httpListener: httpL,
	}
}

// SetTLSConfiguration configures the server to run in TLS mode.
func (p *ServerParams) SetTLSConfiguration(rootCaPublicCertificateFileData, publicCertificateFileData, privateKeyFileData []byte) *ServerParams {
	p.rootCaPublicCertificateFileData = rootCaPublicCertificateFileData
	if len(p.rootCaPublicCertificateFileData) == 0 {
		p.rootCaPublicCertificateFileData = publicCertificateFileData
	}
	p.publicCertificateFileData = publicCertificateFileData
	p.privateKeyFileData = privateKeyFileData
	return p
}

func (p *ServerParams) usingTLS() bool {
	return len(p.publicCertificateFileData) > 0
}

// AddHandleFunc registers an HTTP handler set on the shared mux.
func (p *ServerParams) AddHandleFunc(handler HTTPHandler) {
	if handler != nil {
		p.handlersForHTTP = append(p.handlersForHTTP, handler)
	}
}

// AddHealthCheckFunc adds a readiness probe served on the health endpoint.
func (p *ServerParams) AddHealthCheckFunc(handlerFunc func(context.Context) error) {
	if handlerFunc != nil {
		p.handlersForHealthCheck = append(p.handlersForHealthCheck, handlerFunc)
	}
}

// invalidate closes the listener that would otherwise leak when
// initialization fails partway.
func (p *ServerParams) invalidate() {
	if err := p.httpListener.Close(); err != nil {
		serverLogger.Errorf("error closing http listener, %s", err)
	}
}

// Server hosts the daemon's HTTP(S) endpoints.
type Server struct {
	httpServer *http.Server
}

// Start binds the registered handlers and serves in the background.
func (s *Server) Start(p *ServerParams) error {
	mux := p.ServeMux
	for _, handlerFunc := range p.handlersForHTTP {
		handlerFunc(mux)
	}
	mux.Handle(telemetry.HealthCheckEndpoint, telemetry.NewHealthCheck(p.handlersForHealthCheck))

	s.httpServer = &http.Server{
		Addr:    p.httpListener.Addr().String(),
		Handler: instrumentHTTPHandler(mux, p),
	}

	listener := p.httpListener
	scheme := "HTTP"
	if p.usingTLS() {
		rootCaCert, err := trustedCertificateFromFileData(p.rootCaPublicCertificateFileData)
		if err != nil {
			return errors.WithStack(err)
		}
		tlsCertificate, err := certificateFromFileData(p.publicCertificateFileData, p.privateKeyFileData)
		if err != nil {
			return errors.WithStack(err)
		}
		s.httpServer.TLSConfig = &tls.Config{
			Certificates: []tls.Certificate{*tlsCertificate},
			ClientCAs:    rootCaCert,
			NextProtos:   []string{http2WithTLSVersionID},
		}
		listener = tls.NewListener(p.httpListener, s.httpServer.TLSConfig)
		scheme = "HTTPS"
	}

	go func() {
		serverLogger.Infof("Serving %s: %s", scheme, p.httpListener.Addr().String())
		hErr := s.httpServer.Serve(listener)
		if hErr != nil && hErr != http.ErrServerClosed {
			serverLogger.Debugf("error serving HTTP: %s", hErr)
		}
	}()
	return nil
}

// Stop drains in-flight requests and shuts the server down.
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(context.Background())
}

type loggingHTTPHandler struct {
	handler     http.Handler
	logPayloads bool
}

func (l *loggingHTTPHandler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	dumpReqLog, dumpReqErr := httputil.DumpRequest(req, l.logPayloads)
	fields := logrus.Fields{
		"method": req.Method,
		"url":    req.URL,
		"proto":  req.Proto,
	}
	if dumpReqErr == nil {
		serverLogger.WithFields(fields).Debug(string(dumpReqLog))
	} else {
		serverLogger.WithError(dumpReqErr).WithFields(fields).Debug("cannot dump request")
	}
	l.handler.ServeHTTP(w, req)
}

func instrumentHTTPHandler(handler http.Handler, params *ServerParams) http.Handler {
	if params.enableMetrics {
		handler = &ochttp.Handler{
			Handler:     handler,
			Propagation: &b3.HTTPFormat{},
		}
	}
	if params.enableRequestLogging {
		handler = &loggingHTTPHandler{
			handler:     handler,
			logPayloads: params.enableRequestPayloadLogging,
		}
	}
	return handler
}
