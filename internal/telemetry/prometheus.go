package telemetry

import (
	ocPrometheus "contrib.go.opencensus.io/exporter/prometheus"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"go.opencensus.io/stats/view"
)

const (
	// ConfigNameEnableMetrics indicates that telemetry is enabled.
	ConfigNameEnableMetrics = "telemetry.prometheus.enable"
)

func bindPrometheus(p Params, b Bindings) error {
	cfg := p.Config()

	if !cfg.GetBool(ConfigNameEnableMetrics) {
		logger.Info("Prometheus Metrics: Disabled")
		return nil
	}

	endpoint := cfg.GetString("telemetry.prometheus.endpoint")
	logger.WithFields(logrus.Fields{
		"endpoint": endpoint,
	}).Info("Prometheus Metrics: ENABLED")

	registry := prometheus.NewRegistry()
	if err := registry.Register(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{})); err != nil {
		return errors.Wrap(err, "failed to register process collector")
	}
	if err := registry.Register(prometheus.NewGoCollector()); err != nil {
		return errors.Wrap(err, "failed to register go collector")
	}

	promExporter, err := ocPrometheus.NewExporter(ocPrometheus.Options{
		Namespace: "",
		Registry:  registry,
	})
	if err != nil {
		return errors.Wrap(err, "failed to initialize OpenCensus exporter to Prometheus")
	}

	view.RegisterExporter(promExporter)
	b.AddCloser(func() {
		view.UnregisterExporter(promExporter)
	})

	b.TelemetryHandle(endpoint, promExporter)
	return nil
}
