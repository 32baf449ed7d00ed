// Package telemetry wires the OpenCensus pipeline for the daemon: the
// engine's views, the Prometheus exporter, and the health check endpoint.
package telemetry

import (
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/trace"

	"siody.home/shmtimer/internal/config"
	"siody.home/shmtimer/timerwheel"
)

var logger = logrus.WithFields(logrus.Fields{
	"app":       "shmtimer",
	"component": "telemetry",
})

// Params allows appmain to bind telemetry without a circular dependency.
type Params interface {
	Config() config.View
	ServiceName() string
}

// Bindings allows appmain to bind telemetry without a circular dependency.
type Bindings interface {
	TelemetryHandle(pattern string, handler http.Handler)
	TelemetryHandleFunc(pattern string, handler func(http.ResponseWriter, *http.Request))
	AddCloser(c func())
	AddCloserErr(c func() error)
}

// Setup configures the telemetry for the server.
func Setup(p Params, b Bindings) error {
	bindings := []func(p Params, b Bindings) error{
		configureOpenCensus,
		bindStoreViews,
		bindPrometheus,
	}
	for _, f := range bindings {
		if err := f(p, b); err != nil {
			return err
		}
	}
	return nil
}

func configureOpenCensus(p Params, b Bindings) error {
	// There's no way to undo these options, but the next startup will
	// override them.
	samplingFraction := p.Config().GetFloat64("telemetry.traceSamplingFraction")
	logger.WithFields(logrus.Fields{
		"samplingFraction": samplingFraction,
	}).Info("Tracing sampler fraction set")
	trace.ApplyConfig(trace.Config{DefaultSampler: trace.ProbabilitySampler(samplingFraction)})

	periodString := p.Config().GetString("telemetry.reportingPeriod")
	reportingPeriod, err := time.ParseDuration(periodString)
	if err != nil {
		return errors.Wrap(err, "unable to parse telemetry.reportingPeriod")
	}
	logger.WithFields(logrus.Fields{
		"reportingPeriod": reportingPeriod,
	}).Info("Telemetry reporting period set")
	view.SetReportingPeriod(reportingPeriod)
	return nil
}

// bindStoreViews registers the timer engine's counters so the exporter can
// see them.
func bindStoreViews(p Params, b Bindings) error {
	if err := view.Register(timerwheel.DefaultViews...); err != nil {
		return errors.Wrap(err, "failed to register timer wheel views")
	}
	b.AddCloser(func() {
		view.Unregister(timerwheel.DefaultViews...)
	})
	return nil
}
