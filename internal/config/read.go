package config

import (
	"errors"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

var logger = logrus.WithFields(logrus.Fields{
	"app":       "shmtimer",
	"component": "config",
})

// Read loads timerd.yaml from the working directory or /etc/shmtimer and
// watches it for changes. A missing file is not an error: every key has a
// default, so the daemon runs unconfigured.
func Read() (View, error) {
	v := viper.New()
	v.SetConfigName("timerd")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/shmtimer")

	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.rpc", false)
	v.SetDefault("api.httpport", 8080)
	v.SetDefault("telemetry.reportingPeriod", "1m")
	v.SetDefault("telemetry.traceSamplingFraction", 0.0)
	v.SetDefault("telemetry.prometheus.enable", true)
	v.SetDefault("telemetry.prometheus.endpoint", "/metrics")
	v.SetDefault("store.segmentFile", "timerd.seg")
	v.SetDefault("store.capacity", 4096)
	v.SetDefault("store.payloadSize", 64)
	v.SetDefault("store.tickPeriod", "1s")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		logger.Info("no timerd.yaml found, using defaults")
		return v, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(event fsnotify.Event) {
		logger.WithFields(logrus.Fields{
			"filename":  event.Name,
			"operation": event.Op.String(),
		}).Info("configuration file changed")
	})
	return v, nil
}
