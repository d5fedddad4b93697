package metrics

import (
	"time"

	"github.com/0xsend/distributor/internal/config"
	"github.com/0xsend/distributor/pkg/metrics/dogstatsd"
	"github.com/0xsend/distributor/pkg/metrics/metricsTypes"
	"github.com/0xsend/distributor/pkg/metrics/prometheus"
	"go.uber.org/zap"
)

type MetricsSinkConfig struct{}

// MetricsSink fans metrics out to every enabled backend client.
type MetricsSink struct {
	config  *MetricsSinkConfig
	clients []metricsTypes.IMetricsClient
}

func NewMetricsSink(config *MetricsSinkConfig, clients []metricsTypes.IMetricsClient) (*MetricsSink, error) {
	if clients == nil {
		clients = make([]metricsTypes.IMetricsClient, 0)
	}
	return &MetricsSink{
		config:  config,
		clients: clients,
	}, nil
}

func (ms *MetricsSink) Incr(name string, labels []metricsTypes.MetricsLabel, value float64) error {
	for _, client := range ms.clients {
		if err := client.Incr(name, labels, value); err != nil {
			return err
		}
	}
	return nil
}

func (ms *MetricsSink) Gauge(name string, value float64, labels []metricsTypes.MetricsLabel) error {
	for _, client := range ms.clients {
		if err := client.Gauge(name, value, labels); err != nil {
			return err
		}
	}
	return nil
}

func (ms *MetricsSink) Timing(name string, value time.Duration, labels []metricsTypes.MetricsLabel) error {
	for _, client := range ms.clients {
		if err := client.Timing(name, value, labels); err != nil {
			return err
		}
	}
	return nil
}

func (ms *MetricsSink) Flush() {
	for _, client := range ms.clients {
		client.Flush()
	}
}

// InitMetricsSinksFromConfig builds the set of metrics clients the config enables.
func InitMetricsSinksFromConfig(cfg *config.Config, l *zap.Logger) ([]metricsTypes.IMetricsClient, error) {
	clients := make([]metricsTypes.IMetricsClient, 0)

	if cfg.DataDogConfig.StatsdEnabled {
		dogClient, err := dogstatsd.NewDogStatsdMetricsClient(cfg.DataDogConfig.StatsdUrl, 1, l)
		if err != nil {
			return nil, err
		}
		clients = append(clients, dogClient)
	}

	if cfg.PrometheusConfig.Enabled {
		promClient, err := prometheus.NewPrometheusMetricsClient(&prometheus.PrometheusMetricsConfig{
			Metrics: metricsTypes.MetricTypes,
		}, l)
		if err != nil {
			return nil, err
		}
		clients = append(clients, promClient)
	}

	return clients, nil
}
