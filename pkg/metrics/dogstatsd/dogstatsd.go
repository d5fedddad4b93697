package dogstatsd

import (
	"fmt"
	"time"

	"github.com/DataDog/datadog-go/v5/statsd"
	"github.com/0xsend/distributor/pkg/metrics/metricsTypes"
	"github.com/0xsend/distributor/pkg/utils"
	"go.uber.org/zap"
)

type DogStatsdMetricsClient struct {
	statsd     *statsd.Client
	sampleRate float64
	logger     *zap.Logger
}

func NewDogStatsdMetricsClient(url string, sampleRate float64, l *zap.Logger) (*DogStatsdMetricsClient, error) {
	client, err := statsd.New(url, statsd.WithNamespace("distributor"))
	if err != nil {
		return nil, err
	}
	return &DogStatsdMetricsClient{
		statsd:     client,
		sampleRate: sampleRate,
		logger:     l,
	}, nil
}

func formatLabels(labels []metricsTypes.MetricsLabel) []string {
	return utils.Map(labels, func(label metricsTypes.MetricsLabel, i uint64) string {
		return fmt.Sprintf("%s:%s", label.Name, label.Value)
	})
}

func (dsc *DogStatsdMetricsClient) Incr(name string, labels []metricsTypes.MetricsLabel, value float64) error {
	return dsc.statsd.Incr(name, formatLabels(labels), dsc.sampleRate)
}

func (dsc *DogStatsdMetricsClient) Gauge(name string, value float64, labels []metricsTypes.MetricsLabel) error {
	return dsc.statsd.Gauge(name, value, formatLabels(labels), dsc.sampleRate)
}

func (dsc *DogStatsdMetricsClient) Timing(name string, value time.Duration, labels []metricsTypes.MetricsLabel) error {
	return dsc.statsd.Timing(name, value, formatLabels(labels), dsc.sampleRate)
}

func (dsc *DogStatsdMetricsClient) Flush() {
	if err := dsc.statsd.Flush(); err != nil {
		dsc.logger.Sugar().Errorw("Failed to flush statsd client", zap.Error(err))
	}
}
