package metricsTypes

import "time"

type IMetricsClient interface {
	Incr(name string, labels []MetricsLabel, value float64) error
	Gauge(name string, value float64, labels []MetricsLabel) error
	Timing(name string, value time.Duration, labels []MetricsLabel) error
	Flush()
}

type MetricsLabel struct {
	Name  string
	Value string
}

type MetricsType string

var (
	MetricsType_Incr   MetricsType = "incr"
	MetricsType_Gauge  MetricsType = "gauge"
	MetricsType_Timing MetricsType = "timing"
)

type MetricsTypeConfig struct {
	Name   string
	Labels []string
}

var (
	Metric_Incr_DistributionProcessed = "distributionProcessed"
	Metric_Incr_FixedPoolExhausted    = "fixedPoolExhausted"
	Metric_Incr_HttpRequest           = "rpc.http.request"
	Metric_Incr_ProofCacheHit         = "proofs.cache.hit"
	Metric_Incr_ProofCacheMiss        = "proofs.cache.miss"

	Metric_Gauge_SharesCalculated = "distribution.shares"

	Metric_Timing_ShareCalcDuration    = "distribution.calc.duration"
	Metric_Timing_BalanceFetchDuration = "distribution.balanceFetch.duration"
	Metric_Timing_HttpDuration         = "rpc.http.duration"
)

var MetricTypes = map[MetricsType][]MetricsTypeConfig{
	MetricsType_Incr: {
		MetricsTypeConfig{
			Name: Metric_Incr_DistributionProcessed,
			Labels: []string{
				"hasError",
			},
		},
		MetricsTypeConfig{
			Name: Metric_Incr_FixedPoolExhausted,
			Labels: []string{
				"distributionId",
			},
		},
		MetricsTypeConfig{
			Name: Metric_Incr_HttpRequest,
			Labels: []string{
				"method",
				"path",
				"status_code",
			},
		},
		MetricsTypeConfig{
			Name: Metric_Incr_ProofCacheHit,
			Labels: []string{
				"distributionId",
			},
		},
		MetricsTypeConfig{
			Name: Metric_Incr_ProofCacheMiss,
			Labels: []string{
				"distributionId",
			},
		},
	},
	MetricsType_Gauge: {
		MetricsTypeConfig{
			Name: Metric_Gauge_SharesCalculated,
			Labels: []string{
				"distributionId",
			},
		},
	},
	MetricsType_Timing: {
		MetricsTypeConfig{
			Name: Metric_Timing_ShareCalcDuration,
			Labels: []string{
				"distributionId",
			},
		},
		MetricsTypeConfig{
			Name: Metric_Timing_BalanceFetchDuration,
			Labels: []string{
				"distributionId",
			},
		},
		MetricsTypeConfig{
			Name: Metric_Timing_HttpDuration,
			Labels: []string{
				"method",
				"path",
				"status_code",
			},
		},
	},
}
