package prometheus

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/0xsend/distributor/internal/logger"
	"github.com/0xsend/distributor/pkg/metrics/metricsTypes"
	"github.com/stretchr/testify/assert"
)

func Test_PrometheusMetricsClient(t *testing.T) {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	assert.Nil(t, err)

	pmc, err := NewPrometheusMetricsClient(&PrometheusMetricsConfig{
		Metrics: metricsTypes.MetricTypes,
	}, l)
	assert.Nil(t, err)

	t.Run("accepts all expected labels", func(t *testing.T) {
		err := pmc.hasUnexpectedLabels(metricsTypes.MetricsType_Incr, metricsTypes.Metric_Incr_HttpRequest, []metricsTypes.MetricsLabel{
			{Name: "method", Value: "GET"},
			{Name: "path", Value: "/health"},
			{Name: "status_code", Value: "200"},
		})
		assert.Nil(t, err)
	})
	t.Run("accepts a subset of expected labels", func(t *testing.T) {
		err := pmc.hasUnexpectedLabels(metricsTypes.MetricsType_Incr, metricsTypes.Metric_Incr_HttpRequest, []metricsTypes.MetricsLabel{
			{Name: "method", Value: "GET"},
		})
		assert.Nil(t, err)
	})
	t.Run("rejects unexpected labels", func(t *testing.T) {
		err := pmc.hasUnexpectedLabels(metricsTypes.MetricsType_Gauge, metricsTypes.Metric_Gauge_SharesCalculated, []metricsTypes.MetricsLabel{
			{Name: "distributionId", Value: "5"},
			{Name: "surprise", Value: "value"},
		})
		assert.NotNil(t, err)
	})

	t.Run("scrape endpoint exposes recorded metrics", func(t *testing.T) {
		err := pmc.Incr(metricsTypes.Metric_Incr_DistributionProcessed, []metricsTypes.MetricsLabel{
			{Name: "hasError", Value: "false"},
		}, 1)
		assert.Nil(t, err)

		ps := NewPrometheusServer(&PrometheusServerConfig{Port: 2112}, l)
		srv := httptest.NewServer(ps.Handler())
		defer srv.Close()

		res, err := http.Get(srv.URL + "/metrics")
		assert.Nil(t, err)
		defer res.Body.Close()
		assert.Equal(t, http.StatusOK, res.StatusCode)

		body, err := io.ReadAll(res.Body)
		assert.Nil(t, err)
		assert.True(t, strings.Contains(string(body), "distributionProcessed"))
	})
}
