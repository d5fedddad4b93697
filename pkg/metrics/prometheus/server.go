package prometheus

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type PrometheusServerConfig struct {
	Port int
}

// PrometheusServer exposes the default registry on a standalone scrape port
// for processes that have no HTTP surface of their own.
type PrometheusServer struct {
	logger *zap.Logger
	config *PrometheusServerConfig
	server *http.Server
}

func NewPrometheusServer(config *PrometheusServerConfig, l *zap.Logger) *PrometheusServer {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	return &PrometheusServer{
		logger: l,
		config: config,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", config.Port),
			Handler: mux,
		},
	}
}

// Handler returns the scrape mux.
func (ps *PrometheusServer) Handler() http.Handler {
	return ps.server.Handler
}

// Start serves the scrape endpoint in the background and shuts it down when
// quit receives.
func (ps *PrometheusServer) Start(quit chan bool) error {
	go func() {
		ps.logger.Sugar().Infow("Starting prometheus server", zap.Int("port", ps.config.Port))
		if err := ps.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			ps.logger.Sugar().Errorw("Prometheus server failed", zap.Error(err))
		}
	}()
	go func() {
		<-quit
		ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
		defer cancel()
		if err := ps.server.Shutdown(ctx); err != nil {
			ps.logger.Sugar().Errorw("Failed to shut down prometheus server", zap.Error(err))
		}
	}()
	return nil
}
