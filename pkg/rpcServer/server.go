// Package rpcServer exposes the claim proof service over HTTP. It serves one
// JSON endpoint for proof requests plus the prometheus scrape endpoint.
package rpcServer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/0xsend/distributor/pkg/metrics"
	"github.com/0xsend/distributor/pkg/metrics/metricsTypes"
	"github.com/0xsend/distributor/pkg/proofs"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type RpcServerConfig struct {
	HttpPort int
}

type RpcServer struct {
	config      *RpcServerConfig
	proofsStore *proofs.ClaimProofsStore
	logger      *zap.Logger
	metricsSink *metrics.MetricsSink
}

func NewRpcServer(cfg *RpcServerConfig, ps *proofs.ClaimProofsStore, ms *metrics.MetricsSink, l *zap.Logger) *RpcServer {
	return &RpcServer{
		config:      cfg,
		proofsStore: ps,
		logger:      l,
		metricsSink: ms,
	}
}

type claimProofResponse struct {
	DistributionId uint64   `json:"distribution_id"`
	UserId         string   `json:"user_id"`
	Index          uint64   `json:"index"`
	Address        string   `json:"address"`
	Amount         string   `json:"amount"`
	Root           string   `json:"root"`
	Proof          []string `json:"proof"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (rs *RpcServer) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(rs.observe)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/api/v1/distributions/{distributionId}/proof", rs.handleClaimProof)

	return r
}

// observe records a count and duration for every request, labeled by the
// matched route pattern rather than the raw path.
func (rs *RpcServer) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		labels := []metricsTypes.MetricsLabel{
			{Name: "method", Value: r.Method},
			{Name: "path", Value: chi.RouteContext(r.Context()).RoutePattern()},
			{Name: "status_code", Value: strconv.Itoa(ww.Status())},
		}
		_ = rs.metricsSink.Incr(metricsTypes.Metric_Incr_HttpRequest, labels, 1)
		_ = rs.metricsSink.Timing(metricsTypes.Metric_Timing_HttpDuration, time.Since(start), labels)

		rs.logger.Sugar().Debugw("Handled http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (rs *RpcServer) handleClaimProof(w http.ResponseWriter, r *http.Request) {
	distributionId, err := strconv.ParseUint(chi.URLParam(r, "distributionId"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid distribution id"})
		return
	}
	userId, err := uuid.Parse(r.URL.Query().Get("user_id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid user_id"})
		return
	}

	proof, err := rs.proofsStore.GenerateClaimProof(r.Context(), distributionId, userId)
	if err != nil {
		if errors.Is(err, proofs.ErrNoShare) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "no share found"})
			return
		}
		rs.logger.Sugar().Errorw("Failed to generate claim proof",
			zap.Uint64("distributionId", distributionId),
			zap.String("userId", userId.String()),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	proofHashes := make([]string, 0, len(proof.Proof))
	for _, h := range proof.Proof {
		proofHashes = append(proofHashes, hexutil.Encode(h))
	}
	writeJSON(w, http.StatusOK, claimProofResponse{
		DistributionId: proof.DistributionId,
		UserId:         proof.UserId.String(),
		Index:          proof.Index,
		Address:        proof.Address,
		Amount:         proof.Amount.String(),
		Root:           hexutil.Encode(proof.Root),
		Proof:          proofHashes,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// Run serves HTTP until the context is canceled, then shuts down gracefully.
func (rs *RpcServer) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", rs.config.HttpPort),
		Handler: rs.Router(),
	}

	errChan := make(chan error, 1)
	go func() {
		rs.logger.Sugar().Infow("Starting http server", zap.Int("port", rs.config.HttpPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}
