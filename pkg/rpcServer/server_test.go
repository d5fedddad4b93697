package rpcServer

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/0xsend/distributor/internal/logger"
	"github.com/0xsend/distributor/pkg/metrics"
	"github.com/0xsend/distributor/pkg/proofs"
	"github.com/0xsend/distributor/pkg/storage"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

type staticShareStore struct {
	shares map[uint64][]*storage.DistributionShare
}

func (s *staticShareStore) ListOpenDistributions(ctx context.Context, asOf time.Time) ([]*storage.Distribution, error) {
	return nil, nil
}

func (s *staticShareStore) GetDistribution(ctx context.Context, id uint64) (*storage.Distribution, error) {
	if _, ok := s.shares[id]; !ok {
		return nil, storage.ErrNotFound
	}
	return &storage.Distribution{Id: id, QualificationEnd: time.Now().UTC().Add(-time.Hour)}, nil
}

func (s *staticShareStore) ListVerifications(ctx context.Context, distributionId uint64) ([]*storage.Verification, error) {
	return nil, nil
}

func (s *staticShareStore) ListHodlerAddresses(ctx context.Context, distributionId uint64) ([]*storage.HodlerAddress, error) {
	return nil, nil
}

func (s *staticShareStore) UpsertShares(ctx context.Context, distributionId uint64, shares []*storage.DistributionShare) error {
	return nil
}

func (s *staticShareStore) ListShares(ctx context.Context, distributionId uint64) ([]*storage.DistributionShare, error) {
	return s.shares[distributionId], nil
}

func newTestServer(t *testing.T) *httptest.Server {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	assert.Nil(t, err)
	sink, err := metrics.NewMetricsSink(&metrics.MetricsSinkConfig{}, nil)
	assert.Nil(t, err)

	store := &staticShareStore{
		shares: map[uint64][]*storage.DistributionShare{
			5: {
				{
					DistributionId: 5,
					UserId:         uuid.MustParse("00000000-0000-0000-0000-000000000001"),
					Address:        "0x1000000000000000000000000000000000000001",
					Index:          0,
					Amount:         big.NewInt(250_000),
				},
				{
					DistributionId: 5,
					UserId:         uuid.MustParse("00000000-0000-0000-0000-000000000002"),
					Address:        "0x2000000000000000000000000000000000000002",
					Index:          1,
					Amount:         big.NewInt(750_000),
				},
			},
		},
	}
	ps := proofs.NewClaimProofsStore(store, sink, l)
	server := NewRpcServer(&RpcServerConfig{}, ps, sink, l)
	return httptest.NewServer(server.Router())
}

func Test_RpcServer(t *testing.T) {
	ts := newTestServer(t)
	defer ts.Close()

	t.Run("returns a proof for a user with a share", func(t *testing.T) {
		res, err := http.Get(ts.URL + "/api/v1/distributions/5/proof?user_id=00000000-0000-0000-0000-000000000001")
		assert.Nil(t, err)
		defer res.Body.Close()
		assert.Equal(t, http.StatusOK, res.StatusCode)

		var body claimProofResponse
		assert.Nil(t, json.NewDecoder(res.Body).Decode(&body))
		assert.Equal(t, uint64(5), body.DistributionId)
		assert.Equal(t, uint64(0), body.Index)
		assert.Equal(t, "250000", body.Amount)
		assert.Equal(t, 1, len(body.Proof))
		assert.NotEmpty(t, body.Root)
	})

	t.Run("returns 404 for a user without a share", func(t *testing.T) {
		res, err := http.Get(ts.URL + "/api/v1/distributions/5/proof?user_id=00000000-0000-0000-0000-0000000000ff")
		assert.Nil(t, err)
		defer res.Body.Close()
		assert.Equal(t, http.StatusNotFound, res.StatusCode)

		var body errorResponse
		assert.Nil(t, json.NewDecoder(res.Body).Decode(&body))
		assert.Equal(t, "no share found", body.Error)
	})

	t.Run("returns 404 for an unknown distribution", func(t *testing.T) {
		res, err := http.Get(ts.URL + "/api/v1/distributions/99/proof?user_id=00000000-0000-0000-0000-000000000001")
		assert.Nil(t, err)
		defer res.Body.Close()
		assert.Equal(t, http.StatusNotFound, res.StatusCode)
	})

	t.Run("rejects malformed parameters", func(t *testing.T) {
		res, err := http.Get(ts.URL + "/api/v1/distributions/notanumber/proof?user_id=00000000-0000-0000-0000-000000000001")
		assert.Nil(t, err)
		res.Body.Close()
		assert.Equal(t, http.StatusBadRequest, res.StatusCode)

		res, err = http.Get(ts.URL + "/api/v1/distributions/5/proof?user_id=nope")
		assert.Nil(t, err)
		res.Body.Close()
		assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	})

	t.Run("serves health and metrics", func(t *testing.T) {
		res, err := http.Get(ts.URL + "/health")
		assert.Nil(t, err)
		res.Body.Close()
		assert.Equal(t, http.StatusOK, res.StatusCode)

		res, err = http.Get(ts.URL + "/metrics")
		assert.Nil(t, err)
		res.Body.Close()
		assert.Equal(t, http.StatusOK, res.StatusCode)
	})
}
