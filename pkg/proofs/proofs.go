// Package proofs builds merkle trees over finalized distribution shares and
// serves inclusion proofs that a claimant submits to the on-chain merkle
// drop contract.
package proofs

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"sync"
	"time"

	"github.com/0xsend/distributor/pkg/metrics"
	"github.com/0xsend/distributor/pkg/metrics/metricsTypes"
	"github.com/0xsend/distributor/pkg/storage"
	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/wealdtech/go-merkletree/v2"
	"github.com/wealdtech/go-merkletree/v2/keccak256"
	"go.uber.org/zap"
)

// ErrNoShare is returned when the requesting user has no share in the
// distribution. Callers surface it as a plain not-found condition.
var ErrNoShare = errors.New("no share found for user")

// ClaimProofsStore manages the generation and caching of merkle proofs for
// distribution shares. Share sets are read-only once a tranche is finalized,
// so a built tree stays valid until the share set is recomputed.
type ClaimProofsStore struct {
	store       storage.DistributionStore
	logger      *zap.Logger
	metricsSink *metrics.MetricsSink

	mu sync.Mutex
	// proofData caches built trees by distribution id
	proofData map[uint64]*ProofData
}

// ProofData holds one distribution's built tree and its leaves indexed for
// lookup by user.
type ProofData struct {
	DistributionId uint64
	Tree           *merkletree.MerkleTree
	Root           []byte
	leavesByUser   map[uuid.UUID]*shareLeaf
}

type shareLeaf struct {
	share *storage.DistributionShare
	// data is the single-hashed leaf handed to the tree; the tree's own
	// keccak256 pass produces the double hash the contract checks
	data []byte
}

// ClaimProof is the response to a proof request: the leaf triple, the root it
// commits to, and the sibling hash path.
type ClaimProof struct {
	DistributionId uint64
	UserId         uuid.UUID
	Index          uint64
	Address        string
	Amount         *big.Int
	Root           []byte
	Proof          [][]byte
}

func NewClaimProofsStore(store storage.DistributionStore, ms *metrics.MetricsSink, l *zap.Logger) *ClaimProofsStore {
	return &ClaimProofsStore{
		store:       store,
		logger:      l,
		metricsSink: ms,
		proofData:   make(map[uint64]*ProofData),
	}
}

// EncodeShareLeaf abi-encodes and single-hashes the (index, address, amount)
// triple. The merkle tree hashes each leaf once more, matching the standard
// double-hashed construction the on-chain verifier uses.
func EncodeShareLeaf(index uint64, address string, amount *big.Int) []byte {
	encoded := make([]byte, 0, 96)
	encoded = append(encoded, gethcommon.LeftPadBytes(new(big.Int).SetUint64(index).Bytes(), 32)...)
	encoded = append(encoded, gethcommon.LeftPadBytes(gethcommon.HexToAddress(address).Bytes(), 32)...)
	encoded = append(encoded, gethcommon.LeftPadBytes(amount.Bytes(), 32)...)
	return crypto.Keccak256(encoded)
}

func (cps *ClaimProofsStore) getProofDataForDistribution(ctx context.Context, distributionId uint64) (*ProofData, error) {
	cps.mu.Lock()
	defer cps.mu.Unlock()

	distLabel := []metricsTypes.MetricsLabel{
		{Name: "distributionId", Value: strconv.FormatUint(distributionId, 10)},
	}
	if data, ok := cps.proofData[distributionId]; ok {
		_ = cps.metricsSink.Incr(metricsTypes.Metric_Incr_ProofCacheHit, distLabel, 1)
		return data, nil
	}
	_ = cps.metricsSink.Incr(metricsTypes.Metric_Incr_ProofCacheMiss, distLabel, 1)

	dist, err := cps.store.GetDistribution(ctx, distributionId)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, errors.Wrapf(ErrNoShare, "distribution %d not found", distributionId)
		}
		return nil, err
	}

	shares, err := cps.store.ListShares(ctx, distributionId)
	if err != nil {
		return nil, err
	}
	if len(shares) == 0 {
		return nil, errors.Wrapf(ErrNoShare, "distribution %d has no shares", distributionId)
	}

	data, err := BuildProofData(distributionId, shares)
	if err != nil {
		cps.logger.Sugar().Errorw("Failed to build merkle tree for distribution",
			zap.Uint64("distributionId", distributionId),
			zap.Error(err),
		)
		return nil, err
	}
	// the share set can still change while the qualification window is open,
	// so only finalized trees are cached
	if time.Now().UTC().After(dist.QualificationEnd) {
		cps.proofData[distributionId] = data
	}
	return data, nil
}

// BuildProofData builds the merkle tree for a share set. Shares must arrive
// ordered by index ascending with no gaps; the leaf order is the index order,
// which is how the tree published on chain was built.
func BuildProofData(distributionId uint64, shares []*storage.DistributionShare) (*ProofData, error) {
	leaves := make([][]byte, 0, len(shares))
	leavesByUser := make(map[uuid.UUID]*shareLeaf, len(shares))
	for i, s := range shares {
		if s.Index != uint64(i) {
			return nil, fmt.Errorf("share set for distribution %d is not contiguous at index %d", distributionId, s.Index)
		}
		data := EncodeShareLeaf(s.Index, s.Address, s.Amount)
		leaves = append(leaves, data)
		leavesByUser[s.UserId] = &shareLeaf{share: s, data: data}
	}

	tree, err := merkletree.NewTree(
		merkletree.WithData(leaves),
		merkletree.WithHashType(keccak256.New()),
		merkletree.WithSorted(true),
	)
	if err != nil {
		return nil, err
	}
	return &ProofData{
		DistributionId: distributionId,
		Tree:           tree,
		Root:           tree.Root(),
		leavesByUser:   leavesByUser,
	}, nil
}

// GenerateClaimProof returns the inclusion proof for the requesting user's
// share, or ErrNoShare if the user has none.
func (cps *ClaimProofsStore) GenerateClaimProof(ctx context.Context, distributionId uint64, userId uuid.UUID) (*ClaimProof, error) {
	data, err := cps.getProofDataForDistribution(ctx, distributionId)
	if err != nil {
		return nil, err
	}

	leaf, ok := data.leavesByUser[userId]
	if !ok {
		return nil, errors.Wrapf(ErrNoShare, "user %s has no share in distribution %d", userId, distributionId)
	}

	proof, err := data.Tree.GenerateProof(leaf.data, 0)
	if err != nil {
		cps.logger.Sugar().Errorw("Failed to generate claim proof",
			zap.Uint64("distributionId", distributionId),
			zap.String("userId", userId.String()),
			zap.Error(err),
		)
		return nil, err
	}

	return &ClaimProof{
		DistributionId: distributionId,
		UserId:         userId,
		Index:          leaf.share.Index,
		Address:        leaf.share.Address,
		Amount:         leaf.share.Amount,
		Root:           data.Root,
		Proof:          proof.Hashes,
	}, nil
}

// Invalidate drops the cached tree for a distribution. Call it after a
// share-set recomputation so the next proof request rebuilds.
func (cps *ClaimProofsStore) Invalidate(distributionId uint64) {
	cps.mu.Lock()
	defer cps.mu.Unlock()
	delete(cps.proofData, distributionId)
}
