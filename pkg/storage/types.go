// Package storage defines the typed records and the persistence interface
// for distributions, qualification events, and computed shares. Rows are
// validated into these types at the store boundary; nothing upstream handles
// raw database shapes.
package storage

import (
	"context"
	"encoding/json"
	"math/big"
	"time"

	"github.com/pkg/errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Distribution is one allocation round. It is created by an operator before
// the qualification window opens and is read-only to this engine.
type Distribution struct {
	Id          uint64
	Number      uint64
	Name        string
	Description string

	// Amount is the total token budget in the token's smallest unit
	Amount *big.Int

	HodlerPoolBips *big.Int
	BonusPoolBips  *big.Int
	FixedPoolBips  *big.Int

	// HodlerMinBalance is the minimum qualifying balance; addresses below it
	// are excluded from every pool
	HodlerMinBalance *big.Int

	QualificationStart time.Time
	QualificationEnd   time.Time
	ClaimEnd           time.Time

	SnapshotBlockNum uint64
	ChainId          uint64
	TokenAddr        string
	TokenDecimals    int32
	MerkleDropAddr   string
	TrancheId        uint64

	VerificationValues []*VerificationValue
}

// VerificationValue is the per-type payout configuration for a distribution,
// immutable after creation. FixedValue pays from the fixed pool; BipsValue
// boosts the hodler amount through the bonus pool.
type VerificationValue struct {
	DistributionId uint64
	Type           string
	FixedValue     *big.Int
	BipsValue      *big.Int
}

// Verification is one qualifying event recorded by an external system during
// the qualification window.
type Verification struct {
	Id             uint64
	DistributionId uint64
	UserId         uuid.UUID
	Type           string
	Metadata       json.RawMessage
	CreatedAt      time.Time
}

// HodlerAddress associates a user with their single claimable on-chain
// address.
type HodlerAddress struct {
	UserId  uuid.UUID
	Address string
}

// DistributionShare is one computed allocation: the output of the share
// calculator and the leaf content of the claim merkle tree. Index is the
// merkle-leaf ordering key and must be stable across recomputation runs with
// the same input snapshot.
type DistributionShare struct {
	DistributionId uint64
	UserId         uuid.UUID
	Address        string
	Index          uint64

	Amount           *big.Int
	HodlerPoolAmount *big.Int
	BonusPoolAmount  *big.Int
	FixedPoolAmount  *big.Int
}

// DistributionStore is the persistence gateway. List methods page through
// every row; a partial result is an error, never a silent truncation.
type DistributionStore interface {
	// ListOpenDistributions returns all distributions whose qualification
	// window contains asOf, with verification values loaded.
	ListOpenDistributions(ctx context.Context, asOf time.Time) ([]*Distribution, error)

	// GetDistribution returns one distribution with its verification values,
	// or ErrNotFound.
	GetDistribution(ctx context.Context, id uint64) (*Distribution, error)

	// ListVerifications returns every verification for the distribution,
	// ordered by (user_id, created_at, id).
	ListVerifications(ctx context.Context, distributionId uint64) ([]*Verification, error)

	// ListHodlerAddresses returns the claimable address of every user with a
	// confirmed address, ordered by address.
	ListHodlerAddresses(ctx context.Context, distributionId uint64) ([]*HodlerAddress, error)

	// UpsertShares atomically replaces the share set for a distribution,
	// keyed by (distribution_id, address). Re-running with identical input
	// produces identical rows and no duplicates.
	UpsertShares(ctx context.Context, distributionId uint64, shares []*DistributionShare) error

	// ListShares returns all persisted shares for the distribution ordered
	// by index ascending.
	ListShares(ctx context.Context, distributionId uint64) ([]*DistributionShare, error)
}
