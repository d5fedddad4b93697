// Package distribution implements the share allocator: it turns one
// distribution's configuration, its qualification events, and balance
// snapshots into the finalized per-address share table.
package distribution

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/0xsend/distributor/pkg/balances"
	"github.com/0xsend/distributor/pkg/metrics"
	"github.com/0xsend/distributor/pkg/metrics/metricsTypes"
	"github.com/0xsend/distributor/pkg/numbers"
	"github.com/0xsend/distributor/pkg/storage"
	"github.com/0xsend/distributor/pkg/utils"
	"github.com/google/uuid"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"go.uber.org/zap"
)

// TrancheReader is the on-chain dependency of the allocator: it reports
// whether a distribution's payout tranche has already been finalized.
type TrancheReader interface {
	GetTrancheActive(ctx context.Context, merkleDropAddr string, trancheId uint64) (bool, error)
}

type ShareCalculator struct {
	store          storage.DistributionStore
	balanceFetcher *balances.BalanceFetcher
	ethClient      TrancheReader
	metricsSink    *metrics.MetricsSink
	logger         *zap.Logger
}

func NewShareCalculator(
	store storage.DistributionStore,
	bf *balances.BalanceFetcher,
	ec TrancheReader,
	ms *metrics.MetricsSink,
	l *zap.Logger,
) *ShareCalculator {
	return &ShareCalculator{
		store:          store,
		balanceFetcher: bf,
		ethClient:      ec,
		metricsSink:    ms,
		logger:         l,
	}
}

// ProcessOpenDistributions computes shares for every distribution whose
// qualification window contains asOf. Distributions are processed strictly
// one at a time; a failure in one does not prevent the others from running.
func (sc *ShareCalculator) ProcessOpenDistributions(ctx context.Context, asOf time.Time) error {
	distributions, err := sc.store.ListOpenDistributions(ctx, asOf)
	if err != nil {
		return err
	}
	if len(distributions) == 0 {
		sc.logger.Sugar().Infow("no open distributions to process", zap.Time("asOf", asOf))
		return nil
	}

	var errs []error
	for _, dist := range distributions {
		if err := sc.CalculateDistributionShares(ctx, dist); err != nil {
			sc.logger.Sugar().Errorw("failed to process distribution",
				zap.Uint64("distributionId", dist.Id),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("distribution %d: %w", dist.Id, err))
		}
	}
	return errors.Join(errs...)
}

// CalculateDistributionSharesById loads one distribution and computes its
// shares. A missing distribution is fatal.
func (sc *ShareCalculator) CalculateDistributionSharesById(ctx context.Context, distributionId uint64) error {
	dist, err := sc.store.GetDistribution(ctx, distributionId)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return NewFatalError(fmt.Sprintf("distribution %d not found", distributionId), err)
		}
		return err
	}
	return sc.CalculateDistributionShares(ctx, dist)
}

// CalculateDistributionShares runs the full allocation for one distribution
// and persists the resulting share set. The upsert at the end is the only
// durable side effect; everything before it is pure or idempotent, so a
// failed run can always be retried in full.
func (sc *ShareCalculator) CalculateDistributionShares(ctx context.Context, dist *storage.Distribution) (err error) {
	startedAt := time.Now()
	defer func() {
		_ = sc.metricsSink.Timing(metricsTypes.Metric_Timing_ShareCalcDuration, time.Since(startedAt), []metricsTypes.MetricsLabel{
			{Name: "distributionId", Value: strconv.FormatUint(dist.Id, 10)},
		})
		_ = sc.metricsSink.Incr(metricsTypes.Metric_Incr_DistributionProcessed, []metricsTypes.MetricsLabel{
			{Name: "hasError", Value: strconv.FormatBool(err != nil)},
		}, 1)
	}()

	active, err := sc.ethClient.GetTrancheActive(ctx, dist.MerkleDropAddr, dist.TrancheId)
	if err != nil {
		return fmt.Errorf("failed to check tranche state: %w", err)
	}
	if active {
		// Recomputing after the tranche is live on chain would orphan
		// proofs that claimants may already hold.
		return Fatalf("distribution %d tranche %d is already active on chain", dist.Id, dist.TrancheId)
	}

	verifications, err := sc.store.ListVerifications(ctx, dist.Id)
	if err != nil {
		return err
	}
	if len(verifications) == 0 {
		sc.logger.Sugar().Warnw("distribution has no verifications, nothing to distribute",
			zap.Uint64("distributionId", dist.Id),
		)
		return nil
	}

	hodlers, err := sc.store.ListHodlerAddresses(ctx, dist.Id)
	if err != nil {
		return err
	}
	if len(hodlers) == 0 {
		return Fatalf("distribution %d has verifications but no hodler addresses", dist.Id)
	}

	fetchStartedAt := time.Now()
	addressBalances, err := sc.balanceFetcher.FetchBalances(ctx, dist, hodlers)
	if err != nil {
		return fmt.Errorf("failed to fetch balances: %w", err)
	}
	_ = sc.metricsSink.Timing(metricsTypes.Metric_Timing_BalanceFetchDuration, time.Since(fetchStartedAt), []metricsTypes.MetricsLabel{
		{Name: "distributionId", Value: strconv.FormatUint(dist.Id, 10)},
	})

	shares, err := sc.ComputeShares(dist, verifications, addressBalances)
	if err != nil {
		return err
	}
	if len(shares) == 0 {
		sc.logger.Sugar().Warnw("no shares to persist, skipping distribution",
			zap.Uint64("distributionId", dist.Id),
		)
		return nil
	}

	if err := sc.store.UpsertShares(ctx, dist.Id, shares); err != nil {
		return fmt.Errorf("failed to persist shares: %w", err)
	}

	_ = sc.metricsSink.Gauge(metricsTypes.Metric_Gauge_SharesCalculated, float64(len(shares)), []metricsTypes.MetricsLabel{
		{Name: "distributionId", Value: strconv.FormatUint(dist.Id, 10)},
	})
	sc.logger.Sugar().Infow("calculated distribution shares",
		zap.Uint64("distributionId", dist.Id),
		zap.Int("shares", len(shares)),
		zap.String("budget", numbers.FormatUnits(dist.Amount, dist.TokenDecimals)),
		zap.Duration("duration", time.Since(startedAt)),
	)
	return nil
}

// ComputeShares is the pure allocation step. Given the distribution config,
// its verifications (ordered by user id, then creation time, then id), and
// the snapshot balances, it returns the final share set ordered and indexed
// by lowercased address.
func (sc *ShareCalculator) ComputeShares(
	dist *storage.Distribution,
	verifications []*storage.Verification,
	addressBalances []*numbers.AddressBalance,
) ([]*storage.DistributionShare, error) {
	eligible := utils.Filter(addressBalances, func(ab *numbers.AddressBalance) bool {
		return ab.Balance.Cmp(dist.HodlerMinBalance) >= 0
	})
	sc.logger.Sugar().Infow("filtered addresses below minimum balance",
		zap.Uint64("distributionId", dist.Id),
		zap.Int("total", len(addressBalances)),
		zap.Int("eligible", len(eligible)),
		zap.String("minBalance", dist.HodlerMinBalance.String()),
	)

	hodlerPoolAvailable := numbers.PercentageWithBips(dist.Amount, dist.HodlerPoolBips)
	weights, err := numbers.ComputeWeights(eligible, hodlerPoolAvailable, numbers.WeightMode_Linear)
	if err != nil {
		return nil, NewFatalError("hodler pool weight computation failed", err)
	}
	if weights.TotalWeight.Sign() == 0 {
		sc.logger.Sugar().Warnw("total hodler weight is zero, skipping distribution",
			zap.Uint64("distributionId", dist.Id),
		)
		return nil, nil
	}

	hodlerByUser := make(map[uuid.UUID]*big.Int, len(weights.Shares))
	for _, ws := range weights.Shares {
		hodlerByUser[ws.UserId] = ws.Amount
	}
	addressByUser := make(map[uuid.UUID]string, len(eligible))
	for _, ab := range eligible {
		addressByUser[ab.UserId] = ab.Address
	}

	valuesByType := make(map[string]*storage.VerificationValue, len(dist.VerificationValues))
	for _, vv := range dist.VerificationValues {
		valuesByType[vv.Type] = vv
	}

	// Verifications arrive ordered by user id, so insertion order of this
	// map is ascending user id. That order is load-bearing for the fixed
	// pool below.
	verificationsByUser := orderedmap.New[uuid.UUID, []*storage.Verification]()
	for _, v := range verifications {
		existing, _ := verificationsByUser.Get(v.UserId)
		verificationsByUser.Set(v.UserId, append(existing, v))
	}

	fixedByUser, err := sc.allocateFixedPool(dist, verificationsByUser, valuesByType, addressByUser)
	if err != nil {
		return nil, err
	}

	bonusByUser := sc.allocateBonusPool(dist, verificationsByUser, valuesByType, hodlerByUser)

	shares := make([]*storage.DistributionShare, 0, len(eligible))
	for _, ab := range eligible {
		hodlerAmount := hodlerByUser[ab.UserId]
		if hodlerAmount == nil {
			hodlerAmount = big.NewInt(0)
		}
		bonusAmount := bonusByUser[ab.UserId]
		if bonusAmount == nil {
			bonusAmount = big.NewInt(0)
		}
		fixedAmount := fixedByUser[ab.UserId]
		if fixedAmount == nil {
			fixedAmount = big.NewInt(0)
		}

		total := new(big.Int).Add(hodlerAmount, bonusAmount)
		total.Add(total, fixedAmount)
		if total.Sign() == 0 {
			continue
		}
		shares = append(shares, &storage.DistributionShare{
			DistributionId:   dist.Id,
			UserId:           ab.UserId,
			Address:          ab.Address,
			Amount:           total,
			HodlerPoolAmount: hodlerAmount,
			BonusPoolAmount:  bonusAmount,
			FixedPoolAmount:  fixedAmount,
		})
	}

	// The index orders merkle leaves and must be reproducible from the
	// input data alone.
	sort.Slice(shares, func(i, j int) bool {
		return strings.ToLower(shares[i].Address) < strings.ToLower(shares[j].Address)
	})
	for i, s := range shares {
		s.Index = uint64(i)
	}

	grandTotal := big.NewInt(0)
	for _, s := range shares {
		grandTotal.Add(grandTotal, s.Amount)
	}
	if grandTotal.Cmp(dist.Amount) > 0 {
		return nil, Fatalf("computed total %s exceeds distribution %d budget %s",
			grandTotal.String(), dist.Id, dist.Amount.String())
	}

	return shares, nil
}

// allocateFixedPool walks verifications in user id order and pays each fixed
// value while the pool has room. The first allocation that would overflow the
// pool marks it exhausted; nothing is paid after that, even smaller values.
func (sc *ShareCalculator) allocateFixedPool(
	dist *storage.Distribution,
	verificationsByUser *orderedmap.OrderedMap[uuid.UUID, []*storage.Verification],
	valuesByType map[string]*storage.VerificationValue,
	addressByUser map[uuid.UUID]string,
) (map[uuid.UUID]*big.Int, error) {
	fixedByUser := make(map[uuid.UUID]*big.Int)
	remaining := numbers.PercentageWithBips(dist.Amount, dist.FixedPoolBips)
	exhausted := false

	for pair := verificationsByUser.Oldest(); pair != nil; pair = pair.Next() {
		userId := pair.Key
		if _, ok := addressByUser[userId]; !ok {
			// Below the minimum balance or no confirmed address. Exclusion
			// spans every pool.
			continue
		}
		for _, v := range pair.Value {
			vv, ok := valuesByType[v.Type]
			if !ok {
				sc.logger.Sugar().Warnw("verification type has no configured value",
					zap.Uint64("distributionId", dist.Id),
					zap.String("type", v.Type),
				)
				continue
			}
			if vv.FixedValue == nil || vv.FixedValue.Sign() <= 0 {
				continue
			}
			if exhausted {
				continue
			}
			if remaining.Cmp(vv.FixedValue) < 0 {
				exhausted = true
				sc.logger.Sugar().Warnw("fixed pool exhausted before all verifications were paid",
					zap.Uint64("distributionId", dist.Id),
					zap.String("remaining", remaining.String()),
					zap.String("unpaidValue", vv.FixedValue.String()),
				)
				_ = sc.metricsSink.Incr(metricsTypes.Metric_Incr_FixedPoolExhausted, []metricsTypes.MetricsLabel{
					{Name: "distributionId", Value: strconv.FormatUint(dist.Id, 10)},
				}, 1)
				continue
			}
			current := fixedByUser[userId]
			if current == nil {
				current = big.NewInt(0)
				fixedByUser[userId] = current
			}
			current.Add(current, vv.FixedValue)
			remaining.Sub(remaining, vv.FixedValue)
		}
	}
	return fixedByUser, nil
}

// allocateBonusPool sums each user's verification bips, caps them relative to
// the hodler pool, and pays the capped percentage of that user's hodler
// amount. A user with no hodler amount earns no bonus.
func (sc *ShareCalculator) allocateBonusPool(
	dist *storage.Distribution,
	verificationsByUser *orderedmap.OrderedMap[uuid.UUID, []*storage.Verification],
	valuesByType map[string]*storage.VerificationValue,
	hodlerByUser map[uuid.UUID]*big.Int,
) map[uuid.UUID]*big.Int {
	bonusByUser := make(map[uuid.UUID]*big.Int)
	if dist.HodlerPoolBips.Sign() == 0 {
		return bonusByUser
	}
	// The cap is expressed in hodler-pool terms so that the bonus pool as a
	// whole cannot outgrow its budgeted split.
	maxBonusBips := new(big.Int).Mul(dist.BonusPoolBips, numbers.PercDenom)
	maxBonusBips.Div(maxBonusBips, dist.HodlerPoolBips)

	for pair := verificationsByUser.Oldest(); pair != nil; pair = pair.Next() {
		hodlerAmount := hodlerByUser[pair.Key]
		if hodlerAmount == nil || hodlerAmount.Sign() == 0 {
			continue
		}
		userBips := big.NewInt(0)
		for _, v := range pair.Value {
			vv, ok := valuesByType[v.Type]
			if !ok || vv.BipsValue == nil {
				continue
			}
			userBips.Add(userBips, vv.BipsValue)
		}
		if userBips.Sign() == 0 {
			continue
		}
		if userBips.Cmp(maxBonusBips) > 0 {
			userBips.Set(maxBonusBips)
		}
		bonusByUser[pair.Key] = numbers.PercentageWithBips(hodlerAmount, userBips)
	}
	return bonusByUser
}
