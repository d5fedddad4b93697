// Package balances retrieves token balances for qualifying addresses at a
// distribution's snapshot block. Reads fan out across a bounded worker pool
// and the whole batch fails fast on the first error: a partial snapshot would
// corrupt the proportional split and is never returned.
package balances

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/0xsend/distributor/pkg/numbers"
	"github.com/0xsend/distributor/pkg/storage"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const defaultFanOutWidth = 8

// BalanceReader is the chain-data dependency of the fetcher.
type BalanceReader interface {
	GetTokenBalanceAtBlock(ctx context.Context, tokenAddr string, holderAddr string, blockNumber uint64) (*big.Int, error)
}

type BalanceFetcherConfig struct {
	// FanOutWidth bounds the number of in-flight balance reads. Unlike batch
	// grouping, this is a hard cap on concurrency.
	FanOutWidth int
}

type BalanceFetcher struct {
	EthClient BalanceReader
	Logger    *zap.Logger
	Config    *BalanceFetcherConfig
}

func NewBalanceFetcher(client BalanceReader, cfg *BalanceFetcherConfig, l *zap.Logger) *BalanceFetcher {
	if cfg.FanOutWidth <= 0 {
		cfg.FanOutWidth = defaultFanOutWidth
	}
	return &BalanceFetcher{
		EthClient: client,
		Logger:    l,
		Config:    cfg,
	}
}

// FetchBalances reads the token balance of every hodler address as of the
// distribution's snapshot block, retrying the full batch with exponential
// backoff on failure. The result preserves the input order and contains one
// entry per input address.
func (f *BalanceFetcher) FetchBalances(ctx context.Context, dist *storage.Distribution, hodlers []*storage.HodlerAddress) ([]*numbers.AddressBalance, error) {
	retries := []int{1, 2, 4, 8, 16}
	var e error
	for i, r := range retries {
		fetched, err := f.fetchAllBalances(ctx, dist, hodlers)
		if err == nil {
			if i > 0 {
				f.Logger.Sugar().Infow("successfully fetched balances after retries",
					zap.Uint64("distributionId", dist.Id),
					zap.Int("retries", i),
				)
			}
			return fetched, nil
		}
		e = err
		f.Logger.Sugar().Infow("failed to fetch balances",
			zap.Uint64("distributionId", dist.Id),
			zap.Uint64("snapshotBlock", dist.SnapshotBlockNum),
			zap.Int("sleepTime", r),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(r) * time.Second):
		}
	}
	f.Logger.Sugar().Errorw("failed to fetch balances, exhausted all retries",
		zap.Uint64("distributionId", dist.Id),
		zap.Error(e),
	)
	return nil, e
}

func (f *BalanceFetcher) fetchAllBalances(ctx context.Context, dist *storage.Distribution, hodlers []*storage.HodlerAddress) ([]*numbers.AddressBalance, error) {
	fetchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan int, len(hodlers))
	for i := range hodlers {
		jobs <- i
	}
	close(jobs)

	results := make([]*numbers.AddressBalance, len(hodlers))
	errorCollector := make(chan error, len(hodlers))

	wg := &sync.WaitGroup{}
	for w := 0; w < f.Config.FanOutWidth; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if fetchCtx.Err() != nil {
					return
				}
				hodler := hodlers[i]
				balance, err := f.EthClient.GetTokenBalanceAtBlock(fetchCtx, dist.TokenAddr, hodler.Address, dist.SnapshotBlockNum)
				if err != nil {
					f.Logger.Sugar().Errorw("failed to fetch balance for address",
						zap.String("address", hodler.Address),
						zap.Uint64("blockNumber", dist.SnapshotBlockNum),
						zap.Error(err),
					)
					errorCollector <- err
					cancel()
					return
				}
				results[i] = &numbers.AddressBalance{
					UserId:  hodler.UserId,
					Address: hodler.Address,
					Balance: balance,
				}
			}
		}()
	}
	wg.Wait()
	close(errorCollector)

	if err := <-errorCollector; err != nil {
		return nil, err
	}

	// Ensure that we have all the balances.
	for i, r := range results {
		if r == nil {
			return nil, errors.Errorf("missing balance for address '%s'", hodlers[i].Address)
		}
	}
	return results, nil
}
