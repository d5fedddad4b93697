package balances

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/0xsend/distributor/internal/logger"
	"github.com/0xsend/distributor/pkg/storage"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

type fakeBalanceReader struct {
	mu        sync.Mutex
	balances  map[string]*big.Int
	failFor   map[string]int
	inFlight  int64
	maxSeen   int64
	callCount int64
}

func (f *fakeBalanceReader) GetTokenBalanceAtBlock(ctx context.Context, tokenAddr string, holderAddr string, blockNumber uint64) (*big.Int, error) {
	current := atomic.AddInt64(&f.inFlight, 1)
	defer atomic.AddInt64(&f.inFlight, -1)
	for {
		max := atomic.LoadInt64(&f.maxSeen)
		if current <= max || atomic.CompareAndSwapInt64(&f.maxSeen, max, current) {
			break
		}
	}
	atomic.AddInt64(&f.callCount, 1)

	f.mu.Lock()
	defer f.mu.Unlock()
	if remaining, ok := f.failFor[holderAddr]; ok && remaining > 0 {
		f.failFor[holderAddr] = remaining - 1
		return nil, fmt.Errorf("rate limited")
	}
	balance, ok := f.balances[holderAddr]
	if !ok {
		return nil, fmt.Errorf("no balance for %s", holderAddr)
	}
	return new(big.Int).Set(balance), nil
}

func testDistribution() *storage.Distribution {
	return &storage.Distribution{
		Id:               1,
		TokenAddr:        "0x3f14920c99BEB920Afa163031c4e47a3e03B3e4A",
		SnapshotBlockNum: 100,
	}
}

func testHodlers(n int) ([]*storage.HodlerAddress, map[string]*big.Int) {
	hodlers := make([]*storage.HodlerAddress, 0, n)
	balances := make(map[string]*big.Int)
	for i := 0; i < n; i++ {
		addr := fmt.Sprintf("0x%040x", i+1)
		hodlers = append(hodlers, &storage.HodlerAddress{
			UserId:  uuid.New(),
			Address: addr,
		})
		balances[addr] = big.NewInt(int64(i+1) * 100)
	}
	return hodlers, balances
}

func Test_FetchBalances(t *testing.T) {
	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})

	t.Run("returns all balances in input order", func(t *testing.T) {
		hodlers, balanceMap := testHodlers(25)
		reader := &fakeBalanceReader{balances: balanceMap}

		f := NewBalanceFetcher(reader, &BalanceFetcherConfig{FanOutWidth: 4}, l)
		fetched, err := f.FetchBalances(context.Background(), testDistribution(), hodlers)
		assert.Nil(t, err)
		assert.Len(t, fetched, len(hodlers))
		for i, b := range fetched {
			assert.Equal(t, hodlers[i].Address, b.Address)
			assert.Equal(t, hodlers[i].UserId, b.UserId)
			assert.Equal(t, balanceMap[b.Address].String(), b.Balance.String())
		}
	})

	t.Run("bounds in-flight requests to the fan-out width", func(t *testing.T) {
		hodlers, balanceMap := testHodlers(64)
		reader := &fakeBalanceReader{balances: balanceMap}

		f := NewBalanceFetcher(reader, &BalanceFetcherConfig{FanOutWidth: 3}, l)
		_, err := f.FetchBalances(context.Background(), testDistribution(), hodlers)
		assert.Nil(t, err)
		assert.LessOrEqual(t, reader.maxSeen, int64(3))
	})

	t.Run("retries the whole batch on transient failure", func(t *testing.T) {
		hodlers, balanceMap := testHodlers(5)
		reader := &fakeBalanceReader{
			balances: balanceMap,
			failFor:  map[string]int{hodlers[2].Address: 1},
		}

		f := NewBalanceFetcher(reader, &BalanceFetcherConfig{FanOutWidth: 2}, l)
		fetched, err := f.FetchBalances(context.Background(), testDistribution(), hodlers)
		assert.Nil(t, err)
		assert.Len(t, fetched, 5)
	})

	t.Run("fails the batch when one address keeps failing", func(t *testing.T) {
		hodlers, balanceMap := testHodlers(5)
		delete(balanceMap, hodlers[4].Address)
		reader := &fakeBalanceReader{balances: balanceMap}

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			// don't wait out the full backoff schedule
			for atomic.LoadInt64(&reader.callCount) < 5 {
			}
			cancel()
		}()

		f := NewBalanceFetcher(reader, &BalanceFetcherConfig{FanOutWidth: 5}, l)
		_, err := f.FetchBalances(ctx, testDistribution(), hodlers)
		assert.NotNil(t, err)
	})
}
