package postgres

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/0xsend/distributor/internal/config"
	"github.com/0xsend/distributor/internal/logger"
	"github.com/0xsend/distributor/internal/tests"
	pg "github.com/0xsend/distributor/pkg/postgres"
	"github.com/0xsend/distributor/pkg/storage"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setup(t *testing.T) (string, *gorm.DB, *config.Config, *zap.Logger) {
	if !tests.HasDbConfig() {
		t.Skip("TEST_DATABASE_HOST not set, skipping postgres integration test")
	}

	cfg := tests.GetConfig()
	cfg.DatabaseConfig = tests.GetDbConfigFromEnv()

	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	assert.Nil(t, err)

	dbName, _, grm, err := pg.GetTestPostgresDatabase(cfg.DatabaseConfig, cfg, l)
	assert.Nil(t, err)

	return dbName, grm, cfg, l
}

func seedDistribution(t *testing.T, grm *gorm.DB, id uint64) {
	now := time.Now().UTC()
	res := grm.Exec(`
		insert into distributions (
			id, number, name, amount,
			hodler_pool_bips, bonus_pool_bips, fixed_pool_bips, hodler_min_balance,
			qualification_start, qualification_end, claim_end,
			snapshot_block_num, chain_id, token_addr, token_decimals, merkle_drop_addr, tranche_id,
			updated_at
		) values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, id, "distribution", "1000000",
		"6500", "3500", "0", "10",
		now.Add(-24*time.Hour), now.Add(24*time.Hour), now.Add(90*24*time.Hour),
		1234, 8453, "0x3f14920c99beb920afa163031c4e47a3e03b3e4a", 18,
		"0x240761104af5dab6db2eab3cc4670442a8b44b48", id,
		now,
	)
	assert.Nil(t, res.Error)
}

func Test_PostgresDistributionStore(t *testing.T) {
	dbName, grm, cfg, l := setup(t)
	defer pg.TeardownTestDatabase(dbName, cfg, grm, l)

	store := NewPostgresDistributionStore(grm, &DistributionStoreConfig{PageSize: 2}, l)
	ctx := context.Background()

	userA := uuid.MustParse("00000000-0000-0000-0000-00000000000a")
	userB := uuid.MustParse("00000000-0000-0000-0000-00000000000b")
	userC := uuid.MustParse("00000000-0000-0000-0000-00000000000c")
	addrA := "0x1000000000000000000000000000000000000001"
	addrB := "0x2000000000000000000000000000000000000002"
	addrC := "0x3000000000000000000000000000000000000003"

	seedDistribution(t, grm, 1)

	res := grm.Exec(`insert into distribution_verification_values (distribution_id, type, fixed_value, bips_value)
		values (1, 'tag_registration', '500', '0'), (1, 'send_streak', '0', '250')`)
	assert.Nil(t, res.Error)

	res = grm.Exec(`insert into distribution_verifications (distribution_id, user_id, type)
		values (1, ?, 'tag_registration'), (1, ?, 'send_streak'), (1, ?, 'tag_registration'), (1, ?, 'tag_registration')`,
		userA, userA, userB, userC)
	assert.Nil(t, res.Error)

	res = grm.Exec(`insert into chain_addresses (address, user_id) values (?, ?), (?, ?), (?, ?)`,
		addrA, userA, addrB, userB, addrC, userC)
	assert.Nil(t, res.Error)

	t.Run("GetDistribution loads config and verification values", func(t *testing.T) {
		dist, err := store.GetDistribution(ctx, 1)
		assert.Nil(t, err)
		assert.Equal(t, big.NewInt(1_000_000), dist.Amount)
		assert.Equal(t, big.NewInt(6500), dist.HodlerPoolBips)
		assert.Equal(t, 2, len(dist.VerificationValues))

		_, err = store.GetDistribution(ctx, 999)
		assert.True(t, errors.Is(err, storage.ErrNotFound))
	})

	t.Run("ListOpenDistributions respects the qualification window", func(t *testing.T) {
		open, err := store.ListOpenDistributions(ctx, time.Now().UTC())
		assert.Nil(t, err)
		assert.Equal(t, 1, len(open))

		open, err = store.ListOpenDistributions(ctx, time.Now().UTC().Add(72*time.Hour))
		assert.Nil(t, err)
		assert.Equal(t, 0, len(open))
	})

	t.Run("ListVerifications pages through every row in order", func(t *testing.T) {
		verifications, err := store.ListVerifications(ctx, 1)
		assert.Nil(t, err)
		assert.Equal(t, 4, len(verifications))
		for i := 1; i < len(verifications); i++ {
			assert.True(t, verifications[i-1].UserId.String() <= verifications[i].UserId.String())
		}
	})

	t.Run("ListHodlerAddresses returns one address per verified user", func(t *testing.T) {
		hodlers, err := store.ListHodlerAddresses(ctx, 1)
		assert.Nil(t, err)
		assert.Equal(t, 3, len(hodlers))
		assert.Equal(t, addrA, hodlers[0].Address)
		assert.Equal(t, addrC, hodlers[2].Address)
	})

	t.Run("UpsertShares is idempotent and deletes stale rows", func(t *testing.T) {
		shares := []*storage.DistributionShare{
			{DistributionId: 1, UserId: userA, Address: addrA, Index: 0, Amount: big.NewInt(100), HodlerPoolAmount: big.NewInt(100), BonusPoolAmount: big.NewInt(0), FixedPoolAmount: big.NewInt(0)},
			{DistributionId: 1, UserId: userB, Address: addrB, Index: 1, Amount: big.NewInt(200), HodlerPoolAmount: big.NewInt(200), BonusPoolAmount: big.NewInt(0), FixedPoolAmount: big.NewInt(0)},
			{DistributionId: 1, UserId: userC, Address: addrC, Index: 2, Amount: big.NewInt(300), HodlerPoolAmount: big.NewInt(300), BonusPoolAmount: big.NewInt(0), FixedPoolAmount: big.NewInt(0)},
		}
		assert.Nil(t, store.UpsertShares(ctx, 1, shares))

		listed, err := store.ListShares(ctx, 1)
		assert.Nil(t, err)
		assert.Equal(t, 3, len(listed))
		assert.Equal(t, big.NewInt(200), listed[1].Amount)

		// Re-run with userC dropped and the others re-indexed.
		shares = []*storage.DistributionShare{
			{DistributionId: 1, UserId: userA, Address: addrA, Index: 0, Amount: big.NewInt(150), HodlerPoolAmount: big.NewInt(150), BonusPoolAmount: big.NewInt(0), FixedPoolAmount: big.NewInt(0)},
			{DistributionId: 1, UserId: userB, Address: addrB, Index: 1, Amount: big.NewInt(250), HodlerPoolAmount: big.NewInt(250), BonusPoolAmount: big.NewInt(0), FixedPoolAmount: big.NewInt(0)},
		}
		assert.Nil(t, store.UpsertShares(ctx, 1, shares))

		listed, err = store.ListShares(ctx, 1)
		assert.Nil(t, err)
		assert.Equal(t, 2, len(listed))
		assert.Equal(t, big.NewInt(150), listed[0].Amount)
		assert.Equal(t, big.NewInt(250), listed[1].Amount)
	})
}
