// Package postgres implements the persistence gateway over gorm. Rows carry
// numeric columns as strings and are validated into big.Int at this boundary;
// a value that fails to parse is a data defect, not something to paper over.
package postgres

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/0xsend/distributor/pkg/postgres/helpers"
	"github.com/0xsend/distributor/pkg/storage"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultPageSize = 1000

type DistributionStoreConfig struct {
	// PageSize bounds each page of the list queries
	PageSize int
}

type PostgresDistributionStore struct {
	db     *gorm.DB
	logger *zap.Logger
	config *DistributionStoreConfig
}

func NewPostgresDistributionStore(db *gorm.DB, cfg *DistributionStoreConfig, l *zap.Logger) *PostgresDistributionStore {
	if cfg == nil {
		cfg = &DistributionStoreConfig{}
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	return &PostgresDistributionStore{
		db:     db,
		logger: l,
		config: cfg,
	}
}

type distributionRow struct {
	Id                 uint64
	Number             uint64
	Name               string
	Description        string
	Amount             string
	HodlerPoolBips     string
	BonusPoolBips      string
	FixedPoolBips      string
	HodlerMinBalance   string
	QualificationStart time.Time
	QualificationEnd   time.Time
	ClaimEnd           time.Time
	SnapshotBlockNum   uint64
	ChainId            uint64
	TokenAddr          string
	TokenDecimals      int32
	MerkleDropAddr     string
	TrancheId          uint64
}

func (distributionRow) TableName() string {
	return "distributions"
}

type verificationValueRow struct {
	DistributionId uint64
	Type           string
	FixedValue     string
	BipsValue      string
}

func (verificationValueRow) TableName() string {
	return "distribution_verification_values"
}

type verificationRow struct {
	Id             uint64
	DistributionId uint64
	UserId         uuid.UUID
	Type           string
	Metadata       []byte
	CreatedAt      time.Time
}

func (verificationRow) TableName() string {
	return "distribution_verifications"
}

type chainAddressRow struct {
	Address string
	UserId  uuid.UUID
}

func (chainAddressRow) TableName() string {
	return "chain_addresses"
}

type shareRow struct {
	DistributionId   uint64
	UserId           uuid.UUID
	Address          string
	Index            uint64
	Amount           string
	HodlerPoolAmount string
	BonusPoolAmount  string
	FixedPoolAmount  string
	UpdatedAt        time.Time
}

func (shareRow) TableName() string {
	return "distribution_shares"
}

func parseBig(value string, field string) (*big.Int, error) {
	if value == "" {
		return big.NewInt(0), nil
	}
	out, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid numeric value '%s' for %s", value, field)
	}
	return out, nil
}

func (s *PostgresDistributionStore) distributionFromRow(row *distributionRow, values []*storage.VerificationValue) (*storage.Distribution, error) {
	amount, err := parseBig(row.Amount, "amount")
	if err != nil {
		return nil, err
	}
	hodlerBips, err := parseBig(row.HodlerPoolBips, "hodler_pool_bips")
	if err != nil {
		return nil, err
	}
	bonusBips, err := parseBig(row.BonusPoolBips, "bonus_pool_bips")
	if err != nil {
		return nil, err
	}
	fixedBips, err := parseBig(row.FixedPoolBips, "fixed_pool_bips")
	if err != nil {
		return nil, err
	}
	minBalance, err := parseBig(row.HodlerMinBalance, "hodler_min_balance")
	if err != nil {
		return nil, err
	}
	return &storage.Distribution{
		Id:                 row.Id,
		Number:             row.Number,
		Name:               row.Name,
		Description:        row.Description,
		Amount:             amount,
		HodlerPoolBips:     hodlerBips,
		BonusPoolBips:      bonusBips,
		FixedPoolBips:      fixedBips,
		HodlerMinBalance:   minBalance,
		QualificationStart: row.QualificationStart,
		QualificationEnd:   row.QualificationEnd,
		ClaimEnd:           row.ClaimEnd,
		SnapshotBlockNum:   row.SnapshotBlockNum,
		ChainId:            row.ChainId,
		TokenAddr:          row.TokenAddr,
		TokenDecimals:      row.TokenDecimals,
		MerkleDropAddr:     row.MerkleDropAddr,
		TrancheId:          row.TrancheId,
		VerificationValues: values,
	}, nil
}

func (s *PostgresDistributionStore) loadVerificationValues(ctx context.Context, distributionId uint64) ([]*storage.VerificationValue, error) {
	var rows []*verificationValueRow
	res := s.db.WithContext(ctx).
		Where("distribution_id = ?", distributionId).
		Order("type asc").
		Find(&rows)
	if res.Error != nil {
		return nil, res.Error
	}

	values := make([]*storage.VerificationValue, 0, len(rows))
	for _, row := range rows {
		fixedValue, err := parseBig(row.FixedValue, "fixed_value")
		if err != nil {
			return nil, err
		}
		bipsValue, err := parseBig(row.BipsValue, "bips_value")
		if err != nil {
			return nil, err
		}
		values = append(values, &storage.VerificationValue{
			DistributionId: row.DistributionId,
			Type:           row.Type,
			FixedValue:     fixedValue,
			BipsValue:      bipsValue,
		})
	}
	return values, nil
}

func (s *PostgresDistributionStore) ListOpenDistributions(ctx context.Context, asOf time.Time) ([]*storage.Distribution, error) {
	var rows []*distributionRow
	res := s.db.WithContext(ctx).
		Where("qualification_start <= ? and qualification_end >= ?", asOf, asOf).
		Order("id asc").
		Find(&rows)
	if res.Error != nil {
		return nil, res.Error
	}

	distributions := make([]*storage.Distribution, 0, len(rows))
	for _, row := range rows {
		values, err := s.loadVerificationValues(ctx, row.Id)
		if err != nil {
			return nil, err
		}
		dist, err := s.distributionFromRow(row, values)
		if err != nil {
			return nil, err
		}
		distributions = append(distributions, dist)
	}
	return distributions, nil
}

func (s *PostgresDistributionStore) GetDistribution(ctx context.Context, id uint64) (*storage.Distribution, error) {
	var row distributionRow
	res := s.db.WithContext(ctx).Where("id = ?", id).First(&row)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return nil, storage.ErrNotFound
		}
		return nil, res.Error
	}

	values, err := s.loadVerificationValues(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.distributionFromRow(&row, values)
}

// ListVerifications pages through every verification for the distribution.
// The page loop cross-checks the total row count; a mismatch means rows moved
// underneath us and the read is retried by the caller.
func (s *PostgresDistributionStore) ListVerifications(ctx context.Context, distributionId uint64) ([]*storage.Verification, error) {
	var expected int64
	res := s.db.WithContext(ctx).
		Model(&verificationRow{}).
		Where("distribution_id = ?", distributionId).
		Count(&expected)
	if res.Error != nil {
		return nil, res.Error
	}

	verifications := make([]*storage.Verification, 0, expected)
	for offset := 0; ; offset += s.config.PageSize {
		var rows []*verificationRow
		res := s.db.WithContext(ctx).
			Where("distribution_id = ?", distributionId).
			Order("user_id asc, created_at asc, id asc").
			Limit(s.config.PageSize).
			Offset(offset).
			Find(&rows)
		if res.Error != nil {
			return nil, res.Error
		}
		for _, row := range rows {
			verifications = append(verifications, &storage.Verification{
				Id:             row.Id,
				DistributionId: row.DistributionId,
				UserId:         row.UserId,
				Type:           row.Type,
				Metadata:       row.Metadata,
				CreatedAt:      row.CreatedAt,
			})
		}
		if len(rows) < s.config.PageSize {
			break
		}
	}

	if int64(len(verifications)) != expected {
		return nil, fmt.Errorf("verification read for distribution %d returned %d of %d rows",
			distributionId, len(verifications), expected)
	}
	return verifications, nil
}

// ListHodlerAddresses returns the confirmed claim address of every user with
// at least one verification for the distribution, ordered by address.
func (s *PostgresDistributionStore) ListHodlerAddresses(ctx context.Context, distributionId uint64) ([]*storage.HodlerAddress, error) {
	baseQuery := func(db *gorm.DB) *gorm.DB {
		return db.
			Table("chain_addresses").
			Where("user_id in (select distinct user_id from distribution_verifications where distribution_id = ?)", distributionId)
	}

	var expected int64
	if res := baseQuery(s.db.WithContext(ctx)).Count(&expected); res.Error != nil {
		return nil, res.Error
	}

	hodlers := make([]*storage.HodlerAddress, 0, expected)
	for offset := 0; ; offset += s.config.PageSize {
		var rows []*chainAddressRow
		res := baseQuery(s.db.WithContext(ctx)).
			Order("address asc").
			Limit(s.config.PageSize).
			Offset(offset).
			Find(&rows)
		if res.Error != nil {
			return nil, res.Error
		}
		for _, row := range rows {
			hodlers = append(hodlers, &storage.HodlerAddress{
				UserId:  row.UserId,
				Address: row.Address,
			})
		}
		if len(rows) < s.config.PageSize {
			break
		}
	}

	if int64(len(hodlers)) != expected {
		return nil, fmt.Errorf("hodler address read for distribution %d returned %d of %d rows",
			distributionId, len(hodlers), expected)
	}
	return hodlers, nil
}

// UpsertShares replaces the share set for a distribution in one transaction:
// rows for addresses no longer in the set are deleted, the rest are upserted
// on (distribution_id, address).
func (s *PostgresDistributionStore) UpsertShares(ctx context.Context, distributionId uint64, shares []*storage.DistributionShare) error {
	rows := make([]*shareRow, 0, len(shares))
	addresses := make([]string, 0, len(shares))
	now := time.Now().UTC()
	for _, share := range shares {
		rows = append(rows, &shareRow{
			DistributionId:   share.DistributionId,
			UserId:           share.UserId,
			Address:          share.Address,
			Index:            share.Index,
			Amount:           share.Amount.String(),
			HodlerPoolAmount: share.HodlerPoolAmount.String(),
			BonusPoolAmount:  share.BonusPoolAmount.String(),
			FixedPoolAmount:  share.FixedPoolAmount.String(),
			UpdatedAt:        now,
		})
		addresses = append(addresses, share.Address)
	}

	_, err := helpers.WrapTxAndCommit(func(tx *gorm.DB) (any, error) {
		stale := tx.WithContext(ctx).Where("distribution_id = ?", distributionId)
		if len(addresses) > 0 {
			stale = stale.Where("address not in (?)", addresses)
		}
		if res := stale.Delete(&shareRow{}); res.Error != nil {
			return nil, res.Error
		}

		if len(rows) == 0 {
			return nil, nil
		}
		res := tx.WithContext(ctx).Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "distribution_id"}, {Name: "address"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"user_id", "index", "amount",
				"hodler_pool_amount", "bonus_pool_amount", "fixed_pool_amount",
				"updated_at",
			}),
		}).Create(&rows)
		return nil, res.Error
	}, s.db, nil)
	if err != nil {
		s.logger.Sugar().Errorw("Failed to upsert distribution shares",
			zap.Uint64("distributionId", distributionId),
			zap.Int("shares", len(shares)),
			zap.Error(err),
		)
	}
	return err
}

func (s *PostgresDistributionStore) ListShares(ctx context.Context, distributionId uint64) ([]*storage.DistributionShare, error) {
	var rows []*shareRow
	res := s.db.WithContext(ctx).
		Where("distribution_id = ?", distributionId).
		Order("index asc").
		Find(&rows)
	if res.Error != nil {
		return nil, res.Error
	}

	shares := make([]*storage.DistributionShare, 0, len(rows))
	for _, row := range rows {
		amount, err := parseBig(row.Amount, "amount")
		if err != nil {
			return nil, err
		}
		hodlerAmount, err := parseBig(row.HodlerPoolAmount, "hodler_pool_amount")
		if err != nil {
			return nil, err
		}
		bonusAmount, err := parseBig(row.BonusPoolAmount, "bonus_pool_amount")
		if err != nil {
			return nil, err
		}
		fixedAmount, err := parseBig(row.FixedPoolAmount, "fixed_pool_amount")
		if err != nil {
			return nil, err
		}
		shares = append(shares, &storage.DistributionShare{
			DistributionId:   row.DistributionId,
			UserId:           row.UserId,
			Address:          row.Address,
			Index:            row.Index,
			Amount:           amount,
			HodlerPoolAmount: hodlerAmount,
			BonusPoolAmount:  bonusAmount,
			FixedPoolAmount:  fixedAmount,
		})
	}
	return shares, nil
}
