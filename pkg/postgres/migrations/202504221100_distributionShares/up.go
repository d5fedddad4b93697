package _202504221100_distributionShares

import (
	"database/sql"

	"github.com/0xsend/distributor/internal/config"
	"gorm.io/gorm"
)

type Migration struct {
}

func (m *Migration) Up(db *sql.DB, grm *gorm.DB, cfg *config.Config) error {
	queries := []string{
		`create table if not exists distribution_shares (
			id bigserial primary key,
			distribution_id bigint not null references distributions(id),
			user_id uuid not null,
			address varchar not null,
			index bigint not null,
			amount numeric(78,0) not null,
			hodler_pool_amount numeric(78,0) not null default 0,
			bonus_pool_amount numeric(78,0) not null default 0,
			fixed_pool_amount numeric(78,0) not null default 0,
			created_at timestamp with time zone default current_timestamp,
			updated_at timestamp with time zone default current_timestamp,
			constraint uniq_distribution_shares_address unique (distribution_id, address),
			constraint uniq_distribution_shares_index unique (distribution_id, index) deferrable initially deferred
		)`,
		`create index if not exists idx_distribution_shares_user on distribution_shares (user_id)`,
	}
	for _, query := range queries {
		if res := grm.Exec(query); res.Error != nil {
			return res.Error
		}
	}
	return nil
}

func (m *Migration) GetName() string {
	return "202504221100_distributionShares"
}
