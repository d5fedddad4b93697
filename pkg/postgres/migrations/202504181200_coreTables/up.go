package _202504181200_coreTables

import (
	"database/sql"

	"github.com/0xsend/distributor/internal/config"
	"gorm.io/gorm"
)

type Migration struct {
}

func (m *Migration) Up(db *sql.DB, grm *gorm.DB, cfg *config.Config) error {
	queries := []string{
		`create table if not exists distributions (
			id bigint not null primary key,
			number bigint not null,
			name varchar not null,
			description text,
			amount numeric(78,0) not null,
			hodler_pool_bips numeric(78,0) not null default 0,
			bonus_pool_bips numeric(78,0) not null default 0,
			fixed_pool_bips numeric(78,0) not null default 0,
			hodler_min_balance numeric(78,0) not null default 0,
			qualification_start timestamp with time zone not null,
			qualification_end timestamp with time zone not null,
			claim_end timestamp with time zone not null,
			snapshot_block_num bigint not null default 0,
			chain_id bigint not null,
			token_addr varchar not null,
			token_decimals integer not null default 18,
			merkle_drop_addr varchar not null,
			tranche_id bigint not null,
			created_at timestamp with time zone default current_timestamp,
			updated_at timestamp with time zone default current_timestamp
		)`,
		`create table if not exists distribution_verification_values (
			distribution_id bigint not null references distributions(id),
			type varchar not null,
			fixed_value numeric(78,0) not null default 0,
			bips_value numeric(78,0) not null default 0,
			created_at timestamp with time zone default current_timestamp,
			updated_at timestamp with time zone default current_timestamp,
			primary key (distribution_id, type)
		)`,
	}
	for _, query := range queries {
		if res := grm.Exec(query); res.Error != nil {
			return res.Error
		}
	}
	return nil
}

func (m *Migration) GetName() string {
	return "202504181200_coreTables"
}
