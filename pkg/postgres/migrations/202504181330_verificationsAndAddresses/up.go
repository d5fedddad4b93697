package _202504181330_verificationsAndAddresses

import (
	"database/sql"

	"github.com/0xsend/distributor/internal/config"
	"gorm.io/gorm"
)

type Migration struct {
}

func (m *Migration) Up(db *sql.DB, grm *gorm.DB, cfg *config.Config) error {
	queries := []string{
		`create table if not exists distribution_verifications (
			id bigserial primary key,
			distribution_id bigint not null references distributions(id),
			user_id uuid not null,
			type varchar not null,
			metadata jsonb,
			created_at timestamp with time zone default current_timestamp
		)`,
		`create index if not exists idx_distribution_verifications_dist_user
			on distribution_verifications (distribution_id, user_id)`,
		`create table if not exists chain_addresses (
			address varchar not null primary key,
			user_id uuid not null unique,
			created_at timestamp with time zone default current_timestamp
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
	return "202504181330_verificationsAndAddresses"
}
