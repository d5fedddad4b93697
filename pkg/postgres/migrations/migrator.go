package migrations

import (
	"database/sql"

	"github.com/0xsend/distributor/internal/config"
	_202504181200_coreTables "github.com/0xsend/distributor/pkg/postgres/migrations/202504181200_coreTables"
	_202504181330_verificationsAndAddresses "github.com/0xsend/distributor/pkg/postgres/migrations/202504181330_verificationsAndAddresses"
	_202504221100_distributionShares "github.com/0xsend/distributor/pkg/postgres/migrations/202504221100_distributionShares"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Migration is a single schema change. Migrations are applied in declaration
// order and recorded by name, so each one runs exactly once per database.
type Migration interface {
	Up(db *sql.DB, grm *gorm.DB, cfg *config.Config) error
	GetName() string
}

type Migrator struct {
	Db           *sql.DB
	GDb          *gorm.DB
	Logger       *zap.Logger
	globalConfig *config.Config
}

func NewMigrator(db *sql.DB, gDb *gorm.DB, l *zap.Logger, cfg *config.Config) *Migrator {
	return &Migrator{
		Db:           db,
		GDb:          gDb,
		Logger:       l,
		globalConfig: cfg,
	}
}

func (m *Migrator) initMigrationsTable() error {
	query := `
		create table if not exists migrations (
			name varchar not null primary key,
			created_at timestamp with time zone default current_timestamp
		)`
	res := m.GDb.Exec(query)
	return res.Error
}

// MigrateAll applies every pending migration in order.
func (m *Migrator) MigrateAll() error {
	if err := m.initMigrationsTable(); err != nil {
		return err
	}

	migrations := []Migration{
		&_202504181200_coreTables.Migration{},
		&_202504181330_verificationsAndAddresses.Migration{},
		&_202504221100_distributionShares.Migration{},
	}

	for _, migration := range migrations {
		if err := m.Migrate(migration); err != nil {
			return err
		}
	}
	return nil
}

func (m *Migrator) Migrate(migration Migration) error {
	name := migration.GetName()

	var count int64
	res := m.GDb.Raw(`select count(*) from migrations where name = ?`, name).Scan(&count)
	if res.Error != nil {
		return res.Error
	}
	if count > 0 {
		return nil
	}

	m.Logger.Sugar().Infow("Running migration", zap.String("name", name))
	if err := migration.Up(m.Db, m.GDb, m.globalConfig); err != nil {
		m.Logger.Sugar().Errorw("Failed to run migration",
			zap.String("name", name),
			zap.Error(err),
		)
		return err
	}

	res = m.GDb.Exec(`insert into migrations (name) values (?)`, name)
	return res.Error
}
