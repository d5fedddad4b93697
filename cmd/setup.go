package cmd

import (
	"database/sql"
	"fmt"

	"github.com/0xsend/distributor/internal/config"
	"github.com/0xsend/distributor/internal/logger"
	"github.com/0xsend/distributor/pkg/balances"
	"github.com/0xsend/distributor/pkg/clients/ethereum"
	"github.com/0xsend/distributor/pkg/distribution"
	"github.com/0xsend/distributor/pkg/distributorQueue"
	"github.com/0xsend/distributor/pkg/metrics"
	"github.com/0xsend/distributor/pkg/postgres"
	pgStorage "github.com/0xsend/distributor/pkg/storage/postgres"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// core holds the wired-up dependency graph shared by the worker and rpc
// commands.
type core struct {
	Config      *config.Config
	Logger      *zap.Logger
	MetricsSink *metrics.MetricsSink
	Db          *sql.DB
	Grm         *gorm.DB
	Store       *pgStorage.PostgresDistributionStore
	EthClient   *ethereum.Client
	Calculator  *distribution.ShareCalculator
	Queue       *distributorQueue.DistributorQueue
}

func setupCore() (*core, error) {
	cfg := config.NewConfig()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})
	if err != nil {
		return nil, err
	}

	metricsClients, err := metrics.InitMetricsSinksFromConfig(cfg, l)
	if err != nil {
		return nil, fmt.Errorf("failed to setup metrics clients: %w", err)
	}
	sink, err := metrics.NewMetricsSink(&metrics.MetricsSinkConfig{}, metricsClients)
	if err != nil {
		return nil, fmt.Errorf("failed to setup metrics sink: %w", err)
	}

	pgConfig := postgres.PostgresConfigFromDbConfig(&cfg.DatabaseConfig)
	pg, err := postgres.NewPostgres(pgConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to setup postgres connection: %w", err)
	}
	grm, err := postgres.NewGormFromPostgresConnection(pg.Db)
	if err != nil {
		return nil, fmt.Errorf("failed to create gorm instance: %w", err)
	}

	store := pgStorage.NewPostgresDistributionStore(grm, &pgStorage.DistributionStoreConfig{
		PageSize: cfg.DistributorConfig.PageSize,
	}, l)

	client := ethereum.NewClient(&ethereum.EthereumClientConfig{
		BaseUrl: cfg.EthereumRpcConfig.BaseUrl,
	}, l)

	fetcher := balances.NewBalanceFetcher(client, &balances.BalanceFetcherConfig{
		FanOutWidth: cfg.DistributorConfig.FanOutWidth,
	}, l)

	calculator := distribution.NewShareCalculator(store, fetcher, client, sink, l)
	queue := distributorQueue.NewDistributorQueue(calculator, cfg.DistributorConfig.MaxRetries, l)

	return &core{
		Config:      cfg,
		Logger:      l,
		MetricsSink: sink,
		Db:          pg.Db,
		Grm:         grm,
		Store:       store,
		EthClient:   client,
		Calculator:  calculator,
		Queue:       queue,
	}, nil
}

func bindFlags(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		key := config.KebabToSnakeCase(f.Name)
		viper.BindPFlag(key, f) //nolint:errcheck
		viper.BindEnv(key)      //nolint:errcheck
	})
}
