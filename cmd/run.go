package cmd

import (
	"context"
	"log"
	"time"

	"github.com/0xsend/distributor/internal/version"
	"github.com/0xsend/distributor/pkg/distributorQueue"
	"github.com/0xsend/distributor/pkg/metrics/prometheus"
	"github.com/0xsend/distributor/pkg/postgres/migrations"
	"github.com/0xsend/distributor/pkg/shutdown"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the distribution share worker",
	Long: `Runs migrations, then sweeps open distributions and computes their
shares. With a non-zero interval the sweep repeats until shutdown; with a
zero interval it runs once and exits.`,
	Run: func(cmd *cobra.Command, args []string) {
		bindFlags(cmd)

		c, err := setupCore()
		if err != nil {
			log.Fatalf("Failed to setup: %v", err)
		}
		l := c.Logger

		l.Sugar().Infow("distributor worker",
			zap.String("version", version.GetVersion()),
			zap.String("commit", version.GetCommit()),
			zap.Uint64("chainId", c.Config.ChainId),
		)

		migrator := migrations.NewMigrator(c.Db, c.Grm, l, c.Config)
		if err := migrator.MigrateAll(); err != nil {
			l.Sugar().Fatalw("Failed to run migrations", zap.Error(err))
		}

		go c.Queue.Process()

		promChan := make(chan bool)
		if c.Config.PrometheusConfig.Enabled {
			pServer := prometheus.NewPrometheusServer(&prometheus.PrometheusServerConfig{
				Port: c.Config.PrometheusConfig.Port,
			}, l)
			if err := pServer.Start(promChan); err != nil {
				l.Sugar().Fatalw("Failed to start prometheus server", zap.Error(err))
			}
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sweep := func() {
			_, err := c.Queue.EnqueueAndWait(ctx, distributorQueue.DistributionCalculationData{
				CalculationType: distributorQueue.DistributionCalculationType_ProcessAll,
			})
			if err != nil {
				l.Sugar().Errorw("Distribution sweep failed", zap.Error(err))
			}
		}

		interval := c.Config.DistributorConfig.Interval
		if interval == 0 {
			sweep()
			c.Queue.Close()
			close(promChan)
			return
		}

		done := make(chan bool)
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			sweep()
			for {
				select {
				case <-ticker.C:
					sweep()
				case <-ctx.Done():
					c.Queue.Close()
					done <- true
					return
				}
			}
		}()

		gracefulShutdown := shutdown.CreateGracefulShutdownChannel()
		shutdown.ListenForShutdown(gracefulShutdown, done, func() {
			l.Sugar().Info("Shutting down...")
			close(promChan)
			cancel()
		}, time.Second*30, l)
	},
}
