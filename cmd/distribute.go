package cmd

import (
	"context"
	"log"
	"strconv"

	"github.com/0xsend/distributor/pkg/distributorQueue"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var distributeCmd = &cobra.Command{
	Use:   "distribute [distribution-id]",
	Short: "Compute shares for one distribution and exit",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		bindFlags(cmd)

		distributionId, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			log.Fatalf("Invalid distribution id '%s'", args[0])
		}

		c, err := setupCore()
		if err != nil {
			log.Fatalf("Failed to setup: %v", err)
		}
		l := c.Logger

		go c.Queue.Process()
		defer c.Queue.Close()

		res, err := c.Queue.EnqueueAndWait(context.Background(), distributorQueue.DistributionCalculationData{
			CalculationType: distributorQueue.DistributionCalculationType_ProcessOne,
			DistributionId:  distributionId,
		})
		if err != nil {
			l.Sugar().Fatalw("Failed to process distribution",
				zap.Uint64("distributionId", distributionId),
				zap.Error(err),
			)
		}
		l.Sugar().Infow("Processed distribution", zap.Uint64("distributionId", res.DistributionId))
	},
}
