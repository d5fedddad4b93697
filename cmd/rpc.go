package cmd

import (
	"context"
	"log"
	"time"

	"github.com/0xsend/distributor/internal/version"
	"github.com/0xsend/distributor/pkg/proofs"
	"github.com/0xsend/distributor/pkg/rpcServer"
	"github.com/0xsend/distributor/pkg/shutdown"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rpcCmd = &cobra.Command{
	Use:   "rpc",
	Short: "Run the claim proof HTTP server",
	Run: func(cmd *cobra.Command, args []string) {
		bindFlags(cmd)

		c, err := setupCore()
		if err != nil {
			log.Fatalf("Failed to setup: %v", err)
		}
		l := c.Logger

		l.Sugar().Infow("distributor rpc",
			zap.String("version", version.GetVersion()),
			zap.String("commit", version.GetCommit()),
			zap.Int("httpPort", c.Config.RpcConfig.HttpPort),
		)

		ps := proofs.NewClaimProofsStore(c.Store, c.MetricsSink, l)
		server := rpcServer.NewRpcServer(&rpcServer.RpcServerConfig{
			HttpPort: c.Config.RpcConfig.HttpPort,
		}, ps, c.MetricsSink, l)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		done := make(chan bool)
		go func() {
			if err := server.Run(ctx); err != nil {
				l.Sugar().Errorw("Http server exited with error", zap.Error(err))
			}
			done <- true
		}()

		gracefulShutdown := shutdown.CreateGracefulShutdownChannel()
		shutdown.ListenForShutdown(gracefulShutdown, done, func() {
			l.Sugar().Info("Shutting down...")
			cancel()
		}, time.Second*15, l)
	},
}
