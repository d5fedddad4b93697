package shutdown

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// CreateGracefulShutdownChannel returns a channel that receives SIGINT and
// SIGTERM.
func CreateGracefulShutdownChannel() chan os.Signal {
	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)
	return gracefulShutdown
}

// ListenForShutdown blocks until a shutdown signal arrives, invokes the
// handler, then waits for done up to the given timeout before returning.
func ListenForShutdown(
	signals chan os.Signal,
	done chan bool,
	handler func(),
	timeout time.Duration,
	l *zap.Logger,
) {
	sig := <-signals
	l.Sugar().Infow("Received shutdown signal", zap.String("signal", sig.String()))

	handler()

	select {
	case <-done:
		l.Sugar().Infow("Graceful shutdown complete")
	case <-time.After(timeout):
		l.Sugar().Warnw("Graceful shutdown timed out", zap.Duration("timeout", timeout))
	}
}
