package distributorQueue

import (
	"context"
	"fmt"
	"time"

	"github.com/0xsend/distributor/pkg/distribution"
	"go.uber.org/zap"
)

// Process runs the queue worker loop until Close is called. Messages are
// handled strictly one at a time; run this in a goroutine.
func (dq *DistributorQueue) Process() {
	for {
		select {
		case message := <-dq.queue:
			dq.logger.Sugar().Infow("Processing distribution calculation message", "data", message.Data)
			response := dq.processMessage(message)

			if message.ResponseChan != nil {
				message.ResponseChan <- response
			} else if response.Error != nil {
				dq.logger.Sugar().Errorw("Failed to process distribution calculation message",
					zap.Any("data", message.Data),
					zap.Error(response.Error),
				)
			}
		case <-dq.done:
			dq.logger.Sugar().Infow("Stopping distribution calculation queue worker")
			return
		}
	}
}

func (dq *DistributorQueue) processMessage(message *DistributionCalculationMessage) *DistributionCalculatorResponse {
	response := &DistributionCalculatorResponse{
		Data: &DistributionCalculatorResponseData{},
	}
	data := message.Data
	ctx := context.Background()

	switch data.CalculationType {
	case DistributionCalculationType_ProcessAll:
		asOf := data.AsOf
		if asOf.IsZero() {
			asOf = time.Now().UTC()
		}
		response.Error = dq.runWithRetries(ctx, func() error {
			return dq.calculator.ProcessOpenDistributions(ctx, asOf)
		})
	case DistributionCalculationType_ProcessOne:
		response.Data.DistributionId = data.DistributionId
		response.Error = dq.runWithRetries(ctx, func() error {
			return dq.calculator.CalculateDistributionSharesById(ctx, data.DistributionId)
		})
	default:
		response.Error = fmt.Errorf("unknown calculation type '%s'", data.CalculationType)
	}
	return response
}

// runWithRetries applies bounded exponential backoff to transient failures.
// Fatal errors surface immediately; a transient error that survives every
// attempt is escalated as-is.
func (dq *DistributorQueue) runWithRetries(ctx context.Context, fn func() error) error {
	var err error
	backoff := time.Second
	for attempt := 0; attempt <= dq.maxRetries; attempt++ {
		if attempt > 0 {
			dq.logger.Sugar().Infow("Retrying distribution calculation",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
				zap.Error(err),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		err = fn()
		if err == nil {
			return nil
		}
		if !distribution.IsRetryable(err) {
			return err
		}
	}
	return err
}
