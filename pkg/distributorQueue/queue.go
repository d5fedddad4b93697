package distributorQueue

import (
	"context"

	"github.com/0xsend/distributor/pkg/distribution"
	"go.uber.org/zap"
)

const defaultMaxRetries = 3

// NewDistributorQueue creates a queue ready for processing calculation
// requests. Call Process in a goroutine to start the worker.
func NewDistributorQueue(calc *distribution.ShareCalculator, maxRetries int, logger *zap.Logger) *DistributorQueue {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	return &DistributorQueue{
		logger:     logger,
		calculator: calc,
		maxRetries: maxRetries,
		// allow the queue to buffer up to 100 messages
		queue: make(chan *DistributionCalculationMessage, 100),
		done:  make(chan struct{}),
	}
}

// Enqueue adds a new message to the queue and returns immediately without
// waiting for the calculation to complete.
func (dq *DistributorQueue) Enqueue(payload *DistributionCalculationMessage) {
	dq.logger.Sugar().Infow("Enqueueing distribution calculation message", "data", payload.Data)
	dq.queue <- payload
}

// EnqueueAndWait adds a new message to the queue and blocks until the
// calculation completes or the context is canceled.
func (dq *DistributorQueue) EnqueueAndWait(ctx context.Context, data DistributionCalculationData) (*DistributionCalculatorResponseData, error) {
	responseChan := make(chan *DistributionCalculatorResponse, 1)

	payload := &DistributionCalculationMessage{
		Data:         data,
		ResponseChan: responseChan,
	}
	dq.Enqueue(payload)

	dq.logger.Sugar().Infow("Waiting for distribution calculation response", "data", data)

	select {
	case response := <-responseChan:
		return response.Data, response.Error
	case <-ctx.Done():
		dq.logger.Sugar().Infow("Received context.Done()",
			zap.Error(ctx.Err()),
		)
		return nil, ctx.Err()
	}
}

// Close signals the queue to stop processing messages. Call it when the
// queue is no longer needed to release the worker goroutine.
func (dq *DistributorQueue) Close() {
	dq.logger.Sugar().Infow("Closing distribution calculation queue")
	close(dq.done)
}
