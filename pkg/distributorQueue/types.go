package distributorQueue

import (
	"time"

	"github.com/0xsend/distributor/pkg/distribution"
	"go.uber.org/zap"
)

// DistributionCalculationType defines the type of calculation operation to
// perform. It is used to determine which calculator entry point to execute.
type DistributionCalculationType string

var (
	// DistributionCalculationType_ProcessAll indicates a request to process
	// every distribution currently inside its qualification window
	DistributionCalculationType_ProcessAll DistributionCalculationType = "processAll"

	// DistributionCalculationType_ProcessOne indicates a request to process a
	// single distribution by id
	DistributionCalculationType_ProcessOne DistributionCalculationType = "processOne"
)

// DistributionCalculationData contains the parameters for a calculation
// request.
type DistributionCalculationData struct {
	// CalculationType determines which calculator entry point to invoke
	CalculationType DistributionCalculationType

	// DistributionId identifies the distribution for ProcessOne requests;
	// ignored for ProcessAll
	DistributionId uint64

	// AsOf pins the qualification-window check for ProcessAll requests. If
	// zero, the time of processing is used.
	AsOf time.Time
}

// DistributionCalculationMessage represents a message in the calculation
// queue. It contains the request data and an optional channel for receiving
// the response.
type DistributionCalculationMessage struct {
	Data DistributionCalculationData

	// ResponseChan is the channel where the response will be sent. If nil,
	// no response is sent back.
	ResponseChan chan *DistributionCalculatorResponse
}

// DistributionCalculatorResponseData contains the result data from a
// calculation run.
type DistributionCalculatorResponseData struct {
	// DistributionId echoes the processed distribution for ProcessOne runs
	DistributionId uint64
}

// DistributionCalculatorResponse is the complete response from a calculation
// run, including both the result data and any error that occurred.
type DistributionCalculatorResponse struct {
	Data  *DistributionCalculatorResponseData
	Error error
}

// DistributorQueue serializes calculation runs: messages are processed one at
// a time in arrival order, so no two distributions' allocations ever execute
// concurrently.
type DistributorQueue struct {
	logger     *zap.Logger
	calculator *distribution.ShareCalculator

	// maxRetries bounds the retry attempts applied to transient failures
	maxRetries int

	queue chan *DistributionCalculationMessage
	done  chan struct{}
}
