package distribution

import (
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/pkg/errors"
)

// FatalError marks a failure that retrying cannot fix: an invariant
// violation, a sealed distribution, or inconsistent source data. Queue
// workers abort the run instead of backing off.
type FatalError struct {
	Message string
	Inner   error
}

func NewFatalError(message string, inner error) *FatalError {
	return &FatalError{Message: message, Inner: inner}
}

func Fatalf(format string, args ...any) *FatalError {
	return &FatalError{Message: fmt.Sprintf(format, args...)}
}

func (e *FatalError) Error() string {
	if e.Inner != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Inner.Error())
	}
	return e.Message
}

func (e *FatalError) Unwrap() error {
	return e.Inner
}

func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}

// IsRetryable reports whether a failed run is worth re-attempting. Fatal
// errors never are. Postgres errors are retryable only for serialization
// failures, deadlocks, admin shutdown, and connection-class failures;
// anything else from the database (constraint violations and the like) would
// fail the same way again. All other errors are treated as transient.
func IsRetryable(err error) bool {
	if err == nil || IsFatal(err) {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		code := string(pqErr.Code)
		switch code {
		case "40001", "40P01", "57P01":
			return true
		}
		return strings.HasPrefix(code, "08")
	}
	return true
}
