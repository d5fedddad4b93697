package distribution

import (
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func Test_Errors(t *testing.T) {
	t.Run("fatal errors survive wrapping", func(t *testing.T) {
		err := Fatalf("budget exceeded for distribution %d", 12)
		assert.True(t, IsFatal(err))

		wrapped := fmt.Errorf("run failed: %w", err)
		assert.True(t, IsFatal(wrapped))
		assert.False(t, IsRetryable(wrapped))
	})

	t.Run("plain errors are retryable", func(t *testing.T) {
		assert.True(t, IsRetryable(errors.New("connection reset by peer")))
		assert.False(t, IsRetryable(nil))
	})

	t.Run("postgres codes are classified", func(t *testing.T) {
		retryable := []string{"40001", "40P01", "57P01", "08006"}
		for _, code := range retryable {
			err := &pq.Error{Code: pq.ErrorCode(code)}
			assert.True(t, IsRetryable(err), "code %s should be retryable", code)
		}

		notRetryable := []string{"23505", "22P02", "42703"}
		for _, code := range notRetryable {
			err := &pq.Error{Code: pq.ErrorCode(code)}
			assert.False(t, IsRetryable(err), "code %s should not be retryable", code)
		}
	})
}
