package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestShouldRetry(t *testing.T) {
	t.Run("nil policy never retries", func(t *testing.T) {
		assert.False(t, shouldRetry(nil, 0, "boom"))
	})

	t.Run("stops once attempts are exhausted", func(t *testing.T) {
		p := &RetryPolicy{MaxAttempts: 2}
		assert.True(t, shouldRetry(p, 0, "boom"))
		assert.False(t, shouldRetry(p, 1, "boom"))
	})

	t.Run("empty retry_on matches any failure", func(t *testing.T) {
		p := &RetryPolicy{MaxAttempts: 3}
		assert.True(t, shouldRetry(p, 0, "anything"))
	})

	t.Run("retry_on is a case-insensitive substring match", func(t *testing.T) {
		p := &RetryPolicy{MaxAttempts: 3, RetryOn: []string{"TIMEOUT"}}
		assert.True(t, shouldRetry(p, 0, "request timeout exceeded"))
		assert.False(t, shouldRetry(p, 0, "permission denied"))
	})
}

func TestBackoffDelay(t *testing.T) {
	base := 100
	t.Run("fixed", func(t *testing.T) {
		p := &RetryPolicy{Backoff: BackoffFixed, BaseDelayMs: base}
		assert.Equal(t, 100*time.Millisecond, backoffDelay(p, 0))
		assert.Equal(t, 100*time.Millisecond, backoffDelay(p, 3))
	})

	t.Run("linear", func(t *testing.T) {
		p := &RetryPolicy{Backoff: BackoffLinear, BaseDelayMs: base}
		assert.Equal(t, 100*time.Millisecond, backoffDelay(p, 0))
		assert.Equal(t, 300*time.Millisecond, backoffDelay(p, 2))
	})

	t.Run("exponential", func(t *testing.T) {
		p := &RetryPolicy{Backoff: BackoffExponential, BaseDelayMs: base}
		assert.Equal(t, 100*time.Millisecond, backoffDelay(p, 0))
		assert.Equal(t, 400*time.Millisecond, backoffDelay(p, 2))
	})
}
