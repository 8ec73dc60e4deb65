package guard

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemoryRateLimiter(t *testing.T) {
	ctx := context.Background()

	t.Run("allows under limit", func(t *testing.T) {
		rl := NewMemoryRateLimiter(3, time.Minute)
		for i := 0; i < 3; i++ {
			res := rl.Check(ctx, "buyer-1")
			assert.True(t, res.Allowed, "request %d", i)
		}
	})

	t.Run("blocks over limit", func(t *testing.T) {
		rl := NewMemoryRateLimiter(2, time.Minute)
		rl.Check(ctx, "buyer-1")
		rl.Check(ctx, "buyer-1")

		res := rl.Check(ctx, "buyer-1")
		assert.False(t, res.Allowed)
		assert.Contains(t, res.Reason, "rate limit exceeded")
		assert.Equal(t, "rate_limiter", res.Guard)
		assert.Equal(t, 60, res.RetryAfterSeconds)
	})

	t.Run("keys are independent", func(t *testing.T) {
		rl := NewMemoryRateLimiter(1, time.Minute)
		assert.True(t, rl.Check(ctx, "buyer-1").Allowed)
		assert.False(t, rl.Check(ctx, "buyer-1").Allowed)
		assert.True(t, rl.Check(ctx, "buyer-2").Allowed)
	})

	t.Run("window expires", func(t *testing.T) {
		rl := NewMemoryRateLimiter(1, 20*time.Millisecond)
		assert.True(t, rl.Check(ctx, "buyer-1").Allowed)
		assert.False(t, rl.Check(ctx, "buyer-1").Allowed)

		time.Sleep(30 * time.Millisecond)
		assert.True(t, rl.Check(ctx, "buyer-1").Allowed)
	})
}
