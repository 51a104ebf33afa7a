package remote

import (
	"context"
	"testing"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/playtally/internal/domain"
)

func testBreakerSettings() BreakerSettings {
	return BreakerSettings{
		Name:         "test",
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      50 * time.Millisecond,
		MinRequests:  3,
		FailureRatio: 0.5,
	}
}

func TestBreaker_OpensAndRecovers(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	b := NewBreaker(mem, testBreakerSettings(), nil)

	mem.Fail("a", domain.ErrServerOffline)
	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, b.SetPlayCount(ctx, "a", 1), domain.ErrServerOffline)
	}
	assert.Equal(t, "open", b.State())

	// open breaker rejects without reaching the store
	writes := mem.Writes("a")
	assert.ErrorIs(t, b.SetPlayCount(ctx, "a", 1), gobreaker.ErrOpenState)
	assert.Equal(t, writes, mem.Writes("a"))

	mem.Fail("a", nil)
	time.Sleep(80 * time.Millisecond)
	require.NoError(t, b.SetPlayCount(ctx, "a", 1))
	assert.Equal(t, "closed", b.State())
}

func TestBreaker_NotFoundIsHealthy(t *testing.T) {
	ctx := context.Background()
	b := NewBreaker(NewMemory(), testBreakerSettings(), nil)

	for i := 0; i < 5; i++ {
		_, err := b.GetPlayCount(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
	}
	assert.Equal(t, "closed", b.State())
}
