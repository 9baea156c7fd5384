package api

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenLimiterBurst(t *testing.T) {
	lim := newTokenLimiter(1, 2)
	defer lim.Close()

	ctx := context.Background()
	// The burst is immediately available.
	require.NoError(t, lim.Wait(ctx))
	require.NoError(t, lim.Wait(ctx))

	// Bucket drained: the next wait blocks until the context expires.
	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	assert.Error(t, lim.Wait(short))
}

func TestTokenLimiterRefills(t *testing.T) {
	lim := newTokenLimiter(20, 1)
	defer lim.Close()

	ctx := context.Background()
	require.NoError(t, lim.Wait(ctx))

	// At 20 rps a token returns within the deadline.
	refill, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	assert.NoError(t, lim.Wait(refill))
}

func TestTokenLimiterClosed(t *testing.T) {
	lim := newTokenLimiter(1, 1)
	require.NoError(t, lim.Wait(context.Background()))

	lim.Close()
	assert.Error(t, lim.Wait(context.Background()))
}

func TestNilLimiterAllowsAll(t *testing.T) {
	var lim *tokenLimiter
	assert.NoError(t, lim.Wait(context.Background()))
	lim.Close()
}
