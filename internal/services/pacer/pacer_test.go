package pacer_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marquee/internal/services/pacer"
)

func TestDisabledPacerNeverBlocks(t *testing.T) {
	p := pacer.New(0)
	start := time.Now()
	for range 5 {
		require.NoError(t, p.Wait(context.Background()))
	}
	assert.Less(t, time.Since(start), 50*time.Millisecond)
	assert.Zero(t, p.Interval())

	var nilPacer *pacer.Pacer
	assert.NoError(t, nilPacer.Wait(context.Background()))
}

func TestPacerSpacesCalls(t *testing.T) {
	p := pacer.New(40 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, p.Wait(ctx))
	assert.Less(t, time.Since(start), 20*time.Millisecond, "first call should pass immediately")

	require.NoError(t, p.Wait(ctx))
	require.NoError(t, p.Wait(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 70*time.Millisecond)
	assert.Equal(t, 40*time.Millisecond, p.Interval())
}

func TestPacerAddsNoDelayAfterSlowWork(t *testing.T) {
	p := pacer.New(30 * time.Millisecond)
	ctx := context.Background()
	require.NoError(t, p.Wait(ctx))

	time.Sleep(60 * time.Millisecond)
	start := time.Now()
	require.NoError(t, p.Wait(ctx))
	assert.Less(t, time.Since(start), 20*time.Millisecond, "spacing is measured between call starts")
}

func TestPacerHonorsCancellation(t *testing.T) {
	p := pacer.New(time.Hour)
	require.NoError(t, p.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, p.Wait(ctx))
}
