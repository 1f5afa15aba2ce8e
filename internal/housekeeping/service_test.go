package housekeeping

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minhacidade/backend/internal/config"
)

type countingPurger struct {
	calls atomic.Int64
	at    atomic.Value
}

func (c *countingPurger) PurgeResetTokens(ctx context.Context, now time.Time) (int64, error) {
	c.calls.Add(1)
	c.at.Store(now)
	return 3, nil
}

func TestRunOncePassesCurrentTime(t *testing.T) {
	purger := &countingPurger{}
	svc := NewService(purger, config.HousekeepingConfig{Enabled: true, Interval: time.Hour}, zerolog.Nop())
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	n, err := svc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.Equal(t, fixed, purger.at.Load())
}

func TestLoopRunsUntilStopped(t *testing.T) {
	purger := &countingPurger{}
	svc := NewService(purger, config.HousekeepingConfig{Enabled: true, Interval: 10 * time.Millisecond}, zerolog.Nop())

	svc.Start(context.Background())
	svc.Start(context.Background())
	require.Eventually(t, func() bool { return purger.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	svc.Stop()

	after := purger.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, purger.calls.Load())
}

func TestDisabledDoesNothing(t *testing.T) {
	purger := &countingPurger{}
	svc := NewService(purger, config.HousekeepingConfig{}, zerolog.Nop())
	svc.Start(context.Background())
	svc.Stop()
	assert.Zero(t, purger.calls.Load())
}
