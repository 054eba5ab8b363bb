package background

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/BradenHooton/loginguard/internal/models"
	"github.com/BradenHooton/loginguard/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func memoryTarget(m *storage.MemoryTier) PurgeTarget {
	return PurgeTarget{Name: "memory", Purge: func(_ context.Context, now time.Time) (int64, error) {
		return int64(m.Purge(now)), nil
	}}
}

func TestRunOnce_PurgesMemoryTier(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemoryTier()
	past := time.Now().Add(-time.Hour)

	_, err := mem.IncrementWithExpiry(ctx, "guard:rate:login:1.2.3.4", past, time.Minute, models.WindowFixed)
	require.NoError(t, err)
	require.NoError(t, mem.Set(ctx, "guard:sess:live", []byte("{}"), time.Now(), time.Hour))

	cm := NewCleanupManager(discardLogger(), time.Minute, memoryTarget(mem))
	cm.RunOnce(ctx)

	assert.Equal(t, 1, mem.Len())
}

func TestRunOnce_FailingTargetDoesNotStopOthers(t *testing.T) {
	var calls atomic.Int32
	failing := PurgeTarget{Name: "postgres", Purge: func(context.Context, time.Time) (int64, error) {
		return 0, errors.New("connection refused")
	}}
	counting := PurgeTarget{Name: "memory", Purge: func(context.Context, time.Time) (int64, error) {
		calls.Add(1)
		return 0, nil
	}}

	NewCleanupManager(discardLogger(), time.Minute, failing, counting).RunOnce(context.Background())
	assert.Equal(t, int32(1), calls.Load())
}

func TestStart_DisabledWithZeroInterval(t *testing.T) {
	var calls atomic.Int32
	target := PurgeTarget{Name: "memory", Purge: func(context.Context, time.Time) (int64, error) {
		calls.Add(1)
		return 0, nil
	}}

	done := make(chan struct{})
	go func() {
		NewCleanupManager(discardLogger(), 0, target).Start(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start did not return for a disabled manager")
	}
	assert.Zero(t, calls.Load())
}

func TestStart_StopsOnStop(t *testing.T) {
	var calls atomic.Int32
	target := PurgeTarget{Name: "memory", Purge: func(context.Context, time.Time) (int64, error) {
		calls.Add(1)
		return 0, nil
	}}
	cm := NewCleanupManager(discardLogger(), time.Hour, target)

	done := make(chan struct{})
	go func() {
		cm.Start(context.Background())
		close(done)
	}()

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	cm.Stop()
	cm.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start did not return after Stop")
	}
}
