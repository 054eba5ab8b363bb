package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/BradenHooton/loginguard/internal/models"
	"github.com/BradenHooton/loginguard/internal/services"
	"github.com/BradenHooton/loginguard/internal/storage"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionService_PutGetDelete(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	clock := newFakeClock()
	store := storage.NewCoordinator("sessions", discardLogger(), storage.NewRedisTier(rdb, 0), storage.NewMemoryTier())
	svc := services.NewSessionService(store, discardLogger())
	svc.SetClock(clock.Now)
	ctx := context.Background()

	sess := &models.RefreshSession{
		SessionID:  "sid-1",
		OperatorID: "op-1",
		Role:       "doctor",
		JTI:        "jti-1",
		ExpiresAt:  clock.Now().Add(7 * 24 * time.Hour),
	}
	svc.Put(ctx, sess, 7*24*time.Hour)

	assert.True(t, mr.Exists("guard:sess:sid-1"))
	assert.Equal(t, 7*24*time.Hour, mr.TTL("guard:sess:sid-1"))

	got := svc.Get(ctx, "sid-1")
	require.NotNil(t, got)
	assert.Equal(t, "jti-1", got.JTI)
	assert.Equal(t, "op-1", got.OperatorID)

	sess.JTI = "jti-2"
	svc.Put(ctx, sess, 7*24*time.Hour)
	assert.Equal(t, "jti-2", svc.Get(ctx, "sid-1").JTI)

	svc.Delete(ctx, "sid-1")
	assert.Nil(t, svc.Get(ctx, "sid-1"))
	assert.False(t, mr.Exists("guard:sess:sid-1"))
}

func TestSessionService_ExpiredAndCorrupt(t *testing.T) {
	clock := newFakeClock()
	mem := storage.NewMemoryTier()
	store := storage.NewCoordinator("sessions", discardLogger(), mem)
	svc := services.NewSessionService(store, discardLogger())
	svc.SetClock(clock.Now)
	ctx := context.Background()

	svc.Put(ctx, &models.RefreshSession{SessionID: "sid", ExpiresAt: clock.Now().Add(time.Minute)}, time.Hour)
	clock.Advance(time.Minute)
	assert.Nil(t, svc.Get(ctx, "sid"))

	require.NoError(t, mem.Set(ctx, "guard:sess:bad", []byte("{not json"), clock.Now(), time.Hour))
	assert.Nil(t, svc.Get(ctx, "bad"))
	assert.Nil(t, svc.Get(ctx, ""))
}

func TestSessionService_SurvivesRedisOutage(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	mr.Close()

	store := storage.NewCoordinator("sessions", discardLogger(), storage.NewRedisTier(rdb, 0), storage.NewMemoryTier())
	svc := services.NewSessionService(store, discardLogger())
	ctx := context.Background()

	svc.Put(ctx, &models.RefreshSession{SessionID: "sid", JTI: "j", ExpiresAt: time.Now().Add(time.Hour)}, time.Hour)
	got := svc.Get(ctx, "sid")
	require.NotNil(t, got)
	assert.Equal(t, "j", got.JTI)
}
