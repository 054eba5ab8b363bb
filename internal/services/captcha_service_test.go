package services_test

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/BradenHooton/loginguard/internal/services"
	"github.com/BradenHooton/loginguard/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCaptchas(clock *fakeClock) *services.CaptchaService {
	store := storage.NewCoordinator("test", discardLogger(), storage.NewMemoryTier())
	svc := services.NewCaptchaService(store, 5*time.Minute, discardLogger())
	svc.SetClock(clock.Now)
	return svc
}

func TestCaptchaService_CreateAndVerify(t *testing.T) {
	clock := newFakeClock()
	svc := newCaptchas(clock)
	ctx := context.Background()

	c, err := svc.Create(ctx)
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^[1-9] \+ [1-9]$`), c.Challenge)
	assert.Equal(t, clock.Now().Add(5*time.Minute), c.ExpiresAt)

	assert.True(t, svc.Verify(ctx, c.ID, " "+solveCaptcha(t, c)+" "))
	// Single use
	assert.False(t, svc.Verify(ctx, c.ID, solveCaptcha(t, c)))
}

func TestCaptchaService_WrongAnswerConsumes(t *testing.T) {
	svc := newCaptchas(newFakeClock())
	ctx := context.Background()

	c, err := svc.Create(ctx)
	require.NoError(t, err)

	assert.False(t, svc.Verify(ctx, c.ID, "99"))
	assert.False(t, svc.Verify(ctx, c.ID, solveCaptcha(t, c)))
}

func TestCaptchaService_RejectsMissingAndExpired(t *testing.T) {
	clock := newFakeClock()
	svc := newCaptchas(clock)
	ctx := context.Background()

	assert.False(t, svc.Verify(ctx, "", "3"))
	assert.False(t, svc.Verify(ctx, "unknown-id", "3"))

	c, err := svc.Create(ctx)
	require.NoError(t, err)
	assert.False(t, svc.Verify(ctx, c.ID, ""))

	c, err = svc.Create(ctx)
	require.NoError(t, err)
	clock.Advance(5 * time.Minute)
	assert.False(t, svc.Verify(ctx, c.ID, solveCaptcha(t, c)))
}

// rendezvousStore holds every GetAndDelete until n callers have arrived so the
// reads overlap.
type rendezvousStore struct {
	services.GuardStore
	arrived sync.WaitGroup
}

func (s *rendezvousStore) GetAndDelete(ctx context.Context, key string, now time.Time) ([]byte, bool) {
	s.arrived.Done()
	s.arrived.Wait()
	return s.GuardStore.GetAndDelete(ctx, key, now)
}

func TestCaptchaService_ConcurrentVerifyAcceptsOnce(t *testing.T) {
	const callers = 8
	clock := newFakeClock()
	store := &rendezvousStore{
		GuardStore: storage.NewCoordinator("test", discardLogger(), storage.NewMemoryTier()),
	}
	store.arrived.Add(callers)
	svc := services.NewCaptchaService(store, 5*time.Minute, discardLogger())
	svc.SetClock(clock.Now)
	ctx := context.Background()

	c, err := svc.Create(ctx)
	require.NoError(t, err)
	answer := solveCaptcha(t, c)

	results := make([]bool, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = svc.Verify(ctx, c.ID, answer)
		}(i)
	}
	wg.Wait()

	accepted := 0
	for _, ok := range results {
		if ok {
			accepted++
		}
	}
	assert.Equal(t, 1, accepted)
}
