package storage

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/BradenHooton/loginguard/internal/models"
)

// Coordinator tries its tiers in order. The first tier that answers wins and
// tier errors never reach the caller.
type Coordinator struct {
	name     string
	tiers    []Tier
	logger   *slog.Logger
	degraded sync.Once
}

func NewCoordinator(name string, logger *slog.Logger, tiers ...Tier) *Coordinator {
	return &Coordinator{name: name, tiers: tiers, logger: logger}
}

// Tiers returns the tier names in fallback order.
func (c *Coordinator) Tiers() []string {
	names := make([]string, len(c.tiers))
	for i, t := range c.tiers {
		names[i] = t.Name()
	}
	return names
}

// IncrementWithExpiry returns a zero counter when every tier fails, which
// lets the request through.
func (c *Coordinator) IncrementWithExpiry(ctx context.Context, key string, now time.Time, ttl time.Duration, mode models.WindowMode) models.WindowCounter {
	for i, t := range c.tiers {
		wc, err := t.IncrementWithExpiry(ctx, key, now, ttl, mode)
		if err != nil {
			c.tierFailed(t, "increment", err)
			continue
		}
		c.served(i, t)
		return wc
	}
	c.logger.Error("all storage tiers failed", slog.String("coordinator", c.name), slog.String("op", "increment"))
	return models.WindowCounter{}
}

func (c *Coordinator) Get(ctx context.Context, key string, now time.Time) ([]byte, bool) {
	for i, t := range c.tiers {
		v, found, err := t.Get(ctx, key, now)
		if err != nil {
			c.tierFailed(t, "get", err)
			continue
		}
		c.served(i, t)
		return v, found
	}
	return nil, false
}

// GetAndDelete consumes a record from the first tier that answers and clears
// the key from the remaining tiers. It reports not found when every tier fails.
func (c *Coordinator) GetAndDelete(ctx context.Context, key string, now time.Time) ([]byte, bool) {
	for i, t := range c.tiers {
		v, found, err := t.GetAndDelete(ctx, key, now)
		if err != nil {
			c.tierFailed(t, "getdel", err)
			continue
		}
		c.served(i, t)
		for _, rest := range c.tiers[i+1:] {
			if err := rest.Delete(ctx, key); err != nil {
				c.tierFailed(rest, "delete", err)
			}
		}
		return v, found
	}
	c.logger.Error("all storage tiers failed", slog.String("coordinator", c.name), slog.String("op", "getdel"))
	return nil, false
}

func (c *Coordinator) Set(ctx context.Context, key string, value []byte, now time.Time, ttl time.Duration) {
	for i, t := range c.tiers {
		if err := t.Set(ctx, key, value, now, ttl); err != nil {
			c.tierFailed(t, "set", err)
			continue
		}
		c.served(i, t)
		return
	}
	c.logger.Error("all storage tiers failed", slog.String("coordinator", c.name), slog.String("op", "set"))
}

// Delete removes keys from every tier so a record written to a fallback
// during an outage cannot resurface later.
func (c *Coordinator) Delete(ctx context.Context, keys ...string) {
	for _, t := range c.tiers {
		if err := t.Delete(ctx, keys...); err != nil {
			c.tierFailed(t, "delete", err)
		}
	}
}

func (c *Coordinator) served(index int, t Tier) {
	if index == 0 {
		return
	}
	c.degraded.Do(func() {
		c.logger.Warn("primary storage tier unavailable, serving from fallback",
			slog.String("coordinator", c.name),
			slog.String("tier", t.Name()),
		)
	})
}

func (c *Coordinator) tierFailed(t Tier, op string, err error) {
	c.logger.Debug("storage tier failed",
		slog.String("coordinator", c.name),
		slog.String("tier", t.Name()),
		slog.String("op", op),
		slog.String("error", err.Error()),
	)
}
