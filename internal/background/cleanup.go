package background

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// PurgeTarget is one store whose expired entries are dropped on each run
type PurgeTarget struct {
	Name  string
	Purge func(ctx context.Context, now time.Time) (int64, error)
}

// CleanupManager periodically purges expired guard entries. The request path
// never depends on it; expired entries are already ignored on read.
type CleanupManager struct {
	targets  []PurgeTarget
	logger   *slog.Logger
	interval time.Duration
	now      func() time.Time
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(logger *slog.Logger, interval time.Duration, targets ...PurgeTarget) *CleanupManager {
	return &CleanupManager{
		targets:  targets,
		logger:   logger,
		interval: interval,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

// Start runs the purge loop until Stop is called or ctx ends. A
// non-positive interval disables it.
func (cm *CleanupManager) Start(ctx context.Context) {
	if cm.interval <= 0 || len(cm.targets) == 0 {
		cm.logger.Info("cleanup manager disabled")
		return
	}

	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	// Run immediately on startup
	cm.RunOnce(ctx)

	for {
		select {
		case <-ticker.C:
			cm.RunOnce(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

// RunOnce purges every target. A failing target does not stop the others.
func (cm *CleanupManager) RunOnce(ctx context.Context) {
	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	now := cm.now()
	for _, target := range cm.targets {
		removed, err := target.Purge(cleanupCtx, now)
		if err != nil {
			cm.logger.Warn("failed to purge expired guard entries",
				slog.String("tier", target.Name),
				slog.Any("error", err),
			)
			continue
		}
		if removed > 0 {
			cm.logger.Info("expired guard entries purged",
				slog.String("tier", target.Name),
				slog.Int64("removed", removed),
			)
		}
	}
}

// Stop signals the cleanup manager to stop. Safe to call more than once.
func (cm *CleanupManager) Stop() {
	cm.stopOnce.Do(func() { close(cm.stopCh) })
}
