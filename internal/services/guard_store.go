package services

import (
	"context"
	"strings"
	"time"

	"github.com/BradenHooton/loginguard/internal/models"
)

// GuardStore is the tiered store every guard service shares. It never
// returns errors; storage.Coordinator is the production implementation.
type GuardStore interface {
	IncrementWithExpiry(ctx context.Context, key string, now time.Time, ttl time.Duration, mode models.WindowMode) models.WindowCounter
	Get(ctx context.Context, key string, now time.Time) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, now time.Time, ttl time.Duration)
	GetAndDelete(ctx context.Context, key string, now time.Time) ([]byte, bool)
	Delete(ctx context.Context, keys ...string)
}

// Clock returns the current time; tests replace it to step through windows.
type Clock func() time.Time

const keyPrefix = "guard:"

// NormalizeIP strips the IPv4-mapped IPv6 prefix so "::ffff:1.2.3.4" and
// "1.2.3.4" share one counter.
func NormalizeIP(ip string) string {
	ip = strings.TrimSpace(ip)
	if strings.HasPrefix(strings.ToLower(ip), "::ffff:") && strings.Contains(ip, ".") {
		return ip[len("::ffff:"):]
	}
	return ip
}

func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
