package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/BradenHooton/loginguard/internal/models"
)

// SessionService stores the live jti of each refresh-token lineage.
type SessionService struct {
	store  GuardStore
	logger *slog.Logger
	now    Clock
}

func NewSessionService(store GuardStore, logger *slog.Logger) *SessionService {
	return &SessionService{store: store, logger: logger, now: time.Now}
}

func (s *SessionService) SetClock(now Clock) { s.now = now }

// Put writes or overwrites the session record for sess.SessionID.
func (s *SessionService) Put(ctx context.Context, sess *models.RefreshSession, ttl time.Duration) {
	raw, err := json.Marshal(sess)
	if err != nil {
		s.logger.Error("failed to encode session", slog.String("error", err.Error()))
		return
	}
	s.store.Set(ctx, sessionKey(sess.SessionID), raw, s.now(), ttl)
}

// Get returns nil when the session is missing, expired or unreadable.
func (s *SessionService) Get(ctx context.Context, sid string) *models.RefreshSession {
	if sid == "" {
		return nil
	}
	now := s.now()
	raw, found := s.store.Get(ctx, sessionKey(sid), now)
	if !found {
		return nil
	}
	var sess models.RefreshSession
	if err := json.Unmarshal(raw, &sess); err != nil {
		s.logger.Warn("discarding unreadable session", slog.String("sid", sid), slog.String("error", err.Error()))
		return nil
	}
	if !sess.ExpiresAt.IsZero() && !now.Before(sess.ExpiresAt) {
		return nil
	}
	return &sess
}

func (s *SessionService) Delete(ctx context.Context, sid string) {
	if sid == "" {
		return
	}
	s.store.Delete(ctx, sessionKey(sid))
}

func sessionKey(sid string) string {
	return keyPrefix + "sess:" + sid
}
