package services

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/BradenHooton/loginguard/internal/models"
	"github.com/google/uuid"
)

// CaptchaService issues single-use arithmetic challenges. Only the id and the
// question leave the server.
type CaptchaService struct {
	store  GuardStore
	ttl    time.Duration
	logger *slog.Logger
	now    Clock
}

func NewCaptchaService(store GuardStore, ttl time.Duration, logger *slog.Logger) *CaptchaService {
	return &CaptchaService{store: store, ttl: ttl, logger: logger, now: time.Now}
}

func (s *CaptchaService) SetClock(now Clock) { s.now = now }

func (s *CaptchaService) Create(ctx context.Context) (*models.Captcha, error) {
	a, err := randomOperand()
	if err != nil {
		return nil, fmt.Errorf("generate captcha: %w", err)
	}
	b, err := randomOperand()
	if err != nil {
		return nil, fmt.Errorf("generate captcha: %w", err)
	}

	now := s.now()
	c := &models.Captcha{
		ID:        uuid.NewString(),
		Challenge: fmt.Sprintf("%d + %d", a, b),
		ExpiresAt: now.Add(s.ttl),
	}
	s.store.Set(ctx, captchaKey(c.ID), []byte(strconv.Itoa(a+b)), now, s.ttl)
	return c, nil
}

// Verify consumes the captcha whether or not the answer is right. Concurrent
// calls with one id accept at most one answer.
func (s *CaptchaService) Verify(ctx context.Context, id, answer string) bool {
	id = strings.TrimSpace(id)
	answer = strings.TrimSpace(answer)
	if id == "" || answer == "" {
		return false
	}

	expected, found := s.store.GetAndDelete(ctx, captchaKey(id), s.now())
	if !found {
		return false
	}
	return string(expected) == answer
}

func randomOperand() (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(9))
	if err != nil {
		return 0, err
	}
	return int(n.Int64()) + 1, nil
}

func captchaKey(id string) string {
	return keyPrefix + "captcha:" + id
}
