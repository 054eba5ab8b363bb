package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// AccessClaims are carried by short-lived access tokens
type AccessClaims struct {
	Type       string `json:"type"`
	OperatorID string `json:"operator_id"`
	Role       string `json:"role"`
	jwt.RegisteredClaims
}

// RefreshClaims are carried by refresh tokens; RegisteredClaims.ID is the jti
type RefreshClaims struct {
	Type       string `json:"type"`
	OperatorID string `json:"operator_id"`
	Role       string `json:"role"`
	SessionID  string `json:"sid"`
	jwt.RegisteredClaims
}

// RefreshSession tracks the live token family of one refresh-token lineage
type RefreshSession struct {
	SessionID  string    `json:"sid"`
	OperatorID string    `json:"operatorId"`
	Role       string    `json:"role"`
	JTI        string    `json:"jti"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// Matches reports whether the presented refresh claims belong to the current lineage
func (s *RefreshSession) Matches(claims *RefreshClaims) bool {
	return s.OperatorID == claims.OperatorID &&
		s.Role == claims.Role &&
		s.JTI == claims.ID
}

// Captcha is a challenge handed to the client; the answer stays server side
type Captcha struct {
	ID        string    `json:"captchaId"`
	Challenge string    `json:"challenge"`
	ExpiresAt time.Time `json:"expiresAt"`
}
