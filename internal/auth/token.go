package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/BradenHooton/loginguard/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenIssuer mints and parses access and refresh JWTs. The two token kinds
// are signed with different secrets so one can never stand in for the other.
type TokenIssuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

func NewTokenIssuer(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *TokenIssuer {
	return &TokenIssuer{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}
}

// SetClock overrides the issue time source.
func (ti *TokenIssuer) SetClock(now func() time.Time) { ti.now = now }

func (ti *TokenIssuer) AccessTTL() time.Duration  { return ti.accessTTL }
func (ti *TokenIssuer) RefreshTTL() time.Duration { return ti.refreshTTL }

// IssueAccess returns a signed access token and its expiry.
func (ti *TokenIssuer) IssueAccess(operatorID, role string) (string, time.Time, error) {
	now := ti.now()
	exp := now.Add(ti.accessTTL)
	claims := &models.AccessClaims{
		Type:       models.TokenTypeAccess,
		OperatorID: operatorID,
		Role:       role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   operatorID,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ti.accessSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, exp, nil
}

// IssueRefresh returns a signed refresh token bound to sid and jti.
func (ti *TokenIssuer) IssueRefresh(operatorID, role, sid, jti string) (string, time.Time, error) {
	now := ti.now()
	exp := now.Add(ti.refreshTTL)
	claims := &models.RefreshClaims{
		Type:       models.TokenTypeRefresh,
		OperatorID: operatorID,
		Role:       role,
		SessionID:  sid,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   operatorID,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ti.refreshSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign refresh token: %w", err)
	}
	return signed, exp, nil
}

func (ti *TokenIssuer) ParseAccess(tokenString string) (*models.AccessClaims, error) {
	claims := &models.AccessClaims{}
	if err := ti.parse(tokenString, claims, ti.accessSecret); err != nil {
		return nil, err
	}
	if claims.Type != models.TokenTypeAccess || claims.OperatorID == "" {
		return nil, fmt.Errorf("%w: not an access token", models.ErrInvalidToken)
	}
	return claims, nil
}

func (ti *TokenIssuer) ParseRefresh(tokenString string) (*models.RefreshClaims, error) {
	claims := &models.RefreshClaims{}
	if err := ti.parse(tokenString, claims, ti.refreshSecret); err != nil {
		return nil, err
	}
	if claims.Type != models.TokenTypeRefresh || claims.OperatorID == "" || claims.SessionID == "" || claims.ID == "" {
		return nil, fmt.Errorf("%w: not a refresh token", models.ErrInvalidToken)
	}
	return claims, nil
}

func (ti *TokenIssuer) parse(tokenString string, claims jwt.Claims, secret []byte) error {
	if tokenString == "" {
		return models.ErrInvalidToken
	}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(ti.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return fmt.Errorf("%w: expired", models.ErrInvalidToken)
		}
		return fmt.Errorf("%w: %v", models.ErrInvalidToken, err)
	}
	return nil
}
