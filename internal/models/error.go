package models

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Guard errors
	ErrCaptchaInvalid = errors.New("captcha missing or incorrect")
	ErrSessionRevoked = errors.New("session revoked")
	ErrInvalidToken   = errors.New("invalid or expired token")
)

// BlockReason is the closed set of reasons a request can be throttled.
type BlockReason int

const (
	BlockRateLimited BlockReason = iota + 1
	BlockLocked
)

func (r BlockReason) String() string {
	switch r {
	case BlockRateLimited:
		return "rate_limited"
	case BlockLocked:
		return "locked"
	default:
		return fmt.Sprintf("block_reason(%d)", int(r))
	}
}

// BlockedError reports a rejected request along with how long the caller must wait.
type BlockedError struct {
	Reason     BlockReason
	RetryAfter time.Duration
	Until      *time.Time // set for BlockLocked
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("request blocked (%s), retry after %s", e.Reason, e.RetryAfter.Round(time.Second))
}

// RemainingMinutes rounds the wait up to whole minutes, never below one.
func (e *BlockedError) RemainingMinutes() int {
	minutes := int((e.RetryAfter + time.Minute - 1) / time.Minute)
	if minutes < 1 {
		return 1
	}
	return minutes
}

// CaptchaRejectedError carries a freshly issued captcha so the client can retry
// without an extra round trip.
type CaptchaRejectedError struct {
	Fresh *Captcha
}

func (e *CaptchaRejectedError) Error() string {
	return ErrCaptchaInvalid.Error()
}

func (e *CaptchaRejectedError) Unwrap() error {
	return ErrCaptchaInvalid
}
