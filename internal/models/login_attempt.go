package models

import "time"

// AttemptReason is the outcome recorded for a login decision.
type AttemptReason string

const (
	ReasonOK                 AttemptReason = "ok"
	ReasonCaptchaInvalid     AttemptReason = "captcha_invalid"
	ReasonRateLimited        AttemptReason = "rate_limited"
	ReasonLocked             AttemptReason = "locked"
	ReasonInvalidCredentials AttemptReason = "invalid_credentials"
)

// LoginAttempt is an immutable audit row written for every login decision
type LoginAttempt struct {
	ID          int64         `db:"id" json:"id"`
	IP          string        `db:"ip" json:"ip"`
	Username    *string       `db:"username" json:"username,omitempty"`
	OperatorID  *string       `db:"operator_id" json:"operatorId,omitempty"`
	OK          bool          `db:"ok" json:"ok"`
	Reason      AttemptReason `db:"reason" json:"reason"`
	UserAgent   string        `db:"user_agent" json:"userAgent"`
	RequestID   string        `db:"request_id" json:"requestId"`
	LockedUntil *time.Time    `db:"locked_until" json:"lockedUntil,omitempty"`
	CreatedAt   time.Time     `db:"created_at" json:"createdAt"`
}

// LoginAttemptFilter narrows audit row listings
type LoginAttemptFilter struct {
	IP       string
	Username string
	Limit    int
}

// LoginLockout is the failure/lock state for one (ip, username) pair
type LoginLockout struct {
	IP            string     `json:"ip"`
	Username      string     `json:"username"`
	FailCount     int64      `json:"failCount"`
	FirstFailedAt *time.Time `json:"firstFailedAt,omitempty"`
	LastFailedAt  *time.Time `json:"lastFailedAt,omitempty"`
	LockedUntil   *time.Time `json:"lockedUntil,omitempty"`
}

// IsLocked reports whether the lock is still in force at now
func (l *LoginLockout) IsLocked(now time.Time) bool {
	return l.LockedUntil != nil && l.LockedUntil.After(now)
}

// WindowMode selects how a counter's expiry moves.
type WindowMode string

const (
	// WindowFixed anchors expiry at the first hit of the window.
	WindowFixed WindowMode = "fixed"
	// WindowSliding re-arms expiry on every hit.
	WindowSliding WindowMode = "sliding"
)

// WindowCounter is a tier-local event counter bound to a time window
type WindowCounter struct {
	Count       int64
	WindowStart time.Time
	LastAt      time.Time
	ExpiresAt   time.Time
}
