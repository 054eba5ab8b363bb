package models

import "time"

// RatePolicy bounds how many requests one IP may make per window
type RatePolicy struct {
	Window time.Duration
	Max    int64
}

// LockoutPolicy decides when repeated failures lock an (ip, username) pair
type LockoutPolicy struct {
	MaxFails     int64
	LockDuration time.Duration
}

const (
	PolicyLogin    = "login"
	PolicyRegister = "register"
)
