package models

import (
	"time"
)

// Operator is an account that can sign in to the clinic console
type Operator struct {
	ID           string
	Username     string
	PasswordHash string
	Name         string
	Role         string // e.g. "admin", "doctor", "nurse"
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

const RoleAdmin = "admin"
