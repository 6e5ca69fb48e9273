// Package auth handles credential checks and bearer-token sessions.
package auth

import "time"

// User represents an authenticated user account.
type User struct {
	ID           int64
	CompanyID    int64
	Name         string
	Email        string
	PasswordHash string
	Role         string
	IsActive     bool
	CreatedAt    time.Time
}
