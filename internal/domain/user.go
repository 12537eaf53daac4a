// Package domain holds the core model and domain errors of the service.
package domain

import (
	"errors"
	"time"
)

type User struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	UserName       string    `json:"user_name"`
	RefCode        string    `json:"ref_code"`
	AddedByRefCode int       `json:"added_by_ref_code"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrDuplicateEmail  = errors.New("user with that email already exists")
	ErrRefCodeNotFound = errors.New("referral code not found")
)
