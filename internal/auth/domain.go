package auth

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// User represents an authenticated customer.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	PasswordHash string    `json:"-"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// RegisterInput groups fields required to create a user.
type RegisterInput struct {
	Email     string
	Username  string
	FirstName string
	LastName  string
	Password  string
}

var (
	// ErrEmailTaken indicates the email or username is already registered.
	ErrEmailTaken = errors.New("auth: email or username already registered")
)
