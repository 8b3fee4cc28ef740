package account

import (
	"errors"
	"net/mail"
	"strings"
	"time"
)

var (
	// ErrAccountNotFound is returned when no account has the email.
	ErrAccountNotFound = errors.New("account: not found")

	// ErrAccountExists is returned when creating a duplicate email.
	ErrAccountExists = errors.New("account: already exists")

	// ErrAccountInactive is returned for accounts that have been withdrawn.
	ErrAccountInactive = errors.New("account: withdrawn")

	// ErrInvalidEmail is returned for an unparseable email address.
	ErrInvalidEmail = errors.New("account: invalid email")
)

// Account is a grower's account.
type Account struct {
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	PhoneNumber string    `json:"phoneNumber"`
	IsActive    bool      `json:"isUser"`
	CreatedAt   time.Time `json:"createdAt"`
}

// NormalizeEmail lowercases and trims an address and checks it parses.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}
