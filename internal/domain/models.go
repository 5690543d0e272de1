package domain

import "time"

type User struct {
	ID            string
	Email         string
	Username      string
	EmailVerified bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type UserWithPassword struct {
	User
	PasswordHash string
}

// TokenKind selects which single-use token table a token lives in.
type TokenKind string

const (
	TokenEmailVerification TokenKind = "email_verification"
	TokenPasswordReset     TokenKind = "password_reset"
)

// Token is a persisted single-use token. Subject is the owning user id for
// verification tokens and the email address for reset tokens. Only the
// sha256 of the raw token is ever stored.
type Token struct {
	Kind      TokenKind
	Subject   string
	TokenHash string
	CreatedAt time.Time
	ExpiresAt time.Time
}

func (t Token) ValidAt(now time.Time) bool {
	return now.Before(t.ExpiresAt)
}
