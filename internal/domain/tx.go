package domain

import "context"

// AccountTx is the set of writes that must commit together with the
// consumption of a single-use token.
type AccountTx interface {
	// TakeToken locks and returns the token with the given hash. For reset
	// tokens subject must match the stored email; for verification tokens an
	// empty subject matches any owner. Missing tokens yield ErrNotFound.
	TakeToken(ctx context.Context, kind TokenKind, tokenHash, subject string) (Token, error)
	DeleteToken(ctx context.Context, kind TokenKind, tokenHash string) error
	MarkEmailVerified(ctx context.Context, userID string) error
	SetPasswordHashByEmail(ctx context.Context, email, passwordHash string) error
}
