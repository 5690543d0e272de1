package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"vidshare/internal/domain"
)

// TokensStore persists email verification and password reset tokens, and
// runs the account writes that consume them.
type TokensStore struct {
	pool *pgxpool.Pool
}

func NewTokensStore(pool *pgxpool.Pool) *TokensStore {
	return &TokensStore{pool: pool}
}

func (s *TokensStore) SaveToken(ctx context.Context, token domain.Token) error {
	switch token.Kind {
	case domain.TokenEmailVerification:
		userID, ok := parseUUID(token.Subject)
		if !ok {
			return domain.ErrNotFound
		}
		const q = `
			INSERT INTO email_verifications (user_id, token_hash, created_at, expires_at)
			VALUES ($1, $2, $3, $4)
		`
		if _, err := s.pool.Exec(ctx, q, userID, token.TokenHash, token.CreatedAt, token.ExpiresAt); err != nil {
			if notFound := notFoundIfMissingFK(err); notFound != nil {
				return notFound
			}
			return fmt.Errorf("insert email verification: %w", err)
		}
		return nil
	case domain.TokenPasswordReset:
		const q = `
			INSERT INTO password_reset_tokens (email, token_hash, created_at, expires_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (email) DO UPDATE
			SET token_hash = EXCLUDED.token_hash,
				created_at = EXCLUDED.created_at,
				expires_at = EXCLUDED.expires_at
		`
		if _, err := s.pool.Exec(ctx, q, token.Subject, token.TokenHash, token.CreatedAt, token.ExpiresAt); err != nil {
			return fmt.Errorf("upsert password reset token: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unknown token kind %q", token.Kind)
	}
}

// WithAccountTx runs fn in a transaction that commits only if fn succeeds.
func (s *TokensStore) WithAccountTx(ctx context.Context, fn func(tx domain.AccountTx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&accountTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type accountTx struct {
	tx pgx.Tx
}

func (a *accountTx) TakeToken(ctx context.Context, kind domain.TokenKind, tokenHash, subject string) (domain.Token, error) {
	t := domain.Token{Kind: kind, TokenHash: tokenHash}

	var err error
	switch kind {
	case domain.TokenEmailVerification:
		const q = `
			SELECT user_id, created_at, expires_at
			FROM email_verifications
			WHERE token_hash = $1
			FOR UPDATE
		`
		var userID pgtype.UUID
		err = a.tx.QueryRow(ctx, q, tokenHash).Scan(&userID, &t.CreatedAt, &t.ExpiresAt)
		t.Subject = uuidOrEmpty(userID)
		if err == nil && subject != "" && subject != t.Subject {
			return domain.Token{}, domain.ErrNotFound
		}
	case domain.TokenPasswordReset:
		const q = `
			SELECT email, created_at, expires_at
			FROM password_reset_tokens
			WHERE email = $1 AND token_hash = $2
			FOR UPDATE
		`
		err = a.tx.QueryRow(ctx, q, subject, tokenHash).Scan(&t.Subject, &t.CreatedAt, &t.ExpiresAt)
	default:
		return domain.Token{}, fmt.Errorf("unknown token kind %q", kind)
	}
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Token{}, domain.ErrNotFound
		}
		return domain.Token{}, fmt.Errorf("take %s token: %w", kind, err)
	}
	return t, nil
}

func (a *accountTx) DeleteToken(ctx context.Context, kind domain.TokenKind, tokenHash string) error {
	var q string
	switch kind {
	case domain.TokenEmailVerification:
		q = `DELETE FROM email_verifications WHERE token_hash = $1`
	case domain.TokenPasswordReset:
		q = `DELETE FROM password_reset_tokens WHERE token_hash = $1`
	default:
		return fmt.Errorf("unknown token kind %q", kind)
	}
	if _, err := a.tx.Exec(ctx, q, tokenHash); err != nil {
		return fmt.Errorf("delete %s token: %w", kind, err)
	}
	return nil
}

func (a *accountTx) MarkEmailVerified(ctx context.Context, userID string) error {
	id, ok := parseUUID(userID)
	if !ok {
		return domain.ErrNotFound
	}
	const q = `
		UPDATE users
		SET email_verified = true, updated_at = now()
		WHERE id = $1
	`
	tag, err := a.tx.Exec(ctx, q, id)
	if err != nil {
		return fmt.Errorf("mark email verified: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (a *accountTx) SetPasswordHashByEmail(ctx context.Context, email, passwordHash string) error {
	const q = `
		UPDATE users
		SET password_hash = $2, updated_at = now()
		WHERE email = $1
	`
	tag, err := a.tx.Exec(ctx, q, email, passwordHash)
	if err != nil {
		return fmt.Errorf("set password hash: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
