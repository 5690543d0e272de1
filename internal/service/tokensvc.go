package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"vidshare/internal/auth"
	"vidshare/internal/domain"
)

const (
	DefaultVerifyTokenTTL = 24 * time.Hour
	DefaultResetTokenTTL  = 24 * time.Hour
)

type TokenStore interface {
	// SaveToken persists a freshly issued token. A reset token replaces any
	// earlier reset token for the same email.
	SaveToken(ctx context.Context, token domain.Token) error
	WithAccountTx(ctx context.Context, fn func(tx domain.AccountTx) error) error
}

// TokenService issues and redeems single-use email tokens. Only the sha256 of
// a token is stored; the raw value leaves the process in the outgoing email.
type TokenService struct {
	Store TokenStore
	Now   func() time.Time
}

// now never assigns s.Now; one TokenService is shared by all requests.
func (s *TokenService) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// Issue creates a token of kind for subject. Verification tokens are keyed by
// user id and reset tokens by email.
func (s *TokenService) Issue(ctx context.Context, kind domain.TokenKind, subject string, ttl time.Duration) (string, error) {
	if s.Store == nil {
		return "", fmt.Errorf("token store unavailable")
	}
	if subject == "" {
		return "", fmt.Errorf("token subject required")
	}
	if ttl <= 0 {
		return "", fmt.Errorf("token ttl must be positive")
	}

	raw, hash, err := auth.NewOpaqueToken()
	if err != nil {
		return "", err
	}

	now := s.now()
	if err := s.Store.SaveToken(ctx, domain.Token{
		Kind:      kind,
		Subject:   subject,
		TokenHash: hash,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}); err != nil {
		return "", fmt.Errorf("save %s token: %w", kind, err)
	}
	return raw, nil
}

// Consume redeems raw. The token row is deleted in every outcome that finds
// it: an expired token is deleted and the deletion committed before
// ErrTokenExpired is returned; a live token is deleted in the same
// transaction as apply, so a failing apply leaves the token usable.
func (s *TokenService) Consume(ctx context.Context, kind domain.TokenKind, raw, subject string, apply func(ctx context.Context, tx domain.AccountTx, subject string) error) error {
	if s.Store == nil {
		return fmt.Errorf("token store unavailable")
	}
	if raw == "" {
		return domain.ErrTokenInvalid
	}

	hash := auth.HashOpaqueToken(raw)
	var expired bool
	err := s.Store.WithAccountTx(ctx, func(tx domain.AccountTx) error {
		tok, err := tx.TakeToken(ctx, kind, hash, subject)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.ErrTokenInvalid
			}
			return err
		}
		if err := tx.DeleteToken(ctx, kind, hash); err != nil {
			return err
		}
		if !tok.ValidAt(s.now()) {
			expired = true
			return nil
		}
		if apply == nil {
			return nil
		}
		return apply(ctx, tx, tok.Subject)
	})
	if err != nil {
		return err
	}
	if expired {
		return domain.ErrTokenExpired
	}
	return nil
}
