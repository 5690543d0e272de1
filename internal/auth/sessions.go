package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"vidshare/internal/domain"
)

const DefaultSessionTTL = time.Hour

var (
	ErrSessionInvalid = fmt.Errorf("session invalid: %w", domain.ErrUnauthorized)
	ErrSessionExpired = fmt.Errorf("session expired: %w", domain.ErrUnauthorized)
)

// SessionIssuer signs and verifies stateless HS256 bearer tokens. Rotating
// the secret invalidates every outstanding session.
type SessionIssuer struct {
	secret []byte
	ttl    time.Duration
	Now    func() time.Time
}

func NewSessionIssuer(secret []byte, ttl time.Duration) *SessionIssuer {
	secretCopy := make([]byte, len(secret))
	copy(secretCopy, secret)
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionIssuer{secret: secretCopy, ttl: ttl, Now: time.Now}
}

func (s *SessionIssuer) TTL() time.Duration { return s.ttl }

func (s *SessionIssuer) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func (s *SessionIssuer) Issue(userID string) (string, error) {
	if userID == "" {
		return "", errors.New("session subject required")
	}
	if len(s.secret) == 0 {
		return "", errors.New("session secret not configured")
	}

	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign session: %w", err)
	}
	return signed, nil
}

// Resolve returns the user id carried by a valid, unexpired token.
func (s *SessionIssuer) Resolve(tokenString string) (string, error) {
	if strings.TrimSpace(tokenString) == "" {
		return "", ErrSessionInvalid
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrSessionExpired
		}
		return "", ErrSessionInvalid
	}
	if claims.Subject == "" {
		return "", ErrSessionInvalid
	}
	return claims.Subject, nil
}

// ResolveOptional is Resolve for endpoints that also serve anonymous
// callers: an absent token yields ok=false with no error, a present but bad
// token is still an error.
func (s *SessionIssuer) ResolveOptional(tokenString string) (userID string, ok bool, err error) {
	if tokenString == "" {
		return "", false, nil
	}
	userID, err = s.Resolve(tokenString)
	if err != nil {
		return "", false, err
	}
	return userID, true, nil
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header. present reports whether an Authorization header was sent at all.
func BearerToken(r *http.Request) (token string, present bool) {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if h == "" {
		return "", false
	}
	scheme, rest, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", true
	}
	return strings.TrimSpace(rest), true
}
