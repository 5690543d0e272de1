package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/HendrickPhan/go-verify-apple-id-token/validator"
	"google.golang.org/api/idtoken"
)

type IdentityProvider string

const (
	ProviderGoogle IdentityProvider = "google"
	ProviderApple  IdentityProvider = "apple"
)

// ExternalIdentity is the subset of a verified third-party ID token used to
// find or create a local account.
type ExternalIdentity struct {
	Provider IdentityProvider
	Issuer   string
	Subject  string
	Email    string
}

// IDTokenVerifier checks an ID token issued for audience.
type IDTokenVerifier func(ctx context.Context, token, audience string) (*ExternalIdentity, error)

var errMissingIDToken = errors.New("missing id token")

func VerifyGoogleIDToken(ctx context.Context, token, audience string) (*ExternalIdentity, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errMissingIDToken
	}
	if strings.TrimSpace(audience) == "" {
		return nil, errors.New("google client id not configured")
	}

	payload, err := idtoken.Validate(ctx, token, audience)
	if err != nil {
		return nil, err
	}
	switch payload.Issuer {
	case "accounts.google.com", "https://accounts.google.com":
	default:
		return nil, fmt.Errorf("unexpected issuer: %s", payload.Issuer)
	}

	email, _ := payload.Claims["email"].(string)
	return &ExternalIdentity{
		Provider: ProviderGoogle,
		Issuer:   payload.Issuer,
		Subject:  payload.Subject,
		Email:    strings.TrimSpace(strings.ToLower(email)),
	}, nil
}

// VerifyAppleIDToken validates against Apple's published keys. The
// validator library does not take a context.
func VerifyAppleIDToken(_ context.Context, token, audience string) (*ExternalIdentity, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errMissingIDToken
	}
	if strings.TrimSpace(audience) == "" {
		return nil, errors.New("apple service id not configured")
	}

	claims, err := validator.NewClient().VerifyIdToken(audience, token)
	if err != nil {
		return nil, err
	}
	if claims.Iss != "https://appleid.apple.com" {
		return nil, fmt.Errorf("unexpected issuer: %s", claims.Iss)
	}

	return &ExternalIdentity{
		Provider: ProviderApple,
		Issuer:   claims.Iss,
		Subject:  claims.Sub,
		Email:    strings.TrimSpace(strings.ToLower(claims.Email)),
	}, nil
}
