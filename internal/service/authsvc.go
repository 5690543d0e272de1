package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"vidshare/internal/auth"
	"vidshare/internal/domain"
)

type UsersStore interface {
	CreateUser(ctx context.Context, email, username, passwordHash string) (domain.User, error)
	GetUserByID(ctx context.Context, id string) (domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (domain.UserWithPassword, error)
	GetUserByExternalAccount(ctx context.Context, provider, subject string) (domain.User, error)
	CreateUserWithExternalAccount(ctx context.Context, provider, subject, email, username, passwordHash string) (domain.User, error)
	LinkExternalAccount(ctx context.Context, userID, provider, subject string) error
}

// Notifier delivers account emails. Delivery is best effort; callers log
// failures and carry on.
type Notifier interface {
	SendEmailVerification(ctx context.Context, toEmail, rawToken string) error
	SendPasswordReset(ctx context.Context, toEmail, rawToken string) error
}

type RegisterInput struct {
	Email    string
	Username string
	Password string
	// ConfirmPassword is accepted for compatibility with existing clients
	// and is not compared against Password.
	ConfirmPassword string
}

type AuthService struct {
	Users    UsersStore
	Tokens   *TokenService
	Sessions *auth.SessionIssuer
	Notifier Notifier
	Logger   *slog.Logger

	VerifyTokenTTL time.Duration
	ResetTokenTTL  time.Duration

	GoogleClientID      string
	AppleServiceID      string
	VerifyGoogleIDToken auth.IDTokenVerifier
	VerifyAppleIDToken  auth.IDTokenVerifier
}

func (s *AuthService) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

// Register creates an unverified account and mails a verification token.
// The account is committed before the token is issued; a failure after that
// point is logged and the account stays registered.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (domain.User, error) {
	email := normalizeEmail(in.Email)
	username := strings.TrimSpace(in.Username)

	fields := map[string]string{}
	if email == "" {
		fields["email"] = "required"
	}
	if username == "" {
		fields["username"] = "required"
	}
	if in.Password == "" {
		fields["password"] = "required"
	}
	if len(fields) > 0 {
		return domain.User{}, domain.NewValidationMessage("Missing email, username or password", fields)
	}
	if err := auth.CheckPasswordComplexity("password", in.Password); err != nil {
		return domain.User{}, err
	}

	if _, err := s.Users.GetUserByEmail(ctx, email); err == nil {
		return domain.User{}, domain.ErrEmailTaken
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.User{}, err
	}

	passwordHash, err := auth.HashPassword(in.Password)
	if err != nil {
		return domain.User{}, err
	}

	u, err := s.Users.CreateUser(ctx, email, username, passwordHash)
	if err != nil {
		return domain.User{}, err
	}

	raw, err := s.Tokens.Issue(ctx, domain.TokenEmailVerification, u.ID, s.verifyTTL())
	if err != nil {
		s.logger().Error("issue verification token failed", "user_id", u.ID, "err", err)
		return u, nil
	}
	s.notify(ctx, "verification", u.Email, func(ctx context.Context) error {
		return s.Notifier.SendEmailVerification(ctx, u.Email, raw)
	})
	return u, nil
}

// Login returns a session token. Unknown email and wrong password produce
// the same ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return "", domain.NewValidationMessage("Missing email or password", nil)
	}

	u, err := s.Users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", domain.ErrInvalidCredentials
		}
		return "", err
	}

	ok, err := auth.VerifyPassword(u.PasswordHash, password)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", domain.ErrInvalidCredentials
	}

	return s.Sessions.Issue(u.ID)
}

// Logout is a no-op. Sessions are stateless and stay valid until they
// expire.
func (s *AuthService) Logout(ctx context.Context) error {
	return nil
}

func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return domain.NewValidationMessage("Missing email", map[string]string{"email": "required"})
	}

	u, err := s.Users.GetUserByEmail(ctx, email)
	if err != nil {
		return err
	}

	raw, err := s.Tokens.Issue(ctx, domain.TokenPasswordReset, u.Email, s.resetTTL())
	if err != nil {
		return err
	}
	s.notify(ctx, "password reset", u.Email, func(ctx context.Context) error {
		return s.Notifier.SendPasswordReset(ctx, u.Email, raw)
	})
	return nil
}

// ResetPassword redeems a reset token for email. The new password is
// checked before the token is touched, so a rejected password does not burn
// the token.
func (s *AuthService) ResetPassword(ctx context.Context, email, rawToken, newPassword string) error {
	email = normalizeEmail(email)
	if email == "" || rawToken == "" || newPassword == "" {
		return domain.NewValidationMessage("Missing email, token or new password", nil)
	}
	if err := auth.CheckPasswordComplexity("new_password", newPassword); err != nil {
		return err
	}

	passwordHash, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}

	return s.Tokens.Consume(ctx, domain.TokenPasswordReset, rawToken, email,
		func(ctx context.Context, tx domain.AccountTx, subject string) error {
			return tx.SetPasswordHashByEmail(ctx, subject, passwordHash)
		})
}

func (s *AuthService) VerifyEmail(ctx context.Context, rawToken string) error {
	return s.Tokens.Consume(ctx, domain.TokenEmailVerification, rawToken, "",
		func(ctx context.Context, tx domain.AccountTx, userID string) error {
			return tx.MarkEmailVerified(ctx, userID)
		})
}

// GetCurrentUser resolves a session token to its user. Any failure to do so
// is ErrUnauthorized.
func (s *AuthService) GetCurrentUser(ctx context.Context, sessionToken string) (domain.User, error) {
	userID, err := s.Sessions.Resolve(sessionToken)
	if err != nil {
		return domain.User{}, err
	}

	u, err := s.Users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, domain.ErrUnauthorized
		}
		return domain.User{}, err
	}
	return u, nil
}

func (s *AuthService) GetUser(ctx context.Context, id string) (domain.User, error) {
	if strings.TrimSpace(id) == "" {
		return domain.User{}, domain.ErrNotFound
	}
	return s.Users.GetUserByID(ctx, id)
}

// LoginWithExternal signs in with a Google or Apple ID token. A known
// provider subject logs in its linked user; otherwise a user with the same
// email is linked, or a verified account with an unusable password is
// created.
func (s *AuthService) LoginWithExternal(ctx context.Context, provider auth.IdentityProvider, idToken string) (domain.User, string, error) {
	if strings.TrimSpace(idToken) == "" {
		return domain.User{}, "", domain.NewValidationMessage("Missing id_token", map[string]string{"id_token": "required"})
	}

	var (
		verify   auth.IDTokenVerifier
		audience string
	)
	switch provider {
	case auth.ProviderGoogle:
		verify, audience = s.VerifyGoogleIDToken, s.GoogleClientID
	case auth.ProviderApple:
		verify, audience = s.VerifyAppleIDToken, s.AppleServiceID
	default:
		return domain.User{}, "", domain.ErrNotFound
	}
	if verify == nil || audience == "" {
		return domain.User{}, "", domain.ErrNotFound
	}

	identity, err := verify(ctx, idToken, audience)
	if err != nil {
		s.logger().Info("external id token rejected", "provider", provider, "err", err)
		return domain.User{}, "", domain.ErrInvalidCredentials
	}
	if identity.Subject == "" {
		return domain.User{}, "", domain.ErrInvalidCredentials
	}

	u, err := s.externalUser(ctx, string(provider), identity)
	if err != nil {
		return domain.User{}, "", err
	}

	token, err := s.Sessions.Issue(u.ID)
	if err != nil {
		return domain.User{}, "", err
	}
	return u, token, nil
}

func (s *AuthService) externalUser(ctx context.Context, provider string, identity *auth.ExternalIdentity) (domain.User, error) {
	u, err := s.Users.GetUserByExternalAccount(ctx, provider, identity.Subject)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.User{}, err
	}

	email := normalizeEmail(identity.Email)
	if email == "" {
		return domain.User{}, domain.NewValidationMessage("Identity provider did not share an email address", nil)
	}

	existing, err := s.Users.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		if err := s.Users.LinkExternalAccount(ctx, existing.ID, provider, identity.Subject); err != nil {
			return domain.User{}, err
		}
		return existing.User, nil
	case !errors.Is(err, domain.ErrNotFound):
		return domain.User{}, err
	}

	// The random password is never disclosed; the account signs in through
	// the provider or a password reset.
	unusable, _, err := auth.NewOpaqueToken()
	if err != nil {
		return domain.User{}, err
	}
	passwordHash, err := auth.HashPassword(unusable)
	if err != nil {
		return domain.User{}, err
	}
	return s.Users.CreateUserWithExternalAccount(ctx, provider, identity.Subject, email, usernameFromEmail(email), passwordHash)
}

const maxDerivedUsernameLen = 24

func usernameFromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")
	local = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '.':
			return r
		default:
			return -1
		}
	}, local)
	if local == "" {
		local = "user"
	}
	if len(local) > maxDerivedUsernameLen {
		local = local[:maxDerivedUsernameLen]
	}
	return local
}

func (s *AuthService) notify(ctx context.Context, kind, toEmail string, send func(context.Context) error) {
	if s.Notifier == nil {
		s.logger().Warn("no notifier configured, email dropped", "kind", kind, "to", toEmail)
		return
	}
	if err := send(ctx); err != nil {
		s.logger().Error("send email failed", "kind", kind, "to", toEmail, "err", err)
	}
}

func (s *AuthService) verifyTTL() time.Duration {
	if s.VerifyTokenTTL > 0 {
		return s.VerifyTokenTTL
	}
	return DefaultVerifyTokenTTL
}

func (s *AuthService) resetTTL() time.Duration {
	if s.ResetTokenTTL > 0 {
		return s.ResetTokenTTL
	}
	return DefaultResetTokenTTL
}

