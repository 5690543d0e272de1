package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"vidshare/internal/auth"
	"vidshare/internal/domain"
)

const strongPassword = "P@ssw0rd!"

type authFixture struct {
	svc      *AuthService
	store    *memStore
	notifier *captureNotifier
	now      time.Time
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	f := &authFixture{
		store:    newMemStore(),
		notifier: newCaptureNotifier(),
		now:      time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	clock := func() time.Time { return f.now }
	sessions := auth.NewSessionIssuer([]byte("test-secret"), time.Hour)
	sessions.Now = clock
	f.svc = &AuthService{
		Users:    f.store,
		Tokens:   &TokenService{Store: f.store, Now: clock},
		Sessions: sessions,
		Notifier: f.notifier,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	return f
}

func (f *authFixture) register(t *testing.T, email string) domain.User {
	t.Helper()
	u, err := f.svc.Register(context.Background(), RegisterInput{
		Email:           email,
		Username:        "player",
		Password:        strongPassword,
		ConfirmPassword: strongPassword,
	})
	require.NoError(t, err)
	return u
}

func TestAuthServiceRegisterCreatesUnverifiedUserAndMailsToken(t *testing.T) {
	f := newAuthFixture(t)

	u := f.register(t, " Player@Example.com ")
	require.Equal(t, "player@example.com", u.Email)
	require.False(t, u.EmailVerified)
	require.NotEmpty(t, f.notifier.verification["player@example.com"])
	require.Equal(t, 1, f.store.tokenCount(domain.TokenEmailVerification))
}

func TestAuthServiceRegisterDuplicateEmail(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t, "player@example.com")

	_, err := f.svc.Register(context.Background(), RegisterInput{
		Email:    "PLAYER@example.com",
		Username: "other",
		Password: strongPassword,
	})
	require.ErrorIs(t, err, domain.ErrEmailTaken)
}

func TestAuthServiceRegisterIgnoresConfirmPassword(t *testing.T) {
	f := newAuthFixture(t)

	u, err := f.svc.Register(context.Background(), RegisterInput{
		Email:           "player@example.com",
		Username:        "player",
		Password:        strongPassword,
		ConfirmPassword: "something else",
	})
	require.NoError(t, err)
	require.NotEmpty(t, u.ID)
}

func TestAuthServiceRegisterValidation(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.svc.Register(context.Background(), RegisterInput{Email: "player@example.com", Username: "player", Password: "password"})
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, auth.PasswordComplexityMessage, verr.Message)

	_, err = f.svc.Register(context.Background(), RegisterInput{Password: strongPassword})
	require.ErrorIs(t, err, domain.ErrValidation)
	require.ErrorAs(t, err, &verr)
	require.Contains(t, verr.Fields, "email")
	require.Contains(t, verr.Fields, "username")
}

func TestAuthServiceRegisterSurvivesNotifierFailure(t *testing.T) {
	f := newAuthFixture(t)
	f.notifier.err = errors.New("smtp down")

	u := f.register(t, "player@example.com")
	require.NotEmpty(t, u.ID)
}

func TestAuthServiceVerifyEmailIsSingleUse(t *testing.T) {
	f := newAuthFixture(t)
	u := f.register(t, "player@example.com")
	token := f.notifier.verification[u.Email]

	require.NoError(t, f.svc.VerifyEmail(context.Background(), token))
	got, err := f.store.GetUserByID(context.Background(), u.ID)
	require.NoError(t, err)
	require.True(t, got.EmailVerified)

	require.ErrorIs(t, f.svc.VerifyEmail(context.Background(), token), domain.ErrTokenInvalid)
}

func TestAuthServiceVerifyEmailExpired(t *testing.T) {
	f := newAuthFixture(t)
	u := f.register(t, "player@example.com")
	token := f.notifier.verification[u.Email]

	f.now = f.now.Add(DefaultVerifyTokenTTL + time.Second)
	require.ErrorIs(t, f.svc.VerifyEmail(context.Background(), token), domain.ErrTokenExpired)

	got, err := f.store.GetUserByID(context.Background(), u.ID)
	require.NoError(t, err)
	require.False(t, got.EmailVerified)
	require.Zero(t, f.store.tokenCount(domain.TokenEmailVerification))
}

func TestAuthServiceVerifyEmailMissingUserKeepsToken(t *testing.T) {
	f := newAuthFixture(t)
	u := f.register(t, "player@example.com")
	token := f.notifier.verification[u.Email]
	f.store.deleteUser(u.ID)

	require.ErrorIs(t, f.svc.VerifyEmail(context.Background(), token), domain.ErrNotFound)
	require.Equal(t, 1, f.store.tokenCount(domain.TokenEmailVerification))
}

func TestAuthServiceLoginErrorsAreIndistinguishable(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t, "player@example.com")

	_, errUnknown := f.svc.Login(context.Background(), "nobody@example.com", strongPassword)
	_, errWrong := f.svc.Login(context.Background(), "player@example.com", "Wr0ng!pass")
	require.ErrorIs(t, errUnknown, domain.ErrInvalidCredentials)
	require.ErrorIs(t, errWrong, domain.ErrInvalidCredentials)
	require.Equal(t, errUnknown.Error(), errWrong.Error())

	_, err := f.svc.Login(context.Background(), "", "")
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestAuthServiceLoginAndGetCurrentUser(t *testing.T) {
	f := newAuthFixture(t)
	u := f.register(t, "player@example.com")

	token, err := f.svc.Login(context.Background(), "Player@Example.com", strongPassword)
	require.NoError(t, err)

	got, err := f.svc.GetCurrentUser(context.Background(), token)
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)

	_, err = f.svc.GetCurrentUser(context.Background(), "")
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	f.now = f.now.Add(61 * time.Minute)
	_, err = f.svc.GetCurrentUser(context.Background(), token)
	require.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestAuthServiceGetCurrentUserDeletedUser(t *testing.T) {
	f := newAuthFixture(t)
	u := f.register(t, "player@example.com")
	token, err := f.svc.Login(context.Background(), u.Email, strongPassword)
	require.NoError(t, err)
	f.store.deleteUser(u.ID)

	_, err = f.svc.GetCurrentUser(context.Background(), token)
	require.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestAuthServiceGetUser(t *testing.T) {
	f := newAuthFixture(t)
	u := f.register(t, "player@example.com")

	got, err := f.svc.GetUser(context.Background(), u.ID)
	require.NoError(t, err)
	require.Equal(t, u.Email, got.Email)

	_, err = f.svc.GetUser(context.Background(), "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAuthServicePasswordResetEndToEnd(t *testing.T) {
	f := newAuthFixture(t)
	u := f.register(t, "player@example.com")
	ctx := context.Background()

	require.NoError(t, f.svc.ForgotPassword(ctx, u.Email))
	token := f.notifier.reset[u.Email]
	require.NotEmpty(t, token)

	const newPassword = "N3w!Passw0rd"
	require.NoError(t, f.svc.ResetPassword(ctx, u.Email, token, newPassword))

	_, err := f.svc.Login(ctx, u.Email, newPassword)
	require.NoError(t, err)
	_, err = f.svc.Login(ctx, u.Email, strongPassword)
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)

	require.ErrorIs(t, f.svc.ResetPassword(ctx, u.Email, token, "An0ther!pass"), domain.ErrTokenInvalid)
}

func TestAuthServiceForgotPasswordReplacesEarlierToken(t *testing.T) {
	f := newAuthFixture(t)
	u := f.register(t, "player@example.com")
	ctx := context.Background()

	require.NoError(t, f.svc.ForgotPassword(ctx, u.Email))
	first := f.notifier.reset[u.Email]
	require.NoError(t, f.svc.ForgotPassword(ctx, u.Email))
	second := f.notifier.reset[u.Email]

	require.Equal(t, 1, f.store.tokenCount(domain.TokenPasswordReset))
	require.ErrorIs(t, f.svc.ResetPassword(ctx, u.Email, first, "N3w!Passw0rd"), domain.ErrTokenInvalid)
	require.NoError(t, f.svc.ResetPassword(ctx, u.Email, second, "N3w!Passw0rd"))
}

func TestAuthServiceForgotPasswordUnknownEmail(t *testing.T) {
	f := newAuthFixture(t)

	require.ErrorIs(t, f.svc.ForgotPassword(context.Background(), "nobody@example.com"), domain.ErrNotFound)
	require.ErrorIs(t, f.svc.ForgotPassword(context.Background(), " "), domain.ErrValidation)
}

func TestAuthServiceResetPasswordRejections(t *testing.T) {
	f := newAuthFixture(t)
	u := f.register(t, "player@example.com")
	ctx := context.Background()
	require.NoError(t, f.svc.ForgotPassword(ctx, u.Email))
	token := f.notifier.reset[u.Email]

	require.ErrorIs(t, f.svc.ResetPassword(ctx, "other@example.com", token, "N3w!Passw0rd"), domain.ErrTokenInvalid)
	require.ErrorIs(t, f.svc.ResetPassword(ctx, u.Email, token, "weak"), domain.ErrValidation)
	require.Equal(t, 1, f.store.tokenCount(domain.TokenPasswordReset))

	f.now = f.now.Add(DefaultResetTokenTTL)
	require.ErrorIs(t, f.svc.ResetPassword(ctx, u.Email, token, "N3w!Passw0rd"), domain.ErrTokenExpired)
}

func TestAuthServiceLogoutIsNoop(t *testing.T) {
	f := newAuthFixture(t)
	u := f.register(t, "player@example.com")
	token, err := f.svc.Login(context.Background(), u.Email, strongPassword)
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(context.Background()))
	_, err = f.svc.GetCurrentUser(context.Background(), token)
	require.NoError(t, err)
}

func TestAuthServiceLoginWithExternal(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	f.svc.GoogleClientID = "google-client"
	f.svc.VerifyGoogleIDToken = func(_ context.Context, token, aud string) (*auth.ExternalIdentity, error) {
		require.Equal(t, "google-client", aud)
		if token == "bad" {
			return nil, errors.New("bad token")
		}
		return &auth.ExternalIdentity{Provider: auth.ProviderGoogle, Subject: "sub-" + token, Email: token + "@example.com"}, nil
	}

	created, session, err := f.svc.LoginWithExternal(ctx, auth.ProviderGoogle, "fresh")
	require.NoError(t, err)
	require.NotEmpty(t, session)
	require.True(t, created.EmailVerified)
	require.Equal(t, "fresh", created.Username)

	again, _, err := f.svc.LoginWithExternal(ctx, auth.ProviderGoogle, "fresh")
	require.NoError(t, err)
	require.Equal(t, created.ID, again.ID)

	existing := f.register(t, "known@example.com")
	linked, _, err := f.svc.LoginWithExternal(ctx, auth.ProviderGoogle, "known")
	require.NoError(t, err)
	require.Equal(t, existing.ID, linked.ID)

	_, _, err = f.svc.LoginWithExternal(ctx, auth.ProviderGoogle, "bad")
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, _, err = f.svc.LoginWithExternal(ctx, auth.ProviderApple, "fresh")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUsernameFromEmail(t *testing.T) {
	require.Equal(t, "jane.doe", usernameFromEmail("jane.doe@example.com"))
	require.Equal(t, "user", usernameFromEmail("+++@example.com"))
	require.Len(t, usernameFromEmail("abcdefghijklmnopqrstuvwxyz0123@example.com"), maxDerivedUsernameLen)
}
