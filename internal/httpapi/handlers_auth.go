package httpapi

import (
	"net/http"

	"vidshare/internal/auth"
	"vidshare/internal/domain"
	"vidshare/internal/service"
)

type registerRequest struct {
	Email           string `json:"email"`
	Username        string `json:"username"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

func (a *api) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	u, err := a.authSvc.Register(r.Context(), service.RegisterInput{
		Email:           req.Email,
		Username:        req.Username,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}

	WriteSuccess(w, http.StatusCreated, "User registered successfully. Check your email for verification.", toUserResponse(u))
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Token     string        `json:"token"`
	TokenType string        `json:"token_type"`
	ExpiresIn int64         `json:"expires_in"`
	User      *userResponse `json:"user,omitempty"`
}

func (a *api) newSessionResponse(token string, u *domain.User) sessionResponse {
	resp := sessionResponse{
		Token:     token,
		TokenType: "Bearer",
		ExpiresIn: int64(a.sessions.TTL().Seconds()),
	}
	if u != nil {
		ur := toUserResponse(*u)
		resp.User = &ur
	}
	return resp
}

func (a *api) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	token, err := a.authSvc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	WriteSuccess(w, http.StatusOK, "Login successful", a.newSessionResponse(token, nil))
}

type idTokenRequest struct {
	IDToken string `json:"id_token"`
}

func (a *api) handleLoginGoogle(w http.ResponseWriter, r *http.Request) {
	a.handleLoginExternal(w, r, auth.ProviderGoogle)
}

func (a *api) handleLoginApple(w http.ResponseWriter, r *http.Request) {
	a.handleLoginExternal(w, r, auth.ProviderApple)
}

func (a *api) handleLoginExternal(w http.ResponseWriter, r *http.Request, provider auth.IdentityProvider) {
	var req idTokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	u, token, err := a.authSvc.LoginWithExternal(r.Context(), provider, req.IDToken)
	if err != nil {
		a.fail(w, r, withMessage(err, domain.ErrNotFound, "Sign-in provider not configured"))
		return
	}

	WriteSuccess(w, http.StatusOK, "Login successful", a.newSessionResponse(token, &u))
}

// handleLogout answers 200 for any caller; sessions are stateless.
func (a *api) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := a.authSvc.Logout(r.Context()); err != nil {
		a.fail(w, r, err)
		return
	}
	WriteSuccess(w, http.StatusOK, "Logout successful", nil)
}
