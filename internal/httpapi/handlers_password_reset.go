package httpapi

import (
	"net/http"

	"vidshare/internal/domain"
)

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

func (a *api) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	if err := a.authSvc.ForgotPassword(r.Context(), req.Email); err != nil {
		a.fail(w, r, withMessage(err, domain.ErrNotFound, "User not found"))
		return
	}

	WriteSuccess(w, http.StatusOK, "Password reset link sent to your email", nil)
}

type resetPasswordRequest struct {
	Email       string `json:"email"`
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

func (a *api) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	if err := a.authSvc.ResetPassword(r.Context(), req.Email, req.Token, req.NewPassword); err != nil {
		a.fail(w, r, withMessage(err, domain.ErrNotFound, "User not found"))
		return
	}

	WriteSuccess(w, http.StatusOK, "Password reset successfully", nil)
}

func (a *api) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	err := a.authSvc.VerifyEmail(r.Context(), r.PathValue("token"))
	if err != nil {
		err = withMessage(err, domain.ErrNotFound, "User not found")
		err = withMessage(err, domain.ErrTokenInvalid, "Invalid or expired verification token")
		err = withMessage(err, domain.ErrTokenExpired, "Invalid or expired verification token")
		a.fail(w, r, err)
		return
	}

	WriteSuccess(w, http.StatusOK, "Email verified successfully", nil)
}
