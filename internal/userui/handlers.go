package userui

import (
	"errors"
	"net/http"
	"strings"

	"vidshare/internal/auth"
	"vidshare/internal/domain"
)

const resetTitle = "Reset Password"

func (a *app) handleResetGet(w http.ResponseWriter, r *http.Request) {
	if a.authSvc == nil {
		a.templates.renderError(w, http.StatusServiceUnavailable, "Reset Unavailable", "Password reset is unavailable.")
		return
	}
	q := r.URL.Query()
	data := resetViewData{
		Title: resetTitle,
		Email: strings.TrimSpace(q.Get("email")),
		Token: strings.TrimSpace(q.Get("token")),
	}
	if data.Token == "" || data.Email == "" {
		data.Error = "This reset link is incomplete. Request a new one from the app."
		a.templates.renderReset(w, http.StatusBadRequest, data)
		return
	}
	a.templates.renderReset(w, http.StatusOK, data)
}

func (a *app) handleResetPost(w http.ResponseWriter, r *http.Request) {
	if a.authSvc == nil {
		a.templates.renderError(w, http.StatusServiceUnavailable, "Reset Unavailable", "Password reset is unavailable.")
		return
	}
	if err := r.ParseForm(); err != nil {
		a.templates.renderReset(w, http.StatusBadRequest, resetViewData{Title: resetTitle, Error: "Invalid form submission."})
		return
	}

	data := resetViewData{
		Title: resetTitle,
		Email: strings.TrimSpace(r.FormValue("email")),
		Token: strings.TrimSpace(r.FormValue("token")),
	}
	password := r.FormValue("password")
	confirm := r.FormValue("confirm")

	switch {
	case data.Token == "" || data.Email == "":
		data.Error = "This reset link is incomplete. Request a new one from the app."
	case password == "" || confirm == "":
		data.Error = "All fields are required."
	case password != confirm:
		data.Error = "Passwords do not match."
	case !auth.ValidPasswordComplexity(password):
		data.Error = auth.PasswordComplexityMessage + "."
	}
	if data.Error != "" {
		a.templates.renderReset(w, http.StatusBadRequest, data)
		return
	}

	if err := a.authSvc.ResetPassword(r.Context(), data.Email, data.Token, password); err != nil {
		var verr *domain.ValidationError
		switch {
		case errors.Is(err, domain.ErrTokenInvalid), errors.Is(err, domain.ErrTokenExpired), errors.Is(err, domain.ErrNotFound):
			data.Error = "This reset link is invalid, used or expired."
			a.templates.renderReset(w, http.StatusBadRequest, data)
		case errors.As(err, &verr):
			data.Error = verr.Error()
			a.templates.renderReset(w, http.StatusBadRequest, data)
		default:
			a.logger.Error("userui: reset password failed", "err", err)
			data.Error = "Failed to reset password."
			a.templates.renderReset(w, http.StatusInternalServerError, data)
		}
		return
	}

	a.templates.renderReset(w, http.StatusOK, resetViewData{
		Title:  resetTitle,
		Done:   true,
		Notice: "Your password has been reset. You can sign in with it now.",
	})
}
