package httpapi

import (
	"net/http"
	"time"

	"vidshare/internal/auth"
	"vidshare/internal/domain"
)

type userResponse struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Username      string    `json:"username"`
	EmailVerified bool      `json:"email_verified"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func toUserResponse(u domain.User) userResponse {
	return userResponse{
		ID:            u.ID,
		Email:         u.Email,
		Username:      u.Username,
		EmailVerified: u.EmailVerified,
		CreatedAt:     u.CreatedAt.UTC(),
		UpdatedAt:     u.UpdatedAt.UTC(),
	}
}

func (a *api) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	token, _ := auth.BearerToken(r)
	u, err := a.authSvc.GetCurrentUser(r.Context(), token)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	WriteSuccess(w, http.StatusOK, "User retrieved successfully", toUserResponse(u))
}

func (a *api) handleGetUser(w http.ResponseWriter, r *http.Request) {
	u, err := a.authSvc.GetUser(r.Context(), r.PathValue("id"))
	if err != nil {
		a.fail(w, r, withMessage(err, domain.ErrNotFound, "User not found"))
		return
	}
	WriteSuccess(w, http.StatusOK, "User retrieved successfully", toUserResponse(u))
}
