package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"vidshare/internal/domain"
)

func TestDomainStatus(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{domain.NewValidationMessage("Missing email", nil), http.StatusBadRequest},
		{domain.ErrEmailTaken, http.StatusBadRequest},
		{domain.ErrTokenExpired, http.StatusBadRequest},
		{domain.ErrInvalidCredentials, http.StatusUnauthorized},
		{fmt.Errorf("wrapped: %w", domain.ErrUnauthorized), http.StatusUnauthorized},
		{domain.ErrForbidden, http.StatusForbidden},
		{domain.ErrNotFound, http.StatusNotFound},
		{domain.ErrUnsupportedMedia, http.StatusUnsupportedMediaType},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		status, msg := domainStatus(tc.err)
		require.Equal(t, tc.status, status, tc.err.Error())
		require.NotEmpty(t, msg)
	}

	_, msg := domainStatus(domain.NewValidationMessage("Title must be short", nil))
	require.Equal(t, "Title must be short", msg)
}

func TestWriteDomainError_PublicMessage(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteDomainError(rr, withMessage(domain.ErrNotFound, domain.ErrNotFound, "Video not found"))
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.JSONEq(t, `{"message":"Video not found"}`, rr.Body.String())

	rr = httptest.NewRecorder()
	WriteDomainError(rr, withMessage(errors.New("db exploded"), domain.ErrNotFound, "Video not found"))
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.JSONEq(t, `{"message":"Internal server error"}`, rr.Body.String())
}
