package httpapi

import (
	"context"
	"net/http"

	"vidshare/internal/auth"
	"vidshare/internal/domain"
)

type authCtxKey int

const authUserIDKey authCtxKey = iota

// withSession resolves an optional bearer session. Requests without an
// Authorization header pass through anonymously; a header that does not
// carry a valid session is rejected with 401.
func (a *api) withSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, present := auth.BearerToken(r)
		if present && token == "" {
			a.fail(w, r, auth.ErrSessionInvalid)
			return
		}

		userID, ok, err := a.sessions.ResolveOptional(token)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		ctx := context.WithValue(r.Context(), authUserIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

// requireSession is withSession for endpoints that reject anonymous
// callers.
func (a *api) requireSession(next http.HandlerFunc) http.HandlerFunc {
	return a.withSession(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CurrentUserID(r.Context()); !ok {
			a.fail(w, r, domain.ErrUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func CurrentUserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(authUserIDKey).(string)
	return id, ok && id != ""
}
