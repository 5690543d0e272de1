// Package userui serves the few browser pages that account emails link to.
package userui

import (
	"log/slog"
	"net/http"

	"vidshare/internal/service"
)

type Opts struct {
	Logger *slog.Logger
	Auth   *service.AuthService
}

func New(opts Opts) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	app := &app{
		logger:  logger,
		authSvc: opts.Auth,
	}

	t, err := parseTemplates()
	if err != nil {
		logger.Error("userui: parse templates failed", "err", err)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "internal server error", http.StatusInternalServerError)
		})
	}
	app.templates = t

	mux := http.NewServeMux()
	mux.HandleFunc("GET /reset-password", app.handleResetGet)
	mux.HandleFunc("POST /reset-password", app.handleResetPost)
	return mux
}

type app struct {
	logger    *slog.Logger
	authSvc   *service.AuthService
	templates *templates
}
