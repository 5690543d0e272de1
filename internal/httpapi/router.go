package httpapi

import (
	"context"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"

	"vidshare/internal/auth"
	"vidshare/internal/service"
)

const defaultMaxUploadBytes = 512 << 20

type RouterOpts struct {
	Logger *slog.Logger
	IsProd bool

	DBPing func(context.Context) error

	Auth     *service.AuthService
	Videos   *service.VideoService
	Sessions *auth.SessionIssuer
	Metrics  *Metrics

	CORSOrigins    []string
	MaxUploadBytes int64

	// StaticDir, when set, is served under StaticPrefix. It backs the
	// video_url of locally stored uploads.
	StaticDir    string
	StaticPrefix string

	// Pages serves the browser pages linked from account emails.
	Pages http.Handler
}

func NewRouter(opts RouterOpts) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics(prometheus.NewRegistry())
	}

	api := &api{
		logger:         logger,
		dbPing:         opts.DBPing,
		authSvc:        opts.Auth,
		videoSvc:       opts.Videos,
		sessions:       opts.Sessions,
		maxUploadBytes: opts.MaxUploadBytes,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", api.handleHealthz)
	mux.Handle("GET /metrics", opts.Metrics.Handler())
	if opts.StaticDir != "" {
		prefix := "/" + strings.Trim(opts.StaticPrefix, "/") + "/"
		mux.Handle("GET "+prefix, http.StripPrefix(prefix, http.FileServer(noDirListing{http.Dir(opts.StaticDir)})))
	}

	if api.authSvc == nil || api.sessions == nil {
		for _, pattern := range []string{
			"POST /api/v1/register",
			"POST /api/v1/login",
			"POST /api/v1/logout",
			"POST /api/v1/forgot-password",
			"POST /api/v1/reset-password",
			"GET /api/v1/verify-email/{token}",
			"GET /api/v1/user",
			"GET /api/v1/user/{id}",
		} {
			mux.HandleFunc(pattern, handleNotImplemented)
		}
	} else {
		mux.HandleFunc("POST /api/v1/register", api.handleRegister)
		mux.HandleFunc("POST /api/v1/login", api.handleLogin)
		mux.HandleFunc("POST /api/v1/login/google", api.handleLoginGoogle)
		mux.HandleFunc("POST /api/v1/login/apple", api.handleLoginApple)
		mux.HandleFunc("POST /api/v1/logout", api.handleLogout)
		mux.HandleFunc("POST /api/v1/forgot-password", api.handleForgotPassword)
		mux.HandleFunc("POST /api/v1/reset-password", api.handleResetPassword)
		mux.HandleFunc("GET /api/v1/verify-email/{token}", api.handleVerifyEmail)
		mux.HandleFunc("GET /api/v1/user", api.handleCurrentUser)
		mux.HandleFunc("GET /api/v1/user/{id}", api.handleGetUser)
	}

	if api.videoSvc == nil || api.sessions == nil {
		mux.HandleFunc("/api/v1/video", handleNotImplemented)
		mux.HandleFunc("/api/v1/video/", handleNotImplemented)
	} else {
		mux.HandleFunc("POST /api/v1/video", api.requireSession(api.handleVideoCreate))
		mux.HandleFunc("GET /api/v1/video", api.handleVideoList)
		mux.HandleFunc("GET /api/v1/video/{id}", api.handleVideoGet)
		mux.HandleFunc("GET /api/v1/video/user/{user_id}", api.handleVideoListByUser)
		mux.HandleFunc("GET /api/v1/video/share/{share_id}", api.handleVideoShare)
		mux.HandleFunc("PATCH /api/v1/video/{id}", api.withSession(api.handleVideoUpdate))
		mux.HandleFunc("DELETE /api/v1/video/{id}", api.withSession(api.handleVideoDelete))
	}

	if opts.Pages != nil {
		mux.Handle("GET /reset-password", opts.Pages)
		mux.Handle("POST /reset-password", opts.Pages)
	}

	mux.HandleFunc("/api/", handleAPINotFound)

	var h http.Handler = mux
	h = opts.Metrics.Middleware(h)
	h = cors.Handler(corsOptions(opts.CORSOrigins))(h)
	h = RequestLogger(logger)(h)
	h = RequestID()(h)
	h = Recoverer(logger, opts.IsProd)(h)
	return h
}

func corsOptions(origins []string) cors.Options {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}
}

func handleNotImplemented(w http.ResponseWriter, _ *http.Request) {
	WriteError(w, http.StatusNotImplemented, "Not implemented")
}

func handleAPINotFound(w http.ResponseWriter, _ *http.Request) {
	WriteError(w, http.StatusNotFound, "Not found")
}

type api struct {
	logger *slog.Logger

	dbPing func(context.Context) error

	authSvc  *service.AuthService
	videoSvc *service.VideoService
	sessions *auth.SessionIssuer

	maxUploadBytes int64
}

func (a *api) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	if a.dbPing != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 1*time.Second)
		defer cancel()
		if err := a.dbPing(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("db down"))
			return
		}
	}

	_, _ = w.Write([]byte("ok"))
}

// noDirListing hides directory indexes from the static file server.
type noDirListing struct {
	fs http.FileSystem
}

func (n noDirListing) Open(name string) (http.File, error) {
	f, err := n.fs.Open(name)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if st.IsDir() {
		_ = f.Close()
		return nil, fs.ErrNotExist
	}
	return f, nil
}
