package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"vidshare/internal/email"
)

type Config struct {
	Env       string
	Addr      string
	PublicURL *url.URL
	DBDSN     string
	LogLevel  string

	JWTSecret      string
	SessionTTL     time.Duration
	VerifyTokenTTL time.Duration
	ResetTokenTTL  time.Duration

	UploadDir      string
	MaxUploadBytes int64
	S3             S3Config

	SMTP         SMTPConfig
	MailFrom     string
	MailFromName string

	CORSOrigins    []string
	GoogleClientID string
	AppleServiceID string
}

// S3Config selects object storage for uploads. An empty Bucket keeps files
// on local disk under UploadDir.
type S3Config struct {
	Endpoint       string
	Bucket         string
	Region         string
	AccessKey      string
	SecretKey      string
	Prefix         string
	PublicURL      string
	ForcePathStyle bool
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	TLSMode  email.TLSMode
}

const (
	defaultSessionTTL     = time.Hour
	defaultTokenTTL       = 24 * time.Hour
	defaultUploadDir      = "static/videos"
	defaultMaxUploadBytes = 512 << 20
	defaultSMTPPort       = 587
	minProdSecretBytes    = 32
)

// Load merges the optional dotenv file named by APP_ENV_FILE (default
// ".env") into the process environment and reads the config from it.
func Load() (Config, error) {
	path := os.Getenv("APP_ENV_FILE")
	if path == "" {
		path = ".env"
	}
	if err := loadDotEnvFile(path, os.Setenv, os.Getenv); err != nil {
		return Config{}, err
	}
	return LoadFromEnv(os.Getenv)
}

func LoadFromEnv(getenv func(string) string) (Config, error) {
	cfg := Config{
		Env:            getenv("APP_ENV"),
		Addr:           getenv("APP_ADDR"),
		DBDSN:          getenv("APP_DB_DSN"),
		LogLevel:       getenv("APP_LOG_LEVEL"),
		JWTSecret:      getenv("APP_JWT_SECRET"),
		UploadDir:      strings.TrimSpace(getenv("APP_UPLOAD_DIR")),
		MailFrom:       strings.TrimSpace(getenv("APP_MAIL_FROM")),
		MailFromName:   strings.TrimSpace(getenv("APP_MAIL_FROM_NAME")),
		GoogleClientID: strings.TrimSpace(getenv("APP_GOOGLE_CLIENT_ID")),
		AppleServiceID: strings.TrimSpace(getenv("APP_APPLE_SERVICE_ID")),
		S3: S3Config{
			Endpoint:  strings.TrimSpace(getenv("APP_S3_ENDPOINT")),
			Bucket:    strings.TrimSpace(getenv("APP_S3_BUCKET")),
			Region:    strings.TrimSpace(getenv("APP_S3_REGION")),
			AccessKey: getenv("APP_S3_ACCESS_KEY"),
			SecretKey: getenv("APP_S3_SECRET_KEY"),
			Prefix:    strings.Trim(getenv("APP_S3_PREFIX"), "/ "),
			PublicURL: strings.TrimSpace(getenv("APP_S3_PUBLIC_URL")),
		},
		SMTP: SMTPConfig{
			Host:     strings.TrimSpace(getenv("APP_SMTP_HOST")),
			Username: getenv("APP_SMTP_USERNAME"),
			Password: getenv("APP_SMTP_PASSWORD"),
		},
	}

	if cfg.Env == "" {
		cfg.Env = "dev"
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8080"
	}
	if cfg.UploadDir == "" {
		cfg.UploadDir = defaultUploadDir
	}

	switch cfg.Env {
	case "dev", "prod", "test":
	default:
		return Config{}, errors.New("APP_ENV: must be one of dev, test, prod")
	}

	publicURLRaw := getenv("APP_PUBLIC_URL")
	if publicURLRaw != "" {
		parsed, err := url.Parse(publicURLRaw)
		if err != nil {
			return Config{}, fmt.Errorf("APP_PUBLIC_URL: %w", err)
		}
		if !parsed.IsAbs() || parsed.Host == "" {
			return Config{}, errors.New("APP_PUBLIC_URL: must be an absolute URL")
		}
		switch parsed.Scheme {
		case "http", "https":
		default:
			return Config{}, errors.New("APP_PUBLIC_URL: scheme must be http or https")
		}
		parsed.Path = strings.TrimRight(parsed.Path, "/")
		cfg.PublicURL = parsed
	}

	var err error
	if cfg.SessionTTL, err = parseTTL(getenv, "APP_SESSION_TTL", defaultSessionTTL); err != nil {
		return Config{}, err
	}
	if cfg.VerifyTokenTTL, err = parseTTL(getenv, "APP_VERIFY_TOKEN_TTL", defaultTokenTTL); err != nil {
		return Config{}, err
	}
	if cfg.ResetTokenTTL, err = parseTTL(getenv, "APP_RESET_TOKEN_TTL", defaultTokenTTL); err != nil {
		return Config{}, err
	}

	cfg.MaxUploadBytes = defaultMaxUploadBytes
	if raw := strings.TrimSpace(getenv("APP_MAX_UPLOAD_BYTES")); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("APP_MAX_UPLOAD_BYTES: %w", err)
		}
		if n <= 0 {
			return Config{}, errors.New("APP_MAX_UPLOAD_BYTES: must be > 0")
		}
		cfg.MaxUploadBytes = n
	}

	if raw := strings.TrimSpace(getenv("APP_S3_FORCE_PATH_STYLE")); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return Config{}, fmt.Errorf("APP_S3_FORCE_PATH_STYLE: %w", err)
		}
		cfg.S3.ForcePathStyle = v
	}
	if cfg.S3.Bucket != "" && cfg.S3.Region == "" {
		cfg.S3.Region = "us-east-1"
	}
	if (cfg.S3.AccessKey == "") != (cfg.S3.SecretKey == "") {
		return Config{}, errors.New("APP_S3_ACCESS_KEY: must be set together with APP_S3_SECRET_KEY")
	}

	cfg.SMTP.Port = defaultSMTPPort
	if raw := strings.TrimSpace(getenv("APP_SMTP_PORT")); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil || port <= 0 || port > 65535 {
			return Config{}, errors.New("APP_SMTP_PORT: must be a port number")
		}
		cfg.SMTP.Port = port
	}
	if cfg.SMTP.TLSMode, err = email.ParseTLSMode(getenv("APP_SMTP_TLS")); err != nil {
		return Config{}, fmt.Errorf("APP_SMTP_TLS: %w", err)
	}

	cfg.CORSOrigins = parseCSV(getenv("APP_CORS_ORIGINS"))
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{"*"}
	}

	if cfg.IsProd() {
		if cfg.PublicURL == nil {
			return Config{}, errors.New("APP_PUBLIC_URL: required in prod")
		}
		if cfg.DBDSN == "" {
			return Config{}, errors.New("APP_DB_DSN: required in prod")
		}
		if len(cfg.JWTSecret) < minProdSecretBytes {
			return Config{}, fmt.Errorf("APP_JWT_SECRET: must be at least %d bytes in prod", minProdSecretBytes)
		}
	}

	return cfg, nil
}

func (c Config) IsProd() bool { return c.Env == "prod" }

// BaseURL is the externally reachable origin of the API without a trailing
// slash. Outside prod it falls back to the listen address.
func (c Config) BaseURL() string {
	if c.PublicURL != nil {
		return c.PublicURL.String()
	}
	return "http://" + c.Addr
}

func parseTTL(getenv func(string) string, key string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(getenv(key))
	if raw == "" {
		return def, nil
	}
	ttl, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if ttl <= 0 {
		return 0, fmt.Errorf("%s: must be > 0", key)
	}
	return ttl, nil
}

// parseCSV splits a comma separated list, dropping blanks and duplicates.
func parseCSV(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	seen := make(map[string]bool, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}
