package config

import (
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

const insecureSecret = "secret"

// Config is read from the environment (and a .env file when present).
// Unset variables take the default tag.
type Config struct {
	Port        string `default:"8080"`
	DatabaseURL string `default:"file:db.sqlite"`
	AppEnv      string `default:"local"`
	LogLevel    string `default:"info"`
	BaseURL     string `default:"http://localhost:8080"`
	FrontendURL string `default:"/"`

	JWTSecret  string        `default:"secret"`
	SessionTTL time.Duration `default:"24h"`

	GitHubClientID     string
	GitHubClientSecret string
	GitHubRedirectURL  string `default:"http://localhost:8080/auth/github/callback"`
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string `default:"http://localhost:8080/auth/google/callback"`
	AllowedUsers       []string

	RedisURL           string
	RateLimitPerMinute int `default:"60"`
	// Peers allowed to set X-Forwarded-For and X-Real-IP.
	TrustedProxies []netip.Prefix

	TitleFetchTimeout time.Duration `default:"5s"`
	CodeStrategy      string        `default:"random"`
	CodeLength        int           `default:"6"`
	CodeMaxAttempts   int           `default:"5"`

	DBMaxOpenConns int `default:"10"`
	DBMaxIdleConns int `default:"5"`

	ReadTimeout     time.Duration `default:"15s"`
	WriteTimeout    time.Duration `default:"15s"`
	ShutdownTimeout time.Duration `default:"10s"`
}

func Load() (*Config, error) {
	_ = godotenv.Load() // Ignore error if .env not found (e.g. prod)
	return FromEnv()
}

// FromEnv builds a Config from the process environment only. Defaults
// are applied first so an explicitly set zero survives.
func FromEnv() (*Config, error) {
	c := &Config{}
	if err := defaults.Set(c); err != nil {
		return nil, errors.Wrap(err, "set default config failed")
	}

	strs := []struct {
		key string
		dst *string
	}{
		{"PORT", &c.Port},
		{"DATABASE_URL", &c.DatabaseURL},
		{"APP_ENV", &c.AppEnv},
		{"LOG_LEVEL", &c.LogLevel},
		{"BASE_URL", &c.BaseURL},
		{"FRONTEND_URL", &c.FrontendURL},
		{"JWT_SECRET", &c.JWTSecret},
		{"GITHUB_CLIENT_ID", &c.GitHubClientID},
		{"GITHUB_CLIENT_SECRET", &c.GitHubClientSecret},
		{"GITHUB_REDIRECT_URL", &c.GitHubRedirectURL},
		{"GOOGLE_CLIENT_ID", &c.GoogleClientID},
		{"GOOGLE_CLIENT_SECRET", &c.GoogleClientSecret},
		{"GOOGLE_REDIRECT_URL", &c.GoogleRedirectURL},
		{"REDIS_URL", &c.RedisURL},
		{"CODE_STRATEGY", &c.CodeStrategy},
	}
	for _, f := range strs {
		if v, ok := lookup(f.key); ok {
			*f.dst = v
		}
	}
	c.AllowedUsers = splitList(os.Getenv("ALLOWED_USERS"))

	ints := []struct {
		key string
		dst *int
	}{
		{"RATE_LIMIT_PER_MINUTE", &c.RateLimitPerMinute},
		{"CODE_LENGTH", &c.CodeLength},
		{"CODE_MAX_ATTEMPTS", &c.CodeMaxAttempts},
		{"DB_MAX_OPEN_CONNS", &c.DBMaxOpenConns},
		{"DB_MAX_IDLE_CONNS", &c.DBMaxIdleConns},
	}
	for _, f := range ints {
		v, ok := lookup(f.key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, errors.Wrapf(err, "parse %s", f.key)
		}
		if n < 0 {
			return nil, errors.Errorf("%s must not be negative", f.key)
		}
		*f.dst = n
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"SESSION_TTL", &c.SessionTTL},
		{"TITLE_FETCH_TIMEOUT", &c.TitleFetchTimeout},
		{"HTTP_READ_TIMEOUT", &c.ReadTimeout},
		{"HTTP_WRITE_TIMEOUT", &c.WriteTimeout},
		{"SHUTDOWN_TIMEOUT", &c.ShutdownTimeout},
	}
	for _, f := range durations {
		v, ok := lookup(f.key)
		if !ok {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, errors.Wrapf(err, "parse %s", f.key)
		}
		*f.dst = d
	}

	for _, entry := range splitList(os.Getenv("TRUSTED_PROXIES")) {
		prefix, err := parsePrefix(entry)
		if err != nil {
			return nil, errors.Wrap(err, "parse TRUSTED_PROXIES")
		}
		c.TrustedProxies = append(c.TrustedProxies, prefix)
	}

	if c.IsProduction() && c.JWTSecret == insecureSecret {
		return nil, errors.New("JWT_SECRET must be set in production")
	}

	return c, nil
}

// lookup treats an empty variable as unset.
func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// parsePrefix accepts a CIDR or a bare address.
func parsePrefix(s string) (netip.Prefix, error) {
	if strings.Contains(s, "/") {
		p, err := netip.ParsePrefix(s)
		return p.Masked(), err
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Prefix{}, err
	}
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// GitHubEnabled reports whether GitHub sign-in is configured.
func (c *Config) GitHubEnabled() bool {
	return c.GitHubClientID != "" && c.GitHubClientSecret != ""
}

func (c *Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
