// Package config reads process configuration from the environment. Values are
// kept as given so the startup validator can tell a missing variable from a
// weak one; development fallbacks are applied by the accessor methods.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	platformstrings "github.com/LeandroAbranti/sistema-de-abordagem/pkg/platform/strings"
)

const (
	DevSigningKey    = "dev-secret-key-change-in-production"
	DevAdminPassword = "TempAdmin123!"
)

type S3 struct {
	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// Server captures everything the server process needs at startup.
type Server struct {
	Env        string
	Production bool
	Addr       string
	LogLevel   string

	JWTSecret      string
	AdminPassword  string
	AllowedOrigins []string

	DatabasePath string
	AuditDBPath  string
	LogDir       string
	SeedFile     string

	BackupDir       string
	BackupRetention int
	BackupInterval  time.Duration
	BackupGrace     time.Duration
	BackupTimeout   time.Duration

	RedisURL         string
	RateLimitEnabled bool
	HTTPSRedirect    bool
	S3               S3

	SSLKeyPath  string
	SSLCertPath string
	EmailHost   string
	EmailUser   string
}

// SigningKey returns the configured JWT secret or the development fallback.
func (s Server) SigningKey() string {
	if s.JWTSecret == "" {
		return DevSigningKey
	}
	return s.JWTSecret
}

// AdminSecret returns the bootstrap administrator secret.
func (s Server) AdminSecret() string {
	if s.AdminPassword == "" {
		return DevAdminPassword
	}
	return s.AdminPassword
}

// CORSOrigins returns the configured allow-list, or the built-in defaults for
// the environment when none is configured.
func (s Server) CORSOrigins() []string {
	if len(s.AllowedOrigins) > 0 {
		return s.AllowedOrigins
	}
	if s.Production {
		return []string{"https://leandroabranti.github.io"}
	}
	return []string{
		"http://localhost:3000",
		"http://127.0.0.1:3000",
		"http://localhost:5000",
		"http://127.0.0.1:5000",
		"https://leandroabranti.github.io",
	}
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	return FromLookup(os.LookupEnv)
}

// FromLookup builds a Server config using lookup in place of the environment.
func FromLookup(lookup func(string) (string, bool)) (Server, error) {
	get := func(key, def string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return def
	}
	r := reader{get: get}

	env := get("APP_ENV", get("NODE_ENV", "development"))
	cfg := Server{
		Env:        env,
		Production: env == "production",
		Addr:       get("ADDR", ":"+get("PORT", "3001")),
		LogLevel:   get("LOG_LEVEL", "info"),

		JWTSecret:      get("JWT_SECRET", ""),
		AdminPassword:  get("ADMIN_PASSWORD", ""),
		AllowedOrigins: platformstrings.SplitList(get("ALLOWED_ORIGINS", "")),

		DatabasePath: get("DATABASE_PATH", "data/records.sqlite"),
		AuditDBPath:  get("AUDIT_DATABASE_PATH", "logs/audit.db"),
		LogDir:       get("LOG_DIR", "logs"),
		SeedFile:     get("SEED_FILE", ""),

		BackupDir:       get("BACKUP_DIR", "backups"),
		BackupRetention: r.int("BACKUP_RETENTION", 10),
		BackupInterval:  r.duration("BACKUP_INTERVAL", 6*time.Hour),
		BackupGrace:     r.duration("BACKUP_GRACE", time.Minute),
		BackupTimeout:   r.duration("BACKUP_TIMEOUT", 2*time.Minute),

		RedisURL:         get("REDIS_URL", ""),
		RateLimitEnabled: r.bool("RATE_LIMIT_ENABLED", true),
		HTTPSRedirect:    r.bool("HTTPS_REDIRECT", env == "production"),
		S3: S3{
			Bucket:    get("S3_BUCKET", ""),
			Prefix:    get("S3_PREFIX", "backups/"),
			Region:    get("S3_REGION", "us-east-1"),
			Endpoint:  get("S3_ENDPOINT", ""),
			AccessKey: get("S3_ACCESS_KEY", ""),
			SecretKey: get("S3_SECRET_KEY", ""),
		},

		SSLKeyPath:  get("SSL_KEY_PATH", ""),
		SSLCertPath: get("SSL_CERT_PATH", ""),
		EmailHost:   get("EMAIL_HOST", ""),
		EmailUser:   get("EMAIL_USER", ""),
	}
	if r.err != nil {
		return Server{}, r.err
	}
	if cfg.BackupRetention < 1 {
		return Server{}, fmt.Errorf("BACKUP_RETENTION must be at least 1")
	}
	return cfg, nil
}

// reader records the first parse failure.
type reader struct {
	get func(key, def string) string
	err error
}

func (r *reader) int(key string, def int) int {
	v := r.get(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil && r.err == nil {
		r.err = fmt.Errorf("%s: %w", key, err)
	}
	return n
}

func (r *reader) duration(key string, def time.Duration) time.Duration {
	v := r.get(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil && r.err == nil {
		r.err = fmt.Errorf("%s: %w", key, err)
	}
	return d
}

func (r *reader) bool(key string, def bool) bool {
	v := r.get(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil && r.err == nil {
		r.err = fmt.Errorf("%s: %w", key, err)
	}
	return b
}
