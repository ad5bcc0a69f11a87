// Package startup checks process configuration before the server accepts
// traffic. Outside production it only reports; in production any failed
// required check is fatal.
package startup

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/LeandroAbranti/sistema-de-abordagem/internal/platform/config"
	audit "github.com/LeandroAbranti/sistema-de-abordagem/pkg/platform/audit"
)

const (
	MinSecretLength        = 32
	MinAdminPasswordLength = 8
	recommendedPercentage  = 80
)

// ErrConfigFatal wraps every production validation failure.
var ErrConfigFatal = errors.New("invalid production configuration")

var (
	weakAdminPasswords = []string{"admin123", "password", "123456", config.DevAdminPassword}
	weakSecrets        = []string{"sua_chave_secreta_muito_segura_aqui", "secret", "jwt_secret", config.DevSigningKey}
)

// Finding is one failed or noteworthy check.
type Finding struct {
	Check   string `json:"check"`
	Message string `json:"message"`
}

type Validation struct {
	Valid    bool      `json:"valid"`
	Errors   []Finding `json:"errors"`
	Warnings []Finding `json:"warnings"`
}

type Score struct {
	Passed     int             `json:"score"`
	Total      int             `json:"total"`
	Percentage int             `json:"percentage"`
	Checks     map[string]bool `json:"checks"`
}

type Report struct {
	Environment     string     `json:"environment"`
	Timestamp       time.Time  `json:"timestamp"`
	Validation      Validation `json:"validation"`
	Security        Score      `json:"security"`
	Recommendations []string   `json:"recommendations"`
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Check evaluates cfg without side effects.
func Check(cfg config.Server) Validation {
	v := Validation{Errors: []Finding{}, Warnings: []Finding{}}
	if !cfg.Production {
		v.Valid = true
		v.Warnings = append(v.Warnings, Finding{Check: "environment", Message: "not in production mode"})
		return v
	}

	switch {
	case cfg.JWTSecret == "":
		v.Errors = append(v.Errors, Finding{"jwt_secret", "missing required environment variable: JWT_SECRET"})
	case slices.Contains(weakSecrets, cfg.JWTSecret):
		v.Errors = append(v.Errors, Finding{"jwt_secret", "default JWT_SECRET detected"})
	case len(cfg.JWTSecret) < MinSecretLength:
		v.Errors = append(v.Errors, Finding{"jwt_secret", "JWT_SECRET must be at least " + strconv.Itoa(MinSecretLength) + " characters long"})
	}

	switch {
	case cfg.AdminPassword == "":
		v.Errors = append(v.Errors, Finding{"admin_password", "missing required environment variable: ADMIN_PASSWORD"})
	case slices.Contains(weakAdminPasswords, cfg.AdminPassword):
		v.Errors = append(v.Errors, Finding{"admin_password", "default ADMIN_PASSWORD detected"})
	case len(cfg.AdminPassword) < MinAdminPasswordLength:
		v.Errors = append(v.Errors, Finding{"admin_password", "ADMIN_PASSWORD must be at least " + strconv.Itoa(MinAdminPasswordLength) + " characters long"})
	}

	if len(cfg.AllowedOrigins) == 0 {
		v.Errors = append(v.Errors, Finding{"allowed_origins", "missing required environment variable: ALLOWED_ORIGINS"})
	}
	for _, origin := range cfg.AllowedOrigins {
		if !strings.HasPrefix(origin, "https://") {
			v.Warnings = append(v.Warnings, Finding{"allowed_origins", "origin should use HTTPS in production: " + origin})
		}
	}

	recommended := []struct{ name, value string }{
		{"SSL_KEY_PATH", cfg.SSLKeyPath},
		{"SSL_CERT_PATH", cfg.SSLCertPath},
		{"EMAIL_HOST", cfg.EmailHost},
		{"EMAIL_USER", cfg.EmailUser},
	}
	for _, r := range recommended {
		if r.value == "" {
			v.Warnings = append(v.Warnings, Finding{"recommended", "missing recommended environment variable: " + r.name})
		}
	}

	v.Valid = len(v.Errors) == 0
	return v
}

// SecurityScore rates the configuration on seven checks.
func SecurityScore(cfg config.Server) Score {
	checks := map[string]bool{
		"https_redirect":        cfg.Production && cfg.HTTPSRedirect,
		"cors_configured":       len(cfg.AllowedOrigins) > 0,
		"jwt_secret_secure":     len(cfg.JWTSecret) >= MinSecretLength && !slices.Contains(weakSecrets, cfg.JWTSecret),
		"admin_password_secure": len(cfg.AdminPassword) >= MinAdminPasswordLength && !slices.Contains(weakAdminPasswords, cfg.AdminPassword),
		"rate_limit_enabled":    cfg.RateLimitEnabled,
		"security_headers":      true,
		"audit_logging":         true,
	}
	passed := 0
	for _, ok := range checks {
		if ok {
			passed++
		}
	}
	return Score{
		Passed:     passed,
		Total:      len(checks),
		Percentage: int(math.Round(float64(passed) * 100 / float64(len(checks)))),
		Checks:     checks,
	}
}

// BuildReport combines validation and score with recommendations.
func BuildReport(cfg config.Server, now time.Time) Report {
	score := SecurityScore(cfg)
	r := Report{
		Environment:     cfg.Env,
		Timestamp:       now.UTC(),
		Validation:      Check(cfg),
		Security:        score,
		Recommendations: []string{},
	}
	if score.Percentage < recommendedPercentage {
		r.Recommendations = append(r.Recommendations, "improve security configuration to reach at least 80% compliance")
	}
	if !score.Checks["cors_configured"] {
		r.Recommendations = append(r.Recommendations, "configure ALLOWED_ORIGINS for the production CORS policy")
	}
	if !score.Checks["jwt_secret_secure"] {
		r.Recommendations = append(r.Recommendations, "use a JWT_SECRET of at least 32 characters")
	}
	return r
}

// Validate runs the checks, records the failing ones and the score in the
// audit trail, and returns an ErrConfigFatal error in production when any
// required check fails. The report is returned either way.
func Validate(ctx context.Context, cfg config.Server, auditor AuditPublisher, now time.Time) (Report, error) {
	report := BuildReport(cfg, now)

	if auditor != nil {
		for _, f := range report.Validation.Errors {
			_ = auditor.Emit(ctx, audit.Event{
				Kind:     audit.KindConfig,
				Actor:    "system",
				Outcome:  audit.OutcomeFailure,
				Severity: audit.SeverityCritical,
				Resource: f.Check,
				Reason:   f.Message,
			})
		}
		_ = auditor.Emit(ctx, audit.Event{
			Kind:     audit.KindConfig,
			Actor:    "system",
			Outcome:  outcome(report.Validation.Valid),
			Reason:   "security_score",
			Metadata: scoreMetadata(report),
		})
	}

	if report.Validation.Valid {
		return report, nil
	}
	msgs := make([]string, 0, len(report.Validation.Errors))
	for _, f := range report.Validation.Errors {
		msgs = append(msgs, f.Message)
	}
	return report, fmt.Errorf("%w: %s", ErrConfigFatal, strings.Join(msgs, "; "))
}

func outcome(valid bool) audit.Outcome {
	if valid {
		return audit.OutcomeSuccess
	}
	return audit.OutcomeFailure
}

func scoreMetadata(r Report) map[string]string {
	md := map[string]string{
		"environment": r.Environment,
		"score":       strconv.Itoa(r.Security.Passed) + "/" + strconv.Itoa(r.Security.Total),
		"percentage":  strconv.Itoa(r.Security.Percentage),
		"errors":      strconv.Itoa(len(r.Validation.Errors)),
		"warnings":    strconv.Itoa(len(r.Validation.Warnings)),
	}
	for name, ok := range r.Security.Checks {
		md["check."+name] = strconv.FormatBool(ok)
	}
	return md
}
