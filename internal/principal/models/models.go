package models

import (
	"regexp"
	"time"
)

// Role is the authorization level carried in the credential.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleStandard Role = "standard"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleStandard
}

// DefaultAdminID is the registration number of the bootstrap administrator.
const DefaultAdminID = "257"

var idPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,32}$`)

// ValidID reports whether id is an acceptable registration number.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

// Principal is an agent or administrator. The ID is immutable once created
// and principals are never physically deleted.
type Principal struct {
	ID         string
	Name       string
	SecretHash string
	Role       Role
	Enabled    bool
	CreatedAt  time.Time
}

func (p *Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// View is the principal as exposed over the API, without the secret hash.
type View struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
}

func (p *Principal) View() View {
	return View{
		ID:        p.ID,
		Name:      p.Name,
		Role:      p.Role,
		Enabled:   p.Enabled,
		CreatedAt: p.CreatedAt,
	}
}

// CreateInput is the admin request to register a principal.
type CreateInput struct {
	ID     string `json:"id" yaml:"id"`
	Name   string `json:"name" yaml:"name"`
	Secret string `json:"secret" yaml:"secret"`
	Role   Role   `json:"role" yaml:"role"`
}

// LoginFailure reasons recorded in the audit trail. The caller only ever
// sees a uniform message.
const (
	ReasonNotFound        = "user_not_found"
	ReasonDisabled        = "user_inactive"
	ReasonInvalidPassword = "invalid_password"
)
