package model

import (
	"strings"
	"time"
)

const (
	RoleUser  = "ROLE_USER"
	RoleAdmin = "ROLE_ADMIN"
)

type Provider string

const (
	ProviderNone   Provider = "NONE"
	ProviderGoogle Provider = "GOOGLE"
	ProviderGitHub Provider = "GITHUB"
)

// ParseProvider maps an OAuth registration id ("google", "github") to its provider tag.
func ParseProvider(raw string) (Provider, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "google":
		return ProviderGoogle, true
	case "github":
		return ProviderGitHub, true
	default:
		return "", false
	}
}

// RegistrationID is the lowercase name used in OAuth URLs.
func (p Provider) RegistrationID() string {
	return strings.ToLower(string(p))
}

type User struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	PasswordHash   string    `json:"-"`
	Name           string    `json:"name"`
	About          string    `json:"about,omitempty"`
	PhoneNumber    string    `json:"phone_number,omitempty"`
	ProfilePic     string    `json:"profile_pic,omitempty"`
	Roles          []string  `json:"roles"`
	Provider       Provider  `json:"provider"`
	ProviderUserID string    `json:"provider_user_id,omitempty"`
	Enabled        bool      `json:"enabled"`
	EmailVerified  bool      `json:"email_verified"`
	PhoneVerified  bool      `json:"phone_verified"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (u User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

// Principal is the identity attached to a request once the gate resolved it.
type Principal struct {
	UserID string   `json:"user_id"`
	Email  string   `json:"email"`
	Name   string   `json:"name"`
	Roles  []string `json:"roles"`
	// Method is "bearer" or "session".
	Method string `json:"method"`
}

func NewPrincipal(u User, method string) *Principal {
	roles := make([]string, len(u.Roles))
	copy(roles, u.Roles)
	return &Principal{UserID: u.ID, Email: u.Email, Name: u.Name, Roles: roles, Method: method}
}

func (p *Principal) HasRole(role string) bool {
	if p == nil {
		return false
	}
	for _, r := range p.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

type AuthUser struct {
	ID            string   `json:"id"`
	Email         string   `json:"email"`
	Name          string   `json:"name"`
	ProfilePic    string   `json:"profile_pic,omitempty"`
	Roles         []string `json:"roles"`
	Provider      Provider `json:"provider"`
	Enabled       bool     `json:"enabled"`
	EmailVerified bool     `json:"email_verified"`
	PhoneVerified bool     `json:"phone_verified"`
}

func (u User) ToAuthUser() AuthUser {
	return AuthUser{
		ID:            u.ID,
		Email:         u.Email,
		Name:          u.Name,
		ProfilePic:    u.ProfilePic,
		Roles:         u.Roles,
		Provider:      u.Provider,
		Enabled:       u.Enabled,
		EmailVerified: u.EmailVerified,
		PhoneVerified: u.PhoneVerified,
	}
}

type AuthUserList struct {
	Users []AuthUser `json:"users"`
}

// AuthResponse is the flat body returned by the login and validate endpoints.
type AuthResponse struct {
	Token   string   `json:"token,omitempty"`
	Type    string   `json:"type,omitempty"`
	Email   string   `json:"email,omitempty"`
	Name    string   `json:"name,omitempty"`
	Message string   `json:"message"`
	Roles   []string `json:"roles,omitempty"`
}

// NormalizeEmail is the canonical form used for every lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
