package service

import (
	"strconv"
	"strings"

	"smart-contact-manager/internal/model"
)

const defaultGitHubFallbackDomain = "gmail.com"

// OAuthProfile holds the canonical fields extracted from a provider payload.
type OAuthProfile struct {
	Provider   model.Provider
	ExternalID string
	Email      string
	Name       string
	Picture    string
}

// OAuthIdentity is implemented only by GoogleIdentity and GitHubIdentity.
type OAuthIdentity interface {
	Provider() model.Provider
	Profile() OAuthProfile
	sealedIdentity()
}

// GoogleIdentity mirrors the OpenID Connect userinfo document.
type GoogleIdentity struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

func (GoogleIdentity) Provider() model.Provider { return model.ProviderGoogle }
func (GoogleIdentity) sealedIdentity()          {}

func (g GoogleIdentity) Profile() OAuthProfile {
	return OAuthProfile{
		Provider:   model.ProviderGoogle,
		ExternalID: strings.TrimSpace(g.Subject),
		Email:      model.NormalizeEmail(g.Email),
		Name:       strings.TrimSpace(g.Name),
		Picture:    strings.TrimSpace(g.Picture),
	}
}

// GitHubIdentity mirrors the GitHub /user document. Email is nil when the
// user keeps their address private.
type GitHubIdentity struct {
	ID        int64   `json:"id"`
	Login     string  `json:"login"`
	Name      string  `json:"name"`
	Email     *string `json:"email"`
	AvatarURL string  `json:"avatar_url"`

	// FallbackDomain builds a placeholder address ({login}@{domain}) when Email is empty.
	FallbackDomain string `json:"-"`
}

func (GitHubIdentity) Provider() model.Provider { return model.ProviderGitHub }
func (GitHubIdentity) sealedIdentity()          {}

func (g GitHubIdentity) Profile() OAuthProfile {
	login := strings.TrimSpace(g.Login)

	email := ""
	if g.Email != nil {
		email = model.NormalizeEmail(*g.Email)
	}
	if email == "" && login != "" {
		domain := strings.TrimSpace(g.FallbackDomain)
		if domain == "" {
			domain = defaultGitHubFallbackDomain
		}
		email = model.NormalizeEmail(login + "@" + domain)
	}

	externalID := ""
	if g.ID != 0 {
		externalID = strconv.FormatInt(g.ID, 10)
	}

	return OAuthProfile{
		Provider:   model.ProviderGitHub,
		ExternalID: externalID,
		Email:      email,
		Name:       login,
		Picture:    strings.TrimSpace(g.AvatarURL),
	}
}
