package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"smart-contact-manager/internal/model"
)

const (
	googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"
	githubUserURL     = "https://api.github.com/user"
	githubEmailsURL   = "https://api.github.com/user/emails"

	maxProviderResponseBytes = 1 << 20
)

// OAuthProvider runs the authorization-code flow against one identity provider.
type OAuthProvider interface {
	AuthCodeURL(state string, verifier string) string
	Identity(ctx context.Context, code string, verifier string) (OAuthIdentity, error)
}

// OAuthClientConfig describes a registered OAuth application. The URL fields
// default to the provider's public endpoints when empty.
type OAuthClientConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	AuthURL      string
	TokenURL     string
	UserInfoURL  string
	EmailsURL    string
	HTTPClient   *http.Client
}

func (c OAuthClientConfig) oauth2Config(defaults oauth2.Endpoint, defaultScopes []string) *oauth2.Config {
	endpoint := defaults
	if c.AuthURL != "" {
		endpoint.AuthURL = c.AuthURL
	}
	if c.TokenURL != "" {
		endpoint.TokenURL = c.TokenURL
	}
	scopes := c.Scopes
	if len(scopes) == 0 {
		scopes = defaultScopes
	}

	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  c.RedirectURL,
		Endpoint:     endpoint,
		Scopes:       scopes,
	}
}

func (c OAuthClientConfig) withHTTPClient(ctx context.Context) context.Context {
	if c.HTTPClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, c.HTTPClient)
}

type googleProvider struct {
	cfg         OAuthClientConfig
	conf        *oauth2.Config
	userInfoURL string
}

func NewGoogleProvider(cfg OAuthClientConfig) OAuthProvider {
	userInfoURL := cfg.UserInfoURL
	if userInfoURL == "" {
		userInfoURL = googleUserInfoURL
	}
	return &googleProvider{
		cfg:         cfg,
		conf:        cfg.oauth2Config(endpoints.Google, []string{"openid", "email", "profile"}),
		userInfoURL: userInfoURL,
	}
}

func (p *googleProvider) AuthCodeURL(state string, verifier string) string {
	return p.conf.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
}

func (p *googleProvider) Identity(ctx context.Context, code string, verifier string) (OAuthIdentity, error) {
	ctx = p.cfg.withHTTPClient(ctx)
	token, err := p.conf.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("%w: google token exchange: %v", model.ErrProviderUnavailable, err)
	}

	var identity GoogleIdentity
	if err := fetchJSON(ctx, p.conf.Client(ctx, token), p.userInfoURL, &identity); err != nil {
		return nil, fmt.Errorf("google userinfo: %w", err)
	}
	return identity, nil
}

type githubProvider struct {
	cfg            OAuthClientConfig
	conf           *oauth2.Config
	userURL        string
	emailsURL      string
	fallbackDomain string
}

func NewGitHubProvider(cfg OAuthClientConfig, fallbackDomain string) OAuthProvider {
	userURL := cfg.UserInfoURL
	if userURL == "" {
		userURL = githubUserURL
	}
	emailsURL := cfg.EmailsURL
	if emailsURL == "" {
		emailsURL = githubEmailsURL
	}
	return &githubProvider{
		cfg:            cfg,
		conf:           cfg.oauth2Config(endpoints.GitHub, []string{"read:user", "user:email"}),
		userURL:        userURL,
		emailsURL:      emailsURL,
		fallbackDomain: fallbackDomain,
	}
}

func (p *githubProvider) AuthCodeURL(state string, verifier string) string {
	return p.conf.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

func (p *githubProvider) Identity(ctx context.Context, code string, verifier string) (OAuthIdentity, error) {
	ctx = p.cfg.withHTTPClient(ctx)
	token, err := p.conf.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("%w: github token exchange: %v", model.ErrProviderUnavailable, err)
	}

	client := p.conf.Client(ctx, token)
	identity := GitHubIdentity{FallbackDomain: p.fallbackDomain}
	if err := fetchJSON(ctx, client, p.userURL, &identity); err != nil {
		return nil, fmt.Errorf("github user: %w", err)
	}

	// Private addresses are absent from /user; the emails endpoint still lists them.
	if identity.Email == nil || strings.TrimSpace(*identity.Email) == "" {
		var emails []githubEmail
		if err := fetchJSON(ctx, client, p.emailsURL, &emails); err != nil {
			slog.Debug("github emails lookup failed", "login", identity.Login, "error", err)
		}
		for _, e := range emails {
			if e.Primary && e.Verified && strings.TrimSpace(e.Email) != "" {
				email := e.Email
				identity.Email = &email
				break
			}
		}
	}

	return identity, nil
}

func fetchJSON(ctx context.Context, client *http.Client, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxProviderResponseBytes))
		return fmt.Errorf("%w: %s returned %d", model.ErrProviderUnavailable, endpoint, resp.StatusCode)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxProviderResponseBytes)).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", model.ErrProviderUnavailable, endpoint, err)
	}
	return nil
}

type OAuthStart struct {
	URL      string
	State    string
	Verifier string
}

type OAuthLoginResult struct {
	User        model.User
	Token       string
	Created     bool
	RedirectURL string
}

// OAuthService is the success handler for provider callbacks: it resolves the
// user, mints a bearer token and builds the frontend redirect.
type OAuthService struct {
	providers   map[model.Provider]OAuthProvider
	identities  *IdentityService
	tokens      *TokenCodec
	audit       *AuditService
	frontendURL string
}

func NewOAuthService(identities *IdentityService, tokens *TokenCodec, audit *AuditService, frontendURL string) *OAuthService {
	return &OAuthService{
		providers:   map[model.Provider]OAuthProvider{},
		identities:  identities,
		tokens:      tokens,
		audit:       audit,
		frontendURL: strings.TrimRight(frontendURL, "/"),
	}
}

// Register is called during startup only.
func (s *OAuthService) Register(provider model.Provider, p OAuthProvider) {
	s.providers[provider] = p
}

func (s *OAuthService) Providers() []model.Provider {
	out := make([]model.Provider, 0, len(s.providers))
	for provider := range s.providers {
		out = append(out, provider)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s *OAuthService) Begin(provider model.Provider) (OAuthStart, error) {
	p, ok := s.providers[provider]
	if !ok {
		return OAuthStart{}, model.ErrUnknownProvider
	}

	state, err := randomState()
	if err != nil {
		return OAuthStart{}, err
	}
	verifier := oauth2.GenerateVerifier()

	return OAuthStart{URL: p.AuthCodeURL(state, verifier), State: state, Verifier: verifier}, nil
}

func (s *OAuthService) Complete(ctx context.Context, provider model.Provider, code string, verifier string, clientIP string) (OAuthLoginResult, error) {
	p, ok := s.providers[provider]
	if !ok {
		return OAuthLoginResult{}, model.ErrUnknownProvider
	}

	actor := model.AuditActor{IP: clientIP}
	resource := provider.RegistrationID()

	identity, err := p.Identity(ctx, code, verifier)
	if err != nil {
		s.audit.Log(ctx, model.AuditActionOAuthLogin, actor, model.AuditStatusFailure, resource, err.Error())
		return OAuthLoginResult{}, err
	}

	user, created, err := s.identities.ResolveOAuth(ctx, identity)
	if err != nil {
		actor.Email = identity.Profile().Email
		s.audit.Log(ctx, model.AuditActionOAuthLogin, actor, model.AuditStatusFailure, resource, err.Error())
		return OAuthLoginResult{}, err
	}

	token, err := s.tokens.Issue(user.Email)
	if err != nil {
		return OAuthLoginResult{}, err
	}

	redirectURL, err := s.successRedirect(token, user)
	if err != nil {
		return OAuthLoginResult{}, err
	}

	actor.UserID = user.ID
	actor.Email = user.Email
	s.audit.Log(ctx, model.AuditActionOAuthLogin, actor, model.AuditStatusSuccess, resource, "")
	slog.Info("oauth login successful", "email", user.Email, "provider", string(provider), "created", created)

	return OAuthLoginResult{User: user, Token: token, Created: created, RedirectURL: redirectURL}, nil
}

func (s *OAuthService) successRedirect(token string, user model.User) (string, error) {
	target, err := url.Parse(s.frontendURL + "/oauth-success")
	if err != nil {
		return "", fmt.Errorf("build oauth redirect: %w", err)
	}
	query := target.Query()
	query.Set("token", token)
	query.Set("email", user.Email)
	query.Set("name", user.Name)
	target.RawQuery = query.Encode()
	return target.String(), nil
}

// FailureRedirect is where a failed provider flow sends the browser.
func (s *OAuthService) FailureRedirect() string {
	return "/login?error=oauth_failed"
}

func randomState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate oauth state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
