package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"smart-contact-manager/internal/config"
	"smart-contact-manager/internal/handler"
	"smart-contact-manager/internal/middleware"
	"smart-contact-manager/internal/model"
	"smart-contact-manager/internal/service"
)

type memoryUsers struct {
	mu    sync.Mutex
	users map[string]model.User
}

func (m *memoryUsers) FindByID(_ context.Context, id string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return model.User{}, model.ErrUserNotFound
	}
	return u, nil
}

func (m *memoryUsers) FindByEmail(_ context.Context, email string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == model.NormalizeEmail(email) {
			return u, nil
		}
	}
	return model.User{}, model.ErrUserNotFound
}

func (m *memoryUsers) Create(_ context.Context, u model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return model.ErrUserAlreadyExists
		}
	}
	m.users[u.ID] = u
	return nil
}

func (m *memoryUsers) Update(_ context.Context, u model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
	return nil
}

func (m *memoryUsers) List(_ context.Context) ([]model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	return out, nil
}

type memorySessions struct {
	mu       sync.Mutex
	sessions map[string]string
}

func (m *memorySessions) Store(_ context.Context, token string, userID string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[token] = userID
	return nil
}

func (m *memorySessions) Lookup(_ context.Context, token string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.sessions[token]
	if !ok {
		return "", model.ErrTokenNotFound
	}
	return id, nil
}

func (m *memorySessions) Revoke(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
	return nil
}

func (m *memorySessions) CleanExpired(context.Context) (int64, error) { return 0, nil }

type memoryAudit struct {
	mu      sync.Mutex
	entries []model.AuditEntry
}

func (m *memoryAudit) Log(_ context.Context, entry model.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

func (m *memoryAudit) find(action string, status string) (model.AuditEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.Action == action && e.Status == status {
			return e, true
		}
	}
	return model.AuditEntry{}, false
}

func (m *memoryAudit) Query(_ context.Context, q model.AuditQuery) ([]model.AuditEntry, model.Meta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]model.AuditEntry(nil), m.entries...)
	return out, model.Meta{Page: q.Page, Limit: q.Limit, Total: len(out), TotalPages: 1}, nil
}

// fakeProvider stands in for GitHub: it accepts one code and records the PKCE verifier.
type fakeProvider struct {
	mu       sync.Mutex
	verifier string
}

func (p *fakeProvider) AuthCodeURL(state string, verifier string) string {
	return "https://provider.test/authorize?state=" + url.QueryEscape(state)
}

func (p *fakeProvider) Identity(_ context.Context, code string, verifier string) (service.OAuthIdentity, error) {
	if code != "good-code" {
		return nil, model.ErrProviderUnavailable
	}
	p.mu.Lock()
	p.verifier = verifier
	p.mu.Unlock()

	email := "octo@example.com"
	return service.GitHubIdentity{ID: 583231, Login: "octocat", Email: &email}, nil
}

func (p *fakeProvider) receivedVerifier() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.verifier
}

type testServer struct {
	*httptest.Server
	tokens   *service.TokenCodec
	audit    *memoryAudit
	provider *fakeProvider
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg := &config.Config{
		RateLimitRPM:      0,
		AuthRateLimitRPM:  1000,
		RequestTimeout:    5 * time.Second,
		CORSOrigins:       []string{"http://localhost:5173"},
		FrontendURL:       "http://localhost:5173",
		SessionCookieName: "SCM_SESSION",
	}

	identities, err := service.NewIdentityService(&memoryUsers{users: map[string]model.User{}}, bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, identities.SeedDefaults(context.Background(), service.SeedConfig{
		AdminEmail: "admin@scm.local", AdminPassword: "admin",
		DemoEmail: "user@gmail.com", DemoPassword: "user",
	}))

	tokens, err := service.NewTokenCodec(service.TokenConfig{
		Secret: []byte("router-test-secret-router-test-secret"),
		TTL:    24 * time.Hour,
		Issuer: "scm-test",
	})
	require.NoError(t, err)

	sessions := service.NewSessionService(&memorySessions{sessions: map[string]string{}}, time.Hour)
	auditStore := &memoryAudit{}
	audit := service.NewAuditService(auditStore)
	auth := service.NewAuthService(identities, tokens, sessions, audit)
	oauth := service.NewOAuthService(identities, tokens, audit, cfg.FrontendURL)
	provider := &fakeProvider{}
	oauth.Register(model.ProviderGitHub, provider)

	gate := middleware.NewGate(tokens, identities, sessions, middleware.DefaultPolicy(), cfg.SessionCookieName)
	h := New(cfg, gate, Handlers{
		Auth:   handler.NewAuthHandler(auth),
		OAuth:  handler.NewOAuthHandler(oauth, false),
		Web:    handler.NewWebHandler(auth, handler.SessionCookieConfig{Name: cfg.SessionCookieName}, cfg.FrontendURL),
		User:   handler.NewUserHandler(auth),
		Admin:  handler.NewAdminHandler(auth, audit, oauth.Providers()),
		Page:   handler.NewPageHandler(t.TempDir()),
		Health: handler.NewHealthHandler(nil),
	})

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, tokens: tokens, audit: auditStore, provider: provider}
}

func noRedirectClient() *http.Client {
	return &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}
}

func (s *testServer) do(t *testing.T, method string, path string, body string, token string) (*http.Response, map[string]any) {
	t.Helper()

	req, err := http.NewRequest(method, s.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := noRedirectClient().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func login(t *testing.T, s *testServer, email string, password string) string {
	t.Helper()

	resp, body := s.do(t, http.MethodPost, "/api/auth/login", `{"email":"`+email+`","password":"`+password+`"}`, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func TestDemoUserLogin(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	resp, body := s.do(t, http.MethodPost, "/api/auth/login", `{"email":"user@gmail.com","password":"user"}`, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "Bearer", body["type"])
	require.Equal(t, "user@gmail.com", body["email"])
	require.Equal(t, "Login successful", body["message"])
	require.Equal(t, []any{model.RoleUser}, body["roles"])

	resp, body = s.do(t, http.MethodPost, "/api/auth/login", `{"email":"user@gmail.com","password":"nope"}`, "")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "Invalid email or password", body["message"])

	resp, _ = s.do(t, http.MethodPost, "/api/auth/login", `{"email":"not-an-email"}`, "")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestValidateEndpoint(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	token := login(t, s, "user@gmail.com", "user")

	resp, body := s.do(t, http.MethodPost, "/api/auth/validate", token, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "Token is valid", body["message"])

	resp, _ = s.do(t, http.MethodPost, "/api/auth/validate", `{"token":"`+token+`"}`, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = s.do(t, http.MethodPost, "/api/auth/validate", "garbage", "")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "Invalid token", body["message"])
}

func TestProtectedAndAdminRoutes(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	userToken := login(t, s, "user@gmail.com", "user")
	adminToken := login(t, s, "admin@scm.local", "admin")

	resp, _ := s.do(t, http.MethodGet, "/api/users/me", "", "")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body := s.do(t, http.MethodGet, "/api/users/me", "", userToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := body["data"].(map[string]any)
	require.Equal(t, "user@gmail.com", data["email"])

	resp, _ = s.do(t, http.MethodGet, "/admin/dashboard", "", "")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp, _ = s.do(t, http.MethodGet, "/admin/dashboard", "", userToken)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp, body = s.do(t, http.MethodGet, "/admin/dashboard", "", adminToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.EqualValues(t, 2, body["data"].(map[string]any)["total_users"])

	resp, _ = s.do(t, http.MethodGet, "/api/admin/audit", "", adminToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestPublicPathWithBadToken(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	resp, body := s.do(t, http.MethodGet, "/home", "", "garbage.token.value")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "home", body["data"].(map[string]any)["page"])
	require.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))

	resp, _ = s.do(t, http.MethodGet, "/health", "", "garbage")
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRegisterEndpoint(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	payload := `{"name":"Ann Lee","email":"ann@example.com","password":"secret"}`
	resp, _ := s.do(t, http.MethodPost, "/api/auth/register", payload, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := s.do(t, http.MethodPost, "/api/auth/register", payload, "")
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.Equal(t, "ALREADY_EXISTS", body["error"].(map[string]any)["code"])

	login(t, s, "ann@example.com", "secret")

	// 40 runes but 80 bytes, past what bcrypt accepts.
	long := `{"name":"Long Pass","email":"long@example.com","password":"` + strings.Repeat("é", 40) + `"}`
	resp, body = s.do(t, http.MethodPost, "/api/auth/register", long, "")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "BAD_REQUEST", body["error"].(map[string]any)["code"])
}

func TestFormLoginSessionFlow(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	client := noRedirectClient()

	resp, err := client.PostForm(s.URL+"/authenticate", url.Values{"email": {"user@gmail.com"}, "password": {"bad"}})
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode)
	require.Equal(t, "/login?error=true", resp.Header.Get("Location"))

	resp, err = client.PostForm(s.URL+"/authenticate", url.Values{"email": {"user@gmail.com"}, "password": {"user"}})
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode)
	require.Equal(t, "/auth-success", resp.Header.Get("Location"))

	var session *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == "SCM_SESSION" {
			session = c
		}
	}
	require.NotNil(t, session)
	require.True(t, session.HttpOnly)

	req, _ := http.NewRequest(http.MethodGet, s.URL+"/auth-success", nil)
	req.AddCookie(session)
	resp, err = client.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode)
	require.Equal(t, "http://localhost:5173/user/profile", resp.Header.Get("Location"))

	req, _ = http.NewRequest(http.MethodGet, s.URL+"/user/profile", nil)
	req.AddCookie(session)
	resp, err = client.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	req, _ = http.NewRequest(http.MethodPost, s.URL+"/do-logout", nil)
	req.AddCookie(session)
	resp, err = client.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, "/login?logout=true", resp.Header.Get("Location"))

	entry, ok := s.audit.find(model.AuditActionLogout, model.AuditStatusSuccess)
	require.True(t, ok)
	require.Equal(t, "user@gmail.com", entry.Actor.Email)
	require.NotEmpty(t, entry.Actor.UserID)

	req, _ = http.NewRequest(http.MethodGet, s.URL+"/user/profile", nil)
	req.AddCookie(session)
	resp, err = client.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestOAuthUnknownProvider(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	resp, _ := s.do(t, http.MethodGet, "/oauth2/authorization/google", "", "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = s.do(t, http.MethodGet, "/oauth2/authorization/myspace", "", "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = s.do(t, http.MethodGet, "/login/oauth2/code/google?code=x&state=y", "", "")
	require.Equal(t, http.StatusFound, resp.StatusCode)
	require.Equal(t, "/login?error=oauth_failed", resp.Header.Get("Location"))
}

func startOAuth(t *testing.T, s *testServer) (state *http.Cookie, verifier *http.Cookie) {
	t.Helper()

	resp, _ := s.do(t, http.MethodGet, "/oauth2/authorization/github", "", "")
	require.Equal(t, http.StatusFound, resp.StatusCode)
	require.True(t, strings.HasPrefix(resp.Header.Get("Location"), "https://provider.test/authorize?"))

	for _, c := range resp.Cookies() {
		switch c.Name {
		case "scm_oauth_state":
			state = c
		case "scm_oauth_verifier":
			verifier = c
		}
	}
	require.NotNil(t, state)
	require.NotNil(t, verifier)
	require.True(t, state.HttpOnly)
	require.Equal(t, "/login/oauth2/code/github", state.Path)
	return state, verifier
}

func callback(t *testing.T, s *testServer, query url.Values, cookies ...*http.Cookie) *http.Response {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, s.URL+"/login/oauth2/code/github?"+query.Encode(), nil)
	require.NoError(t, err)
	for _, c := range cookies {
		req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}

	resp, err := noRedirectClient().Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	return resp
}

func requireOAuthCookiesCleared(t *testing.T, resp *http.Response) {
	t.Helper()

	cleared := map[string]bool{}
	for _, c := range resp.Cookies() {
		if c.MaxAge < 0 && c.Value == "" {
			cleared[c.Name] = true
		}
	}
	require.True(t, cleared["scm_oauth_state"])
	require.True(t, cleared["scm_oauth_verifier"])
}

func TestOAuthCallbackSuccess(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	state, verifier := startOAuth(t, s)

	resp := callback(t, s, url.Values{"state": {state.Value}, "code": {"good-code"}}, state, verifier)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	requireOAuthCookiesCleared(t, resp)
	require.Equal(t, verifier.Value, s.provider.receivedVerifier())

	location, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "localhost:5173", location.Host)
	require.Equal(t, "/oauth-success", location.Path)
	require.Equal(t, "octo@example.com", location.Query().Get("email"))
	require.Equal(t, "octocat", location.Query().Get("name"))

	subject, err := s.tokens.Verify(location.Query().Get("token"))
	require.NoError(t, err)
	require.Equal(t, "octo@example.com", subject)

	entry, ok := s.audit.find(model.AuditActionOAuthLogin, model.AuditStatusSuccess)
	require.True(t, ok)
	require.Equal(t, "octo@example.com", entry.Actor.Email)
}

func TestOAuthCallbackRejections(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	tests := []struct {
		name    string
		query   func(state string) url.Values
		cookies func(state *http.Cookie, verifier *http.Cookie) []*http.Cookie
	}{
		{
			name:    "state mismatch",
			query:   func(string) url.Values { return url.Values{"state": {"forged"}, "code": {"good-code"}} },
			cookies: func(st *http.Cookie, v *http.Cookie) []*http.Cookie { return []*http.Cookie{st, v} },
		},
		{
			name:    "missing state cookie",
			query:   func(st string) url.Values { return url.Values{"state": {st}, "code": {"good-code"}} },
			cookies: func(_ *http.Cookie, v *http.Cookie) []*http.Cookie { return []*http.Cookie{v} },
		},
		{
			name:    "missing verifier cookie",
			query:   func(st string) url.Values { return url.Values{"state": {st}, "code": {"good-code"}} },
			cookies: func(st *http.Cookie, _ *http.Cookie) []*http.Cookie { return []*http.Cookie{st} },
		},
		{
			name:    "missing code",
			query:   func(st string) url.Values { return url.Values{"state": {st}} },
			cookies: func(st *http.Cookie, v *http.Cookie) []*http.Cookie { return []*http.Cookie{st, v} },
		},
		{
			name:    "provider error",
			query:   func(st string) url.Values { return url.Values{"state": {st}, "error": {"access_denied"}} },
			cookies: func(st *http.Cookie, v *http.Cookie) []*http.Cookie { return []*http.Cookie{st, v} },
		},
		{
			name:    "exchange failure",
			query:   func(st string) url.Values { return url.Values{"state": {st}, "code": {"bad-code"}} },
			cookies: func(st *http.Cookie, v *http.Cookie) []*http.Cookie { return []*http.Cookie{st, v} },
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			state, verifier := startOAuth(t, s)

			resp := callback(t, s, tc.query(state.Value), tc.cookies(state, verifier)...)
			require.Equal(t, http.StatusFound, resp.StatusCode)
			require.Equal(t, "/login?error=oauth_failed", resp.Header.Get("Location"))
			requireOAuthCookiesCleared(t, resp)
		})
	}

	_, ok := s.audit.find(model.AuditActionOAuthLogin, model.AuditStatusSuccess)
	require.False(t, ok)
}
