package middleware

import (
	"testing"

	"github.com/stretchr/testify/require"

	"smart-contact-manager/internal/model"
)

func TestDefaultPolicyMatch(t *testing.T) {
	t.Parallel()

	policy := DefaultPolicy()

	tests := []struct {
		path   string
		access Access
		found  bool
	}{
		{path: "/home", access: AccessPublic, found: true},
		{path: "/login", access: AccessPublic, found: true},
		{path: "/login/oauth2/code/google", access: AccessPublic, found: true},
		{path: "/oauth2/authorization/github", access: AccessPublic, found: true},
		{path: "/api/auth/login", access: AccessPublic, found: true},
		{path: "/css/output.css", access: AccessPublic, found: true},
		{path: "/contact", access: AccessPublic, found: true},
		{path: "/contact/form", access: AccessPublic, found: true},
		{path: "/admin/dashboard", access: AccessRole, found: true},
		{path: "/admin", access: AccessRole, found: true},
		{path: "/api/admin/users", access: AccessRole, found: true},
		{path: "/user/profile", access: AccessAuthenticated, found: true},
		{path: "/auth-success", access: AccessAuthenticated, found: true},
		{path: "/api/users/me", access: AccessAuthenticated, found: true},
		{path: "/api/contacts/12", access: AccessAuthenticated, found: true},
		{path: "/contacts", found: false},
		{path: "/homepage", found: false},
		{path: "/", found: false},
	}

	for _, tc := range tests {
		rule, ok := policy.Match(tc.path)
		require.Equal(t, tc.found, ok, tc.path)
		if tc.found {
			require.Equal(t, tc.access, rule.Access, tc.path)
		}
	}
}

func TestPolicyMatchCleansPaths(t *testing.T) {
	t.Parallel()

	policy := DefaultPolicy()

	rule, ok := policy.Match("/css/../admin/dashboard")
	require.True(t, ok)
	require.Equal(t, AccessRole, rule.Access)

	rule, ok = policy.Match("//user//profile")
	require.True(t, ok)
	require.Equal(t, AccessAuthenticated, rule.Access)

	require.False(t, policy.IsPublic("/api/auth/../users/me"))
}

func TestPolicyDecide(t *testing.T) {
	t.Parallel()

	policy := DefaultPolicy()
	user := &model.Principal{Email: "user@gmail.com", Roles: []string{model.RoleUser}}
	admin := &model.Principal{Email: "admin@scm.local", Roles: []string{model.RoleAdmin, model.RoleUser}}

	require.Equal(t, DecisionAllow, policy.Decide("/home", nil))
	require.Equal(t, DecisionAllow, policy.Decide("/somewhere/else", nil))

	require.Equal(t, DecisionUnauthenticated, policy.Decide("/user/profile", nil))
	require.Equal(t, DecisionAllow, policy.Decide("/user/profile", user))

	require.Equal(t, DecisionUnauthenticated, policy.Decide("/admin/users", nil))
	require.Equal(t, DecisionForbidden, policy.Decide("/admin/users", user))
	require.Equal(t, DecisionAllow, policy.Decide("/admin/users", admin))
}

func TestPolicyFirstMatchWins(t *testing.T) {
	t.Parallel()

	policy := NewPolicy(
		Rule{Access: AccessPublic, Prefixes: []string{"/api/open/"}},
		Rule{Access: AccessAuthenticated, Prefixes: []string{"/api/"}},
	)

	require.True(t, policy.IsPublic("/api/open/thing"))
	require.Equal(t, DecisionUnauthenticated, policy.Decide("/api/closed", nil))
	require.Equal(t, "authenticated", AccessAuthenticated.String())
}
