package middleware

import (
	"path"
	"strings"

	"smart-contact-manager/internal/model"
)

type Access int

const (
	AccessPublic Access = iota
	AccessAuthenticated
	AccessRole
)

func (a Access) String() string {
	switch a {
	case AccessPublic:
		return "public"
	case AccessAuthenticated:
		return "authenticated"
	case AccessRole:
		return "role"
	default:
		return "unknown"
	}
}

// Rule grants Access to every path under one of its prefixes. A prefix ending in
// "/" covers the subtree; any other prefix covers the exact path and its subtree.
type Rule struct {
	Prefixes []string
	Access   Access
	Role     string
}

type Decision int

const (
	DecisionAllow Decision = iota
	DecisionUnauthenticated
	DecisionForbidden
)

// Policy is an ordered rule table. The first matching rule wins; unmatched paths
// are allowed.
type Policy struct {
	rules []Rule
}

func NewPolicy(rules ...Rule) *Policy {
	copied := make([]Rule, len(rules))
	copy(copied, rules)
	return &Policy{rules: copied}
}

func DefaultPolicy() *Policy {
	return NewPolicy(
		Rule{
			Access: AccessPublic,
			Prefixes: []string{
				"/home", "/register", "/services", "/about", "/contact", "/login",
				"/do-logout", "/authenticate", "/api/auth/", "/oauth2/", "/login/oauth2/",
				"/css/", "/js/", "/images/", "/favicon.ico", "/health",
			},
		},
		Rule{
			Access:   AccessRole,
			Role:     model.RoleAdmin,
			Prefixes: []string{"/admin/", "/api/admin/"},
		},
		Rule{
			Access: AccessAuthenticated,
			Prefixes: []string{
				"/user/", "/auth-success", "/api/users/", "/api/contacts/",
				"/api/messages/", "/api/notes/",
			},
		},
	)
}

// Match returns the first rule covering requestPath.
func (p *Policy) Match(requestPath string) (Rule, bool) {
	cleaned := cleanPath(requestPath)
	for _, rule := range p.rules {
		for _, prefix := range rule.Prefixes {
			if matchPrefix(cleaned, prefix) {
				return rule, true
			}
		}
	}
	return Rule{}, false
}

func (p *Policy) IsPublic(requestPath string) bool {
	rule, ok := p.Match(requestPath)
	return ok && rule.Access == AccessPublic
}

func (p *Policy) Decide(requestPath string, principal *model.Principal) Decision {
	rule, ok := p.Match(requestPath)
	if !ok {
		return DecisionAllow
	}

	switch rule.Access {
	case AccessAuthenticated:
		if principal == nil {
			return DecisionUnauthenticated
		}
	case AccessRole:
		if principal == nil {
			return DecisionUnauthenticated
		}
		if !principal.HasRole(rule.Role) {
			return DecisionForbidden
		}
	}
	return DecisionAllow
}

func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	cleaned := path.Clean(p)
	// path.Clean drops the trailing slash; "/admin/" must still match the "/admin/" rule.
	if strings.HasSuffix(p, "/") && cleaned != "/" {
		cleaned += "/"
	}
	return cleaned
}

func matchPrefix(p string, prefix string) bool {
	if strings.HasSuffix(prefix, "/") {
		return strings.HasPrefix(p, prefix) || p == strings.TrimSuffix(prefix, "/")
	}
	return p == prefix || strings.HasPrefix(p, prefix+"/")
}
