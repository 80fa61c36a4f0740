package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"smart-contact-manager/internal/model"
)

type tokenVerifier interface {
	Verify(token string) (string, error)
	IsValid(token string, expectedSubject string) bool
}

type principalLoader interface {
	LoadByEmail(ctx context.Context, email string) (model.User, error)
	LoadByID(ctx context.Context, id string) (model.User, error)
}

type sessionResolver interface {
	Resolve(ctx context.Context, token string) (string, error)
}

type contextKey string

const principalContextKey contextKey = "principal"

// Gate resolves the caller's identity and enforces the path policy on every request.
type Gate struct {
	tokens     tokenVerifier
	users      principalLoader
	sessions   sessionResolver
	policy     *Policy
	cookieName string
}

func NewGate(tokens tokenVerifier, users principalLoader, sessions sessionResolver, policy *Policy, cookieName string) *Gate {
	if policy == nil {
		policy = DefaultPolicy()
	}
	return &Gate{tokens: tokens, users: users, sessions: sessions, policy: policy, cookieName: cookieName}
}

func (g *Gate) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.policy.IsPublic(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		principal := g.resolve(r)

		switch g.policy.Decide(r.URL.Path, principal) {
		case DecisionUnauthenticated:
			w.Header().Set("WWW-Authenticate", `Bearer realm="scm"`)
			writeGateError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
			return
		case DecisionForbidden:
			writeGateError(w, http.StatusForbidden, "FORBIDDEN", "insufficient permissions")
			return
		}

		if principal != nil {
			r = r.WithContext(WithPrincipal(r.Context(), principal))
		}
		next.ServeHTTP(w, r)
	})
}

// resolve never fails the request: any problem leaves it anonymous.
func (g *Gate) resolve(r *http.Request) *model.Principal {
	if token, ok := bearerToken(r); ok {
		return g.fromBearer(r.Context(), token)
	}

	if g.sessions != nil && g.cookieName != "" {
		if cookie, err := r.Cookie(g.cookieName); err == nil && cookie.Value != "" {
			return g.fromSession(r.Context(), cookie.Value)
		}
	}

	return nil
}

func (g *Gate) fromBearer(ctx context.Context, token string) *model.Principal {
	subject, err := g.tokens.Verify(token)
	if err != nil {
		return nil
	}

	user, err := g.users.LoadByEmail(ctx, subject)
	if err != nil {
		logLookupFailure("bearer", err)
		return nil
	}
	if !g.tokens.IsValid(token, user.Email) {
		return nil
	}
	return model.NewPrincipal(user, "bearer")
}

func (g *Gate) fromSession(ctx context.Context, value string) *model.Principal {
	userID, err := g.sessions.Resolve(ctx, value)
	if err != nil {
		logLookupFailure("session", err)
		return nil
	}

	user, err := g.users.LoadByID(ctx, userID)
	if err != nil {
		logLookupFailure("session", err)
		return nil
	}
	return model.NewPrincipal(user, "session")
}

func logLookupFailure(method string, err error) {
	if errors.Is(err, model.ErrUserNotFound) || errors.Is(err, model.ErrAccountDisabled) || errors.Is(err, model.ErrTokenNotFound) {
		return
	}
	slog.Warn("identity lookup failed", "method", method, "error", err)
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return "", false
	}
	token := strings.TrimSpace(header[7:])
	return token, token != ""
}

func WithPrincipal(ctx context.Context, principal *model.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, principal)
}

func PrincipalFromContext(ctx context.Context) (*model.Principal, bool) {
	principal, ok := ctx.Value(principalContextKey).(*model.Principal)
	return principal, ok && principal != nil
}

func writeGateError(w http.ResponseWriter, status int, code string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = jsonEncode(w, model.APIResponse{
		Success: false,
		Error: &model.APIError{
			Code:    code,
			Message: message,
		},
	})
}
