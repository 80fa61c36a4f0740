package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"smart-contact-manager/internal/model"
)

// AuthService implements the login, validate, register and form-login flows on
// top of the identity resolver, the token codec and the session store.
type AuthService struct {
	identities *IdentityService
	tokens     *TokenCodec
	sessions   *SessionService
	audit      *AuditService
}

func NewAuthService(identities *IdentityService, tokens *TokenCodec, sessions *SessionService, audit *AuditService) *AuthService {
	return &AuthService{identities: identities, tokens: tokens, sessions: sessions, audit: audit}
}

func (s *AuthService) Login(ctx context.Context, req model.LoginRequest, clientIP string) (model.AuthResponse, error) {
	if err := validateStruct(req); err != nil {
		return model.AuthResponse{}, err
	}

	actor := model.AuditActor{Email: model.NormalizeEmail(req.Email), IP: clientIP}
	user, err := s.identities.AuthenticateLocal(ctx, req.Email, req.Password)
	if err != nil {
		s.audit.Log(ctx, model.AuditActionLogin, actor, model.AuditStatusFailure, "", err.Error())
		if errors.Is(err, model.ErrInvalidCredentials) {
			slog.Warn("login rejected", "email", actor.Email, "reason", err.Error())
		}
		return model.AuthResponse{}, err
	}

	token, err := s.tokens.Issue(user.Email)
	if err != nil {
		return model.AuthResponse{}, err
	}

	actor.UserID = user.ID
	s.audit.Log(ctx, model.AuditActionLogin, actor, model.AuditStatusSuccess, "", "")
	slog.Info("login successful", "email", user.Email)

	return model.AuthResponse{
		Token:   token,
		Type:    "Bearer",
		Email:   user.Email,
		Name:    user.Name,
		Message: "Login successful",
		Roles:   user.Roles,
	}, nil
}

// ValidateToken checks a raw token and that its subject still maps to an enabled user.
func (s *AuthService) ValidateToken(ctx context.Context, token string) (model.AuthResponse, error) {
	token = strings.TrimSpace(token)
	subject, err := s.tokens.Verify(token)
	if err != nil {
		return model.AuthResponse{}, err
	}

	user, err := s.identities.LoadByEmail(ctx, subject)
	if errors.Is(err, model.ErrUserNotFound) || errors.Is(err, model.ErrAccountDisabled) {
		return model.AuthResponse{}, model.ErrInvalidToken
	}
	if err != nil {
		return model.AuthResponse{}, err
	}
	if !s.tokens.IsValid(token, user.Email) {
		return model.AuthResponse{}, model.ErrInvalidToken
	}

	return model.AuthResponse{
		Token:   token,
		Type:    "Bearer",
		Email:   user.Email,
		Name:    user.Name,
		Message: "Token is valid",
		Roles:   user.Roles,
	}, nil
}

func (s *AuthService) Register(ctx context.Context, req model.RegisterRequest, clientIP string) (model.AuthUser, error) {
	actor := model.AuditActor{Email: model.NormalizeEmail(req.Email), IP: clientIP}

	user, err := s.identities.Register(ctx, req)
	if err != nil {
		s.audit.Log(ctx, model.AuditActionRegister, actor, model.AuditStatusFailure, "", err.Error())
		return model.AuthUser{}, err
	}

	actor.UserID = user.ID
	s.audit.Log(ctx, model.AuditActionRegister, actor, model.AuditStatusSuccess, "", "")
	slog.Info("user registered", "email", user.Email)
	return user.ToAuthUser(), nil
}

// FormLogin authenticates browser form credentials and opens a server-side
// session. No bearer token is minted on this path.
func (s *AuthService) FormLogin(ctx context.Context, email string, password string, clientIP string) (string, time.Time, error) {
	actor := model.AuditActor{Email: model.NormalizeEmail(email), IP: clientIP}

	user, err := s.identities.AuthenticateLocal(ctx, email, password)
	if err != nil {
		s.audit.Log(ctx, model.AuditActionFormLogin, actor, model.AuditStatusFailure, "", err.Error())
		return "", time.Time{}, err
	}

	sessionToken, expiresAt, err := s.sessions.Create(ctx, user.ID)
	if err != nil {
		return "", time.Time{}, err
	}

	actor.UserID = user.ID
	s.audit.Log(ctx, model.AuditActionFormLogin, actor, model.AuditStatusSuccess, "", "")
	slog.Info("form login successful", "email", user.Email)
	return sessionToken, expiresAt, nil
}

func (s *AuthService) Logout(ctx context.Context, sessionToken string, principal *model.Principal, clientIP string) error {
	actor := model.AuditActor{IP: clientIP}
	if principal != nil {
		actor.UserID = principal.UserID
		actor.Email = principal.Email
	} else if sessionToken != "" {
		// The logout path is public, so the actor comes from the session itself.
		if userID, err := s.sessions.Resolve(ctx, sessionToken); err == nil {
			actor.UserID = userID
			if user, err := s.identities.LoadByID(ctx, userID); err == nil {
				actor.Email = user.Email
			}
		}
	}

	if err := s.sessions.Revoke(ctx, sessionToken); err != nil {
		return err
	}

	s.audit.Log(ctx, model.AuditActionLogout, actor, model.AuditStatusSuccess, "", "")
	return nil
}

func (s *AuthService) CurrentUser(ctx context.Context, principal *model.Principal) (model.AuthUser, error) {
	if principal == nil {
		return model.AuthUser{}, model.ErrUnauthorized
	}

	user, err := s.identities.LoadByID(ctx, principal.UserID)
	if err != nil {
		return model.AuthUser{}, err
	}
	return user.ToAuthUser(), nil
}

func (s *AuthService) ListUsers(ctx context.Context) ([]model.AuthUser, error) {
	users, err := s.identities.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]model.AuthUser, 0, len(users))
	for _, u := range users {
		out = append(out, u.ToAuthUser())
	}
	return out, nil
}
