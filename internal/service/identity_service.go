package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"smart-contact-manager/internal/model"
)

type userStore interface {
	FindByID(ctx context.Context, id string) (model.User, error)
	FindByEmail(ctx context.Context, email string) (model.User, error)
	Create(ctx context.Context, u model.User) error
	Update(ctx context.Context, u model.User) error
	List(ctx context.Context) ([]model.User, error)
}

// IdentityService turns every credential presentation (password, token subject,
// session, OAuth callback) into a single canonical user keyed by email.
type IdentityService struct {
	users      userStore
	bcryptCost int
	dummyHash  []byte
	now        func() time.Time
}

func NewIdentityService(users userStore, bcryptCost int) (*IdentityService, error) {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}

	// Compared against when the account is unknown so both paths cost one bcrypt round.
	dummyHash, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("prepare password verifier: %w", err)
	}

	return &IdentityService{
		users:      users,
		bcryptCost: bcryptCost,
		dummyHash:  dummyHash,
		now:        time.Now,
	}, nil
}

func (s *IdentityService) AuthenticateLocal(ctx context.Context, email string, password string) (model.User, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, model.ErrUserNotFound) {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		return model.User{}, model.ErrInvalidCredentials
	}
	if err != nil {
		return model.User{}, err
	}

	hash := []byte(user.PasswordHash)
	if len(hash) == 0 {
		// OAuth-only accounts never authenticate with a password.
		hash = s.dummyHash
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil || user.PasswordHash == "" {
		return model.User{}, model.ErrInvalidCredentials
	}

	if !user.Enabled {
		return model.User{}, fmt.Errorf("%w: %w", model.ErrInvalidCredentials, model.ErrAccountDisabled)
	}

	return user, nil
}

// ResolveOAuth finds or creates the user behind a provider identity. created is
// true only for the call that inserted the record.
func (s *IdentityService) ResolveOAuth(ctx context.Context, identity OAuthIdentity) (model.User, bool, error) {
	if identity == nil {
		return model.User{}, false, fmt.Errorf("%w: missing oauth identity", model.ErrInvalidInput)
	}

	profile := identity.Profile()
	if profile.Email == "" {
		return model.User{}, false, fmt.Errorf("%w: %s returned no usable email", model.ErrInvalidInput, profile.Provider)
	}

	existing, err := s.users.FindByEmail(ctx, profile.Email)
	if err == nil {
		user, syncErr := s.backfillProfile(ctx, existing, profile)
		return user, false, syncErr
	}
	if !errors.Is(err, model.ErrUserNotFound) {
		return model.User{}, false, err
	}

	now := s.now().UTC()
	user := model.User{
		ID:             uuid.NewString(),
		Email:          profile.Email,
		Name:           profile.Name,
		About:          aboutForProvider(profile.Provider),
		ProfilePic:     profile.Picture,
		Roles:          []string{model.RoleUser},
		Provider:       profile.Provider,
		ProviderUserID: profile.ExternalID,
		Enabled:        true,
		EmailVerified:  true,
		PhoneVerified:  true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = s.users.Create(ctx, user)
	if errors.Is(err, model.ErrUserAlreadyExists) {
		// Lost a race with a concurrent first login for the same email.
		winner, findErr := s.users.FindByEmail(ctx, profile.Email)
		if findErr != nil {
			return model.User{}, false, fmt.Errorf("re-fetch user after conflict: %w", findErr)
		}
		return winner, false, nil
	}
	if err != nil {
		return model.User{}, false, err
	}

	slog.Info("oauth user created", "email", user.Email, "provider", string(user.Provider))
	return user, true, nil
}

// backfillProfile fills an existing record's empty name or picture from the provider.
// Values the user already has are never overwritten.
func (s *IdentityService) backfillProfile(ctx context.Context, user model.User, profile OAuthProfile) (model.User, error) {
	changed := false
	if strings.TrimSpace(user.Name) == "" && profile.Name != "" {
		user.Name = profile.Name
		changed = true
	}
	if strings.TrimSpace(user.ProfilePic) == "" && profile.Picture != "" {
		user.ProfilePic = profile.Picture
		changed = true
	}
	if !changed {
		return user, nil
	}

	user.UpdatedAt = s.now().UTC()
	if err := s.users.Update(ctx, user); err != nil {
		return model.User{}, fmt.Errorf("backfill oauth profile: %w", err)
	}
	return user, nil
}

func (s *IdentityService) LoadByEmail(ctx context.Context, email string) (model.User, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return model.User{}, err
	}
	if !user.Enabled {
		return model.User{}, model.ErrAccountDisabled
	}
	return user, nil
}

func (s *IdentityService) LoadByID(ctx context.Context, id string) (model.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return model.User{}, err
	}
	if !user.Enabled {
		return model.User{}, model.ErrAccountDisabled
	}
	return user, nil
}

func (s *IdentityService) Register(ctx context.Context, req model.RegisterRequest) (model.User, error) {
	if err := validateStruct(req); err != nil {
		return model.User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return model.User{}, fmt.Errorf("%w: password exceeds %d bytes", model.ErrInvalidInput, maxPasswordBytes)
	}
	if err != nil {
		return model.User{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	user := model.User{
		ID:           uuid.NewString(),
		Email:        model.NormalizeEmail(req.Email),
		PasswordHash: string(hash),
		Name:         strings.TrimSpace(req.Name),
		About:        strings.TrimSpace(req.About),
		PhoneNumber:  strings.TrimSpace(req.PhoneNumber),
		Roles:        []string{model.RoleUser},
		Provider:     model.ProviderNone,
		Enabled:      true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return model.User{}, err
	}
	return user, nil
}

func (s *IdentityService) ListUsers(ctx context.Context) ([]model.User, error) {
	return s.users.List(ctx)
}

type SeedConfig struct {
	AdminEmail    string
	AdminPassword string
	DemoEmail     string
	DemoPassword  string
}

// SeedDefaults makes sure the administrator and the demo account exist. The
// administrator's password and roles are reset on every start; the demo user is
// created once and left alone afterwards.
func (s *IdentityService) SeedDefaults(ctx context.Context, cfg SeedConfig) error {
	if cfg.AdminEmail != "" {
		if err := s.seedAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			return fmt.Errorf("seed admin: %w", err)
		}
	}

	if cfg.DemoEmail != "" {
		if err := s.seedDemo(ctx, cfg.DemoEmail, cfg.DemoPassword); err != nil {
			return fmt.Errorf("seed demo user: %w", err)
		}
	}

	return nil
}

func (s *IdentityService) seedAdmin(ctx context.Context, email string, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return err
	}

	roles := []string{model.RoleAdmin, model.RoleUser}
	existing, err := s.users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		existing.PasswordHash = string(hash)
		existing.Roles = roles
		existing.Name = "admin"
		existing.Enabled = true
		existing.EmailVerified = true
		existing.PhoneVerified = true
		if err := s.users.Update(ctx, existing); err != nil {
			return err
		}
		slog.Info("admin user updated", "email", existing.Email)
		return nil
	case errors.Is(err, model.ErrUserNotFound):
	default:
		return err
	}

	now := s.now().UTC()
	err = s.users.Create(ctx, model.User{
		ID:            uuid.NewString(),
		Email:         model.NormalizeEmail(email),
		PasswordHash:  string(hash),
		Name:          "admin",
		About:         "This is the admin user created initially",
		Roles:         roles,
		Provider:      model.ProviderNone,
		Enabled:       true,
		EmailVerified: true,
		PhoneVerified: true,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil && !errors.Is(err, model.ErrUserAlreadyExists) {
		return err
	}
	slog.Info("admin user created", "email", model.NormalizeEmail(email))
	return nil
}

func (s *IdentityService) seedDemo(ctx context.Context, email string, password string) error {
	_, err := s.users.FindByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, model.ErrUserNotFound) {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return err
	}

	now := s.now().UTC()
	err = s.users.Create(ctx, model.User{
		ID:            uuid.NewString(),
		Email:         model.NormalizeEmail(email),
		PasswordHash:  string(hash),
		Name:          "demo user",
		About:         "This is dummy user created initially",
		Roles:         []string{model.RoleUser},
		Provider:      model.ProviderNone,
		Enabled:       true,
		EmailVerified: true,
		PhoneVerified: true,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil && !errors.Is(err, model.ErrUserAlreadyExists) {
		return err
	}
	slog.Info("demo user created", "email", model.NormalizeEmail(email))
	return nil
}

func aboutForProvider(provider model.Provider) string {
	switch provider {
	case model.ProviderGoogle:
		return "This account is created using Google."
	case model.ProviderGitHub:
		return "This account is created using GitHub."
	default:
		return ""
	}
}
