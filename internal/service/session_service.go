package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"smart-contact-manager/internal/model"
)

type sessionStore interface {
	Store(ctx context.Context, token string, userID string, expiresAt time.Time) error
	Lookup(ctx context.Context, token string) (string, error)
	Revoke(ctx context.Context, token string) error
	CleanExpired(ctx context.Context) (int64, error)
}

// SessionService backs the browser form-login flow. Only a SHA-256 digest of the
// cookie value is persisted.
type SessionService struct {
	store sessionStore
	ttl   time.Duration
	now   func() time.Time
}

func NewSessionService(store sessionStore, ttl time.Duration) *SessionService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SessionService{store: store, ttl: ttl, now: time.Now}
}

func (s *SessionService) Create(ctx context.Context, userID string) (string, time.Time, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", time.Time{}, fmt.Errorf("generate session token: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(raw)
	expiresAt := s.now().UTC().Add(s.ttl)

	if err := s.store.Store(ctx, digest(token), userID, expiresAt); err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// Resolve returns the user id owning a live session, or model.ErrTokenNotFound.
func (s *SessionService) Resolve(ctx context.Context, token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", model.ErrTokenNotFound
	}
	return s.store.Lookup(ctx, digest(token))
}

func (s *SessionService) Revoke(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}
	return s.store.Revoke(ctx, digest(token))
}

// StartCleanupTicker purges expired sessions until ctx is cancelled.
func (s *SessionService) StartCleanupTicker(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.store.CleanExpired(ctx)
			if err != nil {
				slog.Warn("session cleanup failed", "error", err)
				continue
			}
			if removed > 0 {
				slog.Info("expired sessions removed", "count", removed)
			}
		}
	}
}

func digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
