package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"smart-contact-manager/internal/model"
)

const minSecretLength = 32

// TokenConfig is built once at startup and never mutated afterwards.
type TokenConfig struct {
	Secret []byte
	TTL    time.Duration
	Issuer string
}

// TokenCodec mints and verifies the stateless bearer tokens carried in the
// Authorization header. The only claim that identifies the user is the subject (email).
type TokenCodec struct {
	secret []byte
	ttl    time.Duration
	issuer string
	parser *jwt.Parser
	now    func() time.Time
}

func NewTokenCodec(cfg TokenConfig) (*TokenCodec, error) {
	if len(cfg.Secret) < minSecretLength {
		return nil, fmt.Errorf("token secret must be at least %d bytes", minSecretLength)
	}
	if cfg.TTL <= 0 {
		return nil, fmt.Errorf("token ttl must be positive")
	}

	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)

	codec := &TokenCodec{
		secret: secret,
		ttl:    cfg.TTL,
		issuer: cfg.Issuer,
		now:    time.Now,
	}
	codec.parser = codec.newParser()
	return codec, nil
}

func (c *TokenCodec) newParser() *jwt.Parser {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(func() time.Time { return c.now() }),
	}
	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}
	return jwt.NewParser(opts...)
}

func (c *TokenCodec) Issue(subject string) (string, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", fmt.Errorf("%w: token subject is required", model.ErrInvalidInput)
	}

	now := c.now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    c.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify returns the token subject. Every failure is reported as model.ErrTokenExpired
// or model.ErrInvalidToken; the signature is checked before expiry, so a tampered
// token is invalid even when it is also expired.
func (c *TokenCodec) Verify(tokenString string) (subject string, err error) {
	// Runs on every request: a parser fault must degrade to an invalid token.
	defer func() {
		if recovered := recover(); recovered != nil {
			subject, err = "", model.ErrInvalidToken
		}
	}()

	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return "", model.ErrInvalidToken
	}

	claims := &jwt.RegisteredClaims{}
	parsed, err := c.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", model.ErrTokenExpired
		}
		return "", model.ErrInvalidToken
	}
	if !parsed.Valid || strings.TrimSpace(claims.Subject) == "" {
		return "", model.ErrInvalidToken
	}

	return claims.Subject, nil
}

// IsValid reports whether the token verifies and still names expectedSubject.
func (c *TokenCodec) IsValid(tokenString string, expectedSubject string) bool {
	subject, err := c.Verify(tokenString)
	if err != nil {
		return false
	}
	return strings.EqualFold(subject, strings.TrimSpace(expectedSubject))
}
