package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/crypto/bcrypt"

	"smart-contact-manager/internal/config"
	"smart-contact-manager/internal/database"
	"smart-contact-manager/internal/handler"
	"smart-contact-manager/internal/middleware"
	"smart-contact-manager/internal/model"
	"smart-contact-manager/internal/repository"
	"smart-contact-manager/internal/router"
	"smart-contact-manager/internal/service"
)

const sessionCleanupInterval = 15 * time.Minute

type App struct {
	server       *http.Server
	db           *database.DB
	cleanupFuncs []func()
}

func New(cfg *config.Config) (*App, error) {
	slog.Info("connecting to PostgreSQL")
	db, err := database.New(context.Background(), database.Options{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.EnsureSchema(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure database schema: %w", err)
	}

	pool := db.Pool
	userRepo := repository.NewUserRepository(pool)
	sessionRepo := repository.NewSessionRepository(pool)
	auditRepo := repository.NewAuditRepository(pool)
	slog.Info("database ready")

	identityService, err := service.NewIdentityService(userRepo, bcrypt.DefaultCost)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize identity service: %w", err)
	}

	if cfg.SeedDefaultUsers {
		err := identityService.SeedDefaults(context.Background(), service.SeedConfig{
			AdminEmail:    cfg.AdminEmail,
			AdminPassword: cfg.AdminPassword,
			DemoEmail:     cfg.DemoEmail,
			DemoPassword:  cfg.DemoPassword,
		})
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to seed default users: %w", err)
		}
	}

	tokenCodec, err := service.NewTokenCodec(service.TokenConfig{
		Secret: []byte(cfg.JWTSecret),
		TTL:    cfg.JWTTTL,
		Issuer: cfg.JWTIssuer,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize token codec: %w", err)
	}

	sessionService := service.NewSessionService(sessionRepo, cfg.SessionTTL)
	auditService := service.NewAuditService(auditRepo)
	authService := service.NewAuthService(identityService, tokenCodec, sessionService, auditService)
	oauthService := newOAuthService(cfg, identityService, tokenCodec, auditService)

	gate := middleware.NewGate(tokenCodec, identityService, sessionService, middleware.DefaultPolicy(), cfg.SessionCookieName)

	appRouter := router.New(cfg, gate, router.Handlers{
		Auth:  handler.NewAuthHandler(authService),
		OAuth: handler.NewOAuthHandler(oauthService, cfg.SessionCookieSecure),
		Web: handler.NewWebHandler(authService, handler.SessionCookieConfig{
			Name:   cfg.SessionCookieName,
			Secure: cfg.SessionCookieSecure,
		}, cfg.FrontendURL),
		User:   handler.NewUserHandler(authService),
		Admin:  handler.NewAdminHandler(authService, auditService, oauthService.Providers()),
		Page:   handler.NewPageHandler(cfg.StaticDir),
		Health: handler.NewHealthHandler(db),
	})

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	go sessionService.StartCleanupTicker(cleanupCtx, sessionCleanupInterval)

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           appRouter,
		ReadHeaderTimeout: cfg.ServerReadHeaderTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	return &App{
		server: server,
		db:     db,
		cleanupFuncs: []func(){
			func() {
				cleanupCancel()
			},
			func() {
				db.Close()
			},
		},
	}, nil
}

// newOAuthService registers only the providers whose client credentials are configured.
func newOAuthService(cfg *config.Config, identities *service.IdentityService, tokens *service.TokenCodec, audit *service.AuditService) *service.OAuthService {
	oauthService := service.NewOAuthService(identities, tokens, audit, cfg.FrontendURL)

	if cfg.GoogleClientID != "" {
		oauthService.Register(model.ProviderGoogle, service.NewGoogleProvider(service.OAuthClientConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.OAuthRedirectBaseURL + "/login/oauth2/code/google",
		}))
	}

	if cfg.GitHubClientID != "" {
		oauthService.Register(model.ProviderGitHub, service.NewGitHubProvider(service.OAuthClientConfig{
			ClientID:     cfg.GitHubClientID,
			ClientSecret: cfg.GitHubClientSecret,
			RedirectURL:  cfg.OAuthRedirectBaseURL + "/login/oauth2/code/github",
		}, cfg.GitHubFallbackEmailDomain))
	}

	providers := oauthService.Providers()
	if len(providers) == 0 {
		slog.Warn("no oauth providers configured")
	} else {
		slog.Info("oauth providers enabled", "providers", providers)
	}
	return oauthService
}

func (a *App) Run() error {
	go func() {
		slog.Info("server starting", "addr", a.server.Addr)
		if serveErr := a.server.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			slog.Error("server failed", "error", serveErr)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	for _, cleanup := range a.cleanupFuncs {
		cleanup()
	}

	slog.Info("server stopped")
	return nil
}
