package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"smart-contact-manager/internal/config"
	"smart-contact-manager/internal/handler"
	"smart-contact-manager/internal/middleware"
)

type Handlers struct {
	Auth   *handler.AuthHandler
	OAuth  *handler.OAuthHandler
	Web    *handler.WebHandler
	User   *handler.UserHandler
	Admin  *handler.AdminHandler
	Page   *handler.PageHandler
	Health *handler.HealthHandler
}

func New(cfg *config.Config, gate *middleware.Gate, h Handlers) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.AuthRateLimitRPM)

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.SecurityHeaders)
	r.Use(rateLimitMiddleware.Handler)
	r.Use(gate.Handler)
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	r.Get("/health", h.Health.Health)

	r.Get("/", h.Page.Root)
	for _, page := range []string{"home", "about", "services", "contact", "login", "register"} {
		r.Get("/"+page, h.Page.Page(page))
	}
	r.Get("/css/*", h.Page.Static)
	r.Get("/js/*", h.Page.Static)
	r.Get("/images/*", h.Page.Static)
	r.Get("/favicon.ico", h.Page.Static)

	r.Route("/api/auth", func(auth chi.Router) {
		auth.Post("/login", h.Auth.Login)
		auth.Post("/validate", h.Auth.Validate)
		auth.Post("/register", h.Auth.Register)
	})

	r.Get("/oauth2/authorization/{provider}", h.OAuth.Start)
	r.Get("/login/oauth2/code/{provider}", h.OAuth.Callback)

	r.Post("/authenticate", h.Web.Authenticate)
	r.Get("/auth-success", h.Web.AuthSuccess)
	r.Get("/do-logout", h.Web.Logout)
	r.Post("/do-logout", h.Web.Logout)

	r.Get("/api/users/me", h.User.Me)
	r.Get("/user/profile", h.User.Me)

	r.Route("/admin", func(admin chi.Router) {
		admin.Get("/dashboard", h.Admin.Dashboard)
		admin.Get("/users", h.User.List)
		admin.Get("/audit", h.Admin.Audit)
	})
	r.Route("/api/admin", func(admin chi.Router) {
		admin.Get("/users", h.User.List)
		admin.Get("/audit", h.Admin.Audit)
	})

	return r
}
