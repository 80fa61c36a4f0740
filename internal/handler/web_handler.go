package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"smart-contact-manager/internal/model"
	"smart-contact-manager/internal/service"
)

type SessionCookieConfig struct {
	Name   string
	Secure bool
}

// WebHandler serves the browser form-login flow backed by server-side sessions.
type WebHandler struct {
	service     *service.AuthService
	cookie      SessionCookieConfig
	frontendURL string
}

func NewWebHandler(service *service.AuthService, cookie SessionCookieConfig, frontendURL string) *WebHandler {
	return &WebHandler{service: service, cookie: cookie, frontendURL: frontendURL}
}

func (h *WebHandler) Authenticate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Redirect(w, r, "/login?error=true", http.StatusFound)
		return
	}

	// "username" is accepted for login forms that post the address under that name.
	email := r.PostForm.Get("email")
	if email == "" {
		email = r.PostForm.Get("username")
	}

	token, expiresAt, err := h.service.FormLogin(r.Context(), email, r.PostForm.Get("password"), clientIP(r))
	if err != nil {
		if !errors.Is(err, model.ErrInvalidCredentials) {
			slog.Error("form login failed", "email", model.NormalizeEmail(email), "error", err)
		}
		http.Redirect(w, r, "/login?error=true", http.StatusFound)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		MaxAge:   int(time.Until(expiresAt).Seconds()),
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/auth-success", http.StatusFound)
}

func (h *WebHandler) AuthSuccess(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, h.frontendURL+"/user/profile", http.StatusFound)
}

func (h *WebHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var sessionToken string
	if cookie, err := r.Cookie(h.cookie.Name); err == nil {
		sessionToken = cookie.Value
	}

	if err := h.service.Logout(r.Context(), sessionToken, principalFromRequest(r), clientIP(r)); err != nil {
		slog.Warn("session revoke failed", "error", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/login?logout=true", http.StatusFound)
}
