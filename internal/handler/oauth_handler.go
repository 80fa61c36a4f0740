package handler

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"smart-contact-manager/internal/model"
	"smart-contact-manager/internal/service"
)

const (
	oauthStateCookie    = "scm_oauth_state"
	oauthVerifierCookie = "scm_oauth_verifier"
	oauthCookieTTL      = 10 * time.Minute
)

type OAuthHandler struct {
	service      *service.OAuthService
	secureCookie bool
}

func NewOAuthHandler(service *service.OAuthService, secureCookie bool) *OAuthHandler {
	return &OAuthHandler{service: service, secureCookie: secureCookie}
}

// Start redirects the browser to the provider's consent page.
func (h *OAuthHandler) Start(w http.ResponseWriter, r *http.Request) {
	provider, ok := model.ParseProvider(chi.URLParam(r, "provider"))
	if !ok {
		writeError(w, model.ErrUnknownProvider)
		return
	}

	start, err := h.service.Begin(provider)
	if err != nil {
		writeError(w, err)
		return
	}

	path := "/login/oauth2/code/" + provider.RegistrationID()
	h.setCookie(w, oauthStateCookie, start.State, path, int(oauthCookieTTL.Seconds()))
	h.setCookie(w, oauthVerifierCookie, start.Verifier, path, int(oauthCookieTTL.Seconds()))
	http.Redirect(w, r, start.URL, http.StatusFound)
}

// Callback finishes the flow and hands the browser to the frontend with a token.
func (h *OAuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	provider, ok := model.ParseProvider(chi.URLParam(r, "provider"))
	if !ok {
		writeError(w, model.ErrUnknownProvider)
		return
	}

	path := "/login/oauth2/code/" + provider.RegistrationID()
	stateCookie, stateErr := r.Cookie(oauthStateCookie)
	verifierCookie, verifierErr := r.Cookie(oauthVerifierCookie)
	h.setCookie(w, oauthStateCookie, "", path, -1)
	h.setCookie(w, oauthVerifierCookie, "", path, -1)

	query := r.URL.Query()
	if providerErr := query.Get("error"); providerErr != "" {
		slog.Warn("oauth provider returned an error", "provider", string(provider), "error", providerErr)
		http.Redirect(w, r, h.service.FailureRedirect(), http.StatusFound)
		return
	}

	state := query.Get("state")
	if stateErr != nil || verifierErr != nil || state == "" ||
		subtle.ConstantTimeCompare([]byte(state), []byte(stateCookie.Value)) != 1 {
		slog.Warn("oauth callback rejected", "provider", string(provider), "error", model.ErrInvalidOAuthState)
		http.Redirect(w, r, h.service.FailureRedirect(), http.StatusFound)
		return
	}

	code := query.Get("code")
	if code == "" {
		http.Redirect(w, r, h.service.FailureRedirect(), http.StatusFound)
		return
	}

	result, err := h.service.Complete(r.Context(), provider, code, verifierCookie.Value, clientIP(r))
	if err != nil {
		slog.Warn("oauth login failed", "provider", string(provider), "error", err)
		http.Redirect(w, r, h.service.FailureRedirect(), http.StatusFound)
		return
	}

	http.Redirect(w, r, result.RedirectURL, http.StatusFound)
}

func (h *OAuthHandler) setCookie(w http.ResponseWriter, name string, value string, path string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}
