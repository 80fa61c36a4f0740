package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"smart-contact-manager/internal/model"
	"smart-contact-manager/internal/service"
	"smart-contact-manager/pkg/apierror"
)

const maxAuthBodyBytes = 16 << 10

type AuthHandler struct {
	service *service.AuthService
}

func NewAuthHandler(service *service.AuthService) *AuthHandler {
	return &AuthHandler{service: service}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var payload model.LoginRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxAuthBodyBytes)).Decode(&payload); err != nil {
		writeAuthResponse(w, http.StatusBadRequest, model.AuthResponse{Message: "Invalid input data"})
		return
	}

	resp, err := h.service.Login(r.Context(), payload, clientIP(r))
	switch {
	case err == nil:
		writeAuthResponse(w, http.StatusOK, resp)
	case errors.Is(err, model.ErrInvalidInput):
		writeAuthResponse(w, http.StatusBadRequest, model.AuthResponse{Message: "Invalid input data"})
	case errors.Is(err, model.ErrInvalidCredentials):
		writeAuthResponse(w, http.StatusUnauthorized, model.AuthResponse{Message: "Invalid email or password"})
	default:
		slog.Error("login failed", "email", model.NormalizeEmail(payload.Email), "error", err)
		writeAuthResponse(w, http.StatusInternalServerError, model.AuthResponse{Message: "Login failed"})
	}
}

// Validate accepts the token either as the raw request body or as {"token": "..."}.
func (h *AuthHandler) Validate(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxAuthBodyBytes))
	if err != nil {
		writeAuthResponse(w, http.StatusBadRequest, model.AuthResponse{Message: "Invalid input data"})
		return
	}

	resp, err := h.service.ValidateToken(r.Context(), extractToken(raw))
	switch {
	case err == nil:
		writeAuthResponse(w, http.StatusOK, resp)
	case errors.Is(err, model.ErrInvalidToken), errors.Is(err, model.ErrTokenExpired):
		writeAuthResponse(w, http.StatusUnauthorized, model.AuthResponse{Message: "Invalid token"})
	default:
		slog.Error("token validation failed", "error", err)
		writeAuthResponse(w, http.StatusUnauthorized, model.AuthResponse{Message: "Token validation failed"})
	}
}

func extractToken(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "{") {
		var payload model.ValidateTokenRequest
		if err := json.Unmarshal([]byte(trimmed), &payload); err == nil {
			trimmed = strings.TrimSpace(payload.Token)
		}
	}
	trimmed = strings.Trim(trimmed, `"`)
	if len(trimmed) > 7 && strings.EqualFold(trimmed[:7], "bearer ") {
		trimmed = strings.TrimSpace(trimmed[7:])
	}
	return trimmed
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var payload model.RegisterRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxAuthBodyBytes)).Decode(&payload); err != nil {
		writeError(w, apierror.New("BAD_REQUEST", "invalid JSON body", "", http.StatusBadRequest))
		return
	}

	user, err := h.service.Register(r.Context(), payload, clientIP(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, user, nil)
}
