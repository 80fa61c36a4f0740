package handler

import (
	"net/http"

	"smart-contact-manager/internal/model"
	"smart-contact-manager/internal/service"
)

type UserHandler struct {
	service *service.AuthService
}

func NewUserHandler(service *service.AuthService) *UserHandler {
	return &UserHandler{service: service}
}

// Me returns the user behind the request's principal.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.CurrentUser(r.Context(), principalFromRequest(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, user, nil)
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.AuthUserList{Users: users}, nil)
}
