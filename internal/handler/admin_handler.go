package handler

import (
	"net/http"
	"strings"

	"smart-contact-manager/internal/model"
	"smart-contact-manager/internal/service"
)

type AdminHandler struct {
	auth      *service.AuthService
	audit     *service.AuditService
	providers []model.Provider
}

func NewAdminHandler(auth *service.AuthService, audit *service.AuditService, providers []model.Provider) *AdminHandler {
	return &AdminHandler{auth: auth, audit: audit, providers: providers}
}

func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	users, err := h.auth.ListUsers(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	providers := h.providers
	if providers == nil {
		providers = []model.Provider{}
	}

	writeSuccess(w, http.StatusOK, model.AdminDashboard{
		Admin:          principalFromRequest(r),
		TotalUsers:     len(users),
		OAuthProviders: providers,
	}, nil)
}

func (h *AdminHandler) Audit(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	items, meta, err := h.audit.Query(r.Context(), model.AuditQuery{
		Action:  strings.TrimSpace(query.Get("action")),
		ActorID: strings.TrimSpace(query.Get("actor_id")),
		Status:  strings.TrimSpace(query.Get("status")),
		From:    strings.TrimSpace(query.Get("from")),
		To:      strings.TrimSpace(query.Get("to")),
		Page:    parseIntOrDefault(query.Get("page"), 1),
		Limit:   parseIntOrDefault(query.Get("limit"), 50),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.AuditListData{Items: items}, &meta)
}
