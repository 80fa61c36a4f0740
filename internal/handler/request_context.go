package handler

import (
	"net/http"

	"smart-contact-manager/internal/middleware"
	"smart-contact-manager/internal/model"
)

func clientIP(r *http.Request) string {
	return middleware.ClientIP(r)
}

func principalFromRequest(r *http.Request) *model.Principal {
	principal, _ := middleware.PrincipalFromContext(r.Context())
	return principal
}
