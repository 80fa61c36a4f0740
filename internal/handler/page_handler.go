package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"smart-contact-manager/internal/model"
)

var pageTitles = map[string]string{
	"home":     "Smart Contact Manager",
	"about":    "About",
	"services": "Services",
	"contact":  "Contact",
	"login":    "Login",
	"register": "Register",
}

// PageHandler serves the public pages and the static assets under staticDir.
type PageHandler struct {
	staticDir string
	files     http.Handler
}

func NewPageHandler(staticDir string) *PageHandler {
	staticDir = strings.TrimSpace(staticDir)
	return &PageHandler{staticDir: staticDir, files: http.FileServer(http.Dir(staticDir))}
}

func (h *PageHandler) Root(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/home", http.StatusFound)
}

// Page renders {staticDir}/{page}.html when present, otherwise a JSON page descriptor.
func (h *PageHandler) Page(name string) http.HandlerFunc {
	title := pageTitles[name]
	return func(w http.ResponseWriter, r *http.Request) {
		if h.staticDir != "" {
			candidate := filepath.Join(h.staticDir, name+".html")
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				http.ServeFile(w, r, candidate)
				return
			}
		}
		writeSuccess(w, http.StatusOK, model.PageView{Page: name, Title: title}, nil)
	}
}

func (h *PageHandler) Static(w http.ResponseWriter, r *http.Request) {
	if h.staticDir == "" {
		http.NotFound(w, r)
		return
	}
	h.files.ServeHTTP(w, r)
}

type pinger interface {
	Health(ctx context.Context) error
}

type HealthHandler struct {
	db pinger
}

func NewHealthHandler(db pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	status := model.HealthStatus{Status: "ok", Database: "ok"}
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Health(ctx); err != nil {
			status.Status = "degraded"
			status.Database = "unavailable"
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(model.APIResponse{Success: false, Data: status})
			return
		}
	}
	writeSuccess(w, http.StatusOK, status, nil)
}
