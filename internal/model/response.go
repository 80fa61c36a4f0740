package model

type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
	Meta    *Meta     `json:"meta,omitempty"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

type Meta struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

type HealthStatus struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

type PageView struct {
	Page  string `json:"page"`
	Title string `json:"title"`
}

type AdminDashboard struct {
	Admin          *Principal `json:"admin"`
	TotalUsers     int        `json:"total_users"`
	OAuthProviders []Provider `json:"oauth_providers"`
}

type AuditListData struct {
	Items []AuditEntry `json:"items"`
}
