package model

const (
	AuditActionLogin      = "auth.login"
	AuditActionFormLogin  = "auth.form_login"
	AuditActionOAuthLogin = "auth.oauth_login"
	AuditActionRegister   = "auth.register"
	AuditActionLogout     = "auth.logout"

	AuditStatusSuccess = "success"
	AuditStatusFailure = "failure"
)

type AuditActor struct {
	UserID string `json:"user_id,omitempty"`
	Email  string `json:"email,omitempty"`
	IP     string `json:"ip,omitempty"`
}

type AuditEntry struct {
	Action     string     `json:"action"`
	OccurredAt string     `json:"occurred_at"`
	Actor      AuditActor `json:"actor"`
	Status     string     `json:"status"`
	Resource   string     `json:"resource,omitempty"`
	Error      string     `json:"error,omitempty"`
}

type AuditQuery struct {
	Page    int
	Limit   int
	Action  string
	ActorID string
	Status  string
	From    string
	To      string
}
