package service

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"smart-contact-manager/internal/model"
	"smart-contact-manager/pkg/apierror"
)

type auditStore interface {
	Log(ctx context.Context, entry model.AuditEntry) error
	Query(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, model.Meta, error)
}

// maxAuditPage keeps (page-1)*limit well inside int range for the store offset.
const maxAuditPage = 100000

// AuditService records authentication events. Writes are best effort: a failing
// audit store is logged and never fails the login that triggered it.
type AuditService struct {
	store auditStore
}

func NewAuditService(store auditStore) *AuditService {
	return &AuditService{store: store}
}

func (s *AuditService) Log(ctx context.Context, action string, actor model.AuditActor, status string, resource string, errText string) {
	if s == nil || s.store == nil {
		return
	}

	entry := model.AuditEntry{
		Action:     action,
		OccurredAt: time.Now().UTC().Format(time.RFC3339Nano),
		Actor:      actor,
		Status:     status,
		Resource:   resource,
		Error:      errText,
	}

	if err := s.store.Log(context.WithoutCancel(ctx), entry); err != nil {
		slog.Warn("audit write failed", "action", action, "error", err)
	}
}

func (s *AuditService) Query(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, model.Meta, error) {
	if query.Page < 1 {
		query.Page = 1
	}
	if query.Limit <= 0 {
		query.Limit = 50
	}
	if query.Limit > 200 {
		query.Limit = 200
	}
	if query.Page > maxAuditPage {
		query.Page = maxAuditPage
	}

	if err := checkAuditTime(query.From); err != nil {
		return nil, model.Meta{}, apierror.New("BAD_REQUEST", "invalid 'from' datetime format", query.From, http.StatusBadRequest)
	}
	if err := checkAuditTime(query.To); err != nil {
		return nil, model.Meta{}, apierror.New("BAD_REQUEST", "invalid 'to' datetime format", query.To, http.StatusBadRequest)
	}

	return s.store.Query(ctx, query)
}

func checkAuditTime(raw string) error {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	_, err := time.Parse(time.RFC3339, trimmed)
	return err
}
