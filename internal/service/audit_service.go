package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/member-session/internal/events"
)

// AuditService writes an audit trail of session lifecycle events.
type AuditService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewAuditService creates the service.
func NewAuditService(dispatcher events.Dispatcher, logger *zap.Logger) *AuditService {
	return &AuditService{
		dispatcher: dispatcher,
		logger:     logger.Named("audit"),
	}
}

// RegisterHandlers subscribes to events.
func (a *AuditService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	a.dispatcher.Subscribe(events.EventSessionIssued, a.handleSessionIssued)
	a.dispatcher.Subscribe(events.EventSessionRevoked, a.handleSessionRevoked)
	a.dispatcher.Subscribe(events.EventTokenRejected, a.handleTokenRejected)
}

func (a *AuditService) handleSessionIssued(_ context.Context, event events.Event) error {
	a.logger.Info("SessionIssued", a.fields(event)...)
	return nil
}

func (a *AuditService) handleSessionRevoked(_ context.Context, event events.Event) error {
	a.logger.Info("SessionRevoked", a.fields(event)...)
	return nil
}

func (a *AuditService) handleTokenRejected(_ context.Context, event events.Event) error {
	a.logger.Warn("TokenRejected", a.fields(event)...)
	return nil
}

func (a *AuditService) fields(event events.Event) []zap.Field {
	return []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("session_key", string(event.SessionKey)),
		zap.Int64("member_id", event.MemberID),
		zap.Time("at", event.Timestamp),
		zap.Any("payload", event.Payload),
	}
}
