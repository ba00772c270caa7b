package notifier

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/segyhp/lead-intake/internal/domain"
	"github.com/segyhp/lead-intake/internal/metrics"
	"github.com/segyhp/lead-intake/internal/repository"
	apperrors "github.com/segyhp/lead-intake/pkg/errors"
)

// Notifier emails applicants about status changes and keeps the email log.
type Notifier struct {
	mailer  Mailer
	logs    repository.EmailLogRepository
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func New(mailer Mailer, logs repository.EmailLogRepository, logger *zap.Logger, m *metrics.Metrics) *Notifier {
	return &Notifier{
		mailer:  mailer,
		logs:    logs,
		logger:  logger,
		metrics: m,
	}
}

// Notify sends the status email for change and appends one email log entry.
// A nil change, a change with no recipient or status, and an unchanged status
// are skipped without error. A failed send returns a NOTIFICATION_FAILED
// error and writes no log entry.
func (n *Notifier) Notify(ctx context.Context, change *domain.StatusChange) error {
	if change == nil || !change.Changed() {
		return nil
	}

	sent, err := n.Send(ctx, change)
	if err != nil || !sent {
		return err
	}

	return n.Record(ctx, change)
}

// Send delivers the email for change. It reports false when the change
// carries nothing to send.
func (n *Notifier) Send(ctx context.Context, change *domain.StatusChange) (sent bool, err error) {
	if change == nil {
		n.logger.Warn("skipping notification: no change data")
		return false, nil
	}

	email := strings.TrimSpace(change.Email)
	if email == "" || change.NewStatus == "" {
		n.logger.Warn("skipping notification: missing recipient or status",
			zap.String("application_id", change.ApplicationID),
			zap.String("status", string(change.NewStatus)),
		)
		n.metrics.Notification("skipped")
		return false, nil
	}

	msg := Compose(email, change.RecipientName, change.NewStatus)

	defer func() {
		if r := recover(); r != nil {
			sent = false
			err = apperrors.WrapNotificationFailed(change.ApplicationID, fmt.Errorf("mailer panic: %v", r))
			n.logger.Error("mail transport panicked", zap.String("application_id", change.ApplicationID), zap.Any("panic", r))
			n.metrics.Notification("failed")
		}
	}()

	if err := n.mailer.Send(ctx, msg); err != nil {
		n.logger.Error("failed to send status email",
			zap.String("application_id", change.ApplicationID),
			zap.String("status", string(change.NewStatus)),
			zap.Error(err),
		)
		n.metrics.Notification("failed")
		return false, apperrors.WrapNotificationFailed(change.ApplicationID, err)
	}

	n.logger.Info("status email sent",
		zap.String("application_id", change.ApplicationID),
		zap.String("status", string(change.NewStatus)),
	)
	n.metrics.Notification("sent")
	return true, nil
}

// Record appends the audit entry for a sent email.
func (n *Notifier) Record(ctx context.Context, change *domain.StatusChange) error {
	entry := &domain.EmailLog{
		ApplicationID: change.ApplicationID,
		Email:         strings.TrimSpace(change.Email),
		Status:        change.NewStatus,
	}
	if err := n.logs.Append(ctx, entry); err != nil {
		n.logger.Error("failed to write email log",
			zap.String("application_id", change.ApplicationID),
			zap.Error(err),
		)
		return apperrors.WrapDatabaseError(err)
	}
	return nil
}
