package domain

import "time"

// StatusChange is the explicit before/after pair produced by a status write.
type StatusChange struct {
	ApplicationID string    `json:"applicationId"`
	Email         string    `json:"email"`
	RecipientName string    `json:"recipientName"`
	OldStatus     Status    `json:"oldStatus"`
	NewStatus     Status    `json:"newStatus"`
	ChangedAt     time.Time `json:"changedAt"`
}

// Changed reports whether the write moved the application to a different status.
func (c *StatusChange) Changed() bool {
	return c != nil && c.OldStatus != c.NewStatus
}

// NotificationTask is an outbox row written in the same transaction as a status change.
type NotificationTask struct {
	ID            string     `json:"id" db:"id"`
	ApplicationID string     `json:"applicationId" db:"application_id"`
	Email         string     `json:"email" db:"email"`
	RecipientName string     `json:"recipientName" db:"recipient_name"`
	Status        Status     `json:"status" db:"status"`
	Attempts      int        `json:"attempts" db:"attempts"`
	LastError     *string    `json:"lastError,omitempty" db:"last_error"`
	CreatedAt     time.Time  `json:"createdAt" db:"created_at"`
	NextAttemptAt time.Time  `json:"nextAttemptAt" db:"next_attempt_at"`
	SentAt        *time.Time `json:"sentAt,omitempty" db:"sent_at"`
	DeliveredAt   *time.Time `json:"deliveredAt,omitempty" db:"delivered_at"`
}

// Change rebuilds the status change the task was created for. The previous
// status is not needed downstream, so only the new one is carried.
func (t *NotificationTask) Change() *StatusChange {
	return &StatusChange{
		ApplicationID: t.ApplicationID,
		Email:         t.Email,
		RecipientName: t.RecipientName,
		NewStatus:     t.Status,
		ChangedAt:     t.CreatedAt,
	}
}
