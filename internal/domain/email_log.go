package domain

import "time"

// EmailLog is an append-only audit record of a sent status email.
type EmailLog struct {
	ID            string    `json:"id" db:"id"`
	ApplicationID string    `json:"applicationId" db:"application_id"`
	Email         string    `json:"email" db:"email"`
	Status        Status    `json:"status" db:"status"`
	SentAt        time.Time `json:"sentAt" db:"sent_at"`
}
