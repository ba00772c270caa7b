package notifier

import (
	"fmt"
	"html"
	"strings"

	"github.com/segyhp/lead-intake/internal/domain"
	"github.com/segyhp/lead-intake/pkg/utils"
)

const (
	defaultRecipientName = "Applicant"

	messageApproved = "Congratulations! Your loan application has been approved. Our team will contact you shortly with the next steps."
	messageRejected = "We regret to inform you that your loan application has been rejected. If you have any questions, please contact our support team."
	messagePending  = "Your application is currently under review. We will notify you once there are any updates."
	messageDefault  = "Your application status has been updated."
)

// Message is a rendered status email.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// StatusMessage returns the paragraph explaining status to the applicant.
func StatusMessage(status domain.Status) string {
	switch status {
	case domain.StatusApproved:
		return messageApproved
	case domain.StatusRejected:
		return messageRejected
	case domain.StatusPending:
		return messagePending
	default:
		return messageDefault
	}
}

// Compose renders the status email for one recipient.
func Compose(to, name string, status domain.Status) Message {
	name = strings.TrimSpace(name)
	if name == "" {
		name = defaultRecipientName
	}
	statusText := utils.Capitalize(string(status))
	paragraph := StatusMessage(status)

	htmlBody := fmt.Sprintf(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2>Hello %s,</h2>
  <p>Your loan application status has been updated to: <strong>%s</strong>.</p>
  <p>%s</p>
  <p>If you have any questions, please don't hesitate to contact our support team.</p>
  <br/>
  <p>Best regards,<br/>The Baadaye Team</p>
</div>`, html.EscapeString(name), html.EscapeString(statusText), html.EscapeString(paragraph))

	textBody := fmt.Sprintf("Hello %s,\n\nYour loan application status has been updated to: %s.\n\n%s\n\n"+
		"If you have any questions, please don't hesitate to contact our support team.\n\nBest regards,\nThe Baadaye Team\n",
		name, statusText, paragraph)

	return Message{
		To:      to,
		Subject: "Your Application Status: " + statusText,
		HTML:    htmlBody,
		Text:    textBody,
	}
}
