package domain

import (
	"strings"
	"time"
)

// Status is the lifecycle stage of an application.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Statuses lists every status that may be persisted.
var Statuses = []Status{StatusPending, StatusApproved, StatusRejected}

// ParseStatus normalizes s and reports whether it names a known status.
func ParseStatus(s string) (Status, bool) {
	status := Status(strings.ToLower(strings.TrimSpace(s)))
	return status, status.Valid()
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	default:
		return false
	}
}

func (s Status) String() string {
	return string(s)
}

// Allowed values offered by the intake form.
var (
	LoanAmounts   = []string{"2000", "2500", "3000", "3500", "4000"}
	LoanDurations = []string{"5", "6", "7"}
)

// Application represents a submitted loan request
type Application struct {
	ID           string     `json:"id" db:"id"`
	FirstName    string     `json:"firstName" db:"first_name"`
	LastName     string     `json:"lastName" db:"last_name"`
	Email        string     `json:"email" db:"email"`
	Phone        string     `json:"phone" db:"phone"`
	Location     string     `json:"location" db:"location"`
	LoanAmount   string     `json:"loanAmount" db:"loan_amount"`
	LoanDuration string     `json:"loanDuration" db:"loan_duration"`
	Status       Status     `json:"status" db:"status"`
	CreatedAt    time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt    *time.Time `json:"updatedAt,omitempty" db:"updated_at"`
}

// FullName is the display name used in notifications and search.
func (a *Application) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(a.FirstName) + " " + strings.TrimSpace(a.LastName))
}

// Clone returns a copy that shares no pointers with a.
func (a *Application) Clone() *Application {
	c := *a
	if a.UpdatedAt != nil {
		t := *a.UpdatedAt
		c.UpdatedAt = &t
	}
	return &c
}

// DTOs for requests and responses

// CreateApplicationRequest is the public intake payload. Field order is the
// order in which missing fields are reported.
type CreateApplicationRequest struct {
	FirstName    string `json:"firstName" validate:"required"`
	LastName     string `json:"lastName" validate:"required"`
	Email        string `json:"email" validate:"required,email"`
	Phone        string `json:"phone" validate:"required"`
	Location     string `json:"location" validate:"required"`
	LoanAmount   string `json:"loanAmount" validate:"required,loan_amount"`
	LoanDuration string `json:"loanDuration" validate:"required,loan_duration"`
}

// Normalize trims surrounding whitespace so blank values count as missing.
func (r *CreateApplicationRequest) Normalize() {
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Email = strings.TrimSpace(r.Email)
	r.Phone = strings.TrimSpace(r.Phone)
	r.Location = strings.TrimSpace(r.Location)
	r.LoanAmount = strings.TrimSpace(r.LoanAmount)
	r.LoanDuration = strings.TrimSpace(r.LoanDuration)
}

type CreateApplicationResponse struct {
	ApplicationID string `json:"applicationId"`
	Message       string `json:"message"`
}

type UpdateStatusRequest struct {
	Status  string `json:"status"`
	Confirm bool   `json:"confirm"`
}

type UpdateStatusResponse struct {
	Application *Application `json:"application"`
	Changed     bool         `json:"changed"`
}

type ApplicationDetailResponse struct {
	Application *Application `json:"application"`
	Transitions []Status     `json:"transitions"`
}

// Snapshot is one delivery of the live application list, newest first.
type Snapshot struct {
	Applications []*Application `json:"applications"`
	Total        int            `json:"total"`
}
