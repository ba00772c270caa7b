// Package review is the admin-facing view over applications: filtering, the
// live list and guarded status transitions.
package review

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/segyhp/lead-intake/internal/domain"
	"github.com/segyhp/lead-intake/pkg/utils"
)

const statusAll = "all"

// Filter narrows the application list. All conditions are ANDed.
type Filter struct {
	// Search is matched case-insensitively against full name, email and phone.
	Search string `json:"search"`
	// Status is an exact status, or empty / "all" for any.
	Status string `json:"status"`
	// ShowResolved false hides everything that is not pending.
	ShowResolved bool `json:"showResolved"`
}

// DefaultFilter shows every application.
func DefaultFilter() Filter {
	return Filter{ShowResolved: true}
}

// ParseFilter reads search, status and showResolved query parameters.
// showResolved defaults to true; only an explicit false hides resolved rows.
func ParseFilter(q url.Values) Filter {
	showResolved := true
	if raw := q.Get("showResolved"); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			showResolved = v
		}
	}
	return Filter{
		Search:       q.Get("search"),
		Status:       q.Get("status"),
		ShowResolved: showResolved,
	}
}

func (f Filter) Match(app *domain.Application) bool {
	if !f.ShowResolved && app.Status != domain.StatusPending {
		return false
	}

	status := strings.ToLower(strings.TrimSpace(f.Status))
	if status != "" && status != statusAll && string(app.Status) != status {
		return false
	}

	search := strings.TrimSpace(f.Search)
	if search == "" {
		return true
	}
	name := strings.TrimSpace(app.FirstName + " " + app.LastName)
	return utils.ContainsFold(name, search) ||
		utils.ContainsFold(app.Email, search) ||
		utils.ContainsFold(app.Phone, search)
}

// Apply returns the applications that match f, keeping their order.
func Apply(apps []*domain.Application, f Filter) []*domain.Application {
	out := make([]*domain.Application, 0, len(apps))
	for _, app := range apps {
		if f.Match(app) {
			out = append(out, app)
		}
	}
	return out
}
