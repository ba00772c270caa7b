package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/segyhp/lead-intake/internal/domain"
	"github.com/segyhp/lead-intake/pkg/response"
)

// Submitter stores intake requests.
type Submitter interface {
	Submit(ctx context.Context, req *domain.CreateApplicationRequest) (*domain.Application, error)
}

type ApplicationHandler struct {
	service Submitter
	logger  *zap.Logger
}

func NewApplicationHandler(service Submitter, logger *zap.Logger) *ApplicationHandler {
	return &ApplicationHandler{
		service: service,
		logger:  logger,
	}
}

// Submit handles the public intake form
func (h *ApplicationHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateApplicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", err)
		return
	}

	app, err := h.service.Submit(r.Context(), &req)
	if err != nil {
		writeError(w, h.logger, err, "Failed to submit application")
		return
	}

	response.Created(w, domain.CreateApplicationResponse{
		ApplicationID: app.ID,
		Message:       "Application submitted successfully",
	})
}
