package handler

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	customError "github.com/segyhp/lead-intake/pkg/errors"
	"github.com/segyhp/lead-intake/pkg/response"
)

const notAuthorized = "not authorized"

// writeError maps service errors onto status codes. Store failures are
// logged in full and reported without internals.
func writeError(w http.ResponseWriter, logger *zap.Logger, err error, fallback string) {
	var verr *customError.ValidationError
	var berr *customError.BusinessError

	switch {
	case errors.As(err, &verr):
		response.Detailed(w, http.StatusBadRequest, customError.ErrCodeValidation, verr.Error(), verr)
	case errors.Is(err, customError.ErrUnauthorized):
		response.Unauthorized(w, notAuthorized)
	case errors.Is(err, customError.ErrApplicationNotFound):
		response.Detailed(w, http.StatusNotFound, customError.ErrCodeApplicationNotFound, messageOf(err), nil)
	case errors.Is(err, customError.ErrConfirmationRequired):
		response.Detailed(w, http.StatusBadRequest, customError.ErrCodeConfirmationRequired, messageOf(err), nil)
	case errors.Is(err, customError.ErrTransitionNotAllowed), errors.Is(err, customError.ErrUpdateInFlight):
		response.Conflict(w, customError.CodeOf(err), messageOf(err))
	case errors.As(err, &berr):
		logger.Error(fallback, zap.String("code", berr.Code), zap.Error(err))
		response.Detailed(w, http.StatusInternalServerError, berr.Code, fallback, nil)
	default:
		logger.Error(fallback, zap.Error(err))
		response.InternalServerError(w, fallback, nil)
	}
}

func messageOf(err error) string {
	var berr *customError.BusinessError
	if errors.As(err, &berr) {
		return berr.Message
	}
	return err.Error()
}
