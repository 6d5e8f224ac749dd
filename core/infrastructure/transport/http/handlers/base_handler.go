package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hyperterse/tablescope/core/infrastructure/logging"
	"github.com/hyperterse/tablescope/core/infrastructure/transport/http/dto"
	"github.com/hyperterse/tablescope/core/infrastructure/transport/http/middleware"
	apperrors "github.com/hyperterse/tablescope/core/shared/errors"
)

// BaseHandler provides common functionality for all handlers
type BaseHandler struct {
	logger logging.Logger
}

// NewBaseHandler creates a new base handler
func NewBaseHandler(tag string) *BaseHandler {
	return &BaseHandler{
		logger: logging.New(tag),
	}
}

// WriteJSON writes a JSON response
func (h *BaseHandler) WriteJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Errorf("Failed to encode JSON response: %v", err)
	}
}

// WriteError maps err onto its HTTP status and the {error, message, code}
// body. Errors outside the AppError taxonomy are reported as internal without
// echoing their text.
func (h *BaseHandler) WriteError(w http.ResponseWriter, err error) {
	var verr *middleware.RequestValidationError
	if errors.As(err, &verr) {
		h.WriteValidationError(w, verr)
		return
	}

	appErr, ok := apperrors.As(err)
	if !ok {
		h.logger.PrintError("Unhandled error", err)
		appErr = apperrors.NewAppError(apperrors.ErrCodeInternalError, "internal server error", err)
	}
	if appErr.Status >= http.StatusInternalServerError {
		h.logger.Errorf("%s", appErr.Error())
	} else {
		h.logger.Debugf("%s", appErr.Error())
	}

	h.WriteJSON(w, appErr.Status, dto.ErrorResponse{
		Error:   http.StatusText(appErr.Status),
		Message: appErr.Message,
		Code:    string(appErr.Code),
	})
}

// WriteValidationError writes a validation error response
func (h *BaseHandler) WriteValidationError(w http.ResponseWriter, verr *middleware.RequestValidationError) {
	details := make([]dto.ErrorDetail, 0, len(verr.Fields))
	for _, f := range verr.Fields {
		details = append(details, dto.ErrorDetail{
			Field:   f.Field,
			Tag:     f.Tag,
			Message: "Validation failed",
		})
	}

	h.WriteJSON(w, http.StatusBadRequest, dto.ValidationErrorResponse{
		Error:   http.StatusText(http.StatusBadRequest),
		Message: verr.Message,
		Code:    string(verr.Code),
		Details: details,
	})
}

// WriteSuccess writes a success response
func (h *BaseHandler) WriteSuccess(w http.ResponseWriter, data any) {
	h.WriteJSON(w, http.StatusOK, data)
}
