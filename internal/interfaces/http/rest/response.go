package rest

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"go.uber.org/zap"

	"usbspeed/internal/errors"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error  string       `json:"error"`
	Fields []FieldError `json:"fields,omitempty"`
}

// Success sends a JSON response with the given status.
func Success(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// Error sends a JSON error response.
func Error(w http.ResponseWriter, statusCode int, message string) {
	Success(w, statusCode, ErrorResponse{Error: message})
}

func handleError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var invalid *InvalidQueryError
	switch {
	case stderrors.As(err, &invalid):
		Success(w, http.StatusBadRequest, ErrorResponse{Error: invalid.Error(), Fields: invalid.Fields})
	case errors.IsValidation(err):
		Error(w, http.StatusBadRequest, err.Error())
	default:
		logger.Error("Request failed", zap.Error(err))
		Error(w, http.StatusInternalServerError, "An internal error occurred")
	}
}
