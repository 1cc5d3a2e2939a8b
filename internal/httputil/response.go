package httputil

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// MessageResponse is the short message body used for every non-validation failure
type MessageResponse struct {
	Msg string `json:"msg"`
}

// ValidationResponse lists failed input rules
type ValidationResponse struct {
	Errors any `json:"errors"`
}

// ServerErrorMessage is the only detail a caller sees for internal failures
const ServerErrorMessage = "Server Error"

// RespondJSON sends a JSON response with the given status code.
// Logs encoding errors to avoid silent failures.
func RespondJSON(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// RespondMessage sends {"msg": message} with the given status code.
func RespondMessage(w http.ResponseWriter, message string, statusCode int) {
	RespondJSON(w, MessageResponse{Msg: message}, statusCode)
}

// RespondValidation sends {"errors": errs} with 400.
func RespondValidation(w http.ResponseWriter, errs any) {
	RespondJSON(w, ValidationResponse{Errors: errs}, http.StatusBadRequest)
}

// RespondServerError sends the generic 500 body.
func RespondServerError(w http.ResponseWriter) {
	RespondMessage(w, ServerErrorMessage, http.StatusInternalServerError)
}
