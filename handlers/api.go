package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"quiz-portal-go/logging"
	"quiz-portal-go/services"
)

// ErrorResponse is the JSON body for failed API requests
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// WriteJSON marshals payload into the response with the given status
func WriteJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.Errorf("Failed to encode JSON response: %v", err)
	}
}

// WriteError writes a JSON error body with the given status
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, ErrorResponse{Error: message})
}

// writeServiceError maps service-layer errors onto HTTP statuses.
// Validation problems are 400, business conflicts 409 (404 for missing
// teams), backend outages 502, anything else 500.
func writeServiceError(w http.ResponseWriter, err error) {
	var ve *services.ValidationError
	if errors.As(err, &ve) {
		WriteJSON(w, http.StatusBadRequest, ErrorResponse{Error: ve.Message})
		return
	}

	var ce *services.ConflictError
	if errors.As(err, &ce) {
		status := http.StatusConflict
		if ce.Code == services.ConflictTeamNotFound {
			status = http.StatusNotFound
		}
		WriteJSON(w, status, ErrorResponse{Error: ce.Message, Code: string(ce.Code)})
		return
	}

	if errors.Is(err, services.ErrBackendUnavailable) {
		logging.Errorf("Backend unavailable: %v", err)
		WriteError(w, http.StatusBadGateway, "service temporarily unavailable, please try again")
		return
	}

	logging.Errorf("Unhandled service error: %v", err)
	WriteError(w, http.StatusInternalServerError, "internal server error")
}

// decodeJSON parses the request body into dst, rejecting unknown fields
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}
