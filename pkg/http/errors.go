package http

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"time"
)

// ErrorResponse represents a standard API error response
type ErrorResponse struct {
	Error             string `json:"error"`                       // Machine-readable error code
	Message           string `json:"message"`                     // Human-readable message
	Details           string `json:"details,omitempty"`           // Optional additional context
	RetryAfterSeconds *int   `json:"retryAfterSeconds,omitempty"` // Set on 429
	Captcha           any    `json:"captcha,omitempty"`           // Fresh challenge after a captcha failure
}

// WriteJSON writes v as a JSON body with the given status code
func WriteJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes a JSON error response with the given status code
func WriteError(w http.ResponseWriter, statusCode int, errorCode, message string) {
	WriteErrorWithDetails(w, statusCode, errorCode, message, "")
}

// WriteErrorWithDetails writes a JSON error response with additional details
func WriteErrorWithDetails(w http.ResponseWriter, statusCode int, errorCode, message, details string) {
	WriteJSON(w, statusCode, ErrorResponse{
		Error:   errorCode,
		Message: message,
		Details: details,
	})
}

func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, "bad_request", message)
}

func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, "unauthorized", message)
}

func WriteForbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, "forbidden", message)
}

func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, "not_found", message)
}

func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, "internal_error", message)
}

// WriteTooManyRequests writes a 429 with a Retry-After header and the same
// hint in the body, rounded up to whole seconds.
func WriteTooManyRequests(w http.ResponseWriter, errorCode, message string, retryAfter time.Duration) {
	secs := int(math.Ceil(retryAfter.Seconds()))
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	WriteJSON(w, http.StatusTooManyRequests, ErrorResponse{
		Error:             errorCode,
		Message:           message,
		RetryAfterSeconds: &secs,
	})
}

// WriteCaptchaRequired writes a 400 carrying a replacement captcha
func WriteCaptchaRequired(w http.ResponseWriter, message string, captcha any) {
	WriteJSON(w, http.StatusBadRequest, ErrorResponse{
		Error:   "captcha_invalid",
		Message: message,
		Captcha: captcha,
	})
}

// WriteBadRequestWithCaptcha writes a bad_request error. A nil captcha is
// left out of the body.
func WriteBadRequestWithCaptcha(w http.ResponseWriter, message, details string, captcha any) {
	WriteJSON(w, http.StatusBadRequest, ErrorResponse{
		Error:   "bad_request",
		Message: message,
		Details: details,
		Captcha: captcha,
	})
}
