// Package httputil provides HTTP handler utilities: the uniform response
// envelope consumed by the mobile client, JSON decoding, request parsing
// and pagination helpers.
package httputil

import (
	"encoding/json"
	"net/http"
	"time"
)

// SuccessResponse is the uniform success envelope
type SuccessResponse struct {
	Success    bool        `json:"success"`
	Data       interface{} `json:"data,omitempty"`
	Message    string      `json:"message,omitempty"`
	StatusCode int         `json:"statusCode"`
	Timestamp  string      `json:"timestamp"`
}

// ErrorBody carries the error payload inside ErrorResponse
type ErrorBody struct {
	Message    string      `json:"message"`
	StatusCode int         `json:"statusCode"`
	Code       string      `json:"code,omitempty"`
	Details    interface{} `json:"details,omitempty"`
}

// ErrorResponse is the uniform error envelope
type ErrorResponse struct {
	Success   bool      `json:"success"`
	Error     ErrorBody `json:"error"`
	Timestamp string    `json:"timestamp"`
}

// PaginationMeta describes the page window of a list response
type PaginationMeta struct {
	Page        int   `json:"page"`
	Limit       int   `json:"limit"`
	Total       int64 `json:"total"`
	TotalPages  int   `json:"totalPages"`
	HasNextPage bool  `json:"hasNextPage"`
	HasPrevPage bool  `json:"hasPrevPage"`
}

// PaginatedResponse is the success envelope for paginated lists
type PaginatedResponse struct {
	Success    bool           `json:"success"`
	Data       interface{}    `json:"data"`
	Meta       PaginationMeta `json:"meta"`
	Message    string         `json:"message,omitempty"`
	StatusCode int            `json:"statusCode"`
	Timestamp  string         `json:"timestamp"`
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// WriteSuccess writes the success envelope with an optional message
func WriteSuccess(w http.ResponseWriter, status int, data interface{}, message string) {
	WriteJSON(w, status, SuccessResponse{
		Success:    true,
		Data:       data,
		Message:    message,
		StatusCode: status,
		Timestamp:  timestamp(),
	})
}

// WritePaginated writes the paginated list envelope
func WritePaginated(w http.ResponseWriter, data interface{}, meta PaginationMeta, message string) {
	WriteJSON(w, http.StatusOK, PaginatedResponse{
		Success:    true,
		Data:       data,
		Meta:       meta,
		Message:    message,
		StatusCode: http.StatusOK,
		Timestamp:  timestamp(),
	})
}

// WriteErrorEnvelope writes the error envelope with a status, message,
// code and optional details
func WriteErrorEnvelope(w http.ResponseWriter, status int, message, code string, details interface{}) {
	WriteJSON(w, status, ErrorResponse{
		Success: false,
		Error: ErrorBody{
			Message:    message,
			StatusCode: status,
			Code:       code,
			Details:    details,
		},
		Timestamp: timestamp(),
	})
}

// CalculatePaginationMeta derives the page metadata from totals
func CalculatePaginationMeta(page, limit int, total int64) PaginationMeta {
	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return PaginationMeta{
		Page:        page,
		Limit:       limit,
		Total:       total,
		TotalPages:  totalPages,
		HasNextPage: page < totalPages,
		HasPrevPage: page > 1,
	}
}
