// Package rest holds the shared JSON response envelope for the HTTP
// services.
package rest

import (
	"encoding/json"
	"net/http"
)

// Response is the standard JSON envelope.
type Response struct {
	Data  any            `json:"data,omitempty"`
	Meta  map[string]any `json:"meta,omitempty"`
	Error *ErrorDetail   `json:"error,omitempty"`
}

// ErrorDetail carries a machine-readable code plus a human message.
// Details holds structured extras such as upgrade guidance.
type ErrorDetail struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Details any    `json:"details,omitempty"`
}

// JSON writes a success envelope.
func JSON(w http.ResponseWriter, status int, data any) {
	write(w, status, Response{Data: data})
}

// JSONMeta writes a success envelope with metadata.
func JSONMeta(w http.ResponseWriter, status int, data any, meta map[string]any) {
	write(w, status, Response{Data: data, Meta: meta})
}

// Error writes an error envelope.
func Error(w http.ResponseWriter, status int, code, message string) {
	write(w, status, Response{Error: &ErrorDetail{Code: code, Message: message}})
}

// ErrorDetails writes an error envelope with structured details.
func ErrorDetails(w http.ResponseWriter, status int, code, message string, details any) {
	write(w, status, Response{Error: &ErrorDetail{Code: code, Message: message, Details: details}})
}

func write(w http.ResponseWriter, status int, body Response) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
