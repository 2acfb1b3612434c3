package handler

import (
	"encoding/json"
	"net/http"

	"github.com/todoflow-labs/todo-api/internal/model"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Detail string             `json:"detail"`
	Errors []model.FieldError `json:"errors,omitempty"`
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes a structured JSON error
func WriteError(w http.ResponseWriter, status int, detail string) {
	WriteJSON(w, status, ErrorResponse{Detail: detail})
}
