// Package jsonutil has small helpers for writing JSON responses.
package jsonutil

import (
	"encoding/json"
	"net/http"
)

// JSON writes v as a JSON response with the given status code.
func JSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// Error writes the standard error envelope.
func Error(w http.ResponseWriter, code int, kind, message string) {
	JSON(w, code, map[string]string{"error": kind, "message": message})
}
