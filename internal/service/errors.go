package service

import (
	"encoding/json"
	"net/http"
)

// jsonError is the error payload of every non-2xx response.
type jsonError struct {
	Detail string `json:"detail"`
}

// WriteJSONError writes a JSON error payload with the given status code.
func WriteJSONError(w http.ResponseWriter, status int, detail string) {
	WriteJSON(w, status, jsonError{Detail: detail})
}

func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
