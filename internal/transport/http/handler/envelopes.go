package handler

import (
	"encoding/json"
	"net/http"
)

// ResultEnvelope is the response body of every verification endpoint.
type ResultEnvelope struct {
	Success  bool      `json:"success"`
	Message  string    `json:"message"`
	UserData *UserData `json:"userData,omitempty"`
	Token    string    `json:"token,omitempty"`
}

// UserData identifies the registrant after a successful verification.
type UserData struct {
	Email    string `json:"email"`
	Nickname string `json:"nickname"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ResultEnvelope{Success: false, Message: msg})
}
