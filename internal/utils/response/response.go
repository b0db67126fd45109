// Package response provides helpers for writing consistent JSON HTTP responses.
//
// Every page in this application is sent back as JSON. Rather than repeating
// the same three lines (set header, set status, encode JSON) in every
// handler, we centralise them here.
package response

import (
	"encoding/json"
	"net/http"

	"github.com/aanand-mishra/school-records/internal/session"
)

// ─────────────────────────────────────────────────────────────────────────────
// Page is the envelope every rendered view is returned in:
//
//	{ "view": "teacher_dashboard", "notices": [...], "data": {...} }
//
// Notices are the one-shot messages queued on the session since the last
// rendered page.
// ─────────────────────────────────────────────────────────────────────────────
type Page struct {
	View    string           `json:"view"`
	Notices []session.Notice `json:"notices"`
	Data    any              `json:"data,omitempty"`
}

// Response is the envelope for requests that never reach a view.
//
//	{ "status": "error", "error": "internal server error" }
type Response struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

// StatusError is the only status a Response carries; successful requests
// answer with a Page or a redirect.
const StatusError = "error"

// WriteJSON writes data as JSON with the given HTTP status code.
//
// IMPORTANT ORDER: Header() → WriteHeader() → body writes.
// Once WriteHeader is called (or the first Write), headers are locked.
func WriteJSON(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// GeneralError wraps a message into the error Response shape. Internal
// error details are logged, never passed here.
func GeneralError(msg string) Response {
	return Response{
		Status: StatusError,
		Error:  msg,
	}
}
