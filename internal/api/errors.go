package api

import (
	"encoding/json"
	"net/http"
)

// Problem is the body of every non-2xx response.
type Problem struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// Problem codes.
const (
	CodeNotFound         = "not_found"
	CodeMethodNotAllowed = "method_not_allowed"
	CodeUnavailable      = "unavailable"
	CodeInternal         = "internal_error"
)

func respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body) //nolint:errcheck // The client may already be gone
}

// fail answers with a Problem carrying the request's ID, so a client report
// can be matched to the access log line.
func fail(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	respond(w, status, Problem{
		Code:      code,
		Message:   message,
		RequestID: requestID(r.Context()),
	})
}
