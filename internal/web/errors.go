package web

// errors.go is the single exit for request failures. The technical
// error is logged with the request ID; the client only ever sees the
// mapped user message and its support code.

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/bcshine/midcamstone-data-app-25120702/internal/core"
	"github.com/bcshine/midcamstone-data-app-25120702/internal/logging"
)

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
	Request string `json:"requestId,omitempty"`
}

// respondError logs the technical error and writes the mapped user
// message with the status derived from the error class.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := core.HTTPStatus(err)
	userMsg := core.MapError(err)

	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", userMsg.Code,
	)

	resp := ErrorResponse{
		Error:   userMsg.Message,
		Action:  userMsg.Action,
		Code:    userMsg.Code,
		Request: middleware.GetReqID(r.Context()),
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

// respondErrorJSON writes an error envelope outside a handler, where no
// mapped error exists yet.
func respondErrorJSON(w http.ResponseWriter, msg core.UserMessage, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:  msg.Message,
		Action: msg.Action,
		Code:   msg.Code,
	})
}

// respondJSON writes v with the given status.
func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
