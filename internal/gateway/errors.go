package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"
)

// APIError is an error with an HTTP status and a client-facing message.
type APIError struct {
	Status  int
	Message string
	Details any
	Err     error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%d %s: %v", e.Status, e.Message, e.Err)
	}
	return fmt.Sprintf("%d %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

func newError(status int, message string, err error) *APIError {
	return &APIError{Status: status, Message: message, Err: err}
}

func badRequest(message string, details any) *APIError {
	return &APIError{Status: http.StatusBadRequest, Message: message, Details: details}
}

func notFound(message string) *APIError {
	return &APIError{Status: http.StatusNotFound, Message: message}
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Message   string `json:"message"`
	Status    int    `json:"status"`
	Path      string `json:"path"`
	Timestamp string `json:"timestamp"`
	Details   any    `json:"details,omitempty"`
}

// handlerFunc is an HTTP handler that reports failures by returning them.
type handlerFunc func(w http.ResponseWriter, r *http.Request) error

func (s *Server) handle(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h(w, r); err != nil {
			s.writeError(w, r, err)
		}
	}
}

// writeError writes the uniform error body. Server errors get a generic
// message in production; the cause is always logged.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		apiErr = newError(http.StatusInternalServerError, "Internal Server Error", err)
	}

	message := apiErr.Message
	if apiErr.Status >= 500 {
		log.Printf("[ERROR] %s %s: %v", r.Method, r.URL.Path, err)
		if s.opts.Production {
			message = "Internal Server Error"
		} else if apiErr.Err != nil {
			message = apiErr.Message + ": " + apiErr.Err.Error()
		}
	}

	writeJSON(w, apiErr.Status, errorBody{Error: errorDetail{
		Message:   message,
		Status:    apiErr.Status,
		Path:      r.URL.Path,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Details:   apiErr.Details,
	}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[WARN] encode response: %v", err)
	}
}
