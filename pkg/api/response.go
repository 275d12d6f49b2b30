package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"mercator-hq/ruler/pkg/catalog"
	ruleErrors "mercator-hq/ruler/pkg/rules/errors"
	"mercator-hq/ruler/pkg/store"
)

const (
	statusSuccess = "success"
	statusError   = "error"

	msgUnexpected = "An unexpected error occurred"
	msgNotFound   = "Resource not found"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	ErrorType string `json:"error_type,omitempty"`
}

// RequestError is a client mistake in the request envelope, such as a
// missing field or a value of the wrong JSON type. It maps to 400.
type RequestError struct {
	Message string
}

// Error returns the error message.
func (e *RequestError) Error() string { return e.Message }

func badRequest(format string, args ...interface{}) error {
	return &RequestError{Message: fmt.Sprintf(format, args...)}
}

// writeJSON encodes body with HTML escaping disabled so comparison
// operators in trees stay readable.
func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(body)
}

// writeSuccess writes fields under a "status": "success" envelope.
func writeSuccess(w http.ResponseWriter, fields map[string]interface{}) {
	body := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		body[k] = v
	}
	body["status"] = statusSuccess
	writeJSON(w, http.StatusOK, body)
}

// statusFor maps err to an HTTP status and client-facing error body.
func statusFor(err error) (int, ErrorResponse) {
	resp := ErrorResponse{Status: statusError}

	var reqErr *RequestError
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &reqErr):
		resp.Message = reqErr.Message
		return http.StatusBadRequest, resp

	case errors.As(err, &tooLarge):
		resp.Message = "Request body too large"
		return http.StatusRequestEntityTooLarge, resp

	case errors.Is(err, store.ErrNotFound), errors.Is(err, catalog.ErrRuleNotFound):
		resp.Message = err.Error()
		return http.StatusNotFound, resp
	}

	if kind, ok := ruleErrors.KindOf(err); ok {
		resp.Message = err.Error()
		resp.ErrorType = string(kind)
		return http.StatusBadRequest, resp
	}

	resp.Message = msgUnexpected
	return http.StatusInternalServerError, resp
}

// writeError answers with the envelope for err. Server errors are logged
// with their cause, which is never sent to the client.
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := statusFor(err)
	if status >= http.StatusInternalServerError {
		a.logger.ErrorContext(r.Context(), "request failed",
			"path", r.URL.Path,
			"error", err,
		)
	} else {
		a.logger.DebugContext(r.Context(), "request rejected",
			"path", r.URL.Path,
			"status", status,
			"error", err,
		)
	}
	writeJSON(w, status, resp)
}
