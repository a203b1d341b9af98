package api

import (
	"io"
	"net/http"

	"github.com/goccy/go-json"

	"hubgate/internal/domain"
)

const maxBodyBytes = 64 * 1024

type errorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

var kindStatus = map[domain.ErrorKind]int{
	domain.KindInvalidInput:      http.StatusBadRequest,
	domain.KindInvalidValue:      http.StatusBadRequest,
	domain.KindUnauthorized:      http.StatusUnauthorized,
	domain.KindNotFound:          http.StatusNotFound,
	domain.KindConnectionMissing: http.StatusConflict,
	domain.KindUnsupported:       http.StatusUnprocessableEntity,
	domain.KindNetwork:           http.StatusBadGateway,
	domain.KindServer:            http.StatusBadGateway,
	domain.KindUnableToLoad:      http.StatusServiceUnavailable,
}

// statusFor maps an error to its HTTP status; untyped errors are internal.
func statusFor(err error) (int, domain.ErrorKind) {
	kind := domain.KindOf(err)
	if status, ok := kindStatus[kind]; ok {
		return status, kind
	}
	return http.StatusInternalServerError, "internal"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "Something went wrong. Please try again."
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	} else {
		s.logger.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}

	writeJSON(w, status, errorBody{Error: errorDetail{Kind: string(kind), Message: message}})
}

func decodeBody(r *http.Request, v any) error {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return domain.WrapError(domain.KindInvalidInput, "We could not read that request.", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return domain.WrapError(domain.KindInvalidInput, "The request body is not valid JSON.", err)
	}
	return nil
}
