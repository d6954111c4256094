// Package transporthttp exposes the workflow engine over REST. Handlers
// decode, delegate to the coordinator, and encode; no domain decisions are
// made here.
package transporthttp

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	dErrors "bursar/pkg/domain-errors"
)

type errorResponse struct {
	Code      string `json:"code"`
	Error     string `json:"error"`
	Retryable bool   `json:"retryable"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	code := dErrors.CodeOf(err)
	status := dErrors.ToHTTPStatus(code)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "error", err)
	}
	message := err.Error()
	var de *dErrors.Error
	if errors.As(err, &de) {
		message = de.Message
	}
	writeJSON(w, status, errorResponse{
		Code:      string(code),
		Error:     message,
		Retryable: dErrors.Retryable(code),
	})
}

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "malformed request body")
	}
	return nil
}
