package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "github.com/zintarh/wrap-registry/pkg/domain-errors"
	"github.com/zintarh/wrap-registry/pkg/requestcontext"
)

type errorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps domain error codes to HTTP statuses. Internal errors get a
// generic message; the detail stays in the logs.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := dErrors.CodeOf(err)
	status := dErrors.ToHTTPStatus(code)

	resp := errorResponse{
		Error:     string(code),
		RequestID: requestcontext.RequestID(r.Context()),
	}
	var dErr *dErrors.Error
	if code != dErrors.CodeInternal && errors.As(err, &dErr) {
		resp.Message = dErr.Message
	}

	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed",
			"request_id", resp.RequestID,
			"path", r.URL.Path,
			"error", err,
		)
	}
	writeJSON(w, status, resp)
}
