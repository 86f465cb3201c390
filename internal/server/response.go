package server

import (
	"encoding/json"
	"net/http"

	"github.com/koustreak/relgen/internal/errs"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// apiResponse is the envelope of every JSON response.
type apiResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, body apiResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

func success(w http.ResponseWriter, data any, message string) {
	writeJSON(w, http.StatusOK, apiResponse{Status: statusSuccess, Message: message, Data: data})
}

func fail(w http.ResponseWriter, err error) {
	kind := errs.KindOf(err)
	writeJSON(w, statusFor(kind), apiResponse{
		Status:  statusError,
		Message: kind.String(),
		Error:   err.Error(),
	})
}

func statusFor(kind errs.ErrKind) int {
	switch kind {
	case errs.ErrKindInvalidArgument:
		return http.StatusBadRequest
	case errs.ErrKindNotFound:
		return http.StatusNotFound
	case errs.ErrKindTimeout:
		return http.StatusGatewayTimeout
	case errs.ErrKindConnectionFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
