package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/intelligencedev/agentruntime/internal/runtimeerr"
)

func badRequest(err error) error {
	return runtimeerr.Wrap(runtimeerr.BadRequest, "decode request body", err)
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, err error) {
	status := statusFromError(err)
	body := map[string]any{"error": err.Error()}
	if status == http.StatusInternalServerError {
		body["correlation_id"] = uuid.NewString()
		body["error"] = "internal error"
	}
	respondJSON(w, status, body)
}

func statusFromError(err error) int {
	kind, ok := runtimeerr.KindOf(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch kind {
	case runtimeerr.NotFound:
		return http.StatusNotFound
	case runtimeerr.BadRequest:
		return http.StatusBadRequest
	case runtimeerr.Conflict:
		return http.StatusConflict
	case runtimeerr.RuntimeBusy:
		return http.StatusTooManyRequests
	case runtimeerr.RuntimeNotReady:
		return http.StatusConflict
	case runtimeerr.LLMUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
