package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "cvintake/pkg/domain-errors"
)

var statusByCode = map[dErrors.Code]int{
	dErrors.CodeBadRequest:       http.StatusBadRequest,
	dErrors.CodeUnsupportedMedia: http.StatusUnsupportedMediaType,
	dErrors.CodePayloadTooLarge:  http.StatusRequestEntityTooLarge,
	dErrors.CodeNotFound:         http.StatusNotFound,
	dErrors.CodeConflict:         http.StatusConflict,
	dErrors.CodeInvalidState:     http.StatusConflict,
	dErrors.CodeUnavailable:      http.StatusServiceUnavailable,
	dErrors.CodeInternal:         http.StatusInternalServerError,
}

// WriteJSON writes v as a JSON body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps a domain error onto an HTTP error response. Internal errors
// omit the description so store/provider details never leak to clients.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	status, ok := statusByCode[code]
	if !ok {
		status = http.StatusInternalServerError
		code = dErrors.CodeInternal
	}

	body := map[string]string{"error": string(code)}
	if code != dErrors.CodeInternal {
		var de *dErrors.Error
		if errors.As(err, &de) {
			body["error_description"] = de.Description
		}
	}
	WriteJSON(w, status, body)
}
