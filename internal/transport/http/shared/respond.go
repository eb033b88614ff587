// Package shared maps domain errors onto HTTP responses, so every handler
// speaks the same error shape.
package shared

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "licensenet/pkg/domain-errors"
)

type errorBody struct {
	Error  string               `json:"error"`
	Detail string               `json:"detail,omitempty"`
	Fields []dErrors.FieldError `json:"fields,omitempty"`
}

// WriteJSON encodes payload with the given status.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// WriteError maps a coded domain error onto its HTTP status. Unknown errors
// are reported as opaque 500s; the detail never leaks internals.
func WriteError(w http.ResponseWriter, err error) {
	var de *dErrors.Error
	if !errors.As(err, &de) {
		WriteJSON(w, http.StatusInternalServerError, errorBody{Error: "internal"})
		return
	}

	body := errorBody{Error: string(de.Code()), Detail: de.Error(), Fields: dErrors.FieldsOf(err)}
	switch de.Code() {
	case dErrors.CodeBadRequest:
		WriteJSON(w, http.StatusBadRequest, body)
	case dErrors.CodeValidation, dErrors.CodeInvariantViolation:
		WriteJSON(w, http.StatusUnprocessableEntity, body)
	case dErrors.CodeNotFound:
		WriteJSON(w, http.StatusNotFound, body)
	case dErrors.CodeConflict:
		WriteJSON(w, http.StatusConflict, body)
	case dErrors.CodeTimeout:
		WriteJSON(w, http.StatusGatewayTimeout, body)
	default:
		WriteJSON(w, http.StatusInternalServerError, errorBody{Error: string(dErrors.CodeInternal)})
	}
}
