package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/shopworks/erp-api/internal/auth"
	"github.com/shopworks/erp-api/internal/obs"
)

// errorBody is the uniform error envelope. The kind is a stable machine
// token; the message is human-readable and never echoes credentials.
type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		obs.Logger().Println(`{"level":"error","msg":"response encode failed"}`)
	}
}

func writeErrorKind(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, map[string]errorBody{
		"error": {Kind: kind, Message: message},
	})
}

// writeError maps service errors onto HTTP statuses. Unknown errors
// become opaque 500s so internals never leak to clients.
func writeError(w http.ResponseWriter, err error) {
	msg := strings.TrimPrefix(err.Error(), "auth: ")
	switch {
	case errors.Is(err, auth.ErrInvalidInput):
		writeErrorKind(w, http.StatusBadRequest, "validation_failure", msg)
	case errors.Is(err, auth.ErrUnauthorized), errors.Is(err, auth.ErrInvalidToken):
		writeErrorKind(w, http.StatusUnauthorized, "authentication_failure", msg)
	case errors.Is(err, auth.ErrForbidden):
		writeErrorKind(w, http.StatusForbidden, "forbidden", msg)
	case errors.Is(err, auth.ErrNotFound):
		writeErrorKind(w, http.StatusNotFound, "not_found", msg)
	case errors.Is(err, auth.ErrConflict):
		writeErrorKind(w, http.StatusConflict, "conflict", msg)
	default:
		obs.Logger().Println(fmt.Sprintf(`{"level":"error","msg":"internal error","error":%q}`, err.Error()))
		writeErrorKind(w, http.StatusInternalServerError, "internal", "internal server error")
	}
}

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: malformed request body", auth.ErrInvalidInput)
	}
	return nil
}
