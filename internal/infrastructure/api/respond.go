package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"archie-builder-credential-broker/internal/domain"

	"github.com/rs/zerolog"
)

var errBadBody = errors.New("invalid request body")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors to responses. Upstream detail is logged and
// never returned.
func writeError(w http.ResponseWriter, logger zerolog.Logger, err error) {
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
	case errors.Is(err, domain.ErrInvalidCredential), errors.Is(err, domain.ErrExpired):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication failed"})
	case errors.Is(err, domain.ErrMissingField):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, errBadBody):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": errBadBody.Error()})
	default:
		logger.Error().Err(err).Msg("Request failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

// decodeBody decodes an optional JSON body into v. An empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return errBadBody
}
