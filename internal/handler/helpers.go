package handler

import (
	"errors"
	"net/http"

	"docforest/internal/domain"
	"docforest/internal/httputil"
)

// handleError converts domain errors to HTTP responses
func handleError(w http.ResponseWriter, err error) {
	var httpErr domain.HTTPError

	switch {
	case errors.As(err, &httpErr):
		httputil.RespondError(w, httpErr.StatusCode(), httpErr.Error())
	case errors.Is(err, domain.ErrValidation):
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		httputil.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		httputil.RespondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrPersistence):
		// The store write failed; the snapshot stays authoritative and the
		// caller may retry. 502 distinguishes this from a handler bug.
		httputil.RespondError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, domain.ErrStructuralIntegrity):
		httputil.RespondError(w, http.StatusInternalServerError, err.Error())
	default:
		httputil.RespondError(w, http.StatusInternalServerError, "internal server error")
	}
}

// actor returns the client-supplied identity used for provenance fields.
// Authentication is an external collaborator; this layer only records what
// it is told.
func actor(r *http.Request) string {
	return r.Header.Get("X-Actor")
}
