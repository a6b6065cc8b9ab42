package server

import (
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/render"

	configstore "github.com/geto-app/geto/internal/config/store"
	"github.com/geto-app/geto/internal/domain"
	"github.com/geto-app/geto/internal/usecase"
)

// ErrorResponse is the standard JSON error envelope returned by all HTTP error responses.
type ErrorResponse struct {
	Error       string   `json:"error"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// writeError writes a JSON error response with the given HTTP status code and message.
func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: message})
}

// writeStoreError maps domain and store errors onto HTTP statuses.
func writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	var notInstalled *usecase.PackageNotInstalledError
	switch {
	case errors.As(err, &notInstalled):
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, ErrorResponse{Error: err.Error(), Suggestions: notInstalled.Suggestions})
	case configstore.IsNotFound(err):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidEntry),
		errors.Is(err, configstore.ErrScopeImmutable):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, configstore.ErrReadOnly),
		errors.Is(err, usecase.ErrNoInstalledPackages):
		writeError(w, r, http.StatusConflict, err.Error())
	default:
		log.Printf("[APIServer] request %s %s failed: %v", r.Method, r.URL.Path, err)
		writeError(w, r, http.StatusInternalServerError, err.Error())
	}
}
