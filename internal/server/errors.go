package server

import (
	"errors"
	"net/http"

	"github.com/jonathan/audioscribe/internal/pipeline"
	"github.com/jonathan/audioscribe/internal/polish"
)

// HTTPStatus maps a controller or store error to an HTTP status code.
func HTTPStatus(err error) int {
	var notResumable *pipeline.NotResumableError
	var styleErr *polish.StyleError

	switch {
	case errors.Is(err, pipeline.ErrProjectNotFound):
		return http.StatusNotFound
	case errors.Is(err, pipeline.ErrAlreadyRunning):
		return http.StatusConflict
	case errors.Is(err, pipeline.ErrNotRunning):
		return http.StatusConflict
	case errors.As(err, &notResumable):
		return http.StatusConflict
	case errors.As(err, &styleErr):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
