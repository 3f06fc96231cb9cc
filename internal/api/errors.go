package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/media1take/Telegram-hosting/internal/catalog"
	"github.com/media1take/Telegram-hosting/pkg/models"
)

func badRequest(message string) error {
	return catalog.WrapCategorizedError(catalog.ErrorCategoryInvalid, errors.New(message))
}

func errorStatus(err error) int {
	switch catalog.ErrorCategory(err) {
	case catalog.ErrorCategoryNotFound:
		return http.StatusNotFound
	case catalog.ErrorCategoryInvalid:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// errorDetail is the client-facing message. Internal and upstream failures
// are not echoed.
func errorDetail(err error) string {
	var missing *catalog.ChannelNotFoundError
	switch {
	case errors.As(err, &missing):
		return "Channel '" + missing.Alias + "' not found"
	case errors.Is(err, catalog.ErrVideoNotFound):
		return "Video not found"
	case errors.Is(err, catalog.ErrThumbnailUnavailable):
		return "Thumbnail not available"
	case errors.Is(err, catalog.ErrNoValidChannels):
		return "No valid channels provided"
	case errors.Is(err, catalog.ErrUnknownSize):
		return "Unknown file size"
	case catalog.ErrorCategory(err) == catalog.ErrorCategoryInvalid:
		return err.Error()
	default:
		return http.StatusText(http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			"component", "api",
			"path", r.URL.Path,
			"request_id", RequestID(r.Context()),
			"category", catalog.ErrorCategory(err),
			"error", err.Error(),
		)
	}
	writeJSON(w, status, models.ErrorResponse{Detail: errorDetail(err)})
}
