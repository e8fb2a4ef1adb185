package web

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/vbonduro/inspectreport/internal/domain"
	"github.com/vbonduro/inspectreport/internal/export"
	"github.com/vbonduro/inspectreport/internal/imaging"
	"github.com/vbonduro/inspectreport/internal/service"
	"github.com/vbonduro/inspectreport/internal/store"
)

const (
	msgExportFailed = "Error creating document. Please try again."
	msgStaleForm    = "The list of items changed since this page was loaded. The page will now reload."
	msgStorageFull  = "Local storage is full: the report could not be saved. Remove some photos and try again."
)

// writeError maps a service error to a status and a plain-text message. The
// page shows the message in a blocking alert.
func writeError(w http.ResponseWriter, logger *slog.Logger, action string, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		http.Error(w, "Please fix the following before continuing:\n"+strings.Join(verr.Problems, "\n"), http.StatusUnprocessableEntity)
		return
	case errors.Is(err, service.ErrStaleForm):
		http.Error(w, msgStaleForm, http.StatusConflict)
		return
	case errors.Is(err, service.ErrItemNotFound):
		http.Error(w, "inspection item not found", http.StatusNotFound)
		return
	case errors.Is(err, service.ErrUnknownFormat):
		http.Error(w, "unknown export format", http.StatusBadRequest)
		return
	case errors.Is(err, imaging.ErrUnsupportedImage):
		http.Error(w, "unsupported image format", http.StatusBadRequest)
		return
	case errors.Is(err, store.ErrQuotaExceeded):
		logger.Warn(action+" rejected", "error", err)
		http.Error(w, msgStorageFull, http.StatusInsufficientStorage)
		return
	case errors.Is(err, export.ErrExport):
		logger.Error(action+" failed", "error", err)
		http.Error(w, msgExportFailed, http.StatusInternalServerError)
		return
	}
	logger.Error(action+" failed", "error", err)
	http.Error(w, action+" failed", http.StatusInternalServerError)
}
