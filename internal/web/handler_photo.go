package web

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/vbonduro/inspectreport/internal/domain"
	"github.com/vbonduro/inspectreport/internal/photostore"
)

const maxPhotoSize = 50 * 1024 * 1024 // 50 MB

// allowedImageMIME sniffs an inspection photo from its leading bytes and
// accepts the formats imaging.Compress can decode. The browser-supplied
// Content-Type of the part is ignored.
func allowedImageMIME(data []byte) (string, bool) {
	// DetectContentType knows no WebP signature: RIFF, size, then WEBP.
	if len(data) >= 12 && bytes.HasPrefix(data, []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")) {
		return "image/webp", true
	}
	switch mime := http.DetectContentType(data); mime {
	case "image/jpeg", "image/png", "image/gif":
		return mime, true
	}
	return "", false
}

// photoFieldName is the file input of card index; "image" is accepted too
// for clients that upload one photo at a time.
func photoFieldName(index int) string {
	return fmt.Sprintf("items.%d.photo", index)
}

func (s *Server) handleUploadPhoto(w http.ResponseWriter, r *http.Request) {
	index, err := parseIndex(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxPhotoSize+1<<20)
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		http.Error(w, "failed to parse form", http.StatusBadRequest)
		return
	}

	file, _, err := r.FormFile(photoFieldName(index))
	if errors.Is(err, http.ErrMissingFile) {
		file, _, err = r.FormFile("image")
	}
	if err != nil {
		http.Error(w, "image file required", http.StatusBadRequest)
		return
	}
	defer closeWithLog(file, "upload file", s.logger)

	imageData, err := io.ReadAll(io.LimitReader(file, maxPhotoSize+1))
	if err != nil {
		http.Error(w, "failed to read file", http.StatusInternalServerError)
		s.logger.Error("read upload failed", "index", index, "error", err)
		return
	}
	if len(imageData) > maxPhotoSize {
		http.Error(w, "photo too large", http.StatusRequestEntityTooLarge)
		return
	}

	mimeType, ok := allowedImageMIME(imageData)
	if !ok {
		http.Error(w, "unsupported image format", http.StatusBadRequest)
		return
	}

	rec, err := s.service.AttachPhoto(r.Context(), index, imageData, mimeType)
	if err != nil {
		writeError(w, s.logger, "attach photo", err)
		return
	}

	if err := s.renderPartial(w, "photo_preview", map[string]any{"Index": index, "Record": *rec}, "partials/photo_preview.html"); err != nil {
		s.logger.Error("render partial failed", "error", err)
	}
}

func (s *Server) handleDeletePhoto(w http.ResponseWriter, r *http.Request) {
	index, err := parseIndex(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.service.RemovePhoto(r.Context(), index); err != nil {
		writeError(w, s.logger, "remove photo", err)
		return
	}

	if err := s.renderPartial(w, "photo_preview", map[string]any{"Index": index, "Record": domain.InspectionRecord{}}, "partials/photo_preview.html"); err != nil {
		s.logger.Error("render partial failed", "error", err)
	}
}

// handleGetPhoto streams the original, uncompressed upload of a card.
func (s *Server) handleGetPhoto(w http.ResponseWriter, r *http.Request) {
	index, err := parseIndex(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	data, err := s.service.Current(r.Context())
	if err != nil {
		http.Error(w, "failed to load report", http.StatusInternalServerError)
		s.logger.Error("load report for photo failed", "index", index, "error", err)
		return
	}
	if index >= len(data.Inspections) || data.Inspections[index].PhotoKey == "" {
		http.NotFound(w, r)
		return
	}

	reader, mimeType, err := s.photoStore.Get(r.Context(), data.Inspections[index].PhotoKey)
	if err != nil {
		if !errors.Is(err, photostore.ErrNotFound) {
			s.logger.Error("open photo failed", "index", index, "error", err)
		}
		http.NotFound(w, r)
		return
	}
	defer closeWithLog(reader, "photo reader", s.logger)

	w.Header().Set("Content-Type", mimeType)
	if _, err := io.Copy(w, reader); err != nil {
		s.logger.Error("write photo failed", "index", index, "error", err)
	}
}

// closeWithLog closes c and logs any error, using label to identify the resource.
func closeWithLog(c io.Closer, label string, logger *slog.Logger) {
	if err := c.Close(); err != nil {
		logger.Error("failed to close resource", "label", label, "error", err)
	}
}
