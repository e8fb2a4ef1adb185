package web

import (
	"encoding/json"
	"mime"
	"net/http"
	"strconv"

	"github.com/vbonduro/inspectreport/internal/domain"
)

var pageFiles = []string{"base.html", "pages/report.html", "partials/item_card.html", "partials/photo_preview.html"}

var cardFiles = []string{"partials/item_card.html", "partials/photo_preview.html"}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data, err := s.service.Current(r.Context())
	if err != nil {
		http.Error(w, "failed to load report", http.StatusInternalServerError)
		s.logger.Error("load report failed", "error", err)
		return
	}

	if err := s.renderPage(w,
		map[string]any{"Report": data, "Formats": s.service.Formats()},
		pageFiles...,
	); err != nil {
		s.logger.Error("render page failed", "error", err)
	}
}

// handleGetReport returns the stored report blob as JSON.
func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	data, err := s.service.Current(r.Context())
	if err != nil {
		writeError(w, s.logger, "load report", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("write report json failed", "error", err)
	}
}

// handleSaveReport mirrors the form into the store. The page posts here on
// every input event.
func (s *Server) handleSaveReport(w http.ResponseWriter, r *http.Request) {
	data, err := captureForm(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, err := s.service.Save(r.Context(), data); err != nil {
		writeError(w, s.logger, "save report", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Reset(r.Context()); err != nil {
		writeError(w, s.logger, "reset report", err)
		return
	}
	w.Header().Set("HX-Redirect", "/")
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleAddItem(w http.ResponseWriter, r *http.Request) {
	data, index, err := s.service.AddItem(r.Context())
	if err != nil {
		writeError(w, s.logger, "add item", err)
		return
	}
	card := map[string]any{"Index": index, "Record": data.Inspections[index]}
	if err := s.renderPartial(w, "item_card", card, cardFiles...); err != nil {
		s.logger.Error("render partial failed", "error", err)
	}
}

func (s *Server) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	index, err := parseIndex(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.service.RemoveItem(r.Context(), index); err != nil {
		writeError(w, s.logger, "remove item", err)
		return
	}
	// Later cards shift down one index, so the page is rebuilt.
	w.Header().Set("HX-Refresh", "true")
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "doc"
	}

	data, err := captureForm(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	doc, err := s.service.Export(r.Context(), data, format)
	if err != nil {
		writeError(w, s.logger, "export report", err)
		return
	}

	w.Header().Set("Content-Type", doc.MIME)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": doc.Name}))
	w.Header().Set("Content-Length", strconv.Itoa(len(doc.Body)))
	if _, err := w.Write(doc.Body); err != nil {
		s.logger.Error("write export failed", "file", doc.Name, "error", err)
	}
}

// handlePrint renders the print layout of the posted form, or of the stored
// report on GET.
func (s *Server) handlePrint(w http.ResponseWriter, r *http.Request) {
	var data *domain.ReportData
	var err error
	if r.Method == http.MethodGet {
		data, err = s.service.Current(r.Context())
	} else {
		data, err = captureForm(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	if err != nil {
		writeError(w, s.logger, "load report", err)
		return
	}

	page, err := s.service.Printable(r.Context(), data)
	if err != nil {
		writeError(w, s.logger, "print report", err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write(page); err != nil {
		s.logger.Error("write print page failed", "error", err)
	}
}
