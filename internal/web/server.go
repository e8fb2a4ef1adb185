package web

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/vbonduro/inspectreport/internal/imaging"
	"github.com/vbonduro/inspectreport/internal/photostore"
	"github.com/vbonduro/inspectreport/internal/service"
)

type Server struct {
	service    *service.ReportService
	templates  embed.FS
	photoStore photostore.PhotoStore
	mux        *http.ServeMux
	tmplFuncs  template.FuncMap
	logger     *slog.Logger
}

func NewServer(svc *service.ReportService, tmpl embed.FS, ps photostore.PhotoStore, logger *slog.Logger) *Server {
	s := &Server{
		service:    svc,
		templates:  tmpl,
		photoStore: ps,
		mux:        http.NewServeMux(),
		logger:     logger,
		tmplFuncs: template.FuncMap{
			"inc":      func(i int) int { return i + 1 },
			"photoURL": photoURL,
			"card":     func(i int, rec any) map[string]any { return map[string]any{"Index": i, "Record": rec} },
		},
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("GET /report", s.handleGetReport)
	s.mux.HandleFunc("POST /report", s.handleSaveReport)
	s.mux.HandleFunc("POST /report/reset", s.handleReset)
	s.mux.HandleFunc("POST /report/items", s.handleAddItem)
	s.mux.HandleFunc("DELETE /report/items/{index}", s.handleRemoveItem)
	s.mux.HandleFunc("POST /report/items/{index}/photo", s.handleUploadPhoto)
	s.mux.HandleFunc("GET /report/items/{index}/photo", s.handleGetPhoto)
	s.mux.HandleFunc("DELETE /report/items/{index}/photo", s.handleDeletePhoto)
	s.mux.HandleFunc("POST /report/export", s.handleExport)
	s.mux.HandleFunc("GET /report/print", s.handlePrint)
	s.mux.HandleFunc("POST /report/print", s.handlePrint)
}

// securityHeaders locks the page down to its own origin. htmx loads from
// unpkg, photo previews are data: URLs and exports download through blob:
// URLs.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Content-Security-Policy",
			"default-src 'self'; "+
				"script-src 'self' 'unsafe-inline' https://unpkg.com; "+
				"style-src 'self' 'unsafe-inline'; "+
				"img-src 'self' data: blob:; "+
				"connect-src 'self'")
		next.ServeHTTP(w, r)
	})
}

// responseRecorder remembers the status and body size of a response for the
// request log.
type responseRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *responseRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

func requestLogger(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		level := slog.LevelInfo
		if rec.status >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		logger.Log(r.Context(), level, "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"bytes", rec.bytes,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestLogger(s.logger, securityHeaders(s.mux)).ServeHTTP(w, r)
}

// ListenAndServe serves until ctx is cancelled, then drains in-flight
// requests.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	s.logger.Info("starting server", "addr", addr)
	srv := &http.Server{
		Addr:         addr,
		Handler:      s,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// renderPage parses and executes a full-page template set.
func (s *Server) renderPage(w http.ResponseWriter, data any, files ...string) error {
	tmpl, err := template.New("").Funcs(s.tmplFuncs).ParseFS(s.templates, files...)
	if err != nil {
		http.Error(w, "template error", http.StatusInternalServerError)
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return tmpl.ExecuteTemplate(w, "base", data)
}

// renderPartial executes the {{define}} block called name from files.
func (s *Server) renderPartial(w http.ResponseWriter, name string, data any, files ...string) error {
	tmpl, err := template.New("").Funcs(s.tmplFuncs).ParseFS(s.templates, files...)
	if err != nil {
		http.Error(w, "template error", http.StatusInternalServerError)
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return tmpl.ExecuteTemplate(w, name, data)
}

// photoURL lets a stored image data URL through html/template's URL
// filter. Anything else renders as an empty src.
func photoURL(s string) template.URL {
	mime, _, err := imaging.ParseDataURL(s)
	if err != nil || !strings.HasPrefix(mime, "image/") {
		return ""
	}
	return template.URL(s)
}
