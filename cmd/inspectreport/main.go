package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/vbonduro/inspectreport/internal/config"
	"github.com/vbonduro/inspectreport/internal/db"
	"github.com/vbonduro/inspectreport/internal/export"
	"github.com/vbonduro/inspectreport/internal/imaging"
	"github.com/vbonduro/inspectreport/internal/logging"
	"github.com/vbonduro/inspectreport/internal/photostore/local"
	"github.com/vbonduro/inspectreport/internal/service"
	"github.com/vbonduro/inspectreport/internal/store"
	"github.com/vbonduro/inspectreport/internal/web"
	"github.com/vbonduro/inspectreport/internal/web/templates"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, cleanup, err := logging.New(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	})
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer cleanup()

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0750); err != nil {
		logger.Error("failed to create database directory", "error", err)
		return
	}
	database, err := db.Open(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		return
	}
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}()

	reportStore := store.NewReportStore(database, cfg.StorageQuotaBytes)

	photoStg, err := local.New(cfg.PhotoPath)
	if err != nil {
		logger.Error("failed to initialize photo store", "error", err)
		return
	}
	defer func() {
		if err := photoStg.Close(); err != nil {
			logger.Error("failed to close photo store", "error", err)
		}
	}()

	imageOpts := imaging.Options{
		MaxWidth:  cfg.PhotoMaxWidth,
		MaxHeight: cfg.PhotoMaxHeight,
		Quality:   cfg.PhotoJPEGQuality,
	}
	reportService := service.NewReportService(reportStore, photoStg, newExporters(cfg, logger), imageOpts, cfg.DefaultItemCount, logger)
	if _, err := reportService.PruneOriginals(context.Background()); err != nil {
		logger.Warn("failed to prune orphaned photos", "error", err)
	}

	server := web.NewServer(reportService, templates.FS, photoStg, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.ListenAndServe(ctx, cfg.ListenAddr); err != nil {
		logger.Error("server error", "error", err)
	}
}

// newExporters registers the document formats offered on the page. PDF is
// only offered when a browser is available to print with.
func newExporters(cfg *config.Config, logger *slog.Logger) map[string]export.Exporter {
	exporters := map[string]export.Exporter{
		"doc":  export.NewWordExporter(),
		"xlsx": export.NewExcelExporter(logger),
	}
	if !cfg.PDFExport {
		return exporters
	}
	pdf, err := export.NewPDFExporter(cfg.ChromeBin)
	if err != nil {
		logger.Warn("pdf export disabled", "error", err)
		return exporters
	}
	logger.Info("pdf export enabled", "chrome", pdf.Browser())
	exporters["pdf"] = pdf
	return exporters
}
