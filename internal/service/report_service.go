package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/vbonduro/inspectreport/internal/domain"
	"github.com/vbonduro/inspectreport/internal/export"
	"github.com/vbonduro/inspectreport/internal/imaging"
	"github.com/vbonduro/inspectreport/internal/photostore"
)

var (
	ErrItemNotFound  = errors.New("inspection item not found")
	ErrUnknownFormat = errors.New("unknown export format")
	// ErrStaleForm is returned when a form was rendered before records were
	// removed or the report was reset. Its cards no longer line up with the
	// stored records.
	ErrStaleForm = errors.New("report changed since the form was loaded")
)

// reportRepository is the subset of store.ReportStore that ReportService requires.
type reportRepository interface {
	Save(ctx context.Context, key string, data *domain.ReportData) error
	Load(ctx context.Context, key string) (*domain.ReportData, error)
	Delete(ctx context.Context, key string) error
	Revision(ctx context.Context, key string) (int64, error)
	BumpRevision(ctx context.Context, key string) (int64, error)
}

// ReportService owns the single stored report. Every mutation runs under one
// lock so concurrent requests see the same load-modify-save ordering the
// form's event handlers had.
type ReportService struct {
	mu        sync.Mutex
	reports   reportRepository
	photoStg  photostore.PhotoStore
	exporters map[string]export.Exporter
	imageOpts imaging.Options
	itemCount int
	now       func() time.Time
	logger    *slog.Logger
}

func NewReportService(
	reports reportRepository,
	photoStg photostore.PhotoStore,
	exporters map[string]export.Exporter,
	imageOpts imaging.Options,
	itemCount int,
	logger *slog.Logger,
) *ReportService {
	return &ReportService{
		reports:   reports,
		photoStg:  photoStg,
		exporters: exporters,
		imageOpts: imageOpts,
		itemCount: itemCount,
		now:       time.Now,
		logger:    logger,
	}
}

// Formats lists the registered export formats in a stable order.
func (s *ReportService) Formats() []string {
	formats := make([]string, 0, len(s.exporters))
	for f := range s.exporters {
		formats = append(formats, f)
	}
	sort.Strings(formats)
	return formats
}

// Current returns the stored report, or a blank one when nothing is stored.
func (s *ReportService) Current(ctx context.Context) (*domain.ReportData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current(ctx)
}

func (s *ReportService) current(ctx context.Context) (*domain.ReportData, error) {
	data, err := s.reports.Load(ctx, domain.StorageKey)
	if err != nil {
		return nil, err
	}
	if data == nil {
		data = domain.NewReport(s.itemCount)
	}
	data.Revision, err = s.reports.Revision(ctx, domain.RevisionKey)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// checkRevision rejects a captured form rendered before the last removal or
// reset. Photos are merged by position, which is only sound while the form's
// cards match the stored records one for one.
func (s *ReportService) checkRevision(ctx context.Context, data *domain.ReportData) error {
	rev, err := s.reports.Revision(ctx, domain.RevisionKey)
	if err != nil {
		return err
	}
	if data.Revision != rev {
		return fmt.Errorf("%w: form revision %d, stored revision %d", ErrStaleForm, data.Revision, rev)
	}
	return nil
}

// Save stores a captured form. Photos are not part of the form and are
// carried over from the stored report by position.
func (s *ReportService) Save(ctx context.Context, data *domain.ReportData) (*domain.ReportData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkRevision(ctx, data); err != nil {
		return nil, err
	}
	orphans, err := s.mergePhotos(ctx, data)
	if err != nil {
		return nil, err
	}
	if err := s.persist(ctx, data); err != nil {
		return nil, err
	}
	s.deleteOriginals(ctx, orphans)
	return data, nil
}

// AddItem appends an empty inspection record and returns its index.
func (s *ReportService) AddItem(ctx context.Context) (*domain.ReportData, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.current(ctx)
	if err != nil {
		return nil, 0, err
	}
	data.Inspections = append(data.Inspections, domain.InspectionRecord{})
	if err := s.persist(ctx, data); err != nil {
		return nil, 0, err
	}
	return data, len(data.Inspections) - 1, nil
}

// RemoveItem deletes the record at index along with its stored photo. Later
// records shift down, so the revision is bumped and forms rendered earlier
// are refused from then on.
func (s *ReportService) RemoveItem(ctx context.Context, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.current(ctx)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(data.Inspections) {
		return fmt.Errorf("%w: %d", ErrItemNotFound, index)
	}

	// Old forms must never match a shifted list, even if the write fails.
	rev, err := s.reports.BumpRevision(ctx, domain.RevisionKey)
	if err != nil {
		return err
	}

	key := data.Inspections[index].PhotoKey
	data.Inspections = slices.Delete(data.Inspections, index, index+1)
	if err := s.persist(ctx, data); err != nil {
		return err
	}
	s.deleteOriginal(ctx, key)

	s.logger.Info("item removed", "index", index, "revision", rev)
	return nil
}

// AttachPhoto keeps the original upload, compresses it for embedding and
// stores the result on the record at index, replacing any earlier photo.
func (s *ReportService) AttachPhoto(ctx context.Context, index int, imageData []byte, mimeType string) (*domain.InspectionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Info("attach photo started", "index", index, "mime_type", mimeType, "bytes", len(imageData))

	data, err := s.current(ctx)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(data.Inspections) {
		return nil, fmt.Errorf("%w: %d", ErrItemNotFound, index)
	}

	compressed, err := imaging.Compress(imageData, s.imageOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to compress photo: %w", err)
	}
	s.logger.Debug("photo compressed", "index", index, "bytes_in", len(imageData), "bytes_out", len(compressed))

	key, err := s.photoStg.Save(ctx, fmt.Sprintf("item_%d", index), mimeType, bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("failed to save photo: %w", err)
	}

	rec := &data.Inspections[index]
	previous := rec.PhotoKey
	rec.PhotoKey = key
	rec.PhotoDataURL = imaging.DataURL("image/jpeg", compressed)

	if err := s.persist(ctx, data); err != nil {
		s.deleteOriginal(ctx, key)
		return nil, err
	}
	s.deleteOriginal(ctx, previous)

	s.logger.Info("attach photo complete", "index", index, "storage_key", key)
	return rec, nil
}

// RemovePhoto clears the photo of the record at index.
func (s *ReportService) RemovePhoto(ctx context.Context, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.current(ctx)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(data.Inspections) {
		return fmt.Errorf("%w: %d", ErrItemNotFound, index)
	}

	rec := &data.Inspections[index]
	key := rec.PhotoKey
	rec.PhotoKey = ""
	rec.PhotoDataURL = ""
	if err := s.persist(ctx, data); err != nil {
		return err
	}
	s.deleteOriginal(ctx, key)
	return nil
}

// Reset deletes every stored photo and the stored report.
func (s *ReportService) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.reports.Load(ctx, domain.StorageKey)
	if err != nil {
		return err
	}
	rev, err := s.reports.BumpRevision(ctx, domain.RevisionKey)
	if err != nil {
		return err
	}
	if err := s.reports.Delete(ctx, domain.StorageKey); err != nil {
		return err
	}
	if data != nil {
		for _, rec := range data.Inspections {
			s.deleteOriginal(ctx, rec.PhotoKey)
		}
	}
	s.logger.Info("report reset", "revision", rev)
	return nil
}

// PruneOriginals deletes stored photo files that no record of the stored
// report refers to, such as uploads interrupted by a crash. It returns the
// number of files removed.
func (s *ReportService) PruneOriginals(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys, err := s.photoStg.List(ctx)
	if err != nil {
		return 0, err
	}
	data, err := s.reports.Load(ctx, domain.StorageKey)
	if err != nil {
		return 0, err
	}
	inUse := make(map[string]bool)
	if data != nil {
		for _, rec := range data.Inspections {
			inUse[rec.PhotoKey] = true
		}
	}

	removed := 0
	for _, key := range keys {
		if inUse[key] {
			continue
		}
		if err := s.photoStg.Delete(ctx, key); err != nil && !errors.Is(err, photostore.ErrNotFound) {
			return removed, fmt.Errorf("failed to delete orphaned photo %s: %w", key, err)
		}
		removed++
	}
	if removed > 0 {
		s.logger.Info("pruned orphaned photos", "count", removed)
	}
	return removed, nil
}

// Export validates the captured form and renders it in format. Nothing is
// exported when validation fails; the returned error is a
// *domain.ValidationError.
func (s *ReportService) Export(ctx context.Context, data *domain.ReportData, format string) (*export.Document, error) {
	exporter, ok := s.exporters[format]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}

	if err := s.prepare(ctx, data); err != nil {
		return nil, err
	}

	doc, err := exporter.Export(ctx, data)
	if err != nil {
		return nil, err
	}
	s.logger.Info("report exported", "format", format, "file", doc.Name, "bytes", len(doc.Body), "items", len(data.Inspections))
	return doc, nil
}

// Printable validates the captured form and returns the print layout.
func (s *ReportService) Printable(ctx context.Context, data *domain.ReportData) ([]byte, error) {
	if err := s.prepare(ctx, data); err != nil {
		return nil, err
	}
	return export.RenderHTML(data, s.now())
}

// prepare merges stored photos into a captured form, mirrors it to the store
// and validates it.
func (s *ReportService) prepare(ctx context.Context, data *domain.ReportData) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkRevision(ctx, data); err != nil {
		return err
	}
	orphans, err := s.mergePhotos(ctx, data)
	if err != nil {
		return err
	}
	if err := s.persist(ctx, data); err != nil {
		// The document can still be produced from the posted form.
		s.logger.Warn("failed to mirror report before export", "error", err)
	} else {
		s.deleteOriginals(ctx, orphans)
	}
	return domain.Validate(data)
}

// mergePhotos copies stored photos onto the captured records by position and
// returns the storage keys of photos whose records the form no longer has.
func (s *ReportService) mergePhotos(ctx context.Context, data *domain.ReportData) ([]string, error) {
	stored, err := s.reports.Load(ctx, domain.StorageKey)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, nil
	}
	n := min(len(data.Inspections), len(stored.Inspections))
	for i := 0; i < n; i++ {
		data.Inspections[i].PhotoDataURL = stored.Inspections[i].PhotoDataURL
		data.Inspections[i].PhotoKey = stored.Inspections[i].PhotoKey
	}
	var orphans []string
	for _, rec := range stored.Inspections[n:] {
		if rec.PhotoKey != "" {
			orphans = append(orphans, rec.PhotoKey)
		}
	}
	return orphans, nil
}

func (s *ReportService) persist(ctx context.Context, data *domain.ReportData) error {
	data.Timestamp = s.now().UTC().Format(time.RFC3339)
	return s.reports.Save(ctx, domain.StorageKey, data)
}

func (s *ReportService) deleteOriginals(ctx context.Context, keys []string) {
	for _, key := range keys {
		s.deleteOriginal(ctx, key)
	}
}

func (s *ReportService) deleteOriginal(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.photoStg.Delete(ctx, key); err != nil && !errors.Is(err, photostore.ErrNotFound) {
		s.logger.Error("failed to delete photo file", "storage_key", key, "error", err)
	}
}
