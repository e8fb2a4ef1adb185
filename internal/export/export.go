// Package export turns a captured report into downloadable documents.
package export

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/vbonduro/inspectreport/internal/domain"
)

// ErrExport wraps every failure to produce a document.
var ErrExport = errors.New("export failed")

const fileNamePrefix = "Pre-Termination_Report"

// Document is a generated file ready to be downloaded.
type Document struct {
	Name string
	MIME string
	Body []byte
}

// Exporter produces one document format.
type Exporter interface {
	Export(ctx context.Context, data *domain.ReportData) (*Document, error)
}

// FileName builds Pre-Termination_Report_<location>_<YYYY-MM-DD>.<ext>. The
// date is taken in UTC.
func FileName(location string, now time.Time, ext string) string {
	if strings.TrimSpace(location) == "" {
		location = domain.DefaultLocation
	}
	return fmt.Sprintf("%s_%s_%s.%s", fileNamePrefix, sanitizeFilename(location), now.UTC().Format(time.DateOnly), ext)
}

var foldDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// sanitizeFilename folds accents to ASCII and replaces characters that are
// invalid or awkward in file names with underscores.
func sanitizeFilename(s string) string {
	folded, _, err := transform.String(foldDiacritics, strings.TrimSpace(s))
	if err != nil {
		folded = s
	}
	return strings.Map(func(r rune) rune {
		switch {
		case strings.ContainsRune(`/\:*?"<>|`, r), unicode.IsSpace(r), unicode.IsControl(r):
			return '_'
		default:
			return r
		}
	}, folded)
}

func exportErr(format string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrExport, format, err)
}
