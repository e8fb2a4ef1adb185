package web

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/vbonduro/inspectreport/internal/domain"
)

// maxFormMemory bounds the multipart form kept in memory; larger file parts
// spill to disk.
const maxFormMemory = 32 << 20

const maxFieldLen = 2000

// captureForm reads the report fields out of a posted form. Cards are read
// from items.0.* upwards until the first index with no photo number field.
// A missing revision field reads as revision 0.
func captureForm(r *http.Request) (*domain.ReportData, error) {
	if err := r.ParseMultipartForm(maxFormMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return nil, fmt.Errorf("failed to parse form: %w", err)
	}

	data := &domain.ReportData{
		Location:    field(r, "location"),
		Inspections: []domain.InspectionRecord{},
	}
	if v := r.PostFormValue("revision"); v != "" {
		rev, err := strconv.ParseInt(v, 10, 64)
		if err != nil || rev < 0 {
			return nil, fmt.Errorf("invalid revision %q", v)
		}
		data.Revision = rev
	}
	for i := 0; ; i++ {
		prefix := "items." + strconv.Itoa(i) + "."
		if _, ok := r.PostForm[prefix+"photo_no"]; !ok {
			break
		}
		data.Inspections = append(data.Inspections, domain.InspectionRecord{
			PhotoNo:  field(r, prefix+"photo_no"),
			Location: field(r, prefix+"location"),
			Comments: field(r, prefix+"comments"),
		})
	}
	return data, nil
}

var newlines = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// field returns the trimmed value of a posted field, cut to maxFieldLen.
// CRLF and lone CR line endings become \n.
func field(r *http.Request, name string) string {
	v := newlines.Replace(strings.TrimSpace(r.PostFormValue(name)))
	if len(v) > maxFieldLen {
		cut := maxFieldLen
		for cut > 0 && !utf8.RuneStart(v[cut]) {
			cut--
		}
		v = v[:cut]
	}
	return v
}

// parseIndex extracts the {index} path variable.
func parseIndex(r *http.Request) (int, error) {
	i, err := strconv.Atoi(r.PathValue("index"))
	if err != nil || i < 0 {
		return 0, fmt.Errorf("invalid item index %q", r.PathValue("index"))
	}
	return i, nil
}
