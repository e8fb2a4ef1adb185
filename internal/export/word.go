package export

import (
	"bytes"
	"context"
	"embed"
	"html/template"
	"strings"
	"time"

	"github.com/vbonduro/inspectreport/internal/domain"
	"github.com/vbonduro/inspectreport/internal/imaging"
)

//go:embed templates/*.html
var templatesFS embed.FS

var reportTmpl = template.Must(template.New("report.html").Funcs(template.FuncMap{
	"lines": func(s string) []string { return strings.Split(s, "\n") },
}).ParseFS(templatesFS, "templates/report.html"))

// cellsPerRow is how many inspection cards share a table row on the page.
const cellsPerRow = 2

type reportView struct {
	Location    string
	GeneratedAt string
	Rows        [][]cardView
}

type cardView struct {
	PhotoNo  string
	Location string
	Comments string
	Photo    template.URL
}

// WordExporter renders the report as Word-compatible HTML, which Word opens
// directly when saved with a .doc extension.
type WordExporter struct {
	now func() time.Time
}

func NewWordExporter() *WordExporter {
	return &WordExporter{now: time.Now}
}

func (e *WordExporter) Export(ctx context.Context, data *domain.ReportData) (*Document, error) {
	now := e.now()
	body, err := RenderHTML(data, now)
	if err != nil {
		return nil, exportErr("doc", err)
	}
	return &Document{
		Name: FileName(data.Location, now, "doc"),
		MIME: "application/msword",
		Body: body,
	}, nil
}

// RenderHTML renders the printable report page shared by the Word, PDF and
// print outputs.
func RenderHTML(data *domain.ReportData, now time.Time) ([]byte, error) {
	var buf bytes.Buffer
	if err := reportTmpl.Execute(&buf, newReportView(data, now)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func newReportView(data *domain.ReportData, now time.Time) reportView {
	v := reportView{
		Location:    data.DisplayLocation(),
		GeneratedAt: now.Format("2 January 2006"),
	}
	for i := 0; i < len(data.Inspections); i += cellsPerRow {
		end := min(i+cellsPerRow, len(data.Inspections))
		row := make([]cardView, 0, cellsPerRow)
		for _, rec := range data.Inspections[i:end] {
			row = append(row, newCardView(rec))
		}
		v.Rows = append(v.Rows, row)
	}
	return v
}

func newCardView(rec domain.InspectionRecord) cardView {
	c := cardView{
		PhotoNo:  rec.PhotoNo,
		Location: rec.Location,
		Comments: rec.Comments,
	}
	if c.Comments == "" {
		c.Comments = "No comments"
	}
	// Only image data URLs are trusted into the src attribute.
	if mime, _, err := imaging.ParseDataURL(rec.PhotoDataURL); err == nil && strings.HasPrefix(mime, "image/") {
		c.Photo = template.URL(rec.PhotoDataURL)
	}
	return c
}
