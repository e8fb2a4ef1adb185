package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/vbonduro/inspectreport/internal/domain"
	"github.com/vbonduro/inspectreport/internal/imaging"
)

const (
	registerSheet  = "Inspections"
	registerHeader = 4
	photoRowHeight = 120
)

var registerColumns = []struct {
	Label string
	Width float64
}{
	{"No.", 6},
	{"Photo No.", 12},
	{"Location", 24},
	{"Comments", 48},
	{"Photo", 40},
}

var pictureExt = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
}

// ExcelExporter writes the report as an .xlsx register, one row per
// inspection with the compressed photo embedded in the last column.
type ExcelExporter struct {
	now    func() time.Time
	logger *slog.Logger
}

func NewExcelExporter(logger *slog.Logger) *ExcelExporter {
	return &ExcelExporter{now: time.Now, logger: logger}
}

func (e *ExcelExporter) Export(ctx context.Context, data *domain.ReportData) (*Document, error) {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			e.logger.Error("failed to close workbook", "error", err)
		}
	}()

	now := e.now()
	if err := e.fill(f, data, now); err != nil {
		return nil, exportErr("xlsx", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, exportErr("xlsx", err)
	}

	return &Document{
		Name: FileName(data.Location, now, "xlsx"),
		MIME: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		Body: buf.Bytes(),
	}, nil
}

func (e *ExcelExporter) fill(f *excelize.File, data *domain.ReportData, now time.Time) error {
	index, err := f.NewSheet(registerSheet)
	if err != nil {
		return err
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return err
	}

	titleStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 16},
	})
	if err != nil {
		return err
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border:    borders("000000"),
	})
	if err != nil {
		return err
	}
	cellStyle, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Vertical: "top", WrapText: true},
		Border:    borders("CCCCCC"),
	})
	if err != nil {
		return err
	}

	if err := f.SetCellValue(registerSheet, "A1", "Pre-Termination Report: "+data.DisplayLocation()); err != nil {
		return err
	}
	if err := f.SetCellStyle(registerSheet, "A1", "A1", titleStyle); err != nil {
		return err
	}
	if err := f.SetCellValue(registerSheet, "A2", "Generated: "+now.Format("2006-01-02 15:04")); err != nil {
		return err
	}

	for i, col := range registerColumns {
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		cell := fmt.Sprintf("%s%d", name, registerHeader)
		if err := f.SetCellValue(registerSheet, cell, col.Label); err != nil {
			return err
		}
		if err := f.SetCellStyle(registerSheet, cell, cell, headerStyle); err != nil {
			return err
		}
		if err := f.SetColWidth(registerSheet, name, name, col.Width); err != nil {
			return err
		}
	}

	for i, rec := range data.Inspections {
		row := registerHeader + 1 + i
		first := fmt.Sprintf("A%d", row)
		values := []any{i + 1, rec.PhotoNo, rec.Location, rec.Comments, ""}
		if err := f.SetSheetRow(registerSheet, first, &values); err != nil {
			return err
		}
		if err := f.SetCellStyle(registerSheet, first, fmt.Sprintf("E%d", row), cellStyle); err != nil {
			return err
		}
		if rec.HasPhoto() {
			if err := e.addPhoto(f, fmt.Sprintf("E%d", row), rec); err != nil {
				return fmt.Errorf("photo for item %d: %w", i+1, err)
			}
			if err := f.SetRowHeight(registerSheet, row, photoRowHeight); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *ExcelExporter) addPhoto(f *excelize.File, cell string, rec domain.InspectionRecord) error {
	mime, raw, err := imaging.ParseDataURL(rec.PhotoDataURL)
	if err != nil {
		return err
	}
	ext, ok := pictureExt[mime]
	if !ok {
		e.logger.Warn("skipping photo in unsupported format", "photo_no", rec.PhotoNo, "mime_type", mime)
		return nil
	}
	return f.AddPictureFromBytes(registerSheet, cell, &excelize.Picture{
		Extension: ext,
		File:      raw,
		Format: &excelize.GraphicOptions{
			AltText:         "Photo " + rec.PhotoNo,
			AutoFit:         true,
			LockAspectRatio: true,
		},
	})
}

func borders(color string) []excelize.Border {
	return []excelize.Border{
		{Type: "left", Color: color, Style: 1},
		{Type: "right", Color: color, Style: 1},
		{Type: "top", Color: color, Style: 1},
		{Type: "bottom", Color: color, Style: 1},
	}
}
