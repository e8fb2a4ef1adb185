package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/vbonduro/inspectreport/internal/domain"
)

// A4 in inches, as PrintToPDF expects.
const (
	a4WidthIn  = 8.27
	a4HeightIn = 11.69
	marginIn   = 0.8 / 2.54
)

const pdfTimeout = 60 * time.Second

// ErrNoBrowser is returned when no Chrome or Chromium binary can be found.
var ErrNoBrowser = errors.New("no chrome binary available")

// PDFExporter prints the report HTML to PDF through headless Chrome.
type PDFExporter struct {
	chromeBin string
	now       func() time.Time
}

// NewPDFExporter locates a browser, preferring chromeBin when set.
func NewPDFExporter(chromeBin string) (*PDFExporter, error) {
	bin := chromeBin
	if bin == "" {
		bin = FindChromeBinary()
	}
	if bin == "" {
		return nil, ErrNoBrowser
	}
	return &PDFExporter{chromeBin: bin, now: time.Now}, nil
}

// Browser returns the Chrome binary the exporter prints with.
func (e *PDFExporter) Browser() string {
	return e.chromeBin
}

func (e *PDFExporter) Export(ctx context.Context, data *domain.ReportData) (*Document, error) {
	now := e.now()
	html, err := RenderHTML(data, now)
	if err != nil {
		return nil, exportErr("pdf", err)
	}

	body, err := e.print(ctx, string(html))
	if err != nil {
		return nil, exportErr("pdf", err)
	}

	return &Document{
		Name: FileName(data.Location, now, "pdf"),
		MIME: "application/pdf",
		Body: body,
	}, nil
}

func (e *PDFExporter) print(ctx context.Context, html string) ([]byte, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(e.chromeBin),
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)

	ctx, cancel := context.WithTimeout(ctx, pdfTimeout)
	defer cancel()

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...any) {}))
	defer cancelBrowser()

	var pdf []byte
	err := chromedp.Run(browserCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return fmt.Errorf("get frame tree: %w", err)
			}
			return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			pdf, _, err = page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(a4WidthIn).
				WithPaperHeight(a4HeightIn).
				WithMarginTop(marginIn).
				WithMarginBottom(marginIn).
				WithMarginLeft(marginIn).
				WithMarginRight(marginIn).
				WithPreferCSSPageSize(true).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, err
	}
	return pdf, nil
}

// FindChromeBinary returns the first Chrome or Chromium found on PATH or in
// the usual install locations, or "" when there is none.
func FindChromeBinary() string {
	for _, name := range []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser", "chrome"} {
		if p, err := exec.LookPath(name); err == nil {
			return p
		}
	}
	for _, p := range []string{
		"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
	} {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
