package document

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Page is a prepared document page ready for extraction.
type Page struct {
	PageNo   int    // 1-indexed
	ImagePNG []byte // Rendered page image (nil for text-only flows)
	Text     string // Embedded text layer, empty when absent
	MIME     string // MIME type of ImagePNG
}

// Renderer converts documents into per-page images and text.
type Renderer struct {
	dpi int
}

// NewRenderer creates a renderer. dpi controls pdftoppm output
// resolution; zero selects 300.
func NewRenderer(dpi int) *Renderer {
	if dpi <= 0 {
		dpi = 300
	}
	return &Renderer{dpi: dpi}
}

// Render prepares all pages of a document. PDFs are rendered page by
// page with pdftoppm (poppler-utils); image documents become a single
// page as-is. PDF pages also carry their embedded text layer when one
// exists.
func (r *Renderer) Render(ctx context.Context, data []byte, format Format) ([]Page, error) {
	if format != FormatPDF {
		return []Page{{PageNo: 1, ImagePNG: data, MIME: format.MIME()}}, nil
	}

	pageCount, err := PageCount(data, format)
	if err != nil {
		return nil, err
	}

	// pdftoppm reads from a file, so stage the PDF in a temp dir.
	tmpDir, err := os.MkdirTemp("", "billscan-doc-*")
	if err != nil {
		return nil, &Error{Kind: ErrUnreadable, Msg: "failed to create temp dir", Err: err}
	}
	defer os.RemoveAll(tmpDir)

	pdfPath := filepath.Join(tmpDir, "document.pdf")
	if err := os.WriteFile(pdfPath, data, 0o600); err != nil {
		return nil, &Error{Kind: ErrUnreadable, Msg: "failed to stage PDF", Err: err}
	}

	pageText := extractTextPages(data, pageCount)

	pages := make([]Page, pageCount)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())

	for pageNo := 1; pageNo <= pageCount; pageNo++ {
		g.Go(func() error {
			img, err := r.renderPage(gctx, pdfPath, pageNo)
			if err != nil {
				return err
			}
			pages[pageNo-1] = Page{
				PageNo:   pageNo,
				ImagePNG: img,
				Text:     pageText[pageNo-1],
				MIME:     "image/png",
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return pages, nil
}

// renderPage renders a single page from a PDF using pdftoppm (poppler-utils).
func (r *Renderer) renderPage(ctx context.Context, pdfPath string, pageNo int) ([]byte, error) {
	tmpDir, err := os.MkdirTemp("", "billscan-page-*")
	if err != nil {
		return nil, &Error{Kind: ErrUnreadable, Msg: "failed to create temp dir", Err: err}
	}
	defer os.RemoveAll(tmpDir)

	outputPrefix := filepath.Join(tmpDir, "page")

	// -png: output PNG format
	// -f/-l N: single page to render
	// -r: resolution in DPI
	// -singlefile: don't add page number suffix
	pageStr := fmt.Sprintf("%d", pageNo)
	cmd := exec.CommandContext(ctx, "pdftoppm",
		"-png",
		"-f", pageStr,
		"-l", pageStr,
		"-r", fmt.Sprintf("%d", r.dpi),
		"-singlefile",
		pdfPath,
		outputPrefix,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, &Error{
			Kind: ErrUnreadable,
			Msg:  fmt.Sprintf("pdftoppm failed on page %d (output: %s)", pageNo, string(output)),
			Err:  err,
		}
	}

	// pdftoppm with -singlefile creates: <prefix>.png
	img, err := os.ReadFile(outputPrefix + ".png")
	if err != nil {
		return nil, &Error{
			Kind: ErrUnreadable,
			Msg:  fmt.Sprintf("pdftoppm did not create output for page %d", pageNo),
			Err:  err,
		}
	}

	return img, nil
}
