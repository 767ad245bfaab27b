package document

import (
	"bytes"
	"strings"

	"github.com/ledongthuc/pdf"
)

// extractTextPages pulls the embedded text layer out of a PDF, one entry
// per page. Extraction is best-effort: scanned PDFs have no text layer,
// and a malformed page yields an empty string rather than an error.
func extractTextPages(data []byte, pageCount int) (texts []string) {
	texts = make([]string, pageCount)

	defer func() {
		// The pdf package can panic on malformed content streams.
		recover()
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return texts
	}

	n := r.NumPage()
	if n > pageCount {
		n = pageCount
	}

	for i := 1; i <= n; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		texts[i-1] = strings.TrimSpace(text)
	}

	return texts
}
