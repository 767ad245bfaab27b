// Package document handles fetching bill documents and preparing their
// pages for extraction.
package document

import (
	"bytes"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// Format identifies a supported document format.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
)

// MIME returns the MIME type for the format.
func (f Format) MIME() string {
	switch f {
	case FormatPDF:
		return "application/pdf"
	case FormatPNG:
		return "image/png"
	case FormatJPEG:
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}

// ErrorKind classifies document failures so the HTTP layer can map them
// to status codes.
type ErrorKind string

const (
	// ErrFetch covers network/HTTP failures retrieving the document.
	ErrFetch ErrorKind = "fetch"
	// ErrUnsupportedFormat means the bytes are not a PDF or supported image.
	ErrUnsupportedFormat ErrorKind = "unsupported_format"
	// ErrUnreadable means the document was fetched but cannot be decoded.
	ErrUnreadable ErrorKind = "unreadable"
	// ErrInvalidInput covers bad caller input (malformed URL, wrong scheme).
	ErrInvalidInput ErrorKind = "invalid_input"
)

// Error is a classified document failure.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// DetectFormat sniffs the document format from magic bytes.
func DetectFormat(data []byte) (Format, error) {
	switch {
	case bytes.HasPrefix(data, []byte("%PDF")):
		return FormatPDF, nil
	case bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")):
		return FormatPNG, nil
	case bytes.HasPrefix(data, []byte("\xff\xd8\xff")):
		return FormatJPEG, nil
	default:
		return "", &Error{Kind: ErrUnsupportedFormat, Msg: "document is not a PDF, PNG, or JPEG"}
	}
}

// PageCount returns the number of pages in a PDF. Image documents are
// always a single page.
func PageCount(data []byte, format Format) (int, error) {
	if format != FormatPDF {
		return 1, nil
	}
	count, err := api.PageCount(bytes.NewReader(data), nil)
	if err != nil {
		return 0, &Error{Kind: ErrUnreadable, Msg: "failed to read PDF page count", Err: err}
	}
	if count < 1 {
		return 0, &Error{Kind: ErrUnreadable, Msg: "PDF has no pages"}
	}
	return count, nil
}
