package document

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Fetcher downloads bill documents over HTTP with a size cap.
type Fetcher struct {
	client   *http.Client
	maxBytes int64
}

// NewFetcher creates a fetcher. maxBytes caps the downloaded document
// size; zero selects 50 MB.
func NewFetcher(timeout time.Duration, maxBytes int64) *Fetcher {
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	if maxBytes <= 0 {
		maxBytes = 50 << 20
	}
	return &Fetcher{
		client:   &http.Client{Timeout: timeout},
		maxBytes: maxBytes,
	}
}

// ValidateURL checks that raw is an absolute http(s) URL.
// Failures are ErrInvalidInput: the caller sent a bad URL, nothing was fetched.
func ValidateURL(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, &Error{Kind: ErrInvalidInput, Msg: "document URL is empty"}
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, &Error{Kind: ErrInvalidInput, Msg: "malformed document URL", Err: err}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, &Error{Kind: ErrInvalidInput, Msg: fmt.Sprintf("unsupported URL scheme %q", u.Scheme)}
	}
	if u.Host == "" {
		return nil, &Error{Kind: ErrInvalidInput, Msg: "document URL has no host"}
	}
	return u, nil
}

// Fetch downloads the document at rawURL and sniffs its format.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, Format, error) {
	u, err := ValidateURL(rawURL)
	if err != nil {
		return nil, "", err
	}

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return nil, "", &Error{Kind: ErrFetch, Msg: "failed to create request", Err: err}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", &Error{Kind: ErrFetch, Msg: "failed to download document", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", &Error{Kind: ErrFetch, Msg: fmt.Sprintf("document server returned status %d", resp.StatusCode)}
	}

	// Read one byte past the cap to detect oversize documents.
	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, "", &Error{Kind: ErrFetch, Msg: "failed to read document body", Err: err}
	}
	if int64(len(data)) > f.maxBytes {
		return nil, "", &Error{Kind: ErrFetch, Msg: fmt.Sprintf("document exceeds %d byte limit", f.maxBytes)}
	}
	if len(data) == 0 {
		return nil, "", &Error{Kind: ErrUnreadable, Msg: "document is empty"}
	}

	format, err := DetectFormat(data)
	if err != nil {
		return nil, "", err
	}

	return data, format, nil
}
