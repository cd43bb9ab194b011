package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/hackrx-qa/docqa/pkg/logger"
)

// Sentinel errors for download policy handling and tests.
var (
	ErrNotPDF          = errors.New("downloaded content is not a valid PDF")
	ErrMaxSizeExceeded = errors.New("download exceeds size limit")
)

var pdfMagic = []byte("%PDF")

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

// Fetcher downloads source PDFs over HTTP.
type Fetcher struct {
	client    *http.Client
	maxBytes  int64
	userAgent string
}

// FetcherOptions tunes download limits.
type FetcherOptions struct {
	Timeout   time.Duration
	MaxBytes  int64
	UserAgent string
}

// NewFetcher builds a fetcher with sanitized limits.
func NewFetcher(opts FetcherOptions) *Fetcher {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = 50 * 1024 * 1024
	}
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Fetcher{
		client:    &http.Client{Timeout: timeout, Transport: &http.Transport{ResponseHeaderTimeout: timeout}},
		maxBytes:  maxBytes,
		userAgent: userAgent,
	}
}

// Fetch downloads the PDF at rawURL, rewriting known share-link forms to
// their direct-download equivalent and validating the PDF magic signature.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	log := logger.FromContext(ctx)
	target := RewriteShareURL(rawURL)
	if target != rawURL {
		log.Debug("Rewrote share link to direct download", "url", rawURL, "direct_url", target)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("document: build request for %q: %w", target, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("document: download %q: %w", target, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("document: download %q: unexpected status %d", target, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("document: read %q: %w", target, err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("document: %q: %w", target, ErrMaxSizeExceeded)
	}
	if !bytes.HasPrefix(data, pdfMagic) {
		detected := mimetype.Detect(data)
		log.Warn("Downloaded content failed PDF validation", "url", rawURL, "detected_mime", detected.String())
		return nil, fmt.Errorf("document: %q: %w", rawURL, ErrNotPDF)
	}
	log.Debug("Downloaded PDF", "url", rawURL, "bytes", len(data))
	return data, nil
}

// RewriteShareURL converts Google Drive share links to their
// direct-download form. Other URLs pass through unchanged.
func RewriteShareURL(rawURL string) string {
	if !strings.Contains(rawURL, "drive.google.com") || strings.Contains(rawURL, "uc?export=download") {
		return rawURL
	}
	fileID := ""
	switch {
	case strings.Contains(rawURL, "/file/d/"):
		rest := strings.SplitN(rawURL, "/file/d/", 2)[1]
		fileID = strings.SplitN(rest, "/", 2)[0]
	case strings.Contains(rawURL, "id="):
		rest := strings.SplitN(rawURL, "id=", 2)[1]
		fileID = strings.SplitN(rest, "&", 2)[0]
	}
	if fileID == "" {
		return rawURL
	}
	return "https://drive.google.com/uc?export=download&id=" + url.QueryEscape(fileID)
}
