// Package fetcher downloads EDGAR documents while respecting per-host
// fair-access limits.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// Fetcher is implemented by HTTPFetcher and by test doubles.
type Fetcher interface {
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// DownloadToFile writes the body to path and returns the byte count.
	// A failed download leaves no file at path.
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}

// StatusError carries a non-200 EDGAR response.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: HTTP %d", e.URL, e.StatusCode)
}

// IsNotFound is true when err wraps a 404 StatusError. EDGAR answers 404 for
// filers and documents it does not publish.
func IsNotFound(err error) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	return se.StatusCode == http.StatusNotFound
}

var transientStatus = map[int]bool{
	http.StatusRequestTimeout:      true,
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// IsTransientStatus reports whether a response with this code is worth retrying.
func IsTransientStatus(code int) bool { return transientStatus[code] }
